package http

import (
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/observable/internal/domain/objects"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SetPropertyRequest is the body of PUT /objects/:id/properties/:name
type SetPropertyRequest struct {
	Value any `json:"value"`
}

func objectID(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", objects.ErrBadUUID, raw)
	}
	return id, nil
}

// ListObjects lists live objects with registry statistics
func (h *Handlers) ListObjects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"objects": h.objects.List(),
		"stats":   h.objects.Stats(),
	})
}

// CreateObject registers a new object from {"uuid"?, "properties"}
func (h *Handlers) CreateObject(c *gin.Context) {
	var dict map[string]any
	if err := c.ShouldBindJSON(&dict); err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	snap, err := h.objects.Create(dict)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// GetObject returns one live object
func (h *Handlers) GetObject(c *gin.Context) {
	id, err := objectID(c)
	if err != nil {
		fail(c, err)
		return
	}

	snap, err := h.objects.Get(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SetProperty assigns one property of a live object
func (h *Handlers) SetProperty(c *gin.Context) {
	id, err := objectID(c)
	if err != nil {
		fail(c, err)
		return
	}

	var req SetPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	snap, err := h.objects.Set(id, c.Param("name"), req.Value)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ReleaseObject unregisters an object and keeps its archive
func (h *Handlers) ReleaseObject(c *gin.Context) {
	id, err := objectID(c)
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.objects.Release(id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "uuid": id})
}

// RestoreObject registers an object again from its archive
func (h *Handlers) RestoreObject(c *gin.Context) {
	id, err := objectID(c)
	if err != nil {
		fail(c, err)
		return
	}

	snap, err := h.objects.Restore(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DeleteObject unregisters an object and deletes its archive
func (h *Handlers) DeleteObject(c *gin.Context) {
	id, err := objectID(c)
	if err != nil {
		fail(c, err)
		return
	}

	if err := h.objects.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "uuid": id})
}

// ListArchives lists stored archives, including released objects
func (h *Handlers) ListArchives(c *gin.Context) {
	entries, err := h.objects.Archives(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archives": entries})
}
