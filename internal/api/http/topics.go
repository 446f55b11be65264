package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/observable/internal/domain/topic"
	"github.com/gin-gonic/gin"
)

var (
	errTopicNotFound = errors.New("topic not found")
	errBadRequest    = errors.New("invalid request body")
)

// PublishRequest is the body of POST /topics/:name/publish
type PublishRequest struct {
	Value any `json:"value"`
}

// DeriveRequest is the body of POST /topics/:name/derive
type DeriveRequest struct {
	Source     string `json:"source" binding:"required"`
	Expression string `json:"expression" binding:"required"`
	Cache      bool   `json:"cache"`
}

// ListTopics lists every topic with its statistics
func (h *Handlers) ListTopics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": h.hub.Topics()})
}

// GetTopic returns one topic
func (h *Handlers) GetTopic(c *gin.Context) {
	name := c.Param("name")

	info, ok := h.hub.Topic(name)
	if !ok {
		fail(c, fmt.Errorf("%w: %s", errTopicNotFound, name))
		return
	}
	c.JSON(http.StatusOK, info)
}

// Publish pushes a value to a topic, creating it on first use. The
// request's trace id travels with the message.
func (h *Handlers) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	name := c.Param("name")
	if err := h.hub.Publish(c.Request.Context(), name, req.Value); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "topic": name})
}

// Derive creates a topic computed from another one
func (h *Handlers) Derive(c *gin.Context) {
	var req DeriveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	info, err := h.hub.Derive(c.Param("name"), req.Source, topic.Derivation{
		Expression: req.Expression,
		Cache:      req.Cache,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}
