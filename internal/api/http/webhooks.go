package http

import (
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/observable/internal/shared/id"
	"github.com/gin-gonic/gin"
)

// WebhookRequest is the body of POST /webhooks
type WebhookRequest struct {
	Pattern string `json:"pattern" binding:"required"`
	URL     string `json:"url" binding:"required"`
}

// ListWebhooks lists registered webhooks with delivery statistics
func (h *Handlers) ListWebhooks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"webhooks": h.webhooks.List()})
}

// CreateWebhook starts posting messages of matching topics to a URL
func (h *Handlers) CreateWebhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	info, err := h.webhooks.Add(req.Pattern, req.URL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// GetWebhook returns one webhook
func (h *Handlers) GetWebhook(c *gin.Context) {
	info, err := h.webhooks.Get(id.WebhookID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// DeleteWebhook stops a webhook after draining its queue
func (h *Handlers) DeleteWebhook(c *gin.Context) {
	webhookID := id.WebhookID(c.Param("id"))
	if err := h.webhooks.Remove(webhookID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": webhookID})
}
