package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/observable/internal/domain/archive"
	"github.com/GriffinCanCode/observable/internal/domain/objects"
	"github.com/GriffinCanCode/observable/internal/domain/property"
	"github.com/GriffinCanCode/observable/internal/domain/topic"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/observable/internal/sink/webhook"
	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	objects  *objects.Manager
	hub      *topic.Hub
	webhooks *webhook.Registry
	metrics  *monitoring.Metrics
	started  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(
	objectManager *objects.Manager,
	hub *topic.Hub,
	webhooks *webhook.Registry,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		objects:  objectManager,
		hub:      hub,
		webhooks: webhooks,
		metrics:  metrics,
		started:  time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	r.GET("/metrics/json", h.MetricsJSON)

	// Managed objects
	r.GET("/objects", h.ListObjects)
	r.POST("/objects", h.CreateObject)
	r.GET("/objects/:id", h.GetObject)
	r.PUT("/objects/:id/properties/:name", h.SetProperty)
	r.POST("/objects/:id/release", h.ReleaseObject)
	r.POST("/objects/:id/restore", h.RestoreObject)
	r.DELETE("/objects/:id", h.DeleteObject)
	r.GET("/archives", h.ListArchives)

	// Topics; names containing slashes must be sent escaped (%2F)
	r.GET("/topics", h.ListTopics)
	r.GET("/topics/:name", h.GetTopic)
	r.POST("/topics/:name/publish", h.Publish)
	r.POST("/topics/:name/derive", h.Derive)

	// Webhooks
	r.GET("/webhooks", h.ListWebhooks)
	r.POST("/webhooks", h.CreateWebhook)
	r.GET("/webhooks/:id", h.GetWebhook)
	r.DELETE("/webhooks/:id", h.DeleteWebhook)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "observable",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"objects":  h.objects.Stats(),
		"topics":   len(h.hub.Topics()),
		"watches":  h.hub.Watches(),
		"webhooks": len(h.webhooks.List()),
	})
}

// MetricsJSON returns the metrics summary as JSON
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// fail writes err with the status its sentinel maps to
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, objects.ErrNotFound),
		errors.Is(err, archive.ErrNotFound),
		errors.Is(err, webhook.ErrNotFound),
		errors.Is(err, property.ErrUnknownProperty),
		errors.Is(err, errTopicNotFound):
		return http.StatusNotFound
	case errors.Is(err, objects.ErrExists),
		errors.Is(err, objects.ErrBusy),
		errors.Is(err, topic.ErrTopicExists),
		errors.Is(err, topic.ErrDerivedTopic):
		return http.StatusConflict
	case errors.Is(err, objects.ErrBadUUID),
		errors.Is(err, topic.ErrBadTopic),
		errors.Is(err, topic.ErrBadPattern),
		errors.Is(err, topic.ErrBadExpression),
		errors.Is(err, webhook.ErrInvalidURL),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, topic.ErrClosed),
		errors.Is(err, archive.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
