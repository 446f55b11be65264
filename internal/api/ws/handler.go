package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/GriffinCanCode/observable/internal/domain/topic"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/observable/internal/shared/id"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// DefaultPattern is used when /stream is opened without a pattern
const DefaultPattern = "**"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the HTTP middleware
	},
}

// ClientMessage is what a client may send
type ClientMessage struct {
	Type  string `json:"type"` // "publish" or "ping"
	Topic string `json:"topic,omitempty"`
	Value any    `json:"value,omitempty"`
}

// ServerMessage is everything the server pushes
type ServerMessage struct {
	Type      string         `json:"type"` // "system", "message", "ack", "pong", "error"
	Message   *topic.Message `json:"message,omitempty"`
	Topic     string         `json:"topic,omitempty"`
	Error     string         `json:"error,omitempty"`
	ConnID    id.ConnID      `json:"conn_id,omitempty"`
	WatchID   id.WatchID     `json:"watch_id,omitempty"`
	Pattern   string         `json:"pattern,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Handler streams topic messages over WebSocket connections
type Handler struct {
	hub     *topic.Hub
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *topic.Hub, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		hub:     hub,
		logger:  logging.OrNop(logger).Named("ws"),
		metrics: metrics,
	}
}

// connection is one client. The writer goroutine owns every write to ws.
type connection struct {
	id      id.ConnID
	ws      *websocket.Conn
	out     chan ServerMessage
	done    chan struct{}
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// Handle implements stream.Subscriber so the connection can be attached
// to hub topics directly. It never blocks the publisher: when the client
// falls behind, messages are dropped.
func (c *connection) Handle(msg topic.Message) {
	c.send(ServerMessage{Type: "message", Message: &msg})
}

func (c *connection) send(msg ServerMessage) {
	msg.Timestamp = time.Now().Unix()
	select {
	case <-c.done:
	case c.out <- msg:
	default:
		c.metrics.RecordWSMessage("out", "dropped")
		c.logger.Debug("Client too slow, dropping message", zap.String("type", msg.Type))
	}
}

func (c *connection) sendError(err error) {
	c.send(ServerMessage{Type: "error", Error: err.Error()})
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	pattern := c.DefaultQuery("pattern", DefaultPattern)
	if !doublestar.ValidatePattern(pattern) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   topic.ErrBadPattern.Error() + ": " + pattern,
		})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := &connection{
		id:      id.NewConnID(),
		ws:      ws,
		out:     make(chan ServerMessage, sendBuffer),
		done:    make(chan struct{}),
		metrics: h.metrics,
	}
	conn.logger = h.logger.With(zap.String("conn_id", conn.id.String()))

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	watch, err := h.hub.Subscribe(pattern, conn)
	if err != nil {
		_ = ws.WriteJSON(ServerMessage{Type: "error", Error: err.Error(), Timestamp: time.Now().Unix()})
		ws.Close()
		return
	}

	// The greeting is written before the writer starts so it always comes
	// first; messages published meanwhile wait in conn.out.
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteJSON(ServerMessage{
		Type:      "system",
		ConnID:    conn.id,
		WatchID:   watch.ID(),
		Pattern:   pattern,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		watch.Close()
		ws.Close()
		return
	}
	conn.logger.Info("Client connected", zap.String("pattern", pattern))

	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writeLoop(conn)
	}()

	// Request context carries the trace id of the upgrade request
	h.readLoop(c.Request.Context(), conn)

	watch.Close()
	close(conn.done)
	<-written
	ws.Close()
	conn.logger.Info("Client disconnected")
}

func (h *Handler) readLoop(ctx context.Context, conn *connection) {
	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				conn.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case "publish":
			h.metrics.RecordWSMessage("in", msg.Type)
			if err := h.hub.Publish(ctx, msg.Topic, msg.Value); err != nil {
				conn.sendError(err)
				continue
			}
			conn.send(ServerMessage{Type: "ack", Topic: msg.Topic})
		case "ping":
			h.metrics.RecordWSMessage("in", msg.Type)
			conn.send(ServerMessage{Type: "pong"})
		default:
			h.metrics.RecordWSMessage("in", "unknown")
			conn.send(ServerMessage{Type: "error", Error: "unknown message type: " + msg.Type})
		}
	}
}

func (h *Handler) writeLoop(conn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-conn.out:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteJSON(msg); err != nil {
				conn.logger.Debug("WebSocket write failed", zap.Error(err))
				// Unblock the reader so the connection winds down
				conn.ws.Close()
				return
			}
			h.metrics.RecordWSMessage("out", msg.Type)
		case <-ticker.C:
			if err := conn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.ws.Close()
				return
			}
		case <-conn.done:
			_ = conn.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
