package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongTimeout     time.Duration
	MaxMessageSize  int64
	AllowedOrigins  []string
}

func (o Options) withDefaults() Options {
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = (o.PongTimeout * 9) / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	ctx      context.Context
}

// NewHandler starts the hub and serves upgrades until ctx is cancelled.
func NewHandler(ctx context.Context, hub *Hub, opts Options) *Handler {
	opts = opts.withDefaults()
	go hub.Run(ctx)

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts: opts,
		ctx:  ctx,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	id := c.GetString("request_id")
	if id == "" {
		id = uuid.NewString()
	}

	client := newClient(h.hub, conn, id, h.opts)
	select {
	case h.hub.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}
	h.hub.logger.WithRequestID(id).Debug("WebSocket client connected")

	go client.writePump()
	go client.readPump(h.ctx)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
