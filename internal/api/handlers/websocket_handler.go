package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/dashboard"
	"github.com/sydialogue/dashboard/internal/metrics"
	"github.com/sydialogue/dashboard/pkg/logger"
)

// RelationshipSource is the part of the dashboard service the hub needs.
type RelationshipSource interface {
	Relationships(ctx context.Context, refresh bool) (dashboard.RelationshipView, error)
	CachedRelationships(ctx context.Context) (dashboard.RelationshipView, bool)
}

type subscriber struct {
	send chan []byte
}

// WebSocketHandler pushes every new relationship snapshot to connected
// dashboards. Subscribers that cannot keep up are disconnected.
type WebSocketHandler struct {
	source       RelationshipSource
	bufferSize   int
	writeTimeout time.Duration
	log          *zap.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

var _ dashboard.Broadcaster = (*WebSocketHandler)(nil)

type wsMessage struct {
	Type  string                      `json:"type"`
	Data  *dashboard.RelationshipView `json:"data,omitempty"`
	Error string                      `json:"error,omitempty"`
}

func NewWebSocketHandler(source RelationshipSource) *WebSocketHandler {
	return &WebSocketHandler{
		source:       source,
		bufferSize:   4,
		writeTimeout: 10 * time.Second,
		log:          logger.Named("websocket"),
		subscribers:  make(map[*subscriber]struct{}),
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	sub := h.subscribe()
	logger.Info("WebSocket connection established", zap.String("remote", c.RemoteAddr().String()))

	defer func() {
		h.unsubscribe(sub)
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readLoop(ctx, c, sub)
	}()

	if view, ok := h.source.CachedRelationships(ctx); ok {
		h.deliver(sub, snapshotMessage(view))
	}

	for {
		select {
		case msg, ok := <-sub.send:
			if !ok {
				h.log.Warn("Dropping slow WebSocket subscriber")
				return
			}
			_ = c.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("Failed to write WebSocket message", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop answers client requests: "refresh" rebuilds the map (the result
// reaches every subscriber through Broadcast), "snapshot" resends the cached
// one to this client only.
func (h *WebSocketHandler) readLoop(ctx context.Context, c *websocket.Conn, sub *subscriber) {
	for {
		var msg struct {
			Type string `json:"type"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			h.log.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		switch msg.Type {
		case "refresh":
			if _, err := h.source.Relationships(ctx, true); err != nil {
				h.log.Error("WebSocket refresh failed", zap.Error(err))
				h.deliver(sub, errorMessage("Failed to refresh relationship map"))
			}
		case "snapshot":
			view, _ := h.source.CachedRelationships(ctx)
			h.deliver(sub, snapshotMessage(view))
		}
	}
}

// Broadcast implements dashboard.Broadcaster.
func (h *WebSocketHandler) Broadcast(view dashboard.RelationshipView) {
	msg := snapshotMessage(view)
	if msg == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			h.removeLocked(sub)
		}
	}
}

func (h *WebSocketHandler) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *WebSocketHandler) subscribe() *subscriber {
	sub := &subscriber{send: make(chan []byte, h.bufferSize)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	metrics.WebSocketSubscribers.Set(float64(len(h.subscribers)))
	h.mu.Unlock()

	return sub
}

func (h *WebSocketHandler) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *WebSocketHandler) removeLocked(sub *subscriber) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.send)
	metrics.WebSocketSubscribers.Set(float64(len(h.subscribers)))
}

// deliver queues msg for one subscriber, dropping it when the queue is full.
func (h *WebSocketHandler) deliver(sub *subscriber, msg []byte) {
	if msg == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	select {
	case sub.send <- msg:
	default:
	}
}

func snapshotMessage(view dashboard.RelationshipView) []byte {
	return encode(wsMessage{Type: "snapshot", Data: &view})
}

func errorMessage(text string) []byte {
	return encode(wsMessage{Type: "error", Error: text})
}

func encode(msg wsMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to encode WebSocket message", zap.Error(err))
		return nil
	}
	return data
}
