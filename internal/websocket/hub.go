package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gemini-chat-backend/internal/metrics"
	"gemini-chat-backend/internal/middleware"
	"gemini-chat-backend/internal/models"
)

// maxFrameBytes matches the HTTP chat body limit.
const maxFrameBytes = 1 << 20

type conversationRelay interface {
	Relay(ctx context.Context, raw json.RawMessage) (string, error)
}

// Hub serves the chat relay over WebSocket. Every text frame is one
// independent exchange; the hub keeps no conversation state.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*websocket.Conn
	cancelFuncs map[uuid.UUID]context.CancelFunc
	relay       conversationRelay
	limiter     middleware.Limiter
	upgrader    websocket.Upgrader
}

// NewHub builds a hub. A non-nil limiter is charged once per frame, with the
// same budget as POST /api/chat.
func NewHub(relay conversationRelay, allowedOrigins []string, limiter middleware.Limiter) *Hub {
	h := &Hub{
		connections: make(map[uuid.UUID]*websocket.Conn),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		relay:       relay,
		limiter:     limiter,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	connID := uuid.New()
	client := middleware.ClientKey(r)
	ctx := h.registerConnection(connID, conn)

	go func() {
		defer h.unregisterConnection(connID)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}

			frame, ok := h.checkLimit(ctx, connID, client)
			if ok {
				frame = h.handleFrame(ctx, connID, data)
			}
			if err := conn.WriteJSON(frame); err != nil {
				log.WithError(err).WithField("conn_id", connID).Warn("WebSocket write failed")
				break
			}
		}
	}()
}

func (h *Hub) handleFrame(ctx context.Context, connID uuid.UUID, data []byte) models.ChatFrame {
	var req models.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		log.WithError(err).WithField("conn_id", connID).Warn("WebSocket frame rejected")
		return models.ChatFrame{Status: http.StatusInternalServerError, Result: "invalid request body: " + err.Error()}
	}

	result, err := h.relay.Relay(ctx, req.Conversation)
	if err != nil {
		log.WithError(err).WithField("conn_id", connID).Error("WebSocket chat relay failed")
		return models.ChatFrame{Status: http.StatusInternalServerError, Result: err.Error()}
	}
	return models.ChatFrame{Status: http.StatusOK, Result: result}
}

// checkLimit charges one request to client. A limiter error lets the frame
// through.
func (h *Hub) checkLimit(ctx context.Context, connID uuid.UUID, client string) (models.ChatFrame, bool) {
	if h.limiter == nil {
		return models.ChatFrame{}, true
	}

	allowed, err := h.limiter.Allow(ctx, client)
	if err != nil {
		log.WithError(err).WithField("client", client).Warn("rate limiter unavailable, allowing frame")
		return models.ChatFrame{}, true
	}
	if !allowed {
		metrics.RateLimitedTotal.Inc()
		log.WithFields(log.Fields{"conn_id": connID, "client": client}).Warn("rate limit exceeded")
		return models.ChatFrame{Status: http.StatusTooManyRequests, Result: middleware.RateLimitMessage}, false
	}
	return models.ChatFrame{}, true
}

func (h *Hub) registerConnection(connID uuid.UUID, conn *websocket.Conn) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	h.connections[connID] = conn
	h.cancelFuncs[connID] = cancel
	metrics.WebSocketConnections.Inc()

	log.WithFields(log.Fields{"conn_id": connID, "total": len(h.connections)}).Info("WebSocket connected")
	return ctx
}

func (h *Hub) unregisterConnection(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[connID]
	if !ok {
		return
	}
	conn.Close()
	h.cancelFuncs[connID]()

	delete(h.connections, connID)
	delete(h.cancelFuncs, connID)
	metrics.WebSocketConnections.Dec()

	log.WithField("conn_id", connID).Info("WebSocket disconnected")
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close drops every open connection and abandons in-flight exchanges.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]uuid.UUID, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.unregisterConnection(id)
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
