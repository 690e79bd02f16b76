package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/apex/log"

	"gemini-chat-backend/internal/middleware"
	"gemini-chat-backend/internal/models"
	"gemini-chat-backend/internal/services"
)

// maxChatBodyBytes bounds a single chat request body.
const maxChatBodyBytes = 1 << 20

type conversationRelay interface {
	Relay(ctx context.Context, raw json.RawMessage) (string, error)
}

type ChatHandler struct {
	relay conversationRelay
}

func NewChatHandler(relay conversationRelay) *ChatHandler {
	return &ChatHandler{relay: relay}
}

// Chat handles POST /api/chat. Every failure, whatever its kind, is answered
// with 500 and the error message as the result.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, &services.InvalidInputError{Message: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.relay.Relay(r.Context(), req.Conversation)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Result: result})
}

func (h *ChatHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	entry := log.WithError(err).WithField("request_id", middleware.GetRequestID(r.Context()))

	var invalid *services.InvalidInputError
	if errors.As(err, &invalid) {
		entry.Warn("chat request rejected")
	} else {
		entry.Error("chat relay failed")
	}

	writeResult(w, http.StatusInternalServerError, err.Error())
}
