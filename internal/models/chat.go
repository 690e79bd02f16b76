package models

import "encoding/json"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn represents a single message in a conversation.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint. Conversation stays
// raw until validated so a non-array value can be told apart from an empty one.
type ChatRequest struct {
	Conversation json.RawMessage `json:"conversation"`
}

// ChatResponse carries both the reply and failure messages; the HTTP status
// tells them apart.
type ChatResponse struct {
	Result string `json:"result"`
}

// ChatFrame is the WebSocket form of ChatResponse.
type ChatFrame struct {
	Status int    `json:"status"`
	Result string `json:"result"`
}
