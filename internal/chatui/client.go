package chatui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gemini-chat-backend/internal/models"
)

// Client posts one-shot conversations to a relay's /api/chat endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient targets the relay at baseURL. A non-empty token is sent as a
// bearer credential.
func NewClient(baseURL, token string) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/chat",
		token:    token,
		// No client timeout; the caller's context is the only bound.
		http: &http.Client{},
	}
}

// Send submits text as a single user turn and returns the relay's result.
// Any transport failure or non-2xx status is an error.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	conversation, err := json.Marshal([]models.ConversationTurn{{Role: models.RoleUser, Content: text}})
	if err != nil {
		return "", fmt.Errorf("failed to encode conversation: %w", err)
	}
	body, err := json.Marshal(models.ChatRequest{Conversation: conversation})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("chat request failed: status %d", res.StatusCode)
	}

	var out models.ChatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Result, nil
}
