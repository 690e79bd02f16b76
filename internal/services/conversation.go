package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"gemini-chat-backend/internal/models"
)

const ErrMsgConversationNotArray = "conversation must be an array!"

// PersonaInstruction is sent as the first turn of every exchange.
const PersonaInstruction = "[INSTRUKSI]: Jawab semua pertanyaan dalam bahasa Indonesia. " +
	"Anda adalah seorang ahli Google Gemini AI. " +
	"Berikan jawaban yang detail, akurat, dan berfokus pada fitur, kemampuan, dan penggunaan Google Gemini AI. " +
	"Jika pertanyaan tidak terkait dengan Gemini AI, dengan sopan arahkan pengguna untuk bertanya tentang Gemini AI."

// Gemini names the assistant side of a dialogue "model".
const geminiRoleModel = "model"

// DecodeConversation validates the raw conversation value of a ChatRequest.
// Anything other than a JSON array of turn objects is an InvalidInputError.
func DecodeConversation(raw json.RawMessage) ([]models.ConversationTurn, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &InvalidInputError{Message: ErrMsgConversationNotArray}
	}

	var turns []models.ConversationTurn
	if err := json.Unmarshal(trimmed, &turns); err != nil {
		return nil, &InvalidInputError{Message: fmt.Sprintf("invalid conversation turn: %v", err)}
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	return turns, nil
}

// BuildContents prepends the persona turn to the caller's turns, keeping
// their order. The result always has len(turns)+1 entries.
func BuildContents(turns []models.ConversationTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns)+1)
	contents = append(contents, &genai.Content{
		Role:  models.RoleUser,
		Parts: []genai.Part{genai.Text(PersonaInstruction)},
	})

	for _, turn := range turns {
		contents = append(contents, &genai.Content{
			Role:  geminiRole(turn.Role),
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return contents
}

func geminiRole(role string) string {
	if role == models.RoleAssistant {
		return geminiRoleModel
	}
	return role
}
