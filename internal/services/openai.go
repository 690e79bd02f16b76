package services

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint.
// Replies are reshaped into Gemini candidates so extraction stays uniform.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *OpenAIGenerator) GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(contents))
	for _, c := range contents {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openAIRole(c.Role),
			Content: partsText(c.Parts),
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: msgs,
	})
	if err != nil {
		return nil, err
	}

	out := &genai.GenerateContentResponse{}
	for i, choice := range resp.Choices {
		out.Candidates = append(out.Candidates, &genai.Candidate{
			Index: int32(i),
			Content: &genai.Content{
				Role:  geminiRoleModel,
				Parts: []genai.Part{genai.Text(choice.Message.Content)},
			},
		})
	}
	return out, nil
}

func (g *OpenAIGenerator) Close() error { return nil }

func openAIRole(role string) string {
	switch role {
	case geminiRoleModel:
		return openai.ChatMessageRoleAssistant
	case "":
		return openai.ChatMessageRoleUser
	default:
		return role
	}
}

func partsText(parts []genai.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
