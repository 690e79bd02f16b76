package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gl "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	pb "cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGenerator sends conversations to Gemini's generateContent method.
// Every turn is forwarded with the role it was built with, the last one
// included. The client is created once and shared by every request.
type GeminiGenerator struct {
	client *gl.GenerativeClient
	model  string
}

// NewGeminiGenerator connects with apiKey. Extra options are applied after
// the key, e.g. to point the client at another endpoint.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*GeminiGenerator, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)

	client, err := gl.NewGenerativeRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  fullModelName(modelName),
	}, nil
}

func (g *GeminiGenerator) GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if len(contents) == 0 {
		return nil, errors.New("no contents to send")
	}

	resp, err := g.client.GenerateContent(ctx, &pb.GenerateContentRequest{
		Model:    g.model,
		Contents: contentsToProto(contents),
	})
	if err != nil {
		return nil, err
	}
	return responseFromProto(resp), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func fullModelName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "models/" + name
}

func contentsToProto(contents []*genai.Content) []*pb.Content {
	out := make([]*pb.Content, 0, len(contents))
	for _, c := range contents {
		pc := &pb.Content{Role: c.Role}
		for _, p := range c.Parts {
			if t, ok := p.(genai.Text); ok {
				pc.Parts = append(pc.Parts, &pb.Part{Data: &pb.Part_Text{Text: string(t)}})
			}
		}
		out = append(out, pc)
	}
	return out
}

func responseFromProto(resp *pb.GenerateContentResponse) *genai.GenerateContentResponse {
	if resp == nil {
		return nil
	}

	out := &genai.GenerateContentResponse{}
	if pf := resp.GetPromptFeedback(); pf != nil {
		out.PromptFeedback = &genai.PromptFeedback{BlockReason: genai.BlockReason(pf.GetBlockReason())}
	}

	for _, c := range resp.GetCandidates() {
		if c == nil {
			out.Candidates = append(out.Candidates, nil)
			continue
		}
		cand := &genai.Candidate{
			Index:        c.GetIndex(),
			FinishReason: genai.FinishReason(c.GetFinishReason()),
		}
		if pc := c.GetContent(); pc != nil {
			cand.Content = &genai.Content{Role: pc.GetRole()}
			for _, p := range pc.GetParts() {
				if part := partFromProto(p); part != nil {
					cand.Content.Parts = append(cand.Content.Parts, part)
				}
			}
		}
		out.Candidates = append(out.Candidates, cand)
	}
	return out
}

// partFromProto keeps enough of a non-text part for it to be reported by type.
func partFromProto(p *pb.Part) genai.Part {
	switch d := p.GetData().(type) {
	case *pb.Part_Text:
		return genai.Text(d.Text)
	case *pb.Part_InlineData:
		return genai.Blob{MIMEType: d.InlineData.GetMimeType(), Data: d.InlineData.GetData()}
	case *pb.Part_FileData:
		return genai.FileData{MIMEType: d.FileData.GetMimeType(), URI: d.FileData.GetFileUri()}
	case *pb.Part_FunctionCall:
		return genai.FunctionCall{Name: d.FunctionCall.GetName()}
	case *pb.Part_FunctionResponse:
		return genai.FunctionResponse{Name: d.FunctionResponse.GetName()}
	case *pb.Part_ExecutableCode:
		return genai.ExecutableCode{Code: d.ExecutableCode.GetCode()}
	case *pb.Part_CodeExecutionResult:
		return genai.CodeExecutionResult{Output: d.CodeExecutionResult.GetOutput()}
	default:
		return nil
	}
}

// firstCandidateText returns candidates[0].content.parts[0] as text, or an
// error naming the first missing piece.
func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from model")
	}

	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked by model: %s", fb.BlockReason)
		}
		return "", errors.New("model returned no candidates")
	}

	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		reason := genai.FinishReasonUnspecified
		if cand != nil {
			reason = cand.FinishReason
		}
		return "", fmt.Errorf("model returned a candidate without content (finish reason: %s)", reason)
	}

	text, ok := cand.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("model returned a %T part instead of text", cand.Content.Parts[0])
	}
	return string(text), nil
}
