package inference

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient adapts Google Gemini to the Client interface. Generation is
// configured for deterministic structured output: low temperature, JSON
// response mode.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient dials Gemini with the supplied API key.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelName: modelName}, nil
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// Generate performs exactly one inference call.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.1)
	model.SetTopP(0.9)
	model.SetMaxOutputTokens(2048)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.System)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Instruction))
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyCandidate
	}

	raw := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			raw += string(text)
		}
	}
	if raw == "" {
		return nil, ErrEmptyCandidate
	}

	slog.Debug("inference candidate received", "model", g.modelName, "bytes", len(raw))
	return &Response{Text: raw}, nil
}
