package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiCompleter struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
}

func NewGeminiCompleter(ctx context.Context, apiKey, modelName string, timeout time.Duration) (*GeminiCompleter, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" || strings.HasPrefix(modelName, "gpt-") {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiCompleter{client: cl, modelName: modelName, timeout: timeout}, nil
}

func (g *GeminiCompleter) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	m := g.client.GenerativeModel(g.modelName)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	m.SetTemperature(req.Temperature)

	resp, err := m.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String()), nil
}
