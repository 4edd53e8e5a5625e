package completion

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// GeminiCompleter sends prompts to the Gemini API.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a Gemini client. An empty apiKey falls back to
// the GEMINI_API_KEY / GOOGLE_API_KEY environment variables read by genai.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiCompleter: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete implements Completer.
func (g *GeminiCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: p.Message}},
		},
	}
	temperature := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemPrompt(p.Bundle)}},
		},
		Temperature:     &temperature,
		MaxOutputTokens: 1024,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", &domain.CompletionError{
			Transient: isTransient(err),
			Err:       fmt.Errorf("Complete: generate content: %w", err),
		}
	}

	text := resp.Text()
	if text == "" {
		return "", &domain.CompletionError{Err: errors.New("Complete: empty response from model")}
	}
	return text, nil
}

// isTransient reports whether retrying the same request could succeed.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
