package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/ports/adapter"
)

var _ adapter.SynthesisGateway = (*GeminiGateway)(nil)

// GeminiGateway edits the person image with a Gemini image model.
type GeminiGateway struct {
	client *genai.Client
	model  string
}

func NewGeminiGateway(ctx context.Context, apiKey, baseURL, model string) (*GeminiGateway, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGateway{client: c, model: model}, nil
}

func (g *GeminiGateway) Name() string { return "gemini" }

func (g *GeminiGateway) Synthesize(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: req.Person.MIMEType, Data: req.Person.Data}},
			{InlineData: &genai.Blob{MIMEType: req.Garment.MIMEType, Data: req.Garment.Data}},
			{Text: BuildPrompt(req.Style)},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	img, text := firstImage(resp)
	if img == nil {
		if text != "" {
			return nil, fmt.Errorf("%w: gemini returned text only: %s", domain.ErrMalformedResponse, truncate(text, 200))
		}
		return nil, fmt.Errorf("%w: gemini returned no image", domain.ErrMalformedResponse)
	}
	return &adapter.SynthesisResult{
		Image:    adapter.Image{Data: img.Data, MIMEType: img.MIMEType},
		Provider: g.Name(),
		Model:    g.model,
	}, nil
}

func firstImage(resp *genai.GenerateContentResponse) (*genai.Blob, string) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ""
	}
	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData, ""
		}
		text.WriteString(p.Text)
	}
	return nil, text.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
