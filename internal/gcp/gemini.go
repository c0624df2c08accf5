package gcp

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Lllllllleong/boxdocumentsorter/internal/classifier"
)

// GeminiGenerator answers classification prompts through the Gemini API with an API key.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator authenticated by apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewGeminiGenerator: apiKey cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &GeminiGenerator{client: client, model: modelName}, nil
}

// Generate sends the prompt and inline attachments and returns the concatenated answer text.
func (g *GeminiGenerator) Generate(ctx context.Context, req classifier.GenerateRequest) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, a := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](classifier.DefaultTemperature),
		MaxOutputTokens: classifier.DefaultMaxOutputTokens,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty answer")
	}
	return text, nil
}
