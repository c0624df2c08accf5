package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/boxdocumentsorter/internal/classifier"
)

// DefaultModel is the Gemini model used by both backends.
const DefaultModel = "gemini-1.5-flash"

// VertexGenerator answers classification prompts with a Gemini model on Vertex AI.
type VertexGenerator struct {
	modelName  string
	baseClient *genai.Client
}

// NewVertexGenerator creates a generator for projectID/region.
func NewVertexGenerator(ctx context.Context, projectID, region, modelName string) (*VertexGenerator, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexGenerator: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexGenerator{modelName: modelName, baseClient: baseClient}, nil
}

// newModel returns a model handle configured for one request.
func (g *VertexGenerator) newModel(system string) *genai.GenerativeModel {
	model := g.baseClient.GenerativeModel(g.modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](classifier.DefaultTemperature),
		MaxOutputTokens: genai.Ptr[int32](classifier.DefaultMaxOutputTokens),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return model
}

// Generate sends the prompt and inline attachments and returns the text of the first candidate.
func (g *VertexGenerator) Generate(ctx context.Context, req classifier.GenerateRequest) (string, error) {
	parts := []genai.Part{genai.Text(req.Prompt)}
	for _, a := range req.Attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}

	resp, err := g.newModel(req.System).GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("vertex GenerateContent: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("vertex returned no candidates")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("vertex returned an empty answer")
	}
	return b.String(), nil
}

func (g *VertexGenerator) Close() error {
	if g.baseClient != nil {
		return g.baseClient.Close()
	}
	return nil
}
