package gcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/boxdocumentsorter/internal/classifier"
)

// Inference backends selectable with INFERENCE_BACKEND.
const (
	BackendVertex = "vertex"
	BackendGemini = "gemini"
)

// GeneratorConfig selects and configures an inference backend.
type GeneratorConfig struct {
	Backend   string
	ProjectID string
	Region    string
	APIKey    string
	Model     string
}

// GeneratorConfigFromEnv reads the inference settings shared by every function.
func GeneratorConfigFromEnv() GeneratorConfig {
	return GeneratorConfig{
		Backend:   strings.ToLower(GetEnv("INFERENCE_BACKEND", BackendVertex)),
		ProjectID: GetEnv("PROJECT_ID", ""),
		Region:    GetEnv("VERTEX_AI_REGION", "us-central1"),
		APIKey:    GetEnv("GEMINI_API_KEY", ""),
		Model:     GetEnv("GEMINI_MODEL", DefaultModel),
	}
}

// NewGenerator builds the backend named in cfg.
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (classifier.Generator, error) {
	switch cfg.Backend {
	case BackendVertex, "":
		return NewVertexGenerator(ctx, cfg.ProjectID, cfg.Region, cfg.Model)
	case BackendGemini:
		return NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown INFERENCE_BACKEND %q", cfg.Backend)
	}
}
