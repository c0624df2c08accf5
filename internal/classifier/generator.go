// Package classifier asks a generative model which destination folder a document
// belongs in and resolves the answer against the folders that exist.
package classifier

import "context"

// Default generation settings. Low temperature keeps answers stable across runs.
const (
	DefaultTemperature     float32 = 0.1
	DefaultMaxOutputTokens int32   = 1000
)

// Attachment is an inline file sent alongside the prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// GenerateRequest is one prompt plus its attachments.
type GenerateRequest struct {
	System      string
	Prompt      string
	Attachments []Attachment
}

// Generator turns a request into the model's text answer.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
