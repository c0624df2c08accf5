package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/boxdocumentsorter/internal/classifier"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/gcp"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// ClassifyFunction classifies one uploaded file without touching Box.
type ClassifyFunction struct {
	classifier *classifier.Classifier
	now        func() time.Time
}

// NewClassify creates a ClassifyFunction.
func NewClassify(ctx context.Context) (*ClassifyFunction, error) {
	config := gcp.GeneratorConfigFromEnv()
	generator, err := gcp.NewGenerator(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}
	rpm, err := intEnv("INFERENCE_RPM", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Classify function initialized.", "backend", config.Backend, "model", config.Model)
	return &ClassifyFunction{
		classifier: classifier.New(generator, nil, classifier.Options{RequestsPerMinute: rpm}),
		now:        time.Now,
	}, nil
}

// decodeImageData accepts plain base64 or a data URL.
func decodeImageData(s string) ([]byte, string, error) {
	var mime string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errs.InvalidRequest("malformed data URL")
		}
		mime, _, _ = strings.Cut(header, ";")
		s = payload
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, "", errs.Wrap(errs.CodeInvalidRequest, "image data is not valid base64", err)
	}
	return data, mime, nil
}

// Process classifies req.ImageData.
func (f *ClassifyFunction) Process(ctx context.Context, req *models.ClassifyRequest) (*models.ClassifyResponse, error) {
	if req.ImageData == "" {
		return nil, errs.InvalidRequest("image data is required")
	}
	data, mime, err := decodeImageData(req.ImageData)
	if err != nil {
		return nil, err
	}
	if req.MimeType != "" {
		mime = req.MimeType
	}

	result, entry, err := f.classifier.ClassifyInline(ctx, data, req.FileName, mime, f.now())
	if err != nil {
		return nil, err
	}
	slog.Info("Classified inline file.", "fileName", req.FileName, "category", result.Category, "confidence", result.Confidence)
	return &models.ClassifyResponse{Success: true, Result: result, Log: entry}, nil
}
