package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// Confidence values used when the model does not report its own.
const (
	MatchConfidence    = 0.8
	FallbackConfidence = 0.3
)

// DefaultMaxInlinePages bounds how much of a PDF is sent to the model.
const DefaultMaxInlinePages = 20

// Downloader fetches file bytes from Box.
type Downloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Options tune a Classifier. Zero values select the defaults.
type Options struct {
	// OtherFolderName is reported as the target when nothing matches.
	OtherFolderName string
	// MaxInlinePages trims longer PDFs; negative disables trimming.
	MaxInlinePages int
	// RequestsPerMinute paces Generate calls; zero means unlimited.
	RequestsPerMinute int
	// Limiter, when set, is used instead of RequestsPerMinute so several
	// classifiers can share one budget.
	Limiter *rate.Limiter
}

// Classifier classifies Box files into destination folders.
type Classifier struct {
	gen       Generator
	files     Downloader
	otherName string
	maxPages  int
	limiter   *rate.Limiter
}

// New creates a Classifier.
func New(gen Generator, files Downloader, opts Options) *Classifier {
	c := &Classifier{
		gen:       gen,
		files:     files,
		otherName: opts.OtherFolderName,
		maxPages:  opts.MaxInlinePages,
	}
	if c.otherName == "" {
		c.otherName = "Other"
	}
	if c.maxPages == 0 {
		c.maxPages = DefaultMaxInlinePages
	}
	switch {
	case opts.Limiter != nil:
		c.limiter = opts.Limiter
	case opts.RequestsPerMinute > 0:
		c.limiter = NewLimiter(opts.RequestsPerMinute)
	}
	return c
}

// NewLimiter allows rpm requests per minute with a burst of one.
func NewLimiter(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(rpm)/60), 1)
}

// generate waits for the limiter, then calls the model.
func (c *Classifier) generate(ctx context.Context, req GenerateRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return c.gen.Generate(ctx, req)
}

// Classify downloads file, asks the model for a folder and resolves the answer
// against destinations. Download and inference failures come back as
// CodeClassificationFailed; an unparseable answer is never an error.
func (c *Classifier) Classify(ctx context.Context, file models.FolderNode, destinations []models.FolderNode, extraRules string) (models.ClassificationResult, error) {
	logCtx := slog.With("fileId", file.ID, "fileName", file.Name)

	data, err := c.files.DownloadFile(ctx, file.ID)
	if err != nil {
		return models.ClassificationResult{}, errs.Wrap(errs.CodeClassificationFailed, fmt.Sprintf("download %s", file.Name), err)
	}

	mime := MIMEType(file.Name)
	if mime == "application/pdf" && c.maxPages > 0 {
		trimmed, pages, err := trimPDF(data, c.maxPages)
		if err != nil {
			logCtx.Warn("Could not inspect PDF; sending it unchanged.", "error", err)
		} else {
			if pages > c.maxPages {
				logCtx.Info("Trimmed PDF before inlining.", "pages", pages, "keptPages", c.maxPages)
			}
			data = trimmed
		}
	}

	names := make([]string, 0, len(destinations))
	for _, d := range destinations {
		names = append(names, d.Name)
	}
	text, err := c.generate(ctx, GenerateRequest{
		System:      systemPrompt,
		Prompt:      buildPrompt(file.Name, names, c.otherName, extraRules),
		Attachments: []Attachment{{MIMEType: mime, Data: data}},
	})
	if err != nil {
		return models.ClassificationResult{}, errs.Wrap(errs.CodeClassificationFailed, fmt.Sprintf("classify %s", file.Name), err)
	}

	answer, err := ParseAnswer(text)
	if err != nil {
		logCtx.Warn("Using raw model answer as category.", "code", errs.CodeOf(err), "error", err, "answer", text)
	}
	result := c.Resolve(answer, destinations)
	logCtx.Info("Classified file.", "category", result.Category, "targetFolder", result.TargetFolderName, "confidence", result.Confidence)
	return result, nil
}

// Resolve matches the answer against destination names: exact match first, then
// a folder name contained in the category, then the category contained in a
// folder name. Without a match the result targets the fallback folder with an
// empty TargetFolderID, which means the file stays where it is.
func (c *Classifier) Resolve(a Answer, destinations []models.FolderNode) models.ClassificationResult {
	result := models.ClassificationResult{Category: a.Category, Reasoning: a.Reason}

	if target, ok := match(a.Category, destinations); ok {
		result.TargetFolderID = target.ID
		result.TargetFolderName = target.Name
		result.Confidence = MatchConfidence
		if a.Confidence != nil {
			result.Confidence = *a.Confidence
		}
		return result
	}

	result.TargetFolderName = c.otherName
	result.Confidence = FallbackConfidence
	return result
}

func match(category string, destinations []models.FolderNode) (models.FolderNode, bool) {
	if category == "" {
		return models.FolderNode{}, false
	}
	for _, d := range destinations {
		if d.Name == category {
			return d, true
		}
	}
	for _, d := range destinations {
		if d.Name != "" && strings.Contains(category, d.Name) {
			return d, true
		}
	}
	for _, d := range destinations {
		if strings.Contains(d.Name, category) {
			return d, true
		}
	}
	return models.FolderNode{}, false
}
