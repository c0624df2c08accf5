package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// InlineCategories is the fixed category list used by ClassifyInline.
var InlineCategories = []string{"Invoice", "Receipt", "Contract", "Payslip", "Tax document", "Bank statement", "Ledger", "Other"}

const inlineFallbackCategory = "Other"

func inlinePrompt() string {
	var b strings.Builder
	b.WriteString("Analyze this image or PDF and decide which accounting category fits it best.\n\n")
	b.WriteString("Categories:\n")
	for _, c := range InlineCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nReturn only a JSON object in this format:\n")
	b.WriteString(`{"category": "<category name>", "confidence": <number between 0 and 1>, "reason": "<why you chose it>"}`)
	return b.String()
}

// ClassifyInline classifies bytes supplied by the caller against InlineCategories.
// No Box access is involved.
func (c *Classifier) ClassifyInline(ctx context.Context, data []byte, fileName, mimeType string, now time.Time) (models.InlineClassification, models.ClassificationLogEntry, error) {
	if len(data) == 0 {
		return models.InlineClassification{}, models.ClassificationLogEntry{}, errs.InvalidRequest("image data is required")
	}
	if mimeType == "" {
		mimeType = MIMEType(fileName)
	}

	text, err := c.generate(ctx, GenerateRequest{
		System:      systemPrompt,
		Prompt:      inlinePrompt(),
		Attachments: []Attachment{{MIMEType: mimeType, Data: data}},
	})
	if err != nil {
		return models.InlineClassification{}, models.ClassificationLogEntry{}, errs.Wrap(errs.CodeClassificationFailed, "classify inline file", err)
	}

	result := models.InlineClassification{Category: inlineFallbackCategory, Confidence: 0, Reason: NoReason}
	if a, ok := parseJSON(text); ok {
		result.Category = canonicalCategory(a.Category)
		result.Reason = a.Reason
		if a.Confidence != nil {
			result.Confidence = *a.Confidence
		} else {
			result.Confidence = MatchConfidence
		}
	} else if raw := cleanCategory(text); raw != "" {
		result.Category = canonicalCategory(raw)
		result.Confidence = 0.5
		result.Reason = "Answer was not JSON; the raw text was used as the category."
	}

	entry := models.ClassificationLogEntry{
		Timestamp:  now.UTC().Format(time.RFC3339),
		FileName:   fileName,
		Category:   result.Category,
		Confidence: result.Confidence,
		Reason:     result.Reason,
	}
	return result, entry, nil
}

// canonicalCategory maps an answer onto InlineCategories, ignoring case.
func canonicalCategory(s string) string {
	for _, c := range InlineCategories {
		if strings.EqualFold(c, s) {
			return c
		}
	}
	for _, c := range InlineCategories {
		if strings.Contains(strings.ToLower(s), strings.ToLower(c)) {
			return c
		}
	}
	return inlineFallbackCategory
}
