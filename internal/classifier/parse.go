package classifier

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
)

// NoReason is used when the answer carries no explanation.
const NoReason = "No reason was provided."

// ErrUnstructuredAnswer reports that neither JSON nor labelled lines were found.
// It is recovered locally: the answer still carries the raw text as category.
var ErrUnstructuredAnswer = errs.New(errs.CodeParseFailure, "model answer had no recognizable structure")

// Answer is the model's answer before it is matched against folders.
type Answer struct {
	Category string
	Reason   string
	// Confidence is nil when the model did not report one.
	Confidence *float64
}

type jsonAnswer struct {
	Category   string   `json:"category"`
	Result     string   `json:"result"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
	Reasoning  string   `json:"reasoning"`
}

var (
	resultLine = regexp.MustCompile(`(?im)^\s*(?:\d+\.\s*)?(?:result|分類結果)\s*[:：]\s*(.+)$`)
	reasonLine = regexp.MustCompile(`(?im)^\s*(?:\d+\.\s*)?(?:reason|分類理由)\s*[:：]\s*(.+)$`)
	fence      = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// ParseAnswer reads the model output. It tries a JSON object first, then the
// labelled result/reason lines, and finally treats the whole trimmed text as the
// category, returning ErrUnstructuredAnswer alongside the usable answer.
func ParseAnswer(text string) (Answer, error) {
	text = strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if a, ok := parseJSON(text); ok {
		return a, nil
	}

	if m := resultLine.FindStringSubmatch(text); m != nil {
		a := Answer{Category: cleanCategory(m[1]), Reason: NoReason}
		if r := reasonLine.FindStringSubmatch(text); r != nil {
			a.Reason = strings.TrimSpace(r[1])
		}
		return a, nil
	}

	return Answer{Category: cleanCategory(text), Reason: NoReason}, ErrUnstructuredAnswer
}

func parseJSON(text string) (Answer, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Answer{}, false
	}
	var j jsonAnswer
	if err := json.Unmarshal([]byte(text[start:end+1]), &j); err != nil {
		return Answer{}, false
	}
	a := Answer{Category: j.Category, Reason: j.Reason, Confidence: j.Confidence}
	if a.Category == "" {
		a.Category = j.Result
	}
	if a.Reason == "" {
		a.Reason = j.Reasoning
	}
	if a.Category == "" {
		return Answer{}, false
	}
	a.Category = cleanCategory(a.Category)
	if a.Reason == "" {
		a.Reason = NoReason
	}
	if a.Confidence != nil {
		c := clamp(*a.Confidence)
		a.Confidence = &c
	}
	return a, true
}

func cleanCategory(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "「」\"'`[]*")
	return strings.TrimSpace(s)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
