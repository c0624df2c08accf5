package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		category   string
		reason     string
		structured bool
	}{
		{"json", `{"category":"Invoices","confidence":0.9,"reason":"has total"}`, "Invoices", "has total", true},
		{"json with alias keys", `Sure! {"result":"Receipts","reasoning":"till"}`, "Receipts", "till", true},
		{"fenced json", "```json\n{\"category\":\"Invoices\"}\n```", "Invoices", NoReason, true},
		{"labels", "result: Invoices\nreason: Title says invoice", "Invoices", "Title says invoice", true},
		{"numbered japanese labels", "1. 分類結果: 請求書\n2. 分類理由: 請求金額の記載", "請求書", "請求金額の記載", true},
		{"full width colon", "分類結果：領収書", "領収書", NoReason, true},
		{"raw", "  Invoices \n", "Invoices", NoReason, false},
		{"broken json falls through", `{"category": }`, `{"category": }`, NoReason, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAnswer(tt.in)
			assert.Equal(t, tt.category, a.Category)
			assert.Equal(t, tt.reason, a.Reason)
			if tt.structured {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrUnstructuredAnswer)
				assert.True(t, errs.Is(err, errs.CodeParseFailure))
			}
		})
	}
}

func TestParseAnswer_ConfidenceClamped(t *testing.T) {
	a, _ := ParseAnswer(`{"category":"Invoices","confidence":7}`)
	require.NotNil(t, a.Confidence)
	assert.Equal(t, 1.0, *a.Confidence)

	a, _ = ParseAnswer(`{"category":"Invoices"}`)
	assert.Nil(t, a.Confidence)
}
