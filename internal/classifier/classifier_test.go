package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/box/boxtest"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

type fakeGenerator struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

var destinations = []models.FolderNode{
	{ID: "10", Name: "Invoices", Type: models.TypeFolder},
	{ID: "11", Name: "Receipts", Type: models.TypeFolder},
}

func TestResolve(t *testing.T) {
	c := New(&fakeGenerator{}, nil, Options{})
	reported := 0.95

	tests := []struct {
		name       string
		answer     Answer
		wantID     string
		wantName   string
		wantConfid float64
	}{
		{"exact", Answer{Category: "Invoices"}, "10", "Invoices", MatchConfidence},
		{"category contains folder", Answer{Category: "Receipts (paper)"}, "11", "Receipts", MatchConfidence},
		{"folder contains category", Answer{Category: "Invoice"}, "10", "Invoices", MatchConfidence},
		{"reported confidence wins", Answer{Category: "Invoices", Confidence: &reported}, "10", "Invoices", 0.95},
		{"no match", Answer{Category: "UnknownThing"}, "", "Other", FallbackConfidence},
		{"no match ignores reported", Answer{Category: "UnknownThing", Confidence: &reported}, "", "Other", FallbackConfidence},
		{"empty category", Answer{Category: ""}, "", "Other", FallbackConfidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Resolve(tt.answer, destinations)
			assert.Equal(t, tt.wantID, got.TargetFolderID)
			assert.Equal(t, tt.wantName, got.TargetFolderName)
			assert.InDelta(t, tt.wantConfid, got.Confidence, 1e-9)
			assert.Equal(t, tt.answer.Category, got.Category)
		})
	}
}

func TestResolve_ExactBeatsContains(t *testing.T) {
	c := New(&fakeGenerator{}, nil, Options{})
	folders := []models.FolderNode{{ID: "1", Name: "Tax"}, {ID: "2", Name: "Tax returns"}}
	got := c.Resolve(Answer{Category: "Tax returns"}, folders)
	assert.Equal(t, "2", got.TargetFolderID)
}

func TestClassify(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	intake := srv.AddFolder("0", "Unsorted")
	fileID := srv.AddFile(intake, "invoice.pdf", []byte("not really a pdf"))

	gen := &fakeGenerator{answer: "result: Invoices\nreason: Title says invoice"}
	c := New(gen, box.New(box.StaticToken("t"), srv.Config()), Options{})

	got, err := c.Classify(context.Background(), models.FolderNode{ID: fileID, Name: "invoice.pdf"}, destinations, "ACME goes to Invoices")
	require.NoError(t, err)
	assert.Equal(t, "10", got.TargetFolderID)
	assert.Equal(t, "Title says invoice", got.Reasoning)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Contains(t, req.Prompt, "invoice.pdf")
	assert.Contains(t, req.Prompt, "Invoices, Receipts, Other")
	assert.Contains(t, req.Prompt, "ACME goes to Invoices")
	require.Len(t, req.Attachments, 1)
	assert.Equal(t, "application/pdf", req.Attachments[0].MIMEType)
	assert.Equal(t, []byte("not really a pdf"), req.Attachments[0].Data)
}

func TestClassify_NoRulesSectionWithoutRules(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	fileID := srv.AddFile("0", "scan.png", []byte{0x89, 'P', 'N', 'G'})
	gen := &fakeGenerator{answer: `{"category":"Receipts","confidence":0.7,"reason":"till slip"}`}
	c := New(gen, box.New(box.StaticToken("t"), srv.Config()), Options{OtherFolderName: "その他"})

	got, err := c.Classify(context.Background(), models.FolderNode{ID: fileID, Name: "scan.png"}, destinations, "")
	require.NoError(t, err)
	assert.Equal(t, "11", got.TargetFolderID)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
	assert.NotContains(t, gen.requests[0].Prompt, "Additional classification rules")
	assert.Contains(t, gen.requests[0].Prompt, "その他")
	assert.Equal(t, "image/png", gen.requests[0].Attachments[0].MIMEType)
}

func TestClassify_Failures(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	fileID := srv.AddFile("0", "a.pdf", []byte("x"))
	client := box.New(box.StaticToken("t"), srv.Config())

	c := New(&fakeGenerator{err: errors.New("503 from model")}, client, Options{})
	_, err := c.Classify(context.Background(), models.FolderNode{ID: fileID, Name: "a.pdf"}, destinations, "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeClassificationFailed))

	srv.FailDownload[fileID] = true
	gen := &fakeGenerator{answer: "Invoices"}
	c = New(gen, client, Options{})
	_, err = c.Classify(context.Background(), models.FolderNode{ID: fileID, Name: "a.pdf"}, destinations, "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeClassificationFailed))
	assert.Empty(t, gen.requests)
}

func TestClassify_RateLimiterHonorsContext(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	fileID := srv.AddFile("0", "a.png", []byte("x"))
	gen := &fakeGenerator{answer: "Invoices"}
	c := New(gen, box.New(box.StaticToken("t"), srv.Config()), Options{RequestsPerMinute: 1})

	_, err := c.Classify(context.Background(), models.FolderNode{ID: fileID, Name: "a.png"}, destinations, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Classify(ctx, models.FolderNode{ID: fileID, Name: "a.png"}, destinations, "")
	require.Error(t, err)
	assert.Len(t, gen.requests, 1)
}

func TestClassifyInline(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	gen := &fakeGenerator{answer: "```json\n{\"category\": \"receipt\", \"confidence\": 0.9, \"reason\": \"Store receipt\"}\n```"}
	c := New(gen, nil, Options{})
	res, entry, err := c.ClassifyInline(context.Background(), []byte("img"), "r.jpg", "", now)
	require.NoError(t, err)
	assert.Equal(t, "Receipt", res.Category)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, "image/jpeg", gen.requests[0].Attachments[0].MIMEType)
	assert.Equal(t, "2025-03-01T09:30:00Z", entry.Timestamp)
	assert.Equal(t, "r.jpg", entry.FileName)
	assert.Equal(t, "Receipt", entry.Category)

	gen.answer = "「Bank statement」"
	res, _, err = c.ClassifyInline(context.Background(), []byte("img"), "s.png", "image/png", now)
	require.NoError(t, err)
	assert.Equal(t, "Bank statement", res.Category)

	gen.answer = "I have no idea"
	res, _, err = c.ClassifyInline(context.Background(), []byte("img"), "s.png", "image/png", now)
	require.NoError(t, err)
	assert.Equal(t, "Other", res.Category)

	_, _, err = c.ClassifyInline(context.Background(), nil, "s.png", "image/png", now)
	assert.True(t, errs.Is(err, errs.CodeInvalidRequest))
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", MIMEType("A.PNG"))
	assert.Equal(t, "image/jpeg", MIMEType("photo.jpeg"))
	assert.Equal(t, "image/gif", MIMEType("x.gif"))
	assert.Equal(t, "application/pdf", MIMEType("doc.pdf"))
	assert.Equal(t, "application/octet-stream", MIMEType("notes.txt"))
	assert.True(t, Supported("scan.JPG"))
	assert.False(t, Supported("sheet.xlsx"))
}
