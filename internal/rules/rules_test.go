package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/box/boxtest"
)

func TestActiveLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only comments", "// a\n  // b\n", ""},
		{"mixed", "// header\nRule one\n\n   Rule two  \n//Rule three\n", "Rule one\nRule two"},
		{"crlf", "Rule A\r\n// x\r\nRule B\r\n", "Rule A\nRule B"},
		{"slash inside line kept", "Use a/b // not a comment", "Use a/b // not a comment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActiveLines(tt.in))
		})
	}
}

func TestDefaultTemplateIsInactive(t *testing.T) {
	assert.Empty(t, ActiveLines(DefaultTemplate))
}

func TestLoad(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	settings := srv.AddFolder("0", "[settings]")
	srv.AddFolder(settings, "log")
	srv.AddFile(settings, "追加プロンプト.txt", []byte("// comment\nInvoices from ACME go to Important\n"))

	l := NewLoader(box.New(box.StaticToken("t"), srv.Config()))
	text, ok := l.Load(context.Background(), settings)
	require.True(t, ok)
	assert.Equal(t, "Invoices from ACME go to Important", text)
	assert.NotContains(t, text, "//")
}

func TestLoad_Absent(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	settings := srv.AddFolder("0", "[settings]")
	srv.AddFile(settings, "notes.txt", []byte("Rule"))
	l := NewLoader(box.New(box.StaticToken("t"), srv.Config()))

	_, ok := l.Load(context.Background(), settings)
	assert.False(t, ok)

	_, ok = l.Load(context.Background(), "")
	assert.False(t, ok)
}

func TestLoad_ErrorsAreSwallowed(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	settings := srv.AddFolder("0", "[settings]")
	file := srv.AddFile(settings, "additional_prompt", []byte("Rule"))
	srv.FailDownload[file] = true
	l := NewLoader(box.New(box.StaticToken("t"), srv.Config()))

	_, ok := l.Load(context.Background(), settings)
	assert.False(t, ok)

	srv.FailList[settings] = true
	_, ok = l.Load(context.Background(), settings)
	assert.False(t, ok)
}

func TestLoad_StripsByteOrderMark(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	settings := srv.AddFolder("0", "[settings]")
	srv.AddFile(settings, "additional_prompt.txt", []byte("\uFEFFReceipts over 10,000 yen go to Expenses\r\n// note\r\n"))
	l := NewLoader(box.New(box.StaticToken("t"), srv.Config()))

	text, ok := l.Load(context.Background(), settings)
	require.True(t, ok)
	assert.Equal(t, "Receipts over 10,000 yen go to Expenses", text)
}

func TestLoad_ConfiguredName(t *testing.T) {
	srv := boxtest.New()
	defer srv.Close()
	settings := srv.AddFolder("0", "[settings]")
	srv.AddFile(settings, "rules.txt", []byte("Contracts go to Legal\n"))
	client := box.New(box.StaticToken("t"), srv.Config())

	_, ok := NewLoader(client).Load(context.Background(), settings)
	assert.False(t, ok, "an unlisted name is not a rules file")

	text, ok := NewLoader(client, "rules.txt").Load(context.Background(), settings)
	require.True(t, ok)
	assert.Equal(t, "Contracts go to Legal", text)
}
