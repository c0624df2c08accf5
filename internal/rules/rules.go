// Package rules loads the optional user-written classification rules kept in the
// settings folder.
package rules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// CommentMarker starts a line that is ignored.
const CommentMarker = "//"

// AcceptedNames are the file names recognized as the rules file.
var AcceptedNames = []string{"追加プロンプト.txt", "追加プロンプト", "additional_prompt.txt", "additional_prompt"}

// DefaultTemplate is written when the settings folder has no rules file yet.
// Every line is commented out, so a fresh file adds nothing to the prompt.
const DefaultTemplate = `// Additional classification rules
//
// ## Usage:
// 1. Write each instruction you want applied on its own line, without "//"
// 2. Lines starting with "//" are ignored
//
// ## Examples:
// Classify every document issued by "Example Co., Ltd." into the "Important" folder.
// Prefer the "High value" folder for documents of 100,000 yen or more.
// Classify travel expense documents into the "Travel" folder.
`

// IsRulesFile reports whether name is an accepted rules file name.
func IsRulesFile(name string) bool {
	for _, n := range AcceptedNames {
		if n == name {
			return true
		}
	}
	return false
}

// ActiveLines keeps the lines that are non-empty after trimming and do not
// start with the comment marker, joined by newlines.
func ActiveLines(text string) string {
	var active []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, CommentMarker) {
			continue
		}
		active = append(active, trimmed)
	}
	return strings.Join(active, "\n")
}

// Remote is the slice of the Box client the loader needs.
type Remote interface {
	ListItems(ctx context.Context, folderID string) ([]models.FolderNode, int, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Loader reads the rules file from a settings folder.
type Loader struct {
	remote Remote
	extra  []string
}

// NewLoader creates a Loader. Names in extra are recognized as the rules file
// in addition to AcceptedNames, e.g. a name configured for the layout.
func NewLoader(remote Remote, extra ...string) *Loader {
	return &Loader{remote: remote, extra: extra}
}

func (l *Loader) isRulesFile(name string) bool {
	if IsRulesFile(name) {
		return true
	}
	for _, n := range l.extra {
		if n != "" && n == name {
			return true
		}
	}
	return false
}

// Load returns the active rules text. ok is false when there is no settings
// folder, no rules file, no active line, or any retrieval error; errors are
// logged and never returned.
func (l *Loader) Load(ctx context.Context, settingFolderID string) (string, bool) {
	if settingFolderID == "" {
		return "", false
	}
	logCtx := slog.With("settingFolderId", settingFolderID)

	nodes, _, err := l.remote.ListItems(ctx, settingFolderID)
	if err != nil {
		logCtx.Warn("Could not list settings folder; continuing without additional rules.", "error", err)
		return "", false
	}

	var file *models.FolderNode
	for i := range nodes {
		if nodes[i].Type == models.TypeFile && l.isRulesFile(nodes[i].Name) {
			file = &nodes[i]
			break
		}
	}
	if file == nil {
		return "", false
	}

	data, err := l.remote.DownloadFile(ctx, file.ID)
	if err != nil {
		logCtx.Warn("Could not download rules file; continuing without additional rules.", "fileId", file.ID, "error", err)
		return "", false
	}

	text := ActiveLines(strings.TrimPrefix(string(data), "\uFEFF"))
	if text == "" {
		return "", false
	}
	logCtx.Info("Loaded additional rules.", "fileName", file.Name, "lines", strings.Count(text, "\n")+1)
	return text, true
}
