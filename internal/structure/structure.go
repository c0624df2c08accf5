package structure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/explorer"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
	"github.com/Lllllllleong/boxdocumentsorter/internal/rules"
)

// ErrIntakeFolderMissing is returned by Discover when the parent has no intake folder.
var ErrIntakeFolderMissing = errs.New(errs.CodeStructureMissing, "intake folder not found under parent")

// Remote is the slice of the Box client the ensurer needs.
type Remote interface {
	ListItems(ctx context.Context, folderID string) ([]models.FolderNode, int, error)
	CreateFolder(ctx context.Context, parentID, name string) (models.FolderNode, error)
	UploadFile(ctx context.Context, parentID, name string, content []byte, contentType string) (models.FolderNode, error)
}

// Result reports what Ensure found and changed.
type Result struct {
	Required              []string
	Existing              []string
	Missing               []string
	MissingCreated        []models.FolderNode
	Failed                []string
	DestinationFolders    []models.FolderNode
	SettingFolderID       string
	LogFolderID           string
	LogFolderCreated      bool
	RulesFileCreated      bool
	SettingStructureReady bool
}

// Ensurer creates the required layout under a parent folder.
type Ensurer struct {
	remote Remote
	layout Layout
}

// New creates an Ensurer for layout.
func New(remote Remote, layout Layout) *Ensurer {
	return &Ensurer{remote: remote, layout: layout}
}

// Layout returns the names the ensurer works with.
func (e *Ensurer) Layout() Layout { return e.layout }

// Ensure creates whichever required folders are missing under parentID, then
// makes sure the settings folder holds the log folder and a rules file. Only a
// failure to list the parent aborts; individual create failures are reported
// in Result.Failed.
func (e *Ensurer) Ensure(ctx context.Context, parentID string) (*Result, error) {
	if parentID == "" {
		return nil, errs.InvalidRequest("parent folder id is required")
	}
	logCtx := slog.With("parentFolderId", parentID)

	nodes, _, err := e.remote.ListItems(ctx, parentID)
	if err != nil {
		return nil, remoteErr("structure incomplete: list parent folder", err)
	}
	folders, _ := explorer.Partition(nodes)
	byName := make(map[string]models.FolderNode, len(folders))
	for _, f := range folders {
		if _, dup := byName[f.Name]; !dup {
			byName[f.Name] = f
		}
	}

	res := &Result{
		Required:           e.layout.Required(),
		Existing:           []string{},
		Missing:            []string{},
		MissingCreated:     []models.FolderNode{},
		Failed:             []string{},
		DestinationFolders: []models.FolderNode{},
	}
	for _, f := range folders {
		if e.layout.IsRequired(f.Name) {
			res.Existing = append(res.Existing, f.Name)
		} else {
			res.DestinationFolders = append(res.DestinationFolders, f)
		}
	}

	for _, name := range res.Required {
		if _, ok := byName[name]; ok {
			continue
		}
		res.Missing = append(res.Missing, name)
		created, err := e.remote.CreateFolder(ctx, parentID, name)
		if err != nil {
			logCtx.Error("Failed to create required folder.", "folderName", name, "error", err)
			res.Failed = append(res.Failed, name)
			continue
		}
		logCtx.Info("Created required folder.", "folderName", name, "folderId", created.ID)
		byName[name] = created
		res.MissingCreated = append(res.MissingCreated, created)
	}

	settings, ok := byName[e.layout.SettingsFolder]
	if !ok {
		logCtx.Warn("Settings folder unavailable; skipping settings structure.")
		return res, nil
	}
	res.SettingFolderID = settings.ID
	e.ensureSettings(ctx, logCtx.With("settingFolderId", settings.ID), settings.ID, res)
	return res, nil
}

// ensureSettings fills in the log folder and the rules file. Failures are logged
// and leave SettingStructureReady false.
func (e *Ensurer) ensureSettings(ctx context.Context, logCtx *slog.Logger, settingID string, res *Result) {
	nodes, _, err := e.remote.ListItems(ctx, settingID)
	if err != nil {
		logCtx.Error("Failed to list settings folder.", "error", err)
		return
	}

	hasRules := false
	for _, n := range nodes {
		switch {
		case n.IsFolder() && n.Name == e.layout.LogFolder && res.LogFolderID == "":
			res.LogFolderID = n.ID
		case !n.IsFolder() && e.layout.IsRulesFile(n.Name):
			hasRules = true
		}
	}

	if res.LogFolderID == "" {
		created, err := e.remote.CreateFolder(ctx, settingID, e.layout.LogFolder)
		if err != nil {
			logCtx.Error("Failed to create log folder.", "error", err)
		} else {
			res.LogFolderID = created.ID
			res.LogFolderCreated = true
		}
	}

	if !hasRules {
		_, err := e.remote.UploadFile(ctx, settingID, e.layout.RulesFile, []byte(rules.DefaultTemplate), "text/plain; charset=utf-8")
		switch {
		case err == nil:
			hasRules = true
			res.RulesFileCreated = true
			logCtx.Info("Created default rules file.", "fileName", e.layout.RulesFile)
		case box.IsConflict(err):
			hasRules = true
		default:
			logCtx.Error("Failed to create default rules file.", "error", err)
		}
	}

	res.SettingStructureReady = res.LogFolderID != "" && hasRules
}

// Discover reads the layout under parentID without changing anything.
func (e *Ensurer) Discover(ctx context.Context, parentID string) (models.FolderStructure, error) {
	nodes, _, err := e.remote.ListItems(ctx, parentID)
	if err != nil {
		return models.FolderStructure{}, remoteErr(fmt.Sprintf("list parent folder %s", parentID), err)
	}
	folders, _ := explorer.Partition(nodes)

	fs := models.FolderStructure{ParentFolderID: parentID, DestinationFolders: []models.FolderNode{}}
	for _, f := range folders {
		switch {
		case f.Name == e.layout.IntakeFolder && fs.UnsortedFolderID == "":
			fs.UnsortedFolderID = f.ID
		case f.Name == e.layout.SettingsFolder && fs.SettingFolderID == "":
			fs.SettingFolderID = f.ID
		case f.Name == e.layout.OtherFolder && fs.OtherFolderID == "":
			fs.OtherFolderID = f.ID
		case !e.layout.IsRequired(f.Name):
			fs.DestinationFolders = append(fs.DestinationFolders, f)
		}
	}
	if fs.UnsortedFolderID == "" {
		return fs, ErrIntakeFolderMissing
	}
	return fs, nil
}

// LogFolder returns the id of the log folder inside the settings folder, or "".
func (e *Ensurer) LogFolder(ctx context.Context, settingID string) (string, error) {
	if settingID == "" {
		return "", nil
	}
	nodes, _, err := e.remote.ListItems(ctx, settingID)
	if err != nil {
		return "", remoteErr("list settings folder", err)
	}
	for _, n := range nodes {
		if n.IsFolder() && n.Name == e.layout.LogFolder {
			return n.ID, nil
		}
	}
	return "", nil
}

func remoteErr(msg string, err error) error {
	if errs.Is(err, errs.CodeAuthRequired) {
		return err
	}
	return errs.Upstream(msg, err)
}
