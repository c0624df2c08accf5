package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
	"github.com/Lllllllleong/boxdocumentsorter/internal/structure"
)

// RequiredFoldersFunction creates the folder layout the sorter needs.
type RequiredFoldersFunction struct {
	sessions *sessions
	layout   structure.Layout
}

// NewRequiredFolders creates a RequiredFoldersFunction.
func NewRequiredFolders(ctx context.Context) (*RequiredFoldersFunction, error) {
	config, err := loadBoxAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	sessions, err := newSessions(ctx, config)
	if err != nil {
		return nil, err
	}
	layout := loadLayout()
	slog.Info("Required folders function initialized.", "intakeFolder", layout.IntakeFolder, "settingsFolder", layout.SettingsFolder)
	return &RequiredFoldersFunction{
		sessions: sessions,
		layout:   layout,
	}, nil
}

func namedFolders(nodes []models.FolderNode) []models.NamedFolder {
	out := make([]models.NamedFolder, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, models.NamedFolder{ID: n.ID, Name: n.Name})
	}
	return out
}

// Process ensures the layout under req.ParentFolderID.
func (f *RequiredFoldersFunction) Process(ctx context.Context, req *models.RequiredFoldersRequest) (*models.RequiredFoldersResponse, error) {
	if req.ParentFolderID == "" {
		return nil, errs.InvalidRequest("parent folder id is required")
	}
	sess, err := f.sessions.open(ctx, req.CredentialPayload)
	if err != nil {
		return nil, err
	}

	res, err := structure.New(sess.client, f.layout).Ensure(ctx, req.ParentFolderID)
	if err != nil {
		return nil, sess.fail(err)
	}

	msg := fmt.Sprintf("Created %d required folder(s).", len(res.MissingCreated))
	if len(res.Missing) == 0 {
		msg = "All required folders already exist."
	}
	if len(res.Failed) > 0 {
		msg += fmt.Sprintf(" Failed to create: %v.", res.Failed)
	}
	return &models.RequiredFoldersResponse{
		Success:               true,
		RequiredFolders:       res.Required,
		ExistingFolders:       res.Existing,
		MissingFolders:        res.Missing,
		CreatedFolders:        namedFolders(res.MissingCreated),
		FailedFolders:         res.Failed,
		DestinationFolders:    namedFolders(res.DestinationFolders),
		SettingStructureReady: res.SettingStructureReady,
		RulesFileCreated:      res.RulesFileCreated,
		Message:               msg,
		Credential:            sess.refreshed(),
	}, nil
}
