package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/boxdocumentsorter/internal/explorer"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// FoldersFunction lists and creates Box folders for the browser.
type FoldersFunction struct {
	sessions *sessions
}

// NewFolders creates a FoldersFunction.
func NewFolders(ctx context.Context) (*FoldersFunction, error) {
	config, err := loadBoxAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	sessions, err := newSessions(ctx, config)
	if err != nil {
		return nil, err
	}
	slog.Info("Folders function initialized.", "serverHeldCredentials", sessions.persister != nil)
	return &FoldersFunction{sessions: sessions}, nil
}

// List returns the children of folderID and the breadcrumb trail updated with it.
func (f *FoldersFunction) List(ctx context.Context, cred models.CredentialPayload, folderID string, trail []models.Crumb) (*models.FolderListResponse, error) {
	sess, err := f.sessions.open(ctx, cred)
	if err != nil {
		return nil, err
	}
	listing, err := explorer.New(sess.client).ListChildren(ctx, folderID)
	if err != nil {
		return nil, sess.fail(err)
	}

	history := explorer.NewHistory(trail)
	history.Navigate(listing.Folder.ID, listing.Folder.Name)

	return &models.FolderListResponse{
		Success:     true,
		Folder:      listing.Folder,
		Folders:     listing.Subfolders,
		Files:       listing.Files,
		TotalCount:  listing.TotalCount,
		Breadcrumbs: history.Crumbs(),
		Credential:  sess.refreshed(),
	}, nil
}

// Create makes a folder under req.ParentID.
func (f *FoldersFunction) Create(ctx context.Context, req *models.CreateFolderRequest) (*models.CreateFolderResponse, error) {
	sess, err := f.sessions.open(ctx, req.CredentialPayload)
	if err != nil {
		return nil, err
	}
	folder, err := explorer.New(sess.client).CreateFolder(ctx, req.ParentID, req.FolderName)
	if err != nil {
		return nil, sess.fail(err)
	}
	slog.Info("Created folder.", "folderId", folder.ID, "parentId", req.ParentID)
	return &models.CreateFolderResponse{
		Success:    true,
		Folder:     folder,
		Message:    fmt.Sprintf("Folder %q created.", folder.Name),
		Credential: sess.refreshed(),
	}, nil
}
