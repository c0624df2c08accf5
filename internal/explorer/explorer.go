// Package explorer lists Box folders and tracks the breadcrumb trail of a browsing session.
package explorer

import (
	"context"
	"fmt"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// RootFolderID is Box's id for "All Files".
const RootFolderID = "0"

// Remote is the slice of the Box client the explorer needs.
type Remote interface {
	GetFolder(ctx context.Context, folderID string) (models.FolderNode, error)
	ListItems(ctx context.Context, folderID string) ([]models.FolderNode, int, error)
	CreateFolder(ctx context.Context, parentID, name string) (models.FolderNode, error)
}

// Listing is a folder with its children split by type.
type Listing struct {
	Folder     models.FolderNode
	Subfolders []models.FolderNode
	Files      []models.FolderNode
	TotalCount int
}

// Explorer resolves folder contents.
type Explorer struct {
	remote Remote
}

// New creates an Explorer.
func New(remote Remote) *Explorer {
	return &Explorer{remote: remote}
}

// Partition splits nodes into folders and files, keeping order.
func Partition(nodes []models.FolderNode) (folders, files []models.FolderNode) {
	folders = []models.FolderNode{}
	files = []models.FolderNode{}
	for _, n := range nodes {
		switch n.Type {
		case models.TypeFolder:
			folders = append(folders, n)
		case models.TypeFile:
			files = append(files, n)
		}
	}
	return folders, files
}

// ListChildren returns the folder and its children.
func (e *Explorer) ListChildren(ctx context.Context, folderID string) (*Listing, error) {
	if folderID == "" {
		folderID = RootFolderID
	}
	folder, err := e.remote.GetFolder(ctx, folderID)
	if err != nil {
		return nil, remoteErr(fmt.Sprintf("get folder %s", folderID), err)
	}
	nodes, total, err := e.remote.ListItems(ctx, folderID)
	if err != nil {
		return nil, remoteErr(fmt.Sprintf("list folder %s", folderID), err)
	}
	folders, files := Partition(nodes)
	return &Listing{Folder: folder, Subfolders: folders, Files: files, TotalCount: total}, nil
}

// CreateFolder creates a folder named name under parentID.
func (e *Explorer) CreateFolder(ctx context.Context, parentID, name string) (models.FolderNode, error) {
	if parentID == "" || name == "" {
		return models.FolderNode{}, errs.InvalidRequest("parent id and folder name are required")
	}
	folder, err := e.remote.CreateFolder(ctx, parentID, name)
	if err != nil {
		return models.FolderNode{}, remoteErr(fmt.Sprintf("create folder %q", name), err)
	}
	return folder, nil
}

// remoteErr keeps auth failures as they are and reports everything else as the remote being unavailable.
func remoteErr(msg string, err error) error {
	if errs.Is(err, errs.CodeAuthRequired) {
		return err
	}
	return errs.Upstream(msg, err)
}
