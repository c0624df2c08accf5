package models

import "time"

// Item types as reported by the storage provider.
const (
	TypeFolder = "folder"
	TypeFile   = "file"
)

// FolderNode is a read-only mirror of one remote folder or file.
type FolderNode struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	ParentID   string    `json:"parentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt,omitempty"`
	Size       int64     `json:"size"`
}

// IsFolder reports whether the node is a folder.
func (n FolderNode) IsFolder() bool { return n.Type == TypeFolder }

// BoxUser identifies the owner of an access token.
type BoxUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}

// FolderStructure is the view of a parent folder that a sort run works against.
// It is recomputed on every run.
type FolderStructure struct {
	ParentFolderID     string       `json:"parentFolderId"`
	UnsortedFolderID   string       `json:"unsortedFolderId"`
	SettingFolderID    string       `json:"settingFolderId,omitempty"`
	OtherFolderID      string       `json:"otherFolderId,omitempty"`
	DestinationFolders []FolderNode `json:"destinationFolders"`
}

// ClassificationResult is the decision made for one file. TargetFolderID is empty
// when the category matched no destination folder; the file then stays where it is.
type ClassificationResult struct {
	Category         string  `json:"category"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	TargetFolderID   string  `json:"targetFolderId,omitempty"`
	TargetFolderName string  `json:"targetFolderName"`
}

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SortOutcome records what happened to one file during a sort run.
type SortOutcome struct {
	FileName       string  `json:"fileName"`
	OriginalFolder string  `json:"originalFolder"`
	TargetFolder   string  `json:"targetFolder"`
	Classification string  `json:"classification"`
	Reasoning      string  `json:"reasoning"`
	Status         string  `json:"status"`
	Confidence     float64 `json:"confidence,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// SortRun is the Firestore record tracking a sort run's progress.
type SortRun struct {
	RunID          string    `firestore:"runId,omitempty"`
	UserID         string    `firestore:"userId,omitempty"`
	ParentFolderID string    `firestore:"parentFolderId,omitempty"`
	Status         string    `firestore:"status,omitempty"`
	ErrorDetails   string    `firestore:"errorDetails,omitempty"`
	ProcessedFiles int       `firestore:"processedFiles"`
	SuccessCount   int       `firestore:"successCount"`
	ErrorCount     int       `firestore:"errorCount"`
	LogFileName    string    `firestore:"logFileName,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt      time.Time `firestore:"updatedAt,omitempty"`
}

// StoredCredential is the Firestore form of a user's Box credential, used by
// scheduled runs that have no browser to hand the token over.
type StoredCredential struct {
	AccessToken  string    `firestore:"accessToken"`
	RefreshToken string    `firestore:"refreshToken"`
	ExpiresAt    time.Time `firestore:"expiresAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}
