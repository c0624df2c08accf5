package models

// These structs define the JSON payloads exchanged between the browser and the
// HTTP functions.

// CredentialPayload is the browser-held token pair. Requests that touch Box embed it.
// When UserID is set the refresh token is kept on the server under that Box user
// and the browser holds only the access token.
type CredentialPayload struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken,omitempty"`
	ExpiresAtEpochMs int64  `json:"expiresAtEpochMs,omitempty"`
	UserID           string `json:"userId,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer. Credential is set when the
// token was refreshed before the request failed.
type ErrorResponse struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error"`
	Code       string             `json:"code,omitempty"`
	Credential *CredentialPayload `json:"credential,omitempty"`
}

// AuthURLResponse answers GET on the auth function.
type AuthURLResponse struct {
	Success bool   `json:"success"`
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
	Message string `json:"message"`
}

// TokenExchangeRequest is the input for POST on the auth function. Persist keeps
// the refresh token on the server so scheduled runs can use it.
type TokenExchangeRequest struct {
	Code    string `json:"code"`
	Persist bool   `json:"persist,omitempty"`
}

// TokenExchangeResponse carries the freshly issued credential. A persisted
// credential comes back with UserID and without the refresh token.
type TokenExchangeResponse struct {
	Success      bool   `json:"success"`
	UserID       string `json:"userId,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
	ExpiresAtMs  int64  `json:"expiresAtEpochMs"`
	Message      string `json:"message"`
}

// Crumb is one breadcrumb entry of the folder navigation trail.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// FolderListResponse answers GET on the folders function.
type FolderListResponse struct {
	Success     bool               `json:"success"`
	Folder      FolderNode         `json:"folder"`
	Folders     []FolderNode       `json:"folders"`
	Files       []FolderNode       `json:"files"`
	TotalCount  int                `json:"totalCount"`
	Breadcrumbs []Crumb            `json:"breadcrumbs"`
	Credential  *CredentialPayload `json:"credential,omitempty"`
}

// CreateFolderRequest is the input for POST on the folders function.
type CreateFolderRequest struct {
	CredentialPayload
	ParentID   string `json:"parentId"`
	FolderName string `json:"folderName"`
}

// CreateFolderResponse answers POST on the folders function.
type CreateFolderResponse struct {
	Success    bool               `json:"success"`
	Folder     FolderNode         `json:"folder"`
	Message    string             `json:"message"`
	Credential *CredentialPayload `json:"credential,omitempty"`
}

// RequiredFoldersRequest is the input for the structure-ensure function.
type RequiredFoldersRequest struct {
	CredentialPayload
	ParentFolderID string `json:"parentFolderId"`
}

// NamedFolder is a folder reference in structure responses.
type NamedFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RequiredFoldersResponse reports what the structure-ensure run found and created.
type RequiredFoldersResponse struct {
	Success               bool               `json:"success"`
	RequiredFolders       []string           `json:"requiredFolders"`
	ExistingFolders       []string           `json:"existingFolders"`
	MissingFolders        []string           `json:"missingFolders"`
	CreatedFolders        []NamedFolder      `json:"createdFolders"`
	FailedFolders         []string           `json:"failedFolders,omitempty"`
	DestinationFolders    []NamedFolder      `json:"destinationFolders"`
	SettingStructureReady bool               `json:"settingStructureReady"`
	RulesFileCreated      bool               `json:"additionalPromptCreated"`
	Message               string             `json:"message"`
	Credential            *CredentialPayload `json:"credential,omitempty"`
}

// SortRequest is the input for the sorting function.
type SortRequest struct {
	CredentialPayload
	ParentFolderID string `json:"parentFolderId"`
	Mode           string `json:"mode,omitempty"`
}

// SortResponse is the output of a sort run.
type SortResponse struct {
	Success        bool               `json:"success"`
	Message        string             `json:"message"`
	RunID          string             `json:"runId"`
	ProcessedFiles int                `json:"processedFiles"`
	SuccessCount   int                `json:"successCount"`
	ErrorCount     int                `json:"errorCount"`
	Cancelled      bool               `json:"cancelled,omitempty"`
	LogFileName    string             `json:"logFileName,omitempty"`
	Results        []SortOutcome      `json:"results"`
	Error          string             `json:"error,omitempty"`
	Code           string             `json:"code,omitempty"`
	Credential     *CredentialPayload `json:"credential,omitempty"`
}

// ClassifyRequest is the input for single-file classification. ImageData is base64.
type ClassifyRequest struct {
	ImageData string `json:"imageData"`
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
}

// InlineClassification is the model's verdict on a single uploaded file.
type InlineClassification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ClassificationLogEntry is the audit record returned alongside an inline classification.
type ClassificationLogEntry struct {
	Timestamp  string  `json:"timestamp"`
	FileName   string  `json:"fileName"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ClassifyResponse answers the classify function.
type ClassifyResponse struct {
	Success bool                   `json:"success"`
	Result  InlineClassification   `json:"result"`
	Log     ClassificationLogEntry `json:"log"`
}

// ScheduledSortMessage is the Pub/Sub payload that triggers a scheduled sort run.
type ScheduledSortMessage struct {
	UserID         string `json:"userId"`
	ParentFolderID string `json:"parentFolderId"`
	Mode           string `json:"mode,omitempty"`
}
