package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/Lllllllleong/boxdocumentsorter/internal/auth"
	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/gcp"
	"github.com/Lllllllleong/boxdocumentsorter/internal/httpx"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
	"github.com/Lllllllleong/boxdocumentsorter/internal/structure"
)

// BoxAppConfig holds the Box app registration and endpoints.
type BoxAppConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	APIBaseURL    string
	UploadBaseURL string
}

// loadBoxAppConfig loads and validates the Box settings every function shares.
func loadBoxAppConfig() (*BoxAppConfig, error) {
	clientID := gcp.GetEnv("BOX_CLIENT_ID", "")
	if clientID == "" {
		return nil, fmt.Errorf("BOX_CLIENT_ID environment variable must be set")
	}
	clientSecret := gcp.GetEnv("BOX_CLIENT_SECRET", "")
	if clientSecret == "" {
		return nil, fmt.Errorf("BOX_CLIENT_SECRET environment variable must be set")
	}
	return &BoxAppConfig{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURI:   gcp.GetEnv("BOX_REDIRECT_URI", ""),
		APIBaseURL:    gcp.GetEnv("BOX_API_BASE_URL", box.DefaultAPIBaseURL),
		UploadBaseURL: gcp.GetEnv("BOX_UPLOAD_BASE_URL", box.DefaultUploadBaseURL),
	}, nil
}

func (c BoxAppConfig) oauth() *auth.OAuth {
	return auth.NewOAuth(auth.OAuthConfig{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
	})
}

func (c BoxAppConfig) client() box.Config {
	return box.Config{APIBaseURL: c.APIBaseURL, UploadBaseURL: c.UploadBaseURL}
}

// loadLayout reads the folder names, defaulting to structure.DefaultLayout.
func loadLayout() structure.Layout {
	d := structure.DefaultLayout()
	return structure.Layout{
		IntakeFolder:   gcp.GetEnv("LAYOUT_INTAKE_FOLDER", d.IntakeFolder),
		OtherFolder:    gcp.GetEnv("LAYOUT_OTHER_FOLDER", d.OtherFolder),
		SettingsFolder: gcp.GetEnv("LAYOUT_SETTINGS_FOLDER", d.SettingsFolder),
		LogFolder:      gcp.GetEnv("LAYOUT_LOG_FOLDER", d.LogFolder),
		RulesFile:      gcp.GetEnv("LAYOUT_RULES_FILE", d.RulesFile),
	}
}

// intEnv reads a non-negative integer variable.
func intEnv(key string, fallback int) (int, error) {
	raw := gcp.GetEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, raw)
	}
	return v, nil
}

// sessions turns browser credentials into Box clients. Concurrent requests of
// one instance that hold the same refresh token share a single refresh.
type sessions struct {
	boxConfig box.Config
	refresher auth.Refresher
	// persister holds server-kept credentials; nil when PROJECT_ID is unset.
	persister auth.Persister
	group     singleflight.Group
}

// newSessions builds the session factory, backed by the Firestore credential
// store when PROJECT_ID is set.
func newSessions(ctx context.Context, config *BoxAppConfig) (*sessions, error) {
	s := &sessions{boxConfig: config.client(), refresher: config.oauth()}
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return s, nil
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	s.persister = gcp.NewCredentialStore(firestoreClient, credentialsCollection())
	return s, nil
}

func credentialsCollection() string {
	return gcp.GetEnv("FIRESTORE_CREDENTIALS_COLLECTION", "credentials")
}

// session is one request's authenticated view of Box.
type session struct {
	store  *auth.Store
	client *box.Client
	// userID is set when the refresh token lives on the server.
	userID string
}

// open builds the token store and client for one request. A credential that
// names a user is served from the server-held copy once the caller proves it
// belongs to that user.
func (s *sessions) open(ctx context.Context, cred models.CredentialPayload) (*session, error) {
	if cred.AccessToken == "" {
		return nil, errs.AuthRequired("access token is required")
	}
	if cred.UserID == "" {
		store := auth.NewStore("", auth.FromPayload(cred), s.refresher, auth.WithGroup(&s.group))
		return &session{store: store, client: box.New(store, s.boxConfig)}, nil
	}

	if s.persister == nil {
		return nil, errs.AuthRequired("server-held credentials are not available; sign in again")
	}
	store, err := auth.LoadStore(ctx, cred.UserID, s.persister, s.refresher, auth.WithGroup(&s.group))
	if err != nil {
		return nil, err
	}
	if err := s.verify(ctx, store, cred); err != nil {
		return nil, err
	}
	return &session{store: store, client: box.New(store, s.boxConfig), userID: cred.UserID}, nil
}

// verify accepts the caller when it presents the stored access token, or a
// token Box attributes to the same user.
func (s *sessions) verify(ctx context.Context, store *auth.Store, cred models.CredentialPayload) error {
	if stored, ok := store.Credential(); ok && subtle.ConstantTimeCompare([]byte(stored.AccessToken), []byte(cred.AccessToken)) == 1 {
		return nil
	}
	user, err := box.New(box.StaticToken(cred.AccessToken), s.boxConfig).CurrentUser(ctx)
	if errs.Is(err, errs.CodeAuthRequired) {
		return errs.AuthRequired("access token is not valid for this user; sign in again")
	}
	if err != nil {
		return err
	}
	if user.ID != cred.UserID {
		slog.Warn("Access token belongs to a different Box user.", "claimedUserId", cred.UserID, "boxUserId", user.ID)
		return errs.AuthRequired("access token is not valid for this user; sign in again")
	}
	return nil
}

// refreshed is the credential to hand back when it changed. Server-held
// refresh tokens never leave the server.
func (s *session) refreshed() *models.CredentialPayload {
	p := s.store.RefreshedPayload()
	if p == nil || s.userID == "" {
		return p
	}
	p.RefreshToken = ""
	p.UserID = s.userID
	return p
}

// fail attaches the refreshed credential, if any, to err.
func (s *session) fail(err error) error {
	return httpx.WithCredential(err, s.refreshed())
}
