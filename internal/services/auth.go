package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/boxdocumentsorter/internal/auth"
	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// AuthFunction starts the Box login and exchanges the returned code.
type AuthFunction struct {
	oauth       *auth.OAuth
	boxConfig   box.Config
	credentials auth.Persister
	now         func() time.Time
}

// NewAuth creates an AuthFunction. When PROJECT_ID is set, a caller may ask for
// its credential to be kept in Firestore for scheduled runs.
func NewAuth(ctx context.Context) (*AuthFunction, error) {
	config, err := loadBoxAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if config.RedirectURI == "" {
		return nil, fmt.Errorf("BOX_REDIRECT_URI environment variable must be set")
	}
	sessions, err := newSessions(ctx, config)
	if err != nil {
		return nil, err
	}

	f := &AuthFunction{oauth: config.oauth(), boxConfig: config.client(), credentials: sessions.persister, now: time.Now}
	slog.Info("Auth function initialized.", "storesCredentials", f.credentials != nil)
	return f, nil
}

// AuthURL returns the consent URL and its state parameter.
func (f *AuthFunction) AuthURL() *models.AuthURLResponse {
	state := auth.NewState(f.now())
	return &models.AuthURLResponse{
		Success: true,
		AuthURL: f.oauth.AuthCodeURL(state),
		State:   state,
		Message: "Open the authorization URL to sign in to Box.",
	}
}

// Exchange trades an authorization code for a credential. With req.Persist the
// credential is stored under the Box user the new token belongs to, and the
// refresh token is not returned; the server copy is its only holder.
func (f *AuthFunction) Exchange(ctx context.Context, req *models.TokenExchangeRequest) (*models.TokenExchangeResponse, error) {
	if req.Code == "" {
		return nil, errs.InvalidRequest("authorization code is required")
	}
	if req.Persist && f.credentials == nil {
		return nil, errs.InvalidRequest("credential storage is not configured")
	}
	cred, err := f.oauth.Exchange(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	res := &models.TokenExchangeResponse{
		Success:      true,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Message:      "Box authentication completed.",
	}
	if !cred.ExpiresAt.IsZero() {
		res.ExpiresAtMs = cred.ExpiresAt.UnixMilli()
		res.ExpiresIn = int64(cred.ExpiresAt.Sub(f.now()).Seconds())
	}
	if !req.Persist {
		return res, nil
	}

	user, err := box.New(box.StaticToken(cred.AccessToken), f.boxConfig).CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := f.credentials.Save(ctx, user.ID, cred); err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "store credential", err)
	}
	slog.Info("Stored credential for scheduled runs.", "userId", user.ID)
	res.UserID = user.ID
	res.RefreshToken = ""
	res.Message = "Box authentication completed. Scheduled sorting is enabled for this account."
	return res, nil
}
