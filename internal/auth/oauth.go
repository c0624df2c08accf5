package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
)

// Box OAuth 2.0 endpoints.
const (
	BoxAuthURL  = "https://account.box.com/api/oauth2/authorize"
	BoxTokenURL = "https://api.box.com/oauth2/token"
)

// OAuthConfig holds the Box app registration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	HTTPClient   *http.Client
}

// OAuth runs the authorization-code grant against Box and refreshes tokens.
// It implements Refresher.
type OAuth struct {
	cfg        *oauth2.Config
	httpClient *http.Client
}

// NewOAuth creates an OAuth helper. Empty endpoints default to Box's.
func NewOAuth(c OAuthConfig) *OAuth {
	if c.AuthURL == "" {
		c.AuthURL = BoxAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = BoxTokenURL
	}
	return &OAuth{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.AuthURL,
				TokenURL:  c.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: c.HTTPClient,
	}
}

// NewState returns the state parameter for an authorization request.
func NewState(now time.Time) string {
	return fmt.Sprintf("box_auth_%d", now.UnixMilli())
}

// AuthCodeURL returns the URL the user is sent to for consent.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.cfg.AuthCodeURL(state)
}

func (o *OAuth) context(ctx context.Context) context.Context {
	if o.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func fromToken(tok *oauth2.Token) Credential {
	return Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// Exchange trades an authorization code for a credential.
func (o *OAuth) Exchange(ctx context.Context, code string) (Credential, error) {
	tok, err := o.cfg.Exchange(o.context(ctx), code)
	if err != nil {
		return Credential{}, errs.Upstream("box token exchange failed", err)
	}
	if tok.AccessToken == "" {
		return Credential{}, errs.AuthRequired("box token response carried no access token")
	}
	return fromToken(tok), nil
}

// Refresh runs the refresh_token grant.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (Credential, error) {
	ts := o.cfg.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return Credential{}, fmt.Errorf("refresh box token: %w", err)
	}
	return fromToken(tok), nil
}
