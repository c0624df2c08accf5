package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
)

func newTokenServer(t *testing.T, handle func(form url.Values) (int, map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		status, body := handle(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func TestAuthCodeURL(t *testing.T) {
	o := NewOAuth(OAuthConfig{ClientID: "cid", RedirectURL: "https://example.test/api/box-callback"})
	state := NewState(time.UnixMilli(1700000000000))
	assert.Equal(t, "box_auth_1700000000000", state)

	u, err := url.Parse(o.AuthCodeURL(state))
	require.NoError(t, err)
	assert.Equal(t, "account.box.com", u.Host)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "https://example.test/api/box-callback", q.Get("redirect_uri"))
	assert.Equal(t, state, q.Get("state"))
}

func TestExchange(t *testing.T) {
	srv := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "the-code", form.Get("code"))
		assert.Equal(t, "cid", form.Get("client_id"))
		assert.Equal(t, "secret", form.Get("client_secret"))
		return http.StatusOK, map[string]any{
			"access_token": "a1", "refresh_token": "r1", "expires_in": 3600, "token_type": "bearer",
		}
	})
	defer srv.Close()

	o := NewOAuth(OAuthConfig{ClientID: "cid", ClientSecret: "secret", TokenURL: srv.URL, HTTPClient: srv.Client()})
	before := time.Now()
	cred, err := o.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "a1", cred.AccessToken)
	assert.Equal(t, "r1", cred.RefreshToken)
	assert.True(t, cred.ExpiresAt.After(before.Add(59*time.Minute)))
}

func TestExchange_Failure(t *testing.T) {
	srv := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Auth code expired"}
	})
	defer srv.Close()

	o := NewOAuth(OAuthConfig{ClientID: "cid", TokenURL: srv.URL, HTTPClient: srv.Client()})
	_, err := o.Exchange(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUpstreamUnavailable))
	assert.True(t, strings.Contains(err.Error(), "invalid_grant"))
}

func TestRefresh(t *testing.T) {
	srv := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		assert.Equal(t, "refresh_token", form.Get("grant_type"))
		assert.Equal(t, "r1", form.Get("refresh_token"))
		return http.StatusOK, map[string]any{"access_token": "a2", "refresh_token": "r2", "expires_in": 3600}
	})
	defer srv.Close()

	o := NewOAuth(OAuthConfig{ClientID: "cid", TokenURL: srv.URL, HTTPClient: srv.Client()})
	cred, err := o.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", cred.AccessToken)
	assert.Equal(t, "r2", cred.RefreshToken)
}
