package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

func TestPreflight(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	assert.True(t, Preflight(w, r, http.MethodGet, http.MethodPost))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, Preflight(w, r, http.MethodGet))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAllow(t *testing.T) {
	w := httptest.NewRecorder()
	assert.False(t, Allow(w, httptest.NewRequest(http.MethodDelete, "/", nil), http.MethodPost))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Code)

	assert.True(t, Allow(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil), http.MethodPost))
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Name string }
	require.NoError(t, DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`)), &v))
	assert.Equal(t, "x", v.Name)

	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``)), &v)
	assert.True(t, errs.Is(err, errs.CodeInvalidRequest))
	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)), &v)
	assert.True(t, errs.Is(err, errs.CodeInvalidRequest))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{errs.InvalidRequest("parent folder id is required"), 400, "INVALID_REQUEST"},
		{errs.AuthRequired("login"), 401, "AUTH_REQUIRED"},
		{errs.New(errs.CodeStructureMissing, "no intake"), 409, "STRUCTURE_MISSING"},
		{errs.Upstream("box", errors.New("502")), 500, "UPSTREAM_UNAVAILABLE"},
		{errors.New("boom"), 500, "INTERNAL"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteError(w, tt.err)
		assert.Equal(t, tt.status, w.Code)
		var body models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.code, body.Code)
		assert.NotEmpty(t, body.Error)
	}
}

func TestCredential(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?folderId=5", nil)
	r.Header.Set("Authorization", "Bearer abc")
	r.Header.Set(HeaderRefreshToken, "ref")
	r.Header.Set(HeaderExpiresAt, "1700000000000")
	c := Credential(r)
	assert.Equal(t, "abc", c.AccessToken)
	assert.Equal(t, "ref", c.RefreshToken)
	assert.Equal(t, int64(1700000000000), c.ExpiresAtEpochMs)

	c = Credential(httptest.NewRequest(http.MethodGet, "/?accessToken=q", nil))
	assert.Equal(t, "q", c.AccessToken)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	r.Header.Set(HeaderUserID, "u-1")
	c = Credential(r)
	assert.Equal(t, "u-1", c.UserID)
	assert.Empty(t, c.RefreshToken)
}

func TestWriteError_CarriesRefreshedCredential(t *testing.T) {
	cred := &models.CredentialPayload{AccessToken: "fresh", RefreshToken: "next", ExpiresAtEpochMs: 1700000000000}
	err := WithCredential(fmt.Errorf("list folder: %w", errs.New(errs.CodeStructureMissing, "no intake")), cred)

	assert.True(t, errs.Is(err, errs.CodeStructureMissing))
	assert.Same(t, cred, CredentialOf(err))

	w := httptest.NewRecorder()
	WriteError(w, err)
	assert.Equal(t, http.StatusConflict, w.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "STRUCTURE_MISSING", body.Code)
	require.NotNil(t, body.Credential)
	assert.Equal(t, "fresh", body.Credential.AccessToken)
	assert.Equal(t, "next", body.Credential.RefreshToken)

	w = httptest.NewRecorder()
	WriteError(w, errs.AuthRequired("login"))
	assert.NotContains(t, w.Body.String(), "credential")
}

func TestWithCredential_NilValues(t *testing.T) {
	assert.NoError(t, WithCredential(nil, &models.CredentialPayload{AccessToken: "a"}))

	base := errors.New("boom")
	assert.Same(t, base, WithCredential(base, nil))
	assert.Nil(t, CredentialOf(base))
}
