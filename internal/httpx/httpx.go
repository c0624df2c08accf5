// Package httpx holds the request and response plumbing shared by the HTTP functions.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// Headers carrying the refresh half of a browser credential on GET requests.
const (
	HeaderRefreshToken = "X-Box-Refresh-Token"
	HeaderExpiresAt    = "X-Box-Expires-At"
	// HeaderUserID names the Box user whose refresh token is kept on the server.
	HeaderUserID = "X-Box-User-Id"
)

// maxBodyBytes bounds JSON request bodies; inline classification carries base64 images.
const maxBodyBytes = 32 << 20

// Preflight sets the CORS headers. It answers OPTIONS with 200 and reports
// whether the request has been fully handled.
func Preflight(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", strings.Join(append(methods, http.MethodOptions), ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", "Authorization", HeaderRefreshToken, HeaderExpiresAt, HeaderUserID}, ", "))
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

// Allow answers 405 unless the request method is one of methods.
func Allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	WriteError(w, errs.New(errs.CodeMethodNotAllowed, "method not allowed"))
	return false
}

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.InvalidRequest("request body is required")
		}
		return errs.Wrap(errs.CodeInvalidRequest, "could not parse JSON body", err)
	}
	return nil
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}

// CredentialError is a failure that happened after the request's credential
// was refreshed. The new credential still has to reach the browser because
// Box refresh tokens are single-use.
type CredentialError struct {
	Err        error
	Credential *models.CredentialPayload
}

func (e *CredentialError) Error() string { return e.Err.Error() }

func (e *CredentialError) Unwrap() error { return e.Err }

// WithCredential attaches cred to err. A nil err or cred returns err unchanged.
func WithCredential(err error, cred *models.CredentialPayload) error {
	if err == nil || cred == nil {
		return err
	}
	return &CredentialError{Err: err, Credential: cred}
}

// CredentialOf returns the credential attached to err, if any.
func CredentialOf(err error) *models.CredentialPayload {
	var ce *CredentialError
	if errors.As(err, &ce) {
		return ce.Credential
	}
	return nil
}

// WriteError maps err to its HTTP status and writes the error body, including
// any credential attached with WithCredential.
func WriteError(w http.ResponseWriter, err error) {
	status := errs.StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed.", "error", err, "status", status)
	} else {
		slog.Warn("Request rejected.", "error", err, "status", status)
	}
	WriteJSON(w, status, models.ErrorResponse{
		Success:    false,
		Error:      Message(err),
		Code:       string(errs.CodeOf(err)),
		Credential: CredentialOf(err),
	})
}

// Message is the client-facing text of err.
func Message(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Err == nil {
		return e.Message
	}
	return err.Error()
}

// Credential reads a browser credential from the Authorization header, falling
// back to the accessToken query parameter. The refresh token, expiry and
// server-held user id travel in their own headers.
func Credential(r *http.Request) models.CredentialPayload {
	var c models.CredentialPayload
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		c.AccessToken = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c.AccessToken == "" {
		c.AccessToken = r.URL.Query().Get("accessToken")
	}
	c.RefreshToken = r.Header.Get(HeaderRefreshToken)
	c.UserID = r.Header.Get(HeaderUserID)
	if ms, err := strconv.ParseInt(r.Header.Get(HeaderExpiresAt), 10, 64); err == nil {
		c.ExpiresAtEpochMs = ms
	}
	return c
}
