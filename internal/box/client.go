// Package box is a small client for the Box Content API v2: folder listing and
// creation, file moves, downloads and uploads. Each request asks its TokenSource
// for a bearer token, so a refresh in the middle of a sort run is picked up by the
// very next call.
package box

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

const (
	DefaultAPIBaseURL    = "https://api.box.com/2.0"
	DefaultUploadBaseURL = "https://upload.box.com/api/2.0"

	// DefaultPageSize is the largest page Box serves for folder items.
	DefaultPageSize = 1000
	// DefaultMaxItems bounds how many entries a single listing will collect.
	DefaultMaxItems = 10000
	// DefaultChunkedUploadThreshold is Box's minimum size for upload sessions.
	DefaultChunkedUploadThreshold = 20 << 20

	itemFields = "id,name,type,parent,created_at,modified_at,size"
)

// TokenSource yields a valid access token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Config holds the client's endpoints and limits. Zero values take defaults.
type Config struct {
	APIBaseURL             string
	UploadBaseURL          string
	HTTPClient             *http.Client
	PageSize               int
	MaxItems               int
	ChunkedUploadThreshold int64
}

// Client talks to Box on behalf of one user session.
type Client struct {
	tokens TokenSource
	http   *http.Client
	cfg    Config
}

// New creates a client that authenticates with tokens.
func New(tokens TokenSource, cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = DefaultUploadBaseURL
	}
	if cfg.PageSize <= 0 || cfg.PageSize > DefaultPageSize {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.ChunkedUploadThreshold <= 0 {
		cfg.ChunkedUploadThreshold = DefaultChunkedUploadThreshold
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{tokens: tokens, http: hc, cfg: cfg}
}

// APIError is a non-2xx answer from Box.
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("box api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("box api %d: %s", e.Status, e.Body)
}

// IsConflict reports whether err is Box's 409, e.g. item_name_in_use.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

// item is the wire shape of a Box folder or file.
type item struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Parent     *struct {
		ID string `json:"id"`
	} `json:"parent"`
}

func (it item) node() models.FolderNode {
	n := models.FolderNode{
		ID:         it.ID,
		Name:       it.Name,
		Type:       it.Type,
		CreatedAt:  it.CreatedAt,
		ModifiedAt: it.ModifiedAt,
		Size:       it.Size,
	}
	if it.Parent != nil {
		n.ParentID = it.Parent.ID
	}
	return n
}

type parentRef struct {
	ID string `json:"id"`
}

// request describes one HTTP call. out, when non-nil, receives the decoded body;
// a *[]byte receives the raw body.
type request struct {
	method      string
	url         string
	body        io.Reader
	contentType string
	header      http.Header
	out         any
}

// send performs r and returns the HTTP status. Non-2xx answers become errors.
func (c *Client) send(ctx context.Context, r request) (int, http.Header, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errs.Upstream(fmt.Sprintf("box %s request failed", r.method), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, errs.Upstream("read box response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Body: string(data)}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return resp.StatusCode, resp.Header, errs.Wrap(errs.CodeAuthRequired, "box rejected the access token", apiErr)
		}
		return resp.StatusCode, resp.Header, errs.Upstream(fmt.Sprintf("box %s %s", r.method, req.URL.Path), apiErr)
	}

	switch out := r.out.(type) {
	case nil:
	case *[]byte:
		*out = data
	default:
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, resp.Header, errs.Upstream("decode box response", err)
			}
		}
	}
	return resp.StatusCode, resp.Header, nil
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// GetFolder returns the folder's own metadata.
func (c *Client) GetFolder(ctx context.Context, folderID string) (models.FolderNode, error) {
	var it item
	u := fmt.Sprintf("%s/folders/%s?fields=%s", c.cfg.APIBaseURL, url.PathEscape(folderID), itemFields)
	if _, _, err := c.send(ctx, request{method: http.MethodGet, url: u, out: &it}); err != nil {
		return models.FolderNode{}, err
	}
	return it.node(), nil
}

// ListItems returns every child of folderID, paging through Box's 1000-entry pages
// until total_count is reached or MaxItems entries have been collected. The second
// return value is Box's total_count.
func (c *Client) ListItems(ctx context.Context, folderID string) ([]models.FolderNode, int, error) {
	var (
		nodes []models.FolderNode
		total int
	)
	for offset := 0; ; {
		q := url.Values{}
		q.Set("fields", itemFields)
		q.Set("limit", strconv.Itoa(c.cfg.PageSize))
		q.Set("offset", strconv.Itoa(offset))
		u := fmt.Sprintf("%s/folders/%s/items?%s", c.cfg.APIBaseURL, url.PathEscape(folderID), q.Encode())

		var page struct {
			TotalCount int    `json:"total_count"`
			Entries    []item `json:"entries"`
		}
		if _, _, err := c.send(ctx, request{method: http.MethodGet, url: u, out: &page}); err != nil {
			return nil, 0, err
		}
		total = page.TotalCount
		for _, e := range page.Entries {
			nodes = append(nodes, e.node())
		}

		offset += len(page.Entries)
		if len(page.Entries) == 0 || offset >= total || len(nodes) >= c.cfg.MaxItems {
			break
		}
	}
	if len(nodes) > c.cfg.MaxItems {
		nodes = nodes[:c.cfg.MaxItems]
	}
	return nodes, total, nil
}

// CreateFolder creates name under parentID.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (models.FolderNode, error) {
	body, err := jsonBody(map[string]any{"name": name, "parent": parentRef{ID: parentID}})
	if err != nil {
		return models.FolderNode{}, err
	}
	var it item
	_, _, err = c.send(ctx, request{
		method:      http.MethodPost,
		url:         c.cfg.APIBaseURL + "/folders?fields=" + itemFields,
		body:        body,
		contentType: "application/json",
		out:         &it,
	})
	if err != nil {
		return models.FolderNode{}, err
	}
	return it.node(), nil
}

// MoveFile re-parents a file.
func (c *Client) MoveFile(ctx context.Context, fileID, parentID string) error {
	body, err := jsonBody(map[string]any{"parent": parentRef{ID: parentID}})
	if err != nil {
		return err
	}
	_, _, err = c.send(ctx, request{
		method:      http.MethodPut,
		url:         fmt.Sprintf("%s/files/%s", c.cfg.APIBaseURL, url.PathEscape(fileID)),
		body:        body,
		contentType: "application/json",
	})
	return err
}

// DownloadFile returns a file's content.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	var data []byte
	_, _, err := c.send(ctx, request{
		method: http.MethodGet,
		url:    fmt.Sprintf("%s/files/%s/content", c.cfg.APIBaseURL, url.PathEscape(fileID)),
		out:    &data,
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// CurrentUser returns the Box user the access token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (models.BoxUser, error) {
	var u models.BoxUser
	if _, _, err := c.send(ctx, request{method: http.MethodGet, url: c.cfg.APIBaseURL + "/users/me?fields=id,name,login", out: &u}); err != nil {
		return models.BoxUser{}, err
	}
	if u.ID == "" {
		return models.BoxUser{}, errs.Upstream("box users/me", errors.New("response carried no user id"))
	}
	return u, nil
}
