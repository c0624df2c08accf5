package box

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// maxCommitPolls bounds how often a 202 commit answer is polled again.
const maxCommitPolls = 5

type uploadResult struct {
	Entries []item `json:"entries"`
}

func (r uploadResult) first() (models.FolderNode, error) {
	if len(r.Entries) == 0 {
		return models.FolderNode{}, errs.Upstream("box upload", fmt.Errorf("response contained no file entry"))
	}
	return r.Entries[0].node(), nil
}

// UploadFile stores content as name inside parentID. Payloads at or above the
// chunked threshold go through an upload session; smaller ones use a single
// multipart request. An existing file of the same name yields a conflict error
// (see IsConflict).
func (c *Client) UploadFile(ctx context.Context, parentID, name string, content []byte, contentType string) (models.FolderNode, error) {
	if int64(len(content)) >= c.cfg.ChunkedUploadThreshold {
		return c.uploadChunked(ctx, parentID, name, content)
	}
	return c.uploadMultipart(ctx, parentID, name, content, contentType)
}

func (c *Client) uploadMultipart(ctx context.Context, parentID, name string, content []byte, contentType string) (models.FolderNode, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attrs, err := json.Marshal(map[string]any{"name": name, "parent": parentRef{ID: parentID}})
	if err != nil {
		return models.FolderNode{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("attributes", string(attrs)); err != nil {
		return models.FolderNode{}, fmt.Errorf("write attributes part: %w", err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return models.FolderNode{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return models.FolderNode{}, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.FolderNode{}, fmt.Errorf("close multipart body: %w", err)
	}

	var res uploadResult
	_, _, err = c.send(ctx, request{
		method:      http.MethodPost,
		url:         c.cfg.UploadBaseURL + "/files/content",
		body:        &buf,
		contentType: mw.FormDataContentType(),
		out:         &res,
	})
	if err != nil {
		return models.FolderNode{}, err
	}
	return res.first()
}

type uploadSession struct {
	ID         string `json:"id"`
	PartSize   int64  `json:"part_size"`
	TotalParts int    `json:"total_parts"`
}

type uploadedPart struct {
	PartID string `json:"part_id"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	SHA1   string `json:"sha1"`
}

func digest(b []byte) string {
	sum := sha1.Sum(b)
	return "sha=" + base64.StdEncoding.EncodeToString(sum[:])
}

// uploadChunked runs the three upload-session phases: create, upload parts, commit.
func (c *Client) uploadChunked(ctx context.Context, parentID, name string, content []byte) (models.FolderNode, error) {
	logCtx := slog.With("parentId", parentID, "fileName", name, "size", len(content))

	body, err := jsonBody(map[string]any{
		"folder_id": parentID,
		"file_size": len(content),
		"file_name": name,
	})
	if err != nil {
		return models.FolderNode{}, err
	}
	var session uploadSession
	_, _, err = c.send(ctx, request{
		method:      http.MethodPost,
		url:         c.cfg.UploadBaseURL + "/files/upload_sessions",
		body:        body,
		contentType: "application/json",
		out:         &session,
	})
	if err != nil {
		return models.FolderNode{}, err
	}
	if session.PartSize <= 0 {
		return models.FolderNode{}, errs.Upstream("box upload session", fmt.Errorf("invalid part size %d", session.PartSize))
	}
	logCtx = logCtx.With("sessionId", session.ID)
	logCtx.Info("Upload session created.", "partSize", session.PartSize, "totalParts", session.TotalParts)

	sessionURL := fmt.Sprintf("%s/files/upload_sessions/%s", c.cfg.UploadBaseURL, url.PathEscape(session.ID))
	total := int64(len(content))
	parts := make([]uploadedPart, 0, session.TotalParts)

	for offset := int64(0); offset < total; offset += session.PartSize {
		end := offset + session.PartSize
		if end > total {
			end = total
		}
		chunk := content[offset:end]

		header := http.Header{}
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, end-1, total))
		header.Set("Digest", digest(chunk))

		var res struct {
			Part uploadedPart `json:"part"`
		}
		_, _, err := c.send(ctx, request{
			method:      http.MethodPut,
			url:         sessionURL,
			body:        bytes.NewReader(chunk),
			contentType: "application/octet-stream",
			header:      header,
			out:         &res,
		})
		if err != nil {
			c.abortSession(ctx, logCtx, sessionURL)
			return models.FolderNode{}, fmt.Errorf("upload part at offset %d: %w", offset, err)
		}
		parts = append(parts, res.Part)
	}

	return c.commitSession(ctx, logCtx, sessionURL, parts, content)
}

func (c *Client) commitSession(ctx context.Context, logCtx *slog.Logger, sessionURL string, parts []uploadedPart, content []byte) (models.FolderNode, error) {
	payload, err := json.Marshal(map[string]any{"parts": parts})
	if err != nil {
		return models.FolderNode{}, err
	}
	header := http.Header{}
	header.Set("Digest", digest(content))

	for poll := 0; poll < maxCommitPolls; poll++ {
		var res uploadResult
		status, respHeader, err := c.send(ctx, request{
			method:      http.MethodPost,
			url:         sessionURL + "/commit",
			body:        bytes.NewReader(payload),
			contentType: "application/json",
			header:      header,
			out:         &res,
		})
		if err != nil {
			c.abortSession(ctx, logCtx, sessionURL)
			return models.FolderNode{}, fmt.Errorf("commit upload session: %w", err)
		}
		if status != http.StatusAccepted {
			logCtx.Info("Upload session committed.", "parts", len(parts))
			return res.first()
		}

		// 202: Box is still assembling the parts.
		wait := time.Second
		if s, err := strconv.Atoi(respHeader.Get("Retry-After")); err == nil && s > 0 {
			wait = time.Duration(s) * time.Second
		}
		select {
		case <-ctx.Done():
			return models.FolderNode{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return models.FolderNode{}, errs.Upstream("commit upload session", fmt.Errorf("still processing after %d polls", maxCommitPolls))
}

func (c *Client) abortSession(ctx context.Context, logCtx *slog.Logger, sessionURL string) {
	if _, _, err := c.send(ctx, request{method: http.MethodDelete, url: sessionURL}); err != nil {
		logCtx.Warn("Failed to abort upload session.", "error", err)
	}
}
