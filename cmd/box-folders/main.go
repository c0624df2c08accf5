package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/httpx"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
	"github.com/Lllllllleong/boxdocumentsorter/internal/services"
)

var (
	foldersInstance *services.FoldersFunction
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleBoxFolders", handleBoxFolders)
}

// main is required by the Go Functions Framework.
func main() {}

// handleBoxFolders lists a folder on GET and creates one on POST.
func handleBoxFolders(w http.ResponseWriter, r *http.Request) {
	if httpx.Preflight(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if !httpx.Allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	once.Do(func() {
		foldersInstance, initErr = services.NewFolders(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		httpx.WriteError(w, errs.Wrap(errs.CodeInternal, "failed to initialize service", initErr))
		return
	}

	if r.Method == http.MethodGet {
		list(w, r)
		return
	}

	var req models.CreateFolderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.AccessToken == "" {
		req.CredentialPayload = httpx.Credential(r)
	}
	res, err := foldersInstance.Create(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

// list serves GET ?folderId=<id>&trail=<json crumbs>.
func list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var trail []models.Crumb
	if raw := q.Get("trail"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &trail); err != nil {
			httpx.WriteError(w, errs.Wrap(errs.CodeInvalidRequest, "trail is not a JSON breadcrumb list", err))
			return
		}
	}
	res, err := foldersInstance.List(r.Context(), httpx.Credential(r), q.Get("folderId"), trail)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
