package main

import (
	"context"
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
	sortInstance *services.SortFunction
	once         sync.Once
	initErr      error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleBoxSorting", handleBoxSorting)
}

// main is required by the Go Functions Framework.
func main() {}

// handleBoxSorting runs one sort over the intake folder of the requested parent.
func handleBoxSorting(w http.ResponseWriter, r *http.Request) {
	if httpx.Preflight(w, r, http.MethodPost) {
		return
	}
	if !httpx.Allow(w, r, http.MethodPost) {
		return
	}

	once.Do(func() {
		sortInstance, initErr = services.NewSort(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		httpx.WriteError(w, errs.Wrap(errs.CodeInternal, "failed to initialize service", initErr))
		return
	}

	var req models.SortRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.AccessToken == "" {
		req.CredentialPayload = httpx.Credential(r)
	}

	// A client disconnect cancels r.Context(); the run stops at the next file.
	res, err := sortInstance.Process(r.Context(), &req)
	if err != nil && res != nil {
		// The run stopped part way; report what was done with the error's status.
		slog.Warn("Sort run stopped early.", "runId", res.RunID, "processedFiles", res.ProcessedFiles, "error", err)
		httpx.WriteJSON(w, errs.StatusOf(err), res)
		return
	}
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
