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
	authInstance *services.AuthFunction
	once         sync.Once
	initErr      error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleBoxAuth" is the entry point name configured in GCP.
	functions.HTTP("HandleBoxAuth", handleBoxAuth)
}

// main is required by the Go Functions Framework.
func main() {}

// handleBoxAuth returns the consent URL on GET and exchanges a code on POST.
func handleBoxAuth(w http.ResponseWriter, r *http.Request) {
	if httpx.Preflight(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if !httpx.Allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	once.Do(func() {
		authInstance, initErr = services.NewAuth(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		httpx.WriteError(w, errs.Wrap(errs.CodeInternal, "failed to initialize service", initErr))
		return
	}

	if r.Method == http.MethodGet {
		httpx.WriteJSON(w, http.StatusOK, authInstance.AuthURL())
		return
	}

	var req models.TokenExchangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := authInstance.Exchange(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
