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
	classifyInstance *services.ClassifyFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleClassify", handleClassify)
}

// main is required by the Go Functions Framework.
func main() {}

func handleClassify(w http.ResponseWriter, r *http.Request) {
	if httpx.Preflight(w, r, http.MethodPost) {
		return
	}
	if !httpx.Allow(w, r, http.MethodPost) {
		return
	}

	once.Do(func() {
		classifyInstance, initErr = services.NewClassify(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		httpx.WriteError(w, errs.Wrap(errs.CodeInternal, "failed to initialize service", initErr))
		return
	}

	var req models.ClassifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := classifyInstance.Process(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
