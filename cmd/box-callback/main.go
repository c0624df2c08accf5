package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/boxdocumentsorter/internal/httpx"
	"github.com/Lllllllleong/boxdocumentsorter/internal/services"
)

var callback = services.NewCallback()

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleBoxCallback", handleBoxCallback)
}

// main is required by the Go Functions Framework.
func main() {}

// handleBoxCallback is the OAuth redirect target registered with the Box app.
func handleBoxCallback(w http.ResponseWriter, r *http.Request) {
	if httpx.Preflight(w, r, http.MethodGet) {
		return
	}
	if !httpx.Allow(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	page := services.CallbackPage{Code: q.Get("code"), State: q.Get("state"), Error: q.Get("error")}
	if desc := q.Get("error_description"); page.Error != "" && desc != "" {
		page.Error += ": " + desc
	}
	if page.Error != "" {
		slog.Warn("Box authorization was not granted.", "error", page.Error, "state", page.State)
	}

	status, body, err := callback.Render(page)
	if err != nil {
		slog.Error("Failed to render callback page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
