package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/time/rate"

	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
	"github.com/Lllllllleong/boxdocumentsorter/internal/classifier"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/gcp"
	"github.com/Lllllllleong/boxdocumentsorter/internal/httpx"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
	"github.com/Lllllllleong/boxdocumentsorter/internal/rules"
	"github.com/Lllllllleong/boxdocumentsorter/internal/sorter"
	"github.com/Lllllllleong/boxdocumentsorter/internal/structure"
)

// SortConfig holds the settings of a sort run.
type SortConfig struct {
	ProjectID      string
	RunsCollection string
	AuditBucket    string
	Mode           sorter.Mode
	InferenceRPM   int
	MaxInlinePages int
	Layout         structure.Layout
	Generator      gcp.GeneratorConfig
}

// loadSortConfig loads and validates the variables shared by the interactive and
// scheduled sort functions.
func loadSortConfig() (*SortConfig, error) {
	mode, err := sorter.ParseMode(gcp.GetEnv("SORT_MODE", string(sorter.ModeSequential)))
	if err != nil {
		return nil, fmt.Errorf("SORT_MODE: %w", err)
	}
	rpm, err := intEnv("INFERENCE_RPM", 0)
	if err != nil {
		return nil, err
	}
	maxPages, err := intEnv("MAX_INLINE_PDF_PAGES", classifier.DefaultMaxInlinePages)
	if err != nil {
		return nil, err
	}
	gen := gcp.GeneratorConfigFromEnv()
	if gen.Backend == gcp.BackendVertex && gen.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set for the vertex backend")
	}
	if gen.Backend == gcp.BackendGemini && gen.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable must be set for the gemini backend")
	}
	return &SortConfig{
		ProjectID:      gcp.GetEnv("PROJECT_ID", ""),
		RunsCollection: gcp.GetEnv("FIRESTORE_RUNS_COLLECTION", "sortRuns"),
		AuditBucket:    gcp.GetEnv("AUDIT_BUCKET", ""),
		Mode:           mode,
		InferenceRPM:   rpm,
		MaxInlinePages: maxPages,
		Layout:         loadLayout(),
		Generator:      gen,
	}, nil
}

// engine assembles a sorter for each run from instance-wide dependencies.
type engine struct {
	boxConfig box.Config
	generator classifier.Generator
	limiter   *rate.Limiter
	layout    structure.Layout
	maxPages  int
	mode      sorter.Mode
	recorder  sorter.Recorder
	archiver  sorter.Archiver
}

// newEngine creates the inference backend and, when PROJECT_ID and AUDIT_BUCKET
// allow, the Firestore run recorder and the GCS audit archive.
func newEngine(ctx context.Context, config *SortConfig, boxConfig box.Config) (*engine, error) {
	generator, err := gcp.NewGenerator(ctx, config.Generator)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}
	e := &engine{
		boxConfig: boxConfig,
		generator: generator,
		layout:    config.Layout,
		maxPages:  config.MaxInlinePages,
		mode:      config.Mode,
	}
	if config.InferenceRPM > 0 {
		e.limiter = classifier.NewLimiter(config.InferenceRPM)
	}
	if config.ProjectID != "" {
		firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		e.recorder = gcp.NewRunRecorder(firestoreClient, config.RunsCollection)
	}
	if config.AuditBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		e.archiver = gcp.NewAuditArchive(storageClient, config.AuditBucket, "audit-logs")
	}
	return e, nil
}

// run sorts req.ParentFolderID with a Box client authenticated by tokens.
func (e *engine) run(ctx context.Context, tokens box.TokenSource, req sorter.Request) (*sorter.Result, error) {
	client := box.New(tokens, e.boxConfig)
	c := classifier.New(e.generator, client, classifier.Options{
		OtherFolderName: e.layout.OtherFolder,
		MaxInlinePages:  e.maxPages,
		Limiter:         e.limiter,
	})
	opts := []sorter.Option{sorter.WithMode(e.mode)}
	if e.recorder != nil {
		opts = append(opts, sorter.WithRecorder(e.recorder))
	}
	if e.archiver != nil {
		opts = append(opts, sorter.WithArchiver(e.archiver))
	}
	s := sorter.New(client, structure.New(client, e.layout), rules.NewLoader(client, e.layout.RulesFile), c, opts...)
	return s.Run(ctx, req)
}

// requestMode parses a mode named by a caller. An empty name keeps the
// function's configured mode.
func requestMode(name string) (sorter.Mode, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	return sorter.ParseMode(name)
}

// SortFunction runs a sort for a browser session.
type SortFunction struct {
	sessions *sessions
	engine   *engine
}

// NewSort creates a SortFunction.
func NewSort(ctx context.Context) (*SortFunction, error) {
	boxConfig, err := loadBoxAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config, err := loadSortConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	e, err := newEngine(ctx, config, boxConfig.client())
	if err != nil {
		return nil, err
	}
	sessions, err := newSessions(ctx, boxConfig)
	if err != nil {
		return nil, err
	}
	slog.Info("Sort function initialized.", "mode", config.Mode, "backend", config.Generator.Backend, "recordsRuns", e.recorder != nil, "archivesLogs", e.archiver != nil)
	return &SortFunction{sessions: sessions, engine: e}, nil
}

// Process runs one sort for the credential in req. A run that stops part way
// returns both the error and a response holding the files handled so far.
func (f *SortFunction) Process(ctx context.Context, req *models.SortRequest) (*models.SortResponse, error) {
	if req.ParentFolderID == "" {
		return nil, errs.InvalidRequest("parent folder id is required")
	}
	mode, err := requestMode(req.Mode)
	if err != nil {
		return nil, err
	}
	sess, err := f.sessions.open(ctx, req.CredentialPayload)
	if err != nil {
		return nil, err
	}

	res, err := f.engine.run(ctx, sess.store, sorter.Request{UserID: sess.userID, ParentFolderID: req.ParentFolderID, Mode: mode})
	if res == nil {
		return nil, sess.fail(err)
	}
	out := &models.SortResponse{
		Success:        err == nil,
		Message:        res.Message,
		RunID:          res.RunID,
		ProcessedFiles: res.ProcessedFiles,
		SuccessCount:   res.SuccessCount,
		ErrorCount:     res.ErrorCount,
		Cancelled:      res.Cancelled,
		LogFileName:    res.LogFileName,
		Results:        res.Results,
		Credential:     sess.refreshed(),
	}
	if err != nil {
		out.Message = fmt.Sprintf("Sort stopped after %d file(s). Success: %d, errors: %d.", res.ProcessedFiles, res.SuccessCount, res.ErrorCount)
		out.Error = httpx.Message(err)
		out.Code = string(errs.CodeOf(err))
		return out, sess.fail(err)
	}
	return out, nil
}
