// Package sorter runs a sort: it discovers the folder layout, classifies every
// file waiting in the intake folder, moves it to its destination and writes an
// audit log.
package sorter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/boxdocumentsorter/internal/classifier"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
	"github.com/Lllllllleong/boxdocumentsorter/internal/structure"
)

// Run statuses, in the order a run passes through them.
const (
	StatusDiscovering = "DISCOVERING"
	StatusListing     = "LISTING"
	StatusClassifying = "CLASSIFYING"
	StatusLogging     = "LOGGING"
	StatusDone        = "DONE"
	StatusFailed      = "FAILED"
)

// Mode selects how files are processed.
type Mode string

const (
	// ModeSequential finishes one file before starting the next.
	ModeSequential Mode = "sequential"
	// ModeBatched processes up to BatchSize files at once and pauses between batches.
	ModeBatched Mode = "batched"
)

// Batched mode limits.
const (
	DefaultBatchSize  = 3
	DefaultBatchPause = time.Second
)

// ParseMode accepts "", "sequential" and "batched".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSequential:
		return ModeSequential, nil
	case ModeBatched:
		return ModeBatched, nil
	}
	return "", errs.InvalidRequest(fmt.Sprintf("unknown sort mode %q", s))
}

// Remote is the slice of the Box client the sorter needs.
type Remote interface {
	ListItems(ctx context.Context, folderID string) ([]models.FolderNode, int, error)
	MoveFile(ctx context.Context, fileID, parentID string) error
	UploadFile(ctx context.Context, parentID, name string, content []byte, contentType string) (models.FolderNode, error)
}

// Layout reads the folder structure under a parent.
type Layout interface {
	Layout() structure.Layout
	Discover(ctx context.Context, parentID string) (models.FolderStructure, error)
	LogFolder(ctx context.Context, settingID string) (string, error)
}

// RulesLoader returns the user's extra classification rules, if any.
type RulesLoader interface {
	Load(ctx context.Context, settingFolderID string) (string, bool)
}

// Classifier decides where a file goes.
type Classifier interface {
	Classify(ctx context.Context, file models.FolderNode, destinations []models.FolderNode, extraRules string) (models.ClassificationResult, error)
}

// Recorder tracks run progress outside the request.
type Recorder interface {
	Create(ctx context.Context, run models.SortRun) error
	UpdateStatus(ctx context.Context, runID, status, errDetails string) error
	Complete(ctx context.Context, run models.SortRun) error
}

// Archiver keeps an extra copy of audit logs.
type Archiver interface {
	Archive(ctx context.Context, runID, name string, content []byte) error
}

// Request starts a run.
type Request struct {
	UserID         string
	ParentFolderID string
	Mode           Mode
}

// Result is the outcome of a run. ProcessedFiles always equals
// SuccessCount + ErrorCount.
type Result struct {
	RunID          string
	Message        string
	ProcessedFiles int
	SuccessCount   int
	ErrorCount     int
	Cancelled      bool
	LogFileName    string
	Results        []models.SortOutcome
}

// Option configures a Sorter.
type Option func(*Sorter)

// WithRecorder records run progress.
func WithRecorder(r Recorder) Option { return func(s *Sorter) { s.recorder = r } }

// WithArchiver archives every audit log.
func WithArchiver(a Archiver) Option { return func(s *Sorter) { s.archiver = a } }

// WithMode sets the mode used when a request does not name one.
func WithMode(m Mode) Option { return func(s *Sorter) { s.mode = m } }

// WithBatchPause overrides the pause between batches.
func WithBatchPause(d time.Duration) Option { return func(s *Sorter) { s.batchPause = d } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Sorter) { s.now = now } }

// Sorter runs sorts. It holds no per-run state and is safe for concurrent use.
type Sorter struct {
	remote     Remote
	layout     Layout
	rules      RulesLoader
	classifier Classifier
	recorder   Recorder
	archiver   Archiver
	mode       Mode
	batchSize  int
	batchPause time.Duration
	now        func() time.Time
}

// New creates a Sorter.
func New(remote Remote, layout Layout, rules RulesLoader, c Classifier, opts ...Option) *Sorter {
	s := &Sorter{
		remote:     remote,
		layout:     layout,
		rules:      rules,
		classifier: c,
		mode:       ModeSequential,
		batchSize:  DefaultBatchSize,
		batchPause: DefaultBatchPause,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run carries the state of one sort.
type run struct {
	id      string
	req     Request
	started time.Time
	names   structure.Layout
	fs      models.FolderStructure
	rules   string
	logCtx  *slog.Logger

	// cancelled is set when ctx was seen done while files were being processed.
	cancelled bool
}

// Run executes one sort. Only a missing intake folder, a failed listing or a lost
// login end the run with an error; per-file failures become error outcomes. When
// ctx is cancelled the files not yet visited are skipped and the partial result
// is returned with Cancelled set.
func (s *Sorter) Run(ctx context.Context, req Request) (*Result, error) {
	if req.ParentFolderID == "" {
		return nil, errs.InvalidRequest("parent folder id is required")
	}
	if req.Mode == "" {
		req.Mode = s.mode
	}
	r := &run{
		id:      uuid.NewString(),
		req:     req,
		started: s.now(),
		names:   s.layout.Layout(),
	}
	r.logCtx = slog.With("runId", r.id, "parentFolderId", req.ParentFolderID, "mode", req.Mode)
	r.logCtx.Info("Starting sort run.")

	s.record(ctx, r, func(ctx context.Context) error {
		return s.recorder.Create(ctx, models.SortRun{RunID: r.id, UserID: req.UserID, ParentFolderID: req.ParentFolderID, Status: StatusDiscovering})
	})

	fs, err := s.layout.Discover(ctx, req.ParentFolderID)
	if err != nil {
		return nil, s.fail(ctx, r, "failed to discover folder structure", err)
	}
	r.fs = fs

	s.setStatus(ctx, r, StatusListing)
	files, err := s.listIntake(ctx, fs.UnsortedFolderID)
	if err != nil {
		return nil, s.fail(ctx, r, "failed to list intake folder", err)
	}
	r.logCtx.Info("Listed intake folder.", "fileCount", len(files))

	if len(files) == 0 {
		res := &Result{RunID: r.id, Message: "No files to sort in the intake folder.", Results: []models.SortOutcome{}}
		s.complete(ctx, r, res)
		return res, nil
	}

	if text, ok := s.rules.Load(ctx, fs.SettingFolderID); ok {
		r.rules = text
	}

	s.setStatus(ctx, r, StatusClassifying)
	var outcomes []models.SortOutcome
	var runErr error
	switch req.Mode {
	case ModeBatched:
		outcomes, runErr = s.processBatched(ctx, r, files)
	default:
		outcomes, runErr = s.processSequential(ctx, r, files)
	}

	res := &Result{RunID: r.id, Results: outcomes, ProcessedFiles: len(outcomes)}
	for _, o := range outcomes {
		if o.Status == models.StatusSuccess {
			res.SuccessCount++
		} else {
			res.ErrorCount++
		}
	}
	res.Cancelled = runErr == nil && r.cancelled

	// Cancellation must not prevent the audit log from being written.
	logCtx := context.WithoutCancel(ctx)
	s.setStatus(logCtx, r, StatusLogging)
	res.LogFileName = s.writeLog(logCtx, r, outcomes)

	if runErr != nil {
		return res, s.fail(logCtx, r, "sort run stopped", runErr)
	}

	res.Message = fmt.Sprintf("Sort finished. Success: %d, errors: %d.", res.SuccessCount, res.ErrorCount)
	if res.Cancelled {
		res.Message = fmt.Sprintf("Sort cancelled after %d of %d files. Success: %d, errors: %d.", res.ProcessedFiles, len(files), res.SuccessCount, res.ErrorCount)
	}
	s.complete(logCtx, r, res)
	r.logCtx.Info("Sort run finished.", "processedFiles", res.ProcessedFiles, "successCount", res.SuccessCount, "errorCount", res.ErrorCount, "cancelled", res.Cancelled)
	return res, nil
}

// listIntake returns the intake files whose extension the classifier accepts.
func (s *Sorter) listIntake(ctx context.Context, folderID string) ([]models.FolderNode, error) {
	nodes, _, err := s.remote.ListItems(ctx, folderID)
	if err != nil {
		if errs.Is(err, errs.CodeAuthRequired) {
			return nil, err
		}
		return nil, errs.Upstream("list intake folder", err)
	}
	files := []models.FolderNode{}
	for _, n := range nodes {
		if n.Type == models.TypeFile && classifier.Supported(n.Name) {
			files = append(files, n)
		}
	}
	return files, nil
}

func (s *Sorter) processSequential(ctx context.Context, r *run, files []models.FolderNode) ([]models.SortOutcome, error) {
	outcomes := make([]models.SortOutcome, 0, len(files))
	for i, f := range files {
		if ctx.Err() != nil {
			r.cancelled = true
			r.logCtx.Warn("Sort run cancelled.", "remainingFiles", len(files)-i)
			break
		}
		r.logCtx.Info("Processing file.", "index", i+1, "total", len(files), "fileName", f.Name)
		o, err := s.processFile(ctx, r, f)
		outcomes = append(outcomes, o)
		if err != nil {
			return outcomes, err
		}
		if ctx.Err() != nil {
			r.cancelled = true
		}
	}
	return outcomes, nil
}

// processBatched runs files in batches of at most batchSize, pausing between
// batches. Outcomes keep the input order.
func (s *Sorter) processBatched(ctx context.Context, r *run, files []models.FolderNode) ([]models.SortOutcome, error) {
	outcomes := make([]models.SortOutcome, 0, len(files))
	for start := 0; start < len(files); start += s.batchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.batchPause):
			}
		}
		if ctx.Err() != nil {
			r.cancelled = true
			r.logCtx.Warn("Sort run cancelled.", "remainingFiles", len(files)-start)
			break
		}

		end := min(start+s.batchSize, len(files))
		batch := make([]models.SortOutcome, end-start)
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(s.batchSize)
		for i := start; i < end; i++ {
			eg.Go(func() error {
				o, err := s.processFile(gctx, r, files[i])
				batch[i-start] = o
				return err
			})
		}
		err := eg.Wait()
		outcomes = append(outcomes, batch...)
		if err != nil {
			return outcomes, err
		}
		if ctx.Err() != nil {
			r.cancelled = true
		}
		r.logCtx.Info("Batch finished.", "processed", end, "total", len(files))
	}
	return outcomes, nil
}

// processFile classifies and moves one file. The returned error is non-nil only
// when the login was lost, which ends the run.
func (s *Sorter) processFile(ctx context.Context, r *run, f models.FolderNode) (models.SortOutcome, error) {
	logCtx := r.logCtx.With("fileId", f.ID, "fileName", f.Name)

	result, err := s.classifier.Classify(ctx, f, r.fs.DestinationFolders, r.rules)
	if err != nil {
		logCtx.Error("Classification failed.", "error", err)
		return s.errorOutcome(r, f, "Classification failed", err), authErr(err)
	}

	if result.TargetFolderID != "" {
		if err := s.remote.MoveFile(ctx, f.ID, result.TargetFolderID); err != nil {
			logCtx.Error("Failed to move file.", "targetFolderId", result.TargetFolderID, "error", err)
			return s.errorOutcome(r, f, "Error", err), authErr(err)
		}
		logCtx.Info("Moved file.", "targetFolder", result.TargetFolderName)
	} else {
		logCtx.Info("No destination matched; file left in place.", "category", result.Category)
	}

	return models.SortOutcome{
		FileName:       f.Name,
		OriginalFolder: r.names.IntakeFolder,
		TargetFolder:   result.TargetFolderName,
		Classification: result.Category,
		Reasoning:      result.Reasoning,
		Status:         models.StatusSuccess,
		Confidence:     result.Confidence,
	}, nil
}

func (s *Sorter) errorOutcome(r *run, f models.FolderNode, classification string, err error) models.SortOutcome {
	return models.SortOutcome{
		FileName:       f.Name,
		OriginalFolder: r.names.IntakeFolder,
		TargetFolder:   r.names.OtherFolder,
		Classification: classification,
		Reasoning:      "Processing error: " + err.Error(),
		Status:         models.StatusError,
		Error:          err.Error(),
	}
}

func authErr(err error) error {
	if errs.Is(err, errs.CodeAuthRequired) {
		return err
	}
	return nil
}

// writeLog uploads the audit log into the settings log folder and archives it.
// Failures are logged and never fail the run. It returns the uploaded file name,
// or "" when nothing reached Box.
func (s *Sorter) writeLog(ctx context.Context, r *run, outcomes []models.SortOutcome) string {
	if len(outcomes) == 0 {
		return ""
	}
	name := LogFileName(r.started)
	content, err := EncodeLog(r.started, outcomes)
	if err != nil {
		r.logCtx.Error("Failed to build audit log.", "error", err)
		return ""
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, r.id, name, content); err != nil {
			r.logCtx.Warn("Failed to archive audit log.", "error", err)
		}
	}

	logFolderID, err := s.layout.LogFolder(ctx, r.fs.SettingFolderID)
	if err != nil {
		r.logCtx.Warn("Could not locate log folder; audit log not uploaded.", "error", err)
		return ""
	}
	if logFolderID == "" {
		r.logCtx.Warn("No log folder in settings folder; audit log not uploaded.")
		return ""
	}
	if _, err := s.remote.UploadFile(ctx, logFolderID, name, content, "text/csv; charset=utf-8"); err != nil {
		r.logCtx.Warn("Failed to upload audit log.", "fileName", name, "error", err)
		return ""
	}
	r.logCtx.Info("Uploaded audit log.", "fileName", name)
	return name
}

func (s *Sorter) record(ctx context.Context, r *run, fn func(context.Context) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(ctx); err != nil {
		r.logCtx.Warn("Failed to record run progress.", "error", err)
	}
}

func (s *Sorter) setStatus(ctx context.Context, r *run, status string) {
	s.record(ctx, r, func(ctx context.Context) error {
		return s.recorder.UpdateStatus(ctx, r.id, status, "")
	})
}

func (s *Sorter) complete(ctx context.Context, r *run, res *Result) {
	s.record(ctx, r, func(ctx context.Context) error {
		return s.recorder.Complete(ctx, models.SortRun{
			RunID:          r.id,
			Status:         StatusDone,
			ProcessedFiles: res.ProcessedFiles,
			SuccessCount:   res.SuccessCount,
			ErrorCount:     res.ErrorCount,
			LogFileName:    res.LogFileName,
		})
	})
}

// fail marks the run FAILED and returns err annotated with message.
func (s *Sorter) fail(ctx context.Context, r *run, message string, err error) error {
	r.logCtx.Error(message, "error", err)
	s.record(ctx, r, func(ctx context.Context) error {
		return s.recorder.UpdateStatus(ctx, r.id, StatusFailed, fmt.Sprintf("%s: %v", message, err))
	})
	return fmt.Errorf("%s: %w", message, err)
}
