package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/boxdocumentsorter/internal/auth"
	"github.com/Lllllllleong/boxdocumentsorter/internal/errs"
	"github.com/Lllllllleong/boxdocumentsorter/internal/gcp"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
	"github.com/Lllllllleong/boxdocumentsorter/internal/sorter"
)

// ScheduledSortFunction runs sorts triggered by Pub/Sub using credentials stored in Firestore.
type ScheduledSortFunction struct {
	credentials auth.Persister
	refresher   auth.Refresher
	engine      *engine
}

// NewScheduledSort creates a ScheduledSortFunction.
func NewScheduledSort(ctx context.Context) (*ScheduledSortFunction, error) {
	boxConfig, err := loadBoxAppConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	config, err := loadSortConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	e, err := newEngine(ctx, config, boxConfig.client())
	if err != nil {
		return nil, err
	}
	slog.Info("Scheduled sort function initialized.", "mode", config.Mode)
	return &ScheduledSortFunction{
		credentials: gcp.NewCredentialStore(firestoreClient, credentialsCollection()),
		refresher:   boxConfig.oauth(),
		engine:      e,
	}, nil
}

// Process runs the sort described by msg. msg.UserID is the Box user id the
// credential was stored under at sign-in. Refreshed tokens are written back to
// Firestore; a credential that can no longer be refreshed is removed.
func (f *ScheduledSortFunction) Process(ctx context.Context, msg models.ScheduledSortMessage) error {
	if msg.UserID == "" || msg.ParentFolderID == "" {
		return errs.InvalidRequest("userId and parentFolderId are required")
	}
	mode, err := requestMode(msg.Mode)
	if err != nil {
		return err
	}
	logCtx := slog.With("userId", msg.UserID, "parentFolderId", msg.ParentFolderID)

	store, err := auth.LoadStore(ctx, msg.UserID, f.credentials, f.refresher)
	if err != nil {
		logCtx.Error("No usable credential for scheduled sort.", "error", err)
		return err
	}

	res, err := f.engine.run(ctx, store, sorter.Request{UserID: msg.UserID, ParentFolderID: msg.ParentFolderID, Mode: mode})
	if err != nil {
		return err
	}
	logCtx.Info("Scheduled sort finished.", "runId", res.RunID, "processedFiles", res.ProcessedFiles, "successCount", res.SuccessCount, "errorCount", res.ErrorCount)
	return nil
}

// pubSubEnvelope is the data of a Pub/Sub CloudEvent; Message.Data holds the job.
type pubSubEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

// DecodeScheduledSortEvent extracts the sort message from Pub/Sub event data.
func DecodeScheduledSortEvent(data []byte) (models.ScheduledSortMessage, error) {
	var envelope pubSubEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return models.ScheduledSortMessage{}, errs.Wrap(errs.CodeInvalidRequest, "event data is not a Pub/Sub message", err)
	}
	var msg models.ScheduledSortMessage
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
		return models.ScheduledSortMessage{}, errs.Wrap(errs.CodeInvalidRequest, "Pub/Sub message is not a sort request", err)
	}
	return msg, nil
}

// retryable reports whether redelivering the message could succeed.
func retryable(err error) bool {
	switch errs.CodeOf(err) {
	case errs.CodeInvalidRequest, errs.CodeAuthRequired, errs.CodeStructureMissing:
		return false
	}
	return true
}

// HandleEvent decodes and runs one Pub/Sub delivery. Only failures that a
// redelivery could fix are returned; the rest are logged and acknowledged.
func (f *ScheduledSortFunction) HandleEvent(ctx context.Context, eventID string, data []byte) error {
	msg, err := DecodeScheduledSortEvent(data)
	if err == nil {
		err = f.Process(ctx, msg)
	}
	if err != nil && !retryable(err) {
		slog.Warn("Dropping scheduled sort.", "eventId", eventID, "error", err)
		return nil
	}
	return err
}
