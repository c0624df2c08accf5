package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/boxdocumentsorter/internal/auth"
	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// CredentialStore persists Box credentials per user for scheduled runs.
type CredentialStore struct {
	client     *firestore.Client
	collection string
}

// NewCredentialStore stores credentials in collection.
func NewCredentialStore(client *firestore.Client, collection string) *CredentialStore {
	return &CredentialStore{client: client, collection: collection}
}

func (s *CredentialStore) Load(ctx context.Context, userID string) (auth.Credential, error) {
	snap, err := s.client.Collection(s.collection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return auth.Credential{}, auth.ErrNoCredential
	}
	if err != nil {
		return auth.Credential{}, fmt.Errorf("failed to read credential for %s: %w", userID, err)
	}
	var stored models.StoredCredential
	if err := snap.DataTo(&stored); err != nil {
		return auth.Credential{}, fmt.Errorf("failed to decode credential for %s: %w", userID, err)
	}
	return auth.Credential{AccessToken: stored.AccessToken, RefreshToken: stored.RefreshToken, ExpiresAt: stored.ExpiresAt}, nil
}

func (s *CredentialStore) Save(ctx context.Context, userID string, c auth.Credential) error {
	stored := models.StoredCredential{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		UpdatedAt:    time.Now().UTC(),
	}
	if _, err := s.client.Collection(s.collection).Doc(userID).Set(ctx, stored); err != nil {
		return fmt.Errorf("failed to save credential for %s: %w", userID, err)
	}
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.client.Collection(s.collection).Doc(userID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete credential for %s: %w", userID, err)
	}
	return nil
}

// RunRecorder tracks sort runs as Firestore documents, one per run id.
type RunRecorder struct {
	client     *firestore.Client
	collection string
}

// NewRunRecorder records runs in collection.
func NewRunRecorder(client *firestore.Client, collection string) *RunRecorder {
	return &RunRecorder{client: client, collection: collection}
}

func (r *RunRecorder) Create(ctx context.Context, run models.SortRun) error {
	run.CreatedAt = time.Now().UTC()
	run.UpdatedAt = run.CreatedAt
	if _, err := r.client.Collection(r.collection).Doc(run.RunID).Create(ctx, run); err != nil {
		return fmt.Errorf("failed to create run document: %w", err)
	}
	return nil
}

func (r *RunRecorder) UpdateStatus(ctx context.Context, runID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := r.client.Collection(r.collection).Doc(runID).Update(ctx, updates)
	return err
}

func (r *RunRecorder) Complete(ctx context.Context, run models.SortRun) error {
	updates := []firestore.Update{
		{Path: "status", Value: run.Status},
		{Path: "processedFiles", Value: run.ProcessedFiles},
		{Path: "successCount", Value: run.SuccessCount},
		{Path: "errorCount", Value: run.ErrorCount},
		{Path: "logFileName", Value: run.LogFileName},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	_, err := r.client.Collection(r.collection).Doc(run.RunID).Update(ctx, updates)
	return err
}
