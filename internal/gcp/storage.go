package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			slog.Info("SKIPPING: object already exists.", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// AuditArchive keeps a copy of every audit log in a bucket, keyed by run.
type AuditArchive struct {
	bucket *storage.BucketHandle
	prefix string
}

// NewAuditArchive archives into bucketName under prefix.
func NewAuditArchive(client *storage.Client, bucketName, prefix string) *AuditArchive {
	return &AuditArchive{bucket: client.Bucket(bucketName), prefix: prefix}
}

// Archive stores content as <prefix>/<runID>/<name>. Existing objects are left alone.
func (a *AuditArchive) Archive(ctx context.Context, runID, name string, content []byte) error {
	objectName := path.Join(a.prefix, runID, name)
	if err := SaveToGCSAtomically(ctx, a.bucket, objectName, string(content)); err != nil {
		return fmt.Errorf("archive %s: %w", objectName, err)
	}
	return nil
}
