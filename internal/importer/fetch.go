package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/partnerhub-platform/api/internal/domain"
)

// ObjectFetcher downloads an uploaded file from object storage by key.
type ObjectFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// storageEvent is the S3-style notification delivered through the storage
// webhook. Only the object key is consumed.
type storageEvent struct {
	Records []struct {
		S3 struct {
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// FetchImport drives the queued import path: resolve the storage event to
// an audit record, download the file, and fan its rows out through a
// dispatcher. Row outcomes are applied asynchronously by RowImport.
type FetchImport struct {
	audits        AuditStore
	fetcher       ObjectFetcher
	newDispatcher func(auditID uuid.UUID) RowDispatcher
	logger        *slog.Logger
}

func NewFetchImport(audits AuditStore, fetcher ObjectFetcher, newDispatcher func(auditID uuid.UUID) RowDispatcher, logger *slog.Logger) *FetchImport {
	return &FetchImport{audits: audits, fetcher: fetcher, newDispatcher: newDispatcher, logger: logger}
}

// Process handles one storage event payload. Events for keys with no audit
// record are dropped with a warning; they are deliveries for uploads this
// service never issued a presigned URL for.
func (f *FetchImport) Process(ctx context.Context, payload []byte) error {
	key, err := objectKey(payload)
	if err != nil {
		return fmt.Errorf("decode storage event: %w", err)
	}

	audit, err := f.audits.GetByPath(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			f.logger.WarnContext(ctx, "storage event for unknown upload", "key", key)
			return nil
		}
		return fmt.Errorf("lookup audit for %q: %w", key, err)
	}
	if audit.Terminal() {
		f.logger.WarnContext(ctx, "storage event for settled import", "key", key, "audit_id", audit.ID, "status", audit.Status)
		return nil
	}

	data, err := f.fetcher.Get(ctx, key)
	if err != nil {
		f.logger.ErrorContext(ctx, "object download failed", "key", key, "audit_id", audit.ID, "error", err)
		if markErr := f.audits.MarkFailed(ctx, audit.ID, []string{"Unexpected import error: " + err.Error()}); markErr != nil {
			return markErr
		}
		return err
	}

	if err := f.audits.MarkProcessing(ctx, audit.ID); err != nil {
		return fmt.Errorf("mark audit processing: %w", err)
	}

	orchestrator := NewOrchestrator(f.newDispatcher(audit.ID), f.logger)
	result := orchestrator.Run(ctx, data)

	if result.HasPipelineError() {
		return f.audits.MarkFailed(ctx, audit.ID, result.ErrorMessages())
	}
	if result.Total == 0 {
		// Header-only file: no row jobs will ever finalize the audit.
		return f.audits.Finalize(ctx, audit.ID, result)
	}
	return nil
}

// objectKey extracts and URL-decodes the object key of the first record.
func objectKey(payload []byte) (string, error) {
	var event storageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", err
	}
	if len(event.Records) == 0 {
		return "", fmt.Errorf("storage event has no records")
	}
	raw := event.Records[0].S3.Object.Key
	if raw == "" {
		return "", fmt.Errorf("storage event record has no object key")
	}
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return raw, nil
	}
	return key, nil
}
