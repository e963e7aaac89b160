package importer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/partnerhub-platform/api/internal/domain"
)

// AuditStore persists import audit records. ApplyRowOutcome must be atomic
// per call so concurrent row workers never lose counter increments.
type AuditStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportAudit, error)
	GetByPath(ctx context.Context, path string) (*domain.ImportAudit, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	ApplyRowOutcome(ctx context.Context, id uuid.UUID, succeeded bool, messages []string) error
	MarkFailed(ctx context.Context, id uuid.UUID, messages []string) error
	Finalize(ctx context.Context, id uuid.UUID, result *Result) error
}

// RowImport processes one queued row job: reconcile the row, then fold its
// outcome into the audit record. Jobs are self-contained; a worker needs
// nothing beyond the job payload and the stores.
type RowImport struct {
	audits     AuditStore
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewRowImport(audits AuditStore, reconciler *Reconciler, logger *slog.Logger) *RowImport {
	return &RowImport{audits: audits, reconciler: reconciler, logger: logger}
}

// Process handles a single row for the audit identified by auditID. A
// vanished audit record makes the job a logged no-op rather than a retry
// loop. line is the 1-indexed source line carried in the job.
func (ri *RowImport) Process(ctx context.Context, auditID uuid.UUID, line int, raw map[string]string) error {
	if _, err := ri.audits.GetByID(ctx, auditID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			ri.logger.WarnContext(ctx, "dropping row for missing import audit", "audit_id", auditID, "line", line)
			return nil
		}
		return err
	}

	row := make(Row, len(raw))
	for name, value := range raw {
		row[Field(name)] = value
	}

	result := NewResult()
	ri.reconciler.ProcessRow(ctx, row, line, result)

	succeeded := result.RejectedRows() == 0
	return ri.audits.ApplyRowOutcome(ctx, auditID, succeeded, result.ErrorMessages())
}
