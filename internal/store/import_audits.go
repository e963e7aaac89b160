package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partnerhub-platform/api/internal/domain"
	"github.com/partnerhub-platform/api/internal/importer"
)

// ImportAuditStore persists the import audit lifecycle. error_details is a
// jsonb array appended in arrival order; counter updates are single
// statements so concurrent row workers serialize on the row lock.
type ImportAuditStore struct {
	pool *pgxpool.Pool
}

const auditColumns = `id, path, filename, import_type, status, total_successful_rows, total_failed_rows, error_details, processed_at, created_at, updated_at`

func scanAudit(row pgx.Row) (*domain.ImportAudit, error) {
	var audit domain.ImportAudit
	var details []byte
	err := row.Scan(
		&audit.ID, &audit.Path, &audit.Filename, &audit.ImportType, &audit.Status,
		&audit.TotalSuccessfulRows, &audit.TotalFailedRows, &details,
		&audit.ProcessedAt, &audit.CreatedAt, &audit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &audit.ErrorDetails); err != nil {
			return nil, fmt.Errorf("decode error details: %w", err)
		}
	}
	return &audit, nil
}

// Create opens a pending audit for an upload path.
func (s *ImportAuditStore) Create(ctx context.Context, path, filename string) (*domain.ImportAudit, error) {
	const query = `
		INSERT INTO import_audits (path, filename, import_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + auditColumns

	audit, err := scanAudit(s.pool.QueryRow(ctx, query, path, filename, domain.ImportTypeAffiliate, domain.AuditStatusPending))
	if err != nil {
		return nil, fmt.Errorf("create import audit: %w", err)
	}
	return audit, nil
}

func (s *ImportAuditStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImportAudit, error) {
	audit, err := scanAudit(s.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM import_audits WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import audit: %w", err)
	}
	return audit, nil
}

func (s *ImportAuditStore) GetByPath(ctx context.Context, path string) (*domain.ImportAudit, error) {
	audit, err := scanAudit(s.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM import_audits WHERE path = $1`, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import audit by path: %w", err)
	}
	return audit, nil
}

// MarkProcessing moves a pending audit to processing. An audit already
// past pending is left alone, so replayed file jobs are harmless.
func (s *ImportAuditStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE import_audits
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`

	if _, err := s.pool.Exec(ctx, query, id, domain.AuditStatusProcessing, domain.AuditStatusPending); err != nil {
		return fmt.Errorf("mark import audit processing: %w", err)
	}
	return nil
}

// ApplyRowOutcome folds one row result into the audit: bump exactly one
// counter, append the row's error messages, and move the status to its
// terminal value on the first applied row. Once terminal the status is
// frozen; later rows only touch the counters and error details. One
// UPDATE, so concurrent workers serialize on the row lock and no
// increment is lost.
func (s *ImportAuditStore) ApplyRowOutcome(ctx context.Context, id uuid.UUID, succeeded bool, messages []string) error {
	successDelta, failedDelta := 1, 0
	if !succeeded {
		successDelta, failedDelta = 0, 1
	}
	details, err := encodeDetails(messages)
	if err != nil {
		return err
	}

	const query = `
		UPDATE import_audits
		SET total_successful_rows = total_successful_rows + $2,
		    total_failed_rows = total_failed_rows + $3,
		    error_details = error_details || $4::jsonb,
		    status = CASE WHEN status IN ('pending', 'processing')
		        THEN CASE WHEN total_failed_rows + $3 > 0 THEN 'processed_with_errors' ELSE 'processed' END
		        ELSE status END,
		    processed_at = CASE WHEN status IN ('pending', 'processing') THEN now() ELSE processed_at END,
		    updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, successDelta, failedDelta, details)
	if err != nil {
		return fmt.Errorf("apply row outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed terminates the audit with the given errors recorded. The
// status moves to failed regardless of how far processing got.
func (s *ImportAuditStore) MarkFailed(ctx context.Context, id uuid.UUID, messages []string) error {
	details, err := encodeDetails(messages)
	if err != nil {
		return err
	}

	const query = `
		UPDATE import_audits
		SET status = $2,
		    error_details = error_details || $3::jsonb,
		    processed_at = coalesce(processed_at, now()),
		    updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, domain.AuditStatusFailed, details)
	if err != nil {
		return fmt.Errorf("mark import audit failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Finalize writes a completed result onto the audit in one statement. Used
// by the synchronous upload path and for files with no data rows.
func (s *ImportAuditStore) Finalize(ctx context.Context, id uuid.UUID, result *importer.Result) error {
	status := domain.AuditStatusProcessed
	if len(result.Errors) > 0 {
		status = domain.AuditStatusFailed
	}
	details, err := encodeDetails(result.ErrorMessages())
	if err != nil {
		return err
	}

	const query = `
		UPDATE import_audits
		SET status = $2,
		    total_successful_rows = $3,
		    total_failed_rows = $4,
		    error_details = error_details || $5::jsonb,
		    processed_at = now(),
		    updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, status, result.SuccessfulRows(), result.RejectedRows(), details)
	if err != nil {
		return fmt.Errorf("finalize import audit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeDetails(messages []string) ([]byte, error) {
	if len(messages) == 0 {
		return []byte("[]"), nil
	}
	details, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode error details: %w", err)
	}
	return details, nil
}

// ListAuditsParams filters the audit listing.
type ListAuditsParams struct {
	Status  string
	Search  string
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// List returns one page of audits, newest first, plus the unpaginated
// match count.
func (s *ImportAuditStore) List(ctx context.Context, params ListAuditsParams) ([]domain.ImportAudit, int, error) {
	var clauses []string
	var args []any

	if params.Status != "" {
		args = append(args, params.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		clauses = append(clauses, fmt.Sprintf("filename ILIKE $%d", len(args)))
	}
	if params.From != nil {
		args = append(args, *params.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if params.To != nil {
		args = append(args, *params.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM import_audits`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import audits: %w", err)
	}

	query := `SELECT ` + auditColumns + ` FROM import_audits` + where + fmt.Sprintf(`
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.PerPage, (params.Page-1)*params.PerPage)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list import audits: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportAudit
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan import audit: %w", err)
		}
		out = append(out, *audit)
	}
	return out, total, rows.Err()
}

// CountByStatus returns audit totals keyed by status.
func (s *ImportAuditStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM import_audits GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count audits by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// SumRows returns the grand totals of successful and failed rows across
// all audits.
func (s *ImportAuditStore) SumRows(ctx context.Context) (successful, failed int, err error) {
	const query = `
		SELECT coalesce(sum(total_successful_rows), 0), coalesce(sum(total_failed_rows), 0)
		FROM import_audits`
	if err := s.pool.QueryRow(ctx, query).Scan(&successful, &failed); err != nil {
		return 0, 0, fmt.Errorf("sum audit rows: %w", err)
	}
	return successful, failed, nil
}
