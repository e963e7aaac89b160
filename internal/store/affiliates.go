package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partnerhub-platform/api/internal/domain"
)

const pgUniqueViolation = "23505"

// AffiliateStore persists affiliates. Uniqueness on (merchant_id, email) is
// enforced by the database; unique violations surface as ErrEmailTaken so
// the import pipeline can report them as row rejections.
type AffiliateStore struct {
	pool *pgxpool.Pool
}

const affiliateColumns = `id, merchant_id, first_name, last_name, email, website_url, commissions_total, created_at, updated_at`

func scanAffiliate(row pgx.Row) (*domain.Affiliate, error) {
	var a domain.Affiliate
	err := row.Scan(
		&a.ID, &a.MerchantID, &a.FirstName, &a.LastName, &a.Email,
		&a.WebsiteURL, &a.CommissionsTotal, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AffiliateStore) FindByMerchantAndEmail(ctx context.Context, merchantID uuid.UUID, email string) (*domain.Affiliate, error) {
	query := `SELECT ` + affiliateColumns + ` FROM affiliates WHERE merchant_id = $1 AND email = $2`

	affiliate, err := scanAffiliate(s.pool.QueryRow(ctx, query, merchantID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find affiliate: %w", err)
	}
	return affiliate, nil
}

func (s *AffiliateStore) Create(ctx context.Context, affiliate *domain.Affiliate) error {
	const query = `
		INSERT INTO affiliates (merchant_id, first_name, last_name, email, website_url, commissions_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		affiliate.MerchantID, affiliate.FirstName, affiliate.LastName,
		affiliate.Email, affiliate.WebsiteURL, affiliate.CommissionsTotal,
	).Scan(&affiliate.ID, &affiliate.CreatedAt, &affiliate.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create affiliate: %w", err)
	}
	return nil
}

func (s *AffiliateStore) Update(ctx context.Context, affiliate *domain.Affiliate) error {
	const query = `
		UPDATE affiliates
		SET first_name = $2, last_name = $3, email = $4, website_url = $5,
		    commissions_total = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := s.pool.QueryRow(ctx, query,
		affiliate.ID, affiliate.FirstName, affiliate.LastName,
		affiliate.Email, affiliate.WebsiteURL, affiliate.CommissionsTotal,
	).Scan(&affiliate.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update affiliate: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ListAffiliatesParams filters the affiliate listing. Zero values mean the
// filter is off; MinCommission/MaxCommission use pointers so 0 is a valid
// bound.
type ListAffiliatesParams struct {
	Search        string
	MerchantSlug  string
	MinCommission *float64
	MaxCommission *float64
	Page          int
	PerPage       int
}

// AffiliateWithMerchant decorates an affiliate with its merchant for list
// payloads.
type AffiliateWithMerchant struct {
	domain.Affiliate
	MerchantSlug string
	MerchantName string
}

// List returns one page of affiliates plus the unpaginated match count.
func (s *AffiliateStore) List(ctx context.Context, params ListAffiliatesParams) ([]AffiliateWithMerchant, int, error) {
	where, args := affiliateFilters(params)

	countQuery := `SELECT count(*) FROM affiliates a JOIN merchants m ON m.id = a.merchant_id` + where
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count affiliates: %w", err)
	}

	query := `
		SELECT a.id, a.merchant_id, a.first_name, a.last_name, a.email,
		       a.website_url, a.commissions_total, a.created_at, a.updated_at,
		       m.slug, m.name
		FROM affiliates a
		JOIN merchants m ON m.id = a.merchant_id` + where + fmt.Sprintf(`
		ORDER BY a.created_at DESC, a.id
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	args = append(args, params.PerPage, (params.Page-1)*params.PerPage)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list affiliates: %w", err)
	}
	defer rows.Close()

	var out []AffiliateWithMerchant
	for rows.Next() {
		var entry AffiliateWithMerchant
		if err := rows.Scan(
			&entry.ID, &entry.MerchantID, &entry.FirstName, &entry.LastName, &entry.Email,
			&entry.WebsiteURL, &entry.CommissionsTotal, &entry.CreatedAt, &entry.UpdatedAt,
			&entry.MerchantSlug, &entry.MerchantName,
		); err != nil {
			return nil, 0, fmt.Errorf("scan affiliate: %w", err)
		}
		out = append(out, entry)
	}
	return out, total, rows.Err()
}

func affiliateFilters(params ListAffiliatesParams) (string, []any) {
	var clauses []string
	var args []any

	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(a.first_name ILIKE $%d OR a.last_name ILIKE $%d OR a.email ILIKE $%d)", n, n, n))
	}
	if params.MerchantSlug != "" {
		args = append(args, params.MerchantSlug)
		clauses = append(clauses, fmt.Sprintf("lower(m.slug) = lower($%d)", len(args)))
	}
	if params.MinCommission != nil {
		args = append(args, *params.MinCommission)
		clauses = append(clauses, fmt.Sprintf("a.commissions_total >= $%d", len(args)))
	}
	if params.MaxCommission != nil {
		args = append(args, *params.MaxCommission)
		clauses = append(clauses, fmt.Sprintf("a.commissions_total <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *AffiliateStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM affiliates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count affiliates: %w", err)
	}
	return count, nil
}

func (s *AffiliateStore) SumCommissions(ctx context.Context) (float64, error) {
	var sum float64
	if err := s.pool.QueryRow(ctx, `SELECT coalesce(sum(commissions_total), 0) FROM affiliates`).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum commissions: %w", err)
	}
	return sum, nil
}

func (s *AffiliateStore) AvgCommission(ctx context.Context) (float64, error) {
	var avg float64
	if err := s.pool.QueryRow(ctx, `SELECT coalesce(avg(commissions_total), 0) FROM affiliates`).Scan(&avg); err != nil {
		return 0, fmt.Errorf("average commission: %w", err)
	}
	return avg, nil
}

func (s *AffiliateStore) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM affiliates WHERE created_at >= $1`, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent affiliates: %w", err)
	}
	return count, nil
}
