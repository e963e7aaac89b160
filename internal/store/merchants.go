package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partnerhub-platform/api/internal/domain"
)

// MerchantStore reads merchant reference data. Writes happen only through
// Upsert, which the seed binary uses.
type MerchantStore struct {
	pool *pgxpool.Pool
}

func (s *MerchantStore) GetBySlug(ctx context.Context, slug string) (*domain.Merchant, error) {
	const query = `
		SELECT id, slug, name, created_at, updated_at
		FROM merchants
		WHERE lower(slug) = lower($1)`

	var m domain.Merchant
	err := s.pool.QueryRow(ctx, query, slug).Scan(&m.ID, &m.Slug, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get merchant by slug: %w", err)
	}
	return &m, nil
}

// Upsert inserts a merchant or refreshes its name when the slug exists.
func (s *MerchantStore) Upsert(ctx context.Context, slug, name string) (*domain.Merchant, error) {
	const query = `
		INSERT INTO merchants (slug, name)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING id, slug, name, created_at, updated_at`

	var m domain.Merchant
	err := s.pool.QueryRow(ctx, query, slug, name).Scan(&m.ID, &m.Slug, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert merchant %q: %w", slug, err)
	}
	return &m, nil
}

func (s *MerchantStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM merchants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count merchants: %w", err)
	}
	return count, nil
}

// MerchantAffiliateCount pairs a merchant with its affiliate volume for the
// dashboard top list.
type MerchantAffiliateCount struct {
	Merchant       domain.Merchant
	AffiliateCount int
}

func (s *MerchantStore) TopByAffiliateCount(ctx context.Context, limit int) ([]MerchantAffiliateCount, error) {
	const query = `
		SELECT m.id, m.slug, m.name, m.created_at, m.updated_at, count(a.id) AS affiliate_count
		FROM merchants m
		LEFT JOIN affiliates a ON a.merchant_id = m.id
		GROUP BY m.id
		ORDER BY affiliate_count DESC, m.name ASC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top merchants: %w", err)
	}
	defer rows.Close()

	var out []MerchantAffiliateCount
	for rows.Next() {
		var entry MerchantAffiliateCount
		if err := rows.Scan(
			&entry.Merchant.ID, &entry.Merchant.Slug, &entry.Merchant.Name,
			&entry.Merchant.CreatedAt, &entry.Merchant.UpdatedAt, &entry.AffiliateCount,
		); err != nil {
			return nil, fmt.Errorf("scan top merchant: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
