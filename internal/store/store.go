// Package store holds the hand-written pgx repositories. Each repository
// wraps the shared pool; SQL stays next to the method that runs it.
package store

import "github.com/jackc/pgx/v5/pgxpool"

// Stores bundles the repositories for injection into handlers and workers.
type Stores struct {
	Merchants    *MerchantStore
	Affiliates   *AffiliateStore
	ImportAudits *ImportAuditStore
}

func New(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Merchants:    &MerchantStore{pool: pool},
		Affiliates:   &AffiliateStore{pool: pool},
		ImportAudits: &ImportAuditStore{pool: pool},
	}
}
