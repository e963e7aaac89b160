package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/partnerhub-platform/api/internal/domain"
)

// MerchantStore resolves merchant slugs. Merchants are reference data; the
// import never creates them.
type MerchantStore interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Merchant, error)
}

// AffiliateStore persists affiliates keyed by (merchant, email).
type AffiliateStore interface {
	FindByMerchantAndEmail(ctx context.Context, merchantID uuid.UUID, email string) (*domain.Affiliate, error)
	Create(ctx context.Context, affiliate *domain.Affiliate) error
	Update(ctx context.Context, affiliate *domain.Affiliate) error
}

// Reconciler turns one normalized row into an affiliate upsert. It is
// stateless across rows, so the inline and queued models share it.
type Reconciler struct {
	merchants  MerchantStore
	affiliates AffiliateStore
	logger     *slog.Logger
}

func NewReconciler(merchants MerchantStore, affiliates AffiliateStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{merchants: merchants, affiliates: affiliates, logger: logger}
}

// ProcessRow reconciles one row against the store and records the outcome
// in result. Total is counted before any validation so rejected rows are
// still part of the accounting. line is the 1-indexed source line.
func (rc *Reconciler) ProcessRow(ctx context.Context, row Row, line int, result *Result) {
	result.Total++

	normalized := NormalizeRow(row)

	merchant, err := rc.merchants.GetBySlug(ctx, normalized.MerchantSlug)
	if errors.Is(err, domain.ErrNotFound) {
		result.AddError(fmt.Sprintf("Line %d: Unknown merchant slug '%s'", line, normalized.MerchantSlug), line)
		return
	}
	if err != nil {
		rc.unexpected(ctx, line, err, result)
		return
	}

	affiliate, err := rc.affiliates.FindByMerchantAndEmail(ctx, merchant.ID, normalized.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		rc.unexpected(ctx, line, err, result)
		return
	}
	if affiliate == nil {
		affiliate = &domain.Affiliate{MerchantID: merchant.ID, Email: normalized.Email}
	}

	isNew := affiliate.IsNew()
	candidate := *affiliate
	candidate.FirstName = normalized.FirstName
	candidate.LastName = normalized.LastName
	candidate.Email = normalized.Email
	candidate.WebsiteURL = websiteURLPtr(normalized.WebsiteURL)
	candidate.CommissionsTotal = normalized.CommissionsTotal

	if !isNew && affiliate.SameAttributes(candidate) {
		result.Skipped++
		return
	}

	if messages := candidate.Validate(); len(messages) > 0 {
		result.AddError(fmt.Sprintf("Line %d: %s", line, strings.Join(messages, ", ")), line)
		return
	}

	if isNew {
		err = rc.affiliates.Create(ctx, &candidate)
	} else {
		err = rc.affiliates.Update(ctx, &candidate)
	}
	if errors.Is(err, domain.ErrEmailTaken) {
		result.AddError(fmt.Sprintf("Line %d: Email has already been taken", line), line)
		return
	}
	if err != nil {
		rc.unexpected(ctx, line, err, result)
		return
	}

	if isNew {
		result.Created++
	} else {
		result.Updated++
	}
}

func (rc *Reconciler) unexpected(ctx context.Context, line int, err error, result *Result) {
	rc.logger.ErrorContext(ctx, "row reconciliation failed", "line", line, "error", err)
	result.AddError(fmt.Sprintf("Line %d: Unexpected error - %v", line, err), line)
}

func websiteURLPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
