package handlers

import (
	"net/http"
	"time"

	"github.com/partnerhub-platform/api/internal/httpx"
)

const topMerchantsLimit = 5

func (s *Server) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	affiliateCount, err := s.Stores.Affiliates.Count(ctx)
	if err != nil {
		s.dashboardError(w, r, err)
		return
	}
	merchantCount, err := s.Stores.Merchants.Count(ctx)
	if err != nil {
		s.dashboardError(w, r, err)
		return
	}
	totalCommissions, err := s.Stores.Affiliates.SumCommissions(ctx)
	if err != nil {
		s.dashboardError(w, r, err)
		return
	}
	averageCommission, err := s.Stores.Affiliates.AvgCommission(ctx)
	if err != nil {
		s.dashboardError(w, r, err)
		return
	}
	recentAffiliates, err := s.Stores.Affiliates.CountCreatedSince(ctx, time.Now().AddDate(0, -1, 0))
	if err != nil {
		s.dashboardError(w, r, err)
		return
	}
	topMerchants, err := s.Stores.Merchants.TopByAffiliateCount(ctx, topMerchantsLimit)
	if err != nil {
		s.dashboardError(w, r, err)
		return
	}

	type topMerchant struct {
		Slug           string `json:"slug"`
		Name           string `json:"name"`
		AffiliateCount int    `json:"affiliateCount"`
	}
	top := make([]topMerchant, 0, len(topMerchants))
	for _, entry := range topMerchants {
		top = append(top, topMerchant{
			Slug:           entry.Merchant.Slug,
			Name:           entry.Merchant.Name,
			AffiliateCount: entry.AffiliateCount,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"affiliateCount":          affiliateCount,
		"merchantCount":           merchantCount,
		"totalCommissions":        totalCommissions,
		"averageCommission":       averageCommission,
		"affiliatesLastMonth":     recentAffiliates,
		"topMerchantsByAffiliate": top,
	})
}

func (s *Server) dashboardError(w http.ResponseWriter, r *http.Request, err error) {
	s.Logger.ErrorContext(r.Context(), "dashboard stats failed", "error", err)
	httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load dashboard stats", nil)
}
