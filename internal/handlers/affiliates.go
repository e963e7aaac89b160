package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partnerhub-platform/api/internal/httpx"
	"github.com/partnerhub-platform/api/internal/store"
)

type affiliateResponse struct {
	ID               uuid.UUID `json:"id"`
	MerchantSlug     string    `json:"merchantSlug"`
	MerchantName     string    `json:"merchantName"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	WebsiteURL       *string   `json:"websiteUrl"`
	CommissionsTotal float64   `json:"commissionsTotal"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (s *Server) GetAffiliates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, perPage, err := pagination(query.Get("page"), query.Get("perPage"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	params := store.ListAffiliatesParams{
		Search:       strings.TrimSpace(query.Get("search")),
		MerchantSlug: strings.TrimSpace(query.Get("merchant")),
		Page:         page,
		PerPage:      perPage,
	}
	if raw := strings.TrimSpace(query.Get("minCommission")); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "minCommission must be a number", nil)
			return
		}
		params.MinCommission = &min
	}
	if raw := strings.TrimSpace(query.Get("maxCommission")); raw != "" {
		max, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "maxCommission must be a number", nil)
			return
		}
		params.MaxCommission = &max
	}

	affiliates, total, err := s.Stores.Affiliates.List(r.Context(), params)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "list affiliates failed", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load affiliates", nil)
		return
	}

	items := make([]affiliateResponse, 0, len(affiliates))
	for _, entry := range affiliates {
		items = append(items, affiliateResponse{
			ID:               entry.ID,
			MerchantSlug:     entry.MerchantSlug,
			MerchantName:     entry.MerchantName,
			FirstName:        entry.FirstName,
			LastName:         entry.LastName,
			Email:            entry.Email,
			WebsiteURL:       entry.WebsiteURL,
			CommissionsTotal: entry.CommissionsTotal,
			CreatedAt:        entry.CreatedAt.UTC(),
			UpdatedAt:        entry.UpdatedAt.UTC(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"affiliates": items,
		"meta":       newListMeta(page, perPage, total),
	})
}
