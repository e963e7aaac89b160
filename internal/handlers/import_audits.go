package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/partnerhub-platform/api/internal/domain"
	"github.com/partnerhub-platform/api/internal/httpx"
	"github.com/partnerhub-platform/api/internal/store"
)

const (
	defaultPerPage = 12
	maxPerPage     = 100
)

type importAuditResponse struct {
	ID                  uuid.UUID  `json:"id"`
	Path                string     `json:"path"`
	Filename            string     `json:"filename"`
	ImportType          string     `json:"importType"`
	Status              string     `json:"status"`
	TotalSuccessfulRows int        `json:"totalSuccessfulRows"`
	TotalFailedRows     int        `json:"totalFailedRows"`
	ErrorDetails        []string   `json:"errorDetails"`
	ProcessedAt         *time.Time `json:"processedAt"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

func mapImportAudit(audit domain.ImportAudit) importAuditResponse {
	details := audit.ErrorDetails
	if details == nil {
		details = []string{}
	}
	return importAuditResponse{
		ID:                  audit.ID,
		Path:                audit.Path,
		Filename:            audit.Filename,
		ImportType:          audit.ImportType,
		Status:              audit.Status,
		TotalSuccessfulRows: audit.TotalSuccessfulRows,
		TotalFailedRows:     audit.TotalFailedRows,
		ErrorDetails:        details,
		ProcessedAt:         audit.ProcessedAt,
		CreatedAt:           audit.CreatedAt.UTC(),
		UpdatedAt:           audit.UpdatedAt.UTC(),
	}
}

type listMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

func newListMeta(page, perPage, totalCount int) listMeta {
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + perPage - 1) / perPage
	}
	return listMeta{Page: page, PerPage: perPage, TotalCount: totalCount, TotalPages: totalPages}
}

func (s *Server) GetImportAudits(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	status := strings.TrimSpace(query.Get("status"))
	if status != "" && !validStatus(status) {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "Unknown status filter", nil)
		return
	}

	page, perPage, err := pagination(query.Get("page"), query.Get("perPage"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	params := store.ListAuditsParams{
		Status:  status,
		Search:  strings.TrimSpace(query.Get("search")),
		Page:    page,
		PerPage: perPage,
	}
	if from, ok, err := parseDate(query.Get("from")); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "from must be a YYYY-MM-DD date", nil)
		return
	} else if ok {
		params.From = &from
	}
	if to, ok, err := parseDate(query.Get("to")); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "to must be a YYYY-MM-DD date", nil)
		return
	} else if ok {
		end := to.Add(24*time.Hour - time.Nanosecond)
		params.To = &end
	}

	audits, total, err := s.Stores.ImportAudits.List(r.Context(), params)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "list import audits failed", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import audits", nil)
		return
	}

	items := make([]importAuditResponse, 0, len(audits))
	for _, audit := range audits {
		items = append(items, mapImportAudit(audit))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"importAudits": items,
		"meta":         newListMeta(page, perPage, total),
	})
}

func (s *Server) GetImportAuditsId(w http.ResponseWriter, r *http.Request, auditId openapi_types.UUID) {
	audit, err := s.Stores.ImportAudits.GetByID(r.Context(), uuid.UUID(auditId))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "import_audit_not_found", "Import audit was not found", nil)
			return
		}
		s.Logger.ErrorContext(r.Context(), "load import audit failed", "audit_id", auditId, "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import audit", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mapImportAudit(*audit))
}

func (s *Server) GetImportAuditsStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Stores.ImportAudits.CountByStatus(r.Context())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "audit stats failed", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import stats", nil)
		return
	}
	successful, failed, err := s.Stores.ImportAudits.SumRows(r.Context())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "audit stats failed", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import stats", nil)
		return
	}

	totalImports := 0
	for _, count := range counts {
		totalImports += count
	}
	byStatus := make(map[string]int, len(domain.ValidAuditStatuses))
	for _, status := range domain.ValidAuditStatuses {
		byStatus[status] = counts[status]
	}

	successRate := 0.0
	if successful+failed > 0 {
		successRate = float64(successful) / float64(successful+failed)
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"totalImports":        totalImports,
		"byStatus":            byStatus,
		"totalSuccessfulRows": successful,
		"totalFailedRows":     failed,
		"successRate":         successRate,
	})
}

func validStatus(status string) bool {
	for _, candidate := range domain.ValidAuditStatuses {
		if status == candidate {
			return true
		}
	}
	return false
}

func pagination(pageRaw, perPageRaw string) (page, perPage int, err error) {
	page, perPage = 1, defaultPerPage
	if strings.TrimSpace(pageRaw) != "" {
		page, err = strconv.Atoi(pageRaw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
	}
	if strings.TrimSpace(perPageRaw) != "" {
		perPage, err = strconv.Atoi(perPageRaw)
		if err != nil || perPage < 1 {
			return 0, 0, errors.New("perPage must be a positive integer")
		}
		if perPage > maxPerPage {
			perPage = maxPerPage
		}
	}
	return page, perPage, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, true, nil
}
