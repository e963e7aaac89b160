package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/partnerhub-platform/api/internal/httpx"
	"github.com/partnerhub-platform/api/internal/importer"
)

type importResultResponse struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

func importResultPayload(result *importer.Result) importResultResponse {
	errors := result.ErrorMessages()
	if errors == nil {
		errors = []string{}
	}
	return importResultResponse{
		Total:   result.Total,
		Created: result.Created,
		Updated: result.Updated,
		Skipped: result.Skipped,
		Errors:  errors,
	}
}

// PostImportsFile is the synchronous path: the file arrives as multipart
// form data, every row is reconciled before the response is written, and
// the audit record is finalized in the same request.
func (s *Server) PostImportsFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.Config.ImportMaxFileBytes); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed multipart body", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "file field is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Failed to read uploaded file", nil)
		return
	}

	filename := sanitizeFilename(header.Filename)
	audit, err := s.Stores.ImportAudits.Create(r.Context(), "direct_uploads/"+uuid.NewString()+"/"+filename, filename)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "create import audit failed", "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to record import", nil)
		return
	}

	reconciler := importer.NewReconciler(s.Stores.Merchants, s.Stores.Affiliates, s.Logger)
	orchestrator := importer.NewOrchestrator(&importer.InlineDispatcher{Reconciler: reconciler}, s.Logger)
	result := orchestrator.Run(r.Context(), data)

	if err := s.Stores.ImportAudits.Finalize(r.Context(), audit.ID, result); err != nil {
		s.Logger.ErrorContext(r.Context(), "finalize import audit failed", "audit_id", audit.ID, "error", err)
	}

	status := http.StatusOK
	if len(result.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	httpx.WriteJSON(w, status, importResultPayload(result))
}

type presignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type presignResponse struct {
	DirectUpload presignUpload `json:"directUpload"`
	Key          string        `json:"key"`
	AuditID      uuid.UUID     `json:"auditId"`
}

type presignUpload struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// PostImportsPresign starts the asynchronous path: issue a short-lived
// direct-upload URL and open a pending audit keyed by the object path, so
// the storage webhook can resolve the upload back to this import.
func (s *Server) PostImportsPresign(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Malformed JSON body", nil)
		return
	}
	filename := sanitizeFilename(req.Filename)
	if filename == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "filename is required", nil)
		return
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "text/csv"
	}

	key := "csv_uploads/" + uuid.NewString() + "/" + filename
	upload, err := s.Storage.PresignPut(key, contentType, s.Config.PresignExpiry)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "presign upload failed", "key", key, "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to presign upload", nil)
		return
	}

	audit, err := s.Stores.ImportAudits.Create(r.Context(), key, filename)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "create import audit failed", "key", key, "error", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to record import", nil)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, presignResponse{
		DirectUpload: presignUpload{URL: upload.URL, Headers: upload.Headers},
		Key:          key,
		AuditID:      audit.ID,
	})
}

// sanitizeFilename keeps the base name only; uploads must not steer the
// object key out of its prefix.
func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}
