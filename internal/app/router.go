package app

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/google/uuid"

	"github.com/partnerhub-platform/api/internal/handlers"
	"github.com/partnerhub-platform/api/internal/httpx"
	"github.com/partnerhub-platform/api/internal/middleware"
)

// NewRouter assembles the HTTP surface around an already-built handler
// set. Requests are validated against the OpenAPI document before they
// reach a handler.
func NewRouter(h *handlers.Server) (http.Handler, error) {
	specPath := h.Config.OpenAPISpecPath
	if _, err := os.Stat(specPath); err != nil {
		return nil, fmt.Errorf("openapi spec not found at %s: %w", specPath, err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(h.Config.Env))
	r.Use(middleware.CORS(h.Config.CORSAllowedOrigins))
	r.Use(middleware.Logging(h.Logger))
	r.Use(middleware.LimitBodyBytesWithOverrides(h.Config.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		{PathPrefix: "/imports/file", MaxBytes: h.Config.ImportMaxFileBytes},
	}))

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			requestID := w.Header().Get("X-Request-Id")
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: requestID,
			})
		},
	}))

	webhookLimiter := middleware.NewIPRateLimiterWithMaxEntries(120, time.Minute, h.Config.RateLimitMaxIPs)
	presignLimiter := middleware.NewIPRateLimiterWithMaxEntries(30, time.Minute, h.Config.RateLimitMaxIPs)

	api.Get("/health", h.GetHealth)

	api.Post("/imports/file", h.PostImportsFile)
	api.With(presignLimiter.Middleware("Too many presign requests")).Post("/imports/presign", h.PostImportsPresign)
	api.With(webhookLimiter.Middleware("Too many webhook deliveries")).Post("/v1/storage-webhooks", h.PostStorageWebhooks)

	api.Get("/import-audits", h.GetImportAudits)
	api.Get("/import-audits/stats", h.GetImportAuditsStats)
	api.Get("/import-audits/{auditId}", func(w http.ResponseWriter, r *http.Request) {
		auditID, err := uuid.Parse(chi.URLParam(r, "auditId"))
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "validation_error", "auditId must be a UUID", nil)
			return
		}
		h.GetImportAuditsId(w, r, openapi_types.UUID(auditID))
	})

	api.Get("/affiliates", h.GetAffiliates)
	api.Get("/dashboard/stats", h.GetDashboardStats)

	r.Mount("/api", api)
	return r, nil
}
