package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/partnerhub-platform/api/internal/config"
	"github.com/partnerhub-platform/api/internal/domain"
	"github.com/partnerhub-platform/api/internal/handlers"
	"github.com/partnerhub-platform/api/internal/objectstore"
	"github.com/partnerhub-platform/api/internal/store"
)

type fakeQueue struct {
	payloads [][]byte
}

func (f *fakeQueue) EnqueueFile(_ context.Context, eventPayload []byte) error {
	f.payloads = append(f.payloads, eventPayload)
	return nil
}

type fakePresigner struct{}

func (fakePresigner) PresignPut(key, contentType string, _ time.Duration) (objectstore.PresignedUpload, error) {
	return objectstore.PresignedUpload{
		URL:     "http://storage.test/affiliate-imports/" + key,
		Headers: map[string]string{"Content-Type": contentType},
	}, nil
}

type testEnv struct {
	pool   *pgxpool.Pool
	stores *store.Stores
	queue  *fakeQueue
	router http.Handler
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect test db: %v", err)
	}
	t.Cleanup(pool.Close)

	resetSchema(t, ctx, pool, databaseURL)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		Addr:               ":0",
		DatabaseURL:        databaseURL,
		Env:                "test",
		OpenAPISpecPath:    filepath.Join("..", "..", "openapi.yaml"),
		APIMaxBodyBytes:    2 << 20,
		ImportMaxFileBytes: 25 << 20,
		PresignExpiry:      10 * time.Minute,
		RateLimitMaxIPs:    128,
	}

	stores := store.New(pool)
	queue := &fakeQueue{}
	h := handlers.NewServer(cfg, stores, queue, fakePresigner{}, logger)
	router, err := NewRouter(h)
	if err != nil {
		t.Fatalf("create router: %v", err)
	}

	seedMerchants(t, ctx, stores)
	return testEnv{pool: pool, stores: stores, queue: queue, router: router}
}

func resetSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool, databaseURL string) {
	t.Helper()

	if _, err := pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		t.Fatalf("open migration connection: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("set goose dialect: %v", err)
	}
	if err := goose.Up(db, filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
}

func seedMerchants(t *testing.T, ctx context.Context, stores *store.Stores) {
	t.Helper()
	for _, m := range []struct{ slug, name string }{
		{"amazon", "Amazon"},
		{"zalando", "Zalando"},
	} {
		if _, err := stores.Merchants.Upsert(ctx, m.slug, m.name); err != nil {
			t.Fatalf("seed merchant %s: %v", m.slug, err)
		}
	}
}

func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func request(t *testing.T, router http.Handler, method, path string, body io.Reader, contentType string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	resBody, _ := io.ReadAll(rec.Result().Body)
	return rec.Code, resBody
}

type importResultBody struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

func TestImportFileCreatesAndSkips(t *testing.T) {
	env := setupTestEnv(t)

	csv := strings.Join([]string{
		"merchant_slug,first_name,last_name,email,website_url,commissions_total",
		"amazon,Ana,Lee,ana@example.com,ana.example.com,\"1.234,56\"",
		"zalando,Bob,Ray,BOB@Example.com,,19.99",
	}, "\n")

	body, contentType := multipartCSV(t, "affiliates.csv", csv)
	status, respBody := request(t, env.router, http.MethodPost, "/api/imports/file", body, contentType)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, respBody)
	}

	var result importResultBody
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.Total != 2 || result.Created != 2 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	// Replaying the identical file must not duplicate anything.
	body, contentType = multipartCSV(t, "affiliates.csv", csv)
	status, respBody = request(t, env.router, http.MethodPost, "/api/imports/file", body, contentType)
	if status != http.StatusOK {
		t.Fatalf("expected 200 replay, got %d (%s)", status, respBody)
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("parse replay result: %v", err)
	}
	if result.Skipped != 2 || result.Created != 0 {
		t.Fatalf("expected replay to skip both rows, got %+v", result)
	}

	var commission float64
	if err := env.pool.QueryRow(context.Background(),
		`SELECT commissions_total FROM affiliates WHERE email = 'ana@example.com'`).Scan(&commission); err != nil {
		t.Fatalf("load affiliate: %v", err)
	}
	if commission != 1234.56 {
		t.Fatalf("expected locale-parsed commission 1234.56, got %v", commission)
	}
}

func TestImportFileReportsRowErrors(t *testing.T) {
	env := setupTestEnv(t)

	csv := strings.Join([]string{
		"merchant_slug,first_name,last_name,email",
		"amazon,Ana,Lee,ana@example.com",
		"walmart,Bob,Ray,bob@example.com",
	}, "\n")

	body, contentType := multipartCSV(t, "affiliates.csv", csv)
	status, respBody := request(t, env.router, http.MethodPost, "/api/imports/file", body, contentType)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", status, respBody)
	}

	var result importResultBody
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.Total != 2 || result.Created != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0] != "Line 3: Unknown merchant slug 'walmart'" {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
}

func TestImportFileRejectsMissingHeaders(t *testing.T) {
	env := setupTestEnv(t)

	body, contentType := multipartCSV(t, "broken.csv", "merchant_slug,first_name\namazon,Ana\n")
	status, respBody := request(t, env.router, http.MethodPost, "/api/imports/file", body, contentType)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", status, respBody)
	}
	if !strings.Contains(string(respBody), "Missing required headers: last_name, email") {
		t.Fatalf("expected missing header error, got %s", respBody)
	}
}

func TestPresignOpensPendingAudit(t *testing.T) {
	env := setupTestEnv(t)

	payload := strings.NewReader(`{"filename":"q3 report.csv","contentType":"text/csv"}`)
	status, respBody := request(t, env.router, http.MethodPost, "/api/imports/presign", payload, "application/json")
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", status, respBody)
	}

	var resp struct {
		DirectUpload struct {
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		} `json:"directUpload"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		t.Fatalf("parse presign response: %v", err)
	}
	if !strings.HasPrefix(resp.Key, "csv_uploads/") || !strings.HasSuffix(resp.Key, "/q3 report.csv") {
		t.Fatalf("unexpected object key %q", resp.Key)
	}
	if resp.DirectUpload.Headers["Content-Type"] != "text/csv" {
		t.Fatalf("unexpected upload headers %v", resp.DirectUpload.Headers)
	}

	audit, err := env.stores.ImportAudits.GetByPath(context.Background(), resp.Key)
	if err != nil {
		t.Fatalf("load audit by path: %v", err)
	}
	if audit.Status != "pending" || audit.Filename != "q3 report.csv" {
		t.Fatalf("unexpected audit %+v", audit)
	}
}

func TestImportAuditListing(t *testing.T) {
	env := setupTestEnv(t)

	csv := "merchant_slug,first_name,last_name,email\namazon,Ana,Lee,ana@example.com\n"
	body, contentType := multipartCSV(t, "listing.csv", csv)
	if status, respBody := request(t, env.router, http.MethodPost, "/api/imports/file", body, contentType); status != http.StatusOK {
		t.Fatalf("import expected 200, got %d (%s)", status, respBody)
	}

	status, respBody := request(t, env.router, http.MethodGet, "/api/import-audits?status=processed", nil, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, respBody)
	}

	var listing struct {
		ImportAudits []struct {
			ID                  string `json:"id"`
			Filename            string `json:"filename"`
			Status              string `json:"status"`
			TotalSuccessfulRows int    `json:"totalSuccessfulRows"`
		} `json:"importAudits"`
		Meta struct {
			TotalCount int `json:"totalCount"`
			PerPage    int `json:"perPage"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(respBody, &listing); err != nil {
		t.Fatalf("parse listing: %v", err)
	}
	if listing.Meta.TotalCount != 1 || len(listing.ImportAudits) != 1 {
		t.Fatalf("unexpected listing %+v", listing)
	}
	audit := listing.ImportAudits[0]
	if audit.Filename != "listing.csv" || audit.Status != "processed" || audit.TotalSuccessfulRows != 1 {
		t.Fatalf("unexpected audit %+v", audit)
	}

	status, respBody = request(t, env.router, http.MethodGet, "/api/import-audits/"+audit.ID, nil, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200 detail, got %d (%s)", status, respBody)
	}
}

func TestAffiliateListingFilters(t *testing.T) {
	env := setupTestEnv(t)

	csv := strings.Join([]string{
		"merchant_slug,first_name,last_name,email,commissions_total",
		"amazon,Ana,Lee,ana@example.com,100.00",
		"zalando,Bob,Ray,bob@example.com,5.00",
	}, "\n")
	body, contentType := multipartCSV(t, "affiliates.csv", csv)
	if status, respBody := request(t, env.router, http.MethodPost, "/api/imports/file", body, contentType); status != http.StatusOK {
		t.Fatalf("import expected 200, got %d (%s)", status, respBody)
	}

	status, respBody := request(t, env.router, http.MethodGet, "/api/affiliates?merchant=amazon&minCommission=50", nil, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, respBody)
	}

	var listing struct {
		Affiliates []struct {
			Email        string `json:"email"`
			MerchantSlug string `json:"merchantSlug"`
		} `json:"affiliates"`
		Meta struct {
			TotalCount int `json:"totalCount"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(respBody, &listing); err != nil {
		t.Fatalf("parse listing: %v", err)
	}
	if listing.Meta.TotalCount != 1 || len(listing.Affiliates) != 1 || listing.Affiliates[0].Email != "ana@example.com" {
		t.Fatalf("unexpected listing %+v", listing)
	}
}

func TestApplyRowOutcomeAuditTransitions(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	audits := env.stores.ImportAudits

	audit, err := audits.Create(ctx, "csv_uploads/abc/rows.csv", "rows.csv")
	if err != nil {
		t.Fatalf("create audit: %v", err)
	}
	if err := audits.MarkProcessing(ctx, audit.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	loaded, err := audits.GetByID(ctx, audit.ID)
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if loaded.Status != domain.AuditStatusProcessing {
		t.Fatalf("expected processing, got %q", loaded.Status)
	}

	// First applied row settles the status; a failure settles it with errors.
	if err := audits.ApplyRowOutcome(ctx, audit.ID, false, []string{"Line 2: Unknown merchant slug 'walmart'"}); err != nil {
		t.Fatalf("apply failed row: %v", err)
	}
	loaded, err = audits.GetByID(ctx, audit.ID)
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if loaded.Status != domain.AuditStatusProcessedWithErrors {
		t.Fatalf("expected processed_with_errors, got %q", loaded.Status)
	}
	if loaded.TotalSuccessfulRows != 0 || loaded.TotalFailedRows != 1 {
		t.Fatalf("expected counters 0/1, got %d/%d", loaded.TotalSuccessfulRows, loaded.TotalFailedRows)
	}
	if loaded.ProcessedAt == nil {
		t.Fatalf("first applied row must set processed_at")
	}

	// Later rows bump exactly one counter and never rewrite the status.
	if err := audits.ApplyRowOutcome(ctx, audit.ID, true, nil); err != nil {
		t.Fatalf("apply successful row: %v", err)
	}
	if err := audits.ApplyRowOutcome(ctx, audit.ID, false, []string{"Line 4: Email has already been taken"}); err != nil {
		t.Fatalf("apply second failed row: %v", err)
	}
	loaded, err = audits.GetByID(ctx, audit.ID)
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if loaded.Status != domain.AuditStatusProcessedWithErrors {
		t.Fatalf("settled status must not change, got %q", loaded.Status)
	}
	if loaded.TotalSuccessfulRows != 1 || loaded.TotalFailedRows != 2 {
		t.Fatalf("expected counters 1/2, got %d/%d", loaded.TotalSuccessfulRows, loaded.TotalFailedRows)
	}
	want := []string{"Line 2: Unknown merchant slug 'walmart'", "Line 4: Email has already been taken"}
	if len(loaded.ErrorDetails) != 2 || loaded.ErrorDetails[0] != want[0] || loaded.ErrorDetails[1] != want[1] {
		t.Fatalf("error details must append in arrival order, got %v", loaded.ErrorDetails)
	}

	// A clean first row settles on processed; a later failure cannot revert it.
	clean, err := audits.Create(ctx, "csv_uploads/def/rows.csv", "rows.csv")
	if err != nil {
		t.Fatalf("create audit: %v", err)
	}
	if err := audits.ApplyRowOutcome(ctx, clean.ID, true, nil); err != nil {
		t.Fatalf("apply successful row: %v", err)
	}
	if err := audits.ApplyRowOutcome(ctx, clean.ID, false, []string{"Line 3: Email is invalid"}); err != nil {
		t.Fatalf("apply failed row: %v", err)
	}
	loaded, err = audits.GetByID(ctx, clean.ID)
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if loaded.Status != domain.AuditStatusProcessed {
		t.Fatalf("status set by the first row must stay, got %q", loaded.Status)
	}
	if loaded.TotalSuccessfulRows != 1 || loaded.TotalFailedRows != 1 {
		t.Fatalf("expected counters 1/1, got %d/%d", loaded.TotalSuccessfulRows, loaded.TotalFailedRows)
	}

	if err := audits.ApplyRowOutcome(ctx, uuid.New(), true, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown audit, got %v", err)
	}
}

func TestApplyRowOutcomeConcurrentRows(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	audits := env.stores.ImportAudits

	audit, err := audits.Create(ctx, "csv_uploads/ghi/rows.csv", "rows.csv")
	if err != nil {
		t.Fatalf("create audit: %v", err)
	}
	if err := audits.MarkProcessing(ctx, audit.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	const successes, failures = 12, 4
	errs := make(chan error, successes+failures)
	var wg sync.WaitGroup
	for i := 0; i < successes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- audits.ApplyRowOutcome(ctx, audit.ID, true, nil)
		}()
	}
	for i := 0; i < failures; i++ {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			errs <- audits.ApplyRowOutcome(ctx, audit.ID, false, []string{fmt.Sprintf("Line %d: Email is invalid", line)})
		}(i + 2)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("apply row outcome: %v", err)
		}
	}

	loaded, err := audits.GetByID(ctx, audit.ID)
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if loaded.TotalSuccessfulRows != successes || loaded.TotalFailedRows != failures {
		t.Fatalf("increments lost: got %d/%d", loaded.TotalSuccessfulRows, loaded.TotalFailedRows)
	}
	if len(loaded.ErrorDetails) != failures {
		t.Fatalf("expected %d error details, got %v", failures, loaded.ErrorDetails)
	}
	if !loaded.Terminal() {
		t.Fatalf("audit must be settled after its first row, got %q", loaded.Status)
	}
	if loaded.Status != domain.AuditStatusProcessed && loaded.Status != domain.AuditStatusProcessedWithErrors {
		t.Fatalf("unexpected settled status %q", loaded.Status)
	}
}

func TestWebhookQueuesNotification(t *testing.T) {
	env := setupTestEnv(t)

	body := strings.NewReader(`{"Type":"Notification","Message":"{\"Records\":[{\"s3\":{\"object\":{\"key\":\"csv_uploads/abc/report.csv\"}}}]}"}`)
	status, respBody := request(t, env.router, http.MethodPost, "/api/v1/storage-webhooks", body, "application/json")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, respBody)
	}
	if len(env.queue.payloads) != 1 {
		t.Fatalf("expected one queued payload, got %d", len(env.queue.payloads))
	}
}
