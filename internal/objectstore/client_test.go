package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testClient(endpoint string) *Client {
	c := New(Config{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		Bucket:          "affiliate-imports",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	c.now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func TestPresignPut(t *testing.T) {
	client := testClient("http://localhost:9000")

	upload, err := client.PresignPut("csv_uploads/abc/report.csv", "text/csv", 10*time.Minute)
	if err != nil {
		t.Fatalf("PresignPut failed: %v", err)
	}

	parsed, err := url.Parse(upload.URL)
	if err != nil {
		t.Fatalf("presigned URL is not parseable: %v", err)
	}
	if parsed.Path != "/affiliate-imports/csv_uploads/abc/report.csv" {
		t.Fatalf("unexpected object path %q", parsed.Path)
	}

	query := parsed.Query()
	if query.Get("X-Amz-Algorithm") != "AWS4-HMAC-SHA256" {
		t.Fatalf("missing signing algorithm, got %q", query.Get("X-Amz-Algorithm"))
	}
	if query.Get("X-Amz-Expires") != "600" {
		t.Fatalf("expected 600 second expiry, got %q", query.Get("X-Amz-Expires"))
	}
	if query.Get("X-Amz-Date") != "20240501T120000Z" {
		t.Fatalf("unexpected signing date %q", query.Get("X-Amz-Date"))
	}
	if !strings.HasPrefix(query.Get("X-Amz-Credential"), "AKIDEXAMPLE/20240501/us-east-1/s3/aws4_request") {
		t.Fatalf("unexpected credential %q", query.Get("X-Amz-Credential"))
	}
	if len(query.Get("X-Amz-Signature")) != 64 {
		t.Fatalf("expected hex sha256 signature, got %q", query.Get("X-Amz-Signature"))
	}
	if upload.Headers["Content-Type"] != "text/csv" {
		t.Fatalf("expected content type header passthrough, got %v", upload.Headers)
	}
}

func TestPresignPutIsDeterministic(t *testing.T) {
	client := testClient("http://localhost:9000")

	first, err := client.PresignPut("csv_uploads/abc/report.csv", "text/csv", 10*time.Minute)
	if err != nil {
		t.Fatalf("PresignPut failed: %v", err)
	}
	second, err := client.PresignPut("csv_uploads/abc/report.csv", "text/csv", 10*time.Minute)
	if err != nil {
		t.Fatalf("PresignPut failed: %v", err)
	}
	if first.URL != second.URL {
		t.Fatalf("same inputs and clock must produce the same URL")
	}
}

func TestGetSignsRequest(t *testing.T) {
	var gotAuth, gotPath, gotSha string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotSha = r.Header.Get("X-Amz-Content-Sha256")
		_, _ = w.Write([]byte("merchant_slug,first_name,last_name,email\n"))
	}))
	defer server.Close()

	client := testClient(server.URL)
	data, err := client.Get(context.Background(), "csv_uploads/abc/report.csv")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !strings.HasPrefix(string(data), "merchant_slug") {
		t.Fatalf("unexpected body %q", data)
	}
	if gotPath != "/affiliate-imports/csv_uploads/abc/report.csv" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/") {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if !strings.Contains(gotAuth, "SignedHeaders=host;x-amz-content-sha256;x-amz-date") {
		t.Fatalf("unexpected signed headers in %q", gotAuth)
	}
	if gotSha != "UNSIGNED-PAYLOAD" {
		t.Fatalf("unexpected payload hash %q", gotSha)
	}
}

func TestGetReportsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "AccessDenied", http.StatusForbidden)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Get(context.Background(), "csv_uploads/abc/report.csv")
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestURIEncode(t *testing.T) {
	if got := uriEncode("csv_uploads/abc/my report.csv", false); got != "csv_uploads/abc/my%20report.csv" {
		t.Fatalf("unexpected encoding %q", got)
	}
	if got := uriEncode("a/b", true); got != "a%2Fb" {
		t.Fatalf("expected slash encoded, got %q", got)
	}
}
