// Package objectstore is a minimal S3-compatible client: presigned PUT
// URLs for browser direct uploads and signed GETs for worker downloads.
// It speaks plain HTTP plus SigV4, so it works against AWS S3, MinIO, or
// anything else wire compatible.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config locates the bucket and carries the signing credentials.
// UsePathStyle addresses objects as /<bucket>/<key> on the endpoint host,
// which MinIO and most self-hosted stores require.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
	}
}

// PresignedUpload is everything a client needs to PUT the file itself.
type PresignedUpload struct {
	URL     string
	Headers map[string]string
}

// PresignPut builds a presigned PUT URL for key, valid for expires. Only
// the host header is signed, so the caller is free to set Content-Type;
// the expected value is returned in Headers.
func (c *Client) PresignPut(key, contentType string, expires time.Duration) (PresignedUpload, error) {
	objectURL, err := c.objectURL(key)
	if err != nil {
		return PresignedUpload{}, err
	}

	t := c.now()
	scope := credentialScope(t, c.cfg.Region)

	query := url.Values{}
	query.Set("X-Amz-Algorithm", signingAlgorithm)
	query.Set("X-Amz-Credential", c.cfg.AccessKeyID+"/"+scope)
	query.Set("X-Amz-Date", amzDate(t))
	query.Set("X-Amz-Expires", strconv.Itoa(int(expires.Seconds())))
	query.Set("X-Amz-SignedHeaders", "host")

	canonical := canonicalRequest(
		http.MethodPut,
		objectURL.EscapedPath(),
		canonicalQuery(query),
		"host",
		"host:"+objectURL.Host+"\n",
		unsignedPayload,
	)
	sig := signature(signingKey(c.cfg.SecretAccessKey, c.cfg.Region, t), stringToSign(t, scope, canonical))
	query.Set("X-Amz-Signature", sig)

	objectURL.RawQuery = canonicalQuery(query)
	return PresignedUpload{
		URL:     objectURL.String(),
		Headers: map[string]string{"Content-Type": contentType},
	}, nil
}

// Get downloads an object. Non-200 responses become errors carrying the
// status and a snippet of the body.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	objectURL, err := c.objectURL(key)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, objectURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build object request: %w", err)
	}
	c.signRequest(req, objectURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch object %q: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("fetch object %q: status %d: %s", key, resp.StatusCode, snippet)
	}
	return body, nil
}

// signRequest attaches header-based SigV4 auth for server-to-server calls.
func (c *Client) signRequest(req *http.Request, objectURL *url.URL) {
	t := c.now()
	scope := credentialScope(t, c.cfg.Region)

	req.Header.Set("X-Amz-Date", amzDate(t))
	req.Header.Set("X-Amz-Content-Sha256", unsignedPayload)

	signedHeaders := "host;x-amz-content-sha256;x-amz-date"
	canonicalHeaders := "host:" + objectURL.Host + "\n" +
		"x-amz-content-sha256:" + unsignedPayload + "\n" +
		"x-amz-date:" + amzDate(t) + "\n"

	canonical := canonicalRequest(
		req.Method,
		objectURL.EscapedPath(),
		canonicalQuery(objectURL.Query()),
		signedHeaders,
		canonicalHeaders,
		unsignedPayload,
	)
	sig := signature(signingKey(c.cfg.SecretAccessKey, c.cfg.Region, t), stringToSign(t, scope, canonical))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, c.cfg.AccessKeyID, scope, signedHeaders, sig))
}

// objectURL resolves a key to its absolute URL, path-style or
// virtual-hosted depending on config.
func (c *Client) objectURL(key string) (*url.URL, error) {
	base, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse storage endpoint: %w", err)
	}

	encodedKey := uriEncode(key, false)
	u := *base
	if c.cfg.UsePathStyle {
		u.Path = "/" + c.cfg.Bucket + "/" + key
		u.RawPath = "/" + c.cfg.Bucket + "/" + encodedKey
	} else {
		u.Host = c.cfg.Bucket + "." + base.Host
		u.Path = "/" + key
		u.RawPath = "/" + encodedKey
	}
	return &u, nil
}

// canonicalQuery encodes query parameters in the sorted, strictly-escaped
// form SigV4 requires.
func canonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		for _, value := range values[key] {
			parts = append(parts, uriEncode(key, true)+"="+uriEncode(value, true))
		}
	}
	return strings.Join(parts, "&")
}
