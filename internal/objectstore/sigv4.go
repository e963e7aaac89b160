package objectstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// AWS Signature Version 4, scoped to the S3 service. Payloads are never
// hashed; both presigned PUTs and signed GETs use UNSIGNED-PAYLOAD.

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	unsignedPayload  = "UNSIGNED-PAYLOAD"
	serviceS3        = "s3"
)

func credentialScope(t time.Time, region string) string {
	return strings.Join([]string{t.UTC().Format("20060102"), region, serviceS3, "aws4_request"}, "/")
}

func amzDate(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// signingKey derives the per-day HMAC key chain.
func signingKey(secretAccessKey, region string, t time.Time) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretAccessKey), t.UTC().Format("20060102"))
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, serviceS3)
	return hmacSHA256(kService, "aws4_request")
}

func signature(key []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(key, stringToSign))
}

func stringToSign(t time.Time, scope, canonicalRequest string) string {
	return strings.Join([]string{
		signingAlgorithm,
		amzDate(t),
		scope,
		hexSHA256(canonicalRequest),
	}, "\n")
}

func canonicalRequest(method, path, query, signedHeaders, canonicalHeaders, payloadHash string) string {
	return strings.Join([]string{
		method,
		path,
		query,
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hexSHA256(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// uriEncode applies the AWS canonical URI encoding: unreserved characters
// pass through, everything else becomes uppercase percent escapes. Slashes
// are kept when encoding an object path.
func uriEncode(value string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			b.WriteString("%" + strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return b.String()
}
