package importer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	europeanAmountPattern = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})*,\d+$`)
	usAmountPattern       = regexp.MustCompile(`^-?\d{1,3}(,\d{3})*\.\d+$`)
	nonNumericPattern     = regexp.MustCompile(`[^0-9.\-]`)
	urlSchemePattern      = regexp.MustCompile(`(?i)^https?://`)
)

// NormalizedRow carries the sanitized values of one CSV row. Empty strings
// mean the field is absent; WebsiteURL keeps that distinction all the way to
// the store, where absent becomes NULL.
type NormalizedRow struct {
	MerchantSlug     string
	FirstName        string
	LastName         string
	Email            string
	WebsiteURL       string
	CommissionsTotal float64
}

// NormalizeRow applies the per-field sanitizers to a raw row.
func NormalizeRow(row Row) NormalizedRow {
	return NormalizedRow{
		MerchantSlug:     CleanString(row[FieldMerchantSlug]),
		FirstName:        CleanString(row[FieldFirstName]),
		LastName:         CleanString(row[FieldLastName]),
		Email:            NormalizeEmail(row[FieldEmail]),
		WebsiteURL:       NormalizeURL(row[FieldWebsiteURL]),
		CommissionsTotal: ParseCommission(row[FieldCommissionsTotal]),
	}
}

// CleanString trims surrounding whitespace. A whitespace-only value
// collapses to the empty string, which downstream code treats as absent.
func CleanString(value string) string {
	return strings.TrimSpace(value)
}

// NormalizeEmail trims and lowercases.
func NormalizeEmail(value string) string {
	return strings.ToLower(CleanString(value))
}

// NormalizeURL trims and defaults the scheme to http:// when none of
// http:// or https:// is present. Absent stays absent.
func NormalizeURL(value string) string {
	cleaned := CleanString(value)
	if cleaned == "" {
		return ""
	}
	if urlSchemePattern.MatchString(cleaned) {
		return cleaned
	}
	return "http://" + cleaned
}

// ParseCommission parses a monetary amount in either the US convention
// (comma thousands, dot decimal) or the European one (dot thousands, comma
// decimal). Currency symbols and stray letters are stripped. Absent or
// unparseable values yield 0.0 rather than an error.
func ParseCommission(value string) float64 {
	cleaned := CleanString(value)
	if cleaned == "" {
		return 0
	}

	switch {
	case europeanAmountPattern.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case usAmountPattern.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	cleaned = nonNumericPattern.ReplaceAllString(cleaned, "")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return amount
}
