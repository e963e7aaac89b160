// Package importer implements the affiliate CSV import pipeline: delimiter
// and header detection, per-field normalization, row reconciliation against
// the merchant/affiliate store, and audit bookkeeping for both the inline
// and the queued execution model.
package importer

import "strings"

// Field is the canonical name of a CSV column. Raw headers are mapped to
// fields once, at parse time; no other component ever sees a raw header.
type Field string

const (
	FieldMerchantSlug     Field = "merchant_slug"
	FieldFirstName        Field = "first_name"
	FieldLastName         Field = "last_name"
	FieldEmail            Field = "email"
	FieldWebsiteURL       Field = "website_url"
	FieldCommissionsTotal Field = "commissions_total"
)

// RequiredFields must all be present in the header row for a file to be
// importable.
var RequiredFields = []Field{FieldMerchantSlug, FieldFirstName, FieldLastName, FieldEmail}

// OptionalFields are imported when present and defaulted otherwise.
var OptionalFields = []Field{FieldWebsiteURL, FieldCommissionsTotal}

// Row is one data line of the CSV keyed by canonical field name. Values are
// raw cell contents; normalization happens in NormalizeRow.
type Row map[Field]string

func knownField(header string) (Field, bool) {
	normalized := Field(strings.ToLower(strings.TrimSpace(header)))
	for _, field := range RequiredFields {
		if normalized == field {
			return field, true
		}
	}
	for _, field := range OptionalFields {
		if normalized == field {
			return field, true
		}
	}
	return "", false
}

func joinFields(fields []Field) string {
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = string(field)
	}
	return strings.Join(names, ", ")
}
