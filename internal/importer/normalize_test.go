package importer

import "testing"

func TestParseCommission(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"987,65", 987.65},
		{"$2,345.67abc", 2345.67},
		{"-123.45", -123.45},
		{"42", 42},
		{"42.5", 42.5},
		{"  19.99  ", 19.99},
		{"", 0},
		{"   ", 0},
		{"hello,world!", 0},
		{"N/A", 0},
	}

	for _, tc := range cases {
		if got := ParseCommission(tc.in); got != tc.want {
			t.Fatalf("ParseCommission(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com", "http://example.com"},
		{"  example.com/path  ", "http://example.com/path"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"HTTPS://example.com", "HTTPS://example.com"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Jane.DOE@Example.COM "); got != "jane.doe@example.com" {
		t.Fatalf("expected lowercased trimmed email, got %q", got)
	}
}

func TestNormalizeRow(t *testing.T) {
	row := Row{
		FieldMerchantSlug:     " amazon ",
		FieldFirstName:        "  Ana ",
		FieldLastName:         "Lee",
		FieldEmail:            "ANA@Example.com",
		FieldWebsiteURL:       "ana.example.com",
		FieldCommissionsTotal: "1.234,56",
	}

	got := NormalizeRow(row)
	want := NormalizedRow{
		MerchantSlug:     "amazon",
		FirstName:        "Ana",
		LastName:         "Lee",
		Email:            "ana@example.com",
		WebsiteURL:       "http://ana.example.com",
		CommissionsTotal: 1234.56,
	}
	if got != want {
		t.Fatalf("NormalizeRow = %+v, want %+v", got, want)
	}
}
