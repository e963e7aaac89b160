package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func validAffiliate() Affiliate {
	return Affiliate{
		MerchantID:       uuid.New(),
		FirstName:        "Ana",
		LastName:         "Lee",
		Email:            "ana@example.com",
		WebsiteURL:       strPtr("http://ana.example.com"),
		CommissionsTotal: 19.99,
	}
}

func TestAffiliateValidate(t *testing.T) {
	if messages := validAffiliate().Validate(); len(messages) != 0 {
		t.Fatalf("expected valid affiliate, got %v", messages)
	}

	cases := []struct {
		name    string
		mutate  func(*Affiliate)
		message string
	}{
		{"blank first name", func(a *Affiliate) { a.FirstName = "" }, "First name can't be blank"},
		{"blank last name", func(a *Affiliate) { a.LastName = "" }, "Last name can't be blank"},
		{"blank email", func(a *Affiliate) { a.Email = "" }, "Email can't be blank"},
		{"email without domain", func(a *Affiliate) { a.Email = "ana@localhost" }, "Email is invalid"},
		{"email without at sign", func(a *Affiliate) { a.Email = "ana.example.com" }, "Email is invalid"},
		{"url without scheme", func(a *Affiliate) { a.WebsiteURL = strPtr("not a url") }, "Website url is invalid"},
		{"negative commission", func(a *Affiliate) { a.CommissionsTotal = -1 }, "Commissions total must be greater than or equal to 0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			affiliate := validAffiliate()
			tc.mutate(&affiliate)
			messages := affiliate.Validate()
			if len(messages) == 0 || !strings.Contains(strings.Join(messages, ", "), tc.message) {
				t.Fatalf("expected message %q, got %v", tc.message, messages)
			}
		})
	}
}

func TestAffiliateSameAttributes(t *testing.T) {
	a := validAffiliate()
	b := a
	if !a.SameAttributes(b) {
		t.Fatalf("identical affiliates must compare equal")
	}

	b.CommissionsTotal = 250
	if a.SameAttributes(b) {
		t.Fatalf("changed commission must compare different")
	}

	b = a
	b.WebsiteURL = nil
	if a.SameAttributes(b) {
		t.Fatalf("nil vs set website url must compare different")
	}

	b = a
	b.WebsiteURL = strPtr("http://ana.example.com")
	if !a.SameAttributes(b) {
		t.Fatalf("equal website url values must compare equal regardless of pointer")
	}

	b = a
	b.ID = uuid.New()
	b.CreatedAt = a.CreatedAt.AddDate(0, 0, 1)
	if !a.SameAttributes(b) {
		t.Fatalf("identity and timestamps must be ignored")
	}
}

func TestAffiliateIsNew(t *testing.T) {
	a := validAffiliate()
	if !a.IsNew() {
		t.Fatalf("affiliate without id must be new")
	}
	a.ID = uuid.New()
	if a.IsNew() {
		t.Fatalf("affiliate with id must not be new")
	}
}
