package domain

import (
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// emailPattern requires a fully-qualified domain: a bare local part or a
// dotless host is rejected.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~\-]+@[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)+$`)

// Affiliate belongs to exactly one merchant. Email is stored lowercase and
// is unique per merchant. WebsiteURL is nil when absent. Affiliates are
// created and updated exclusively by the import pipeline, never deleted.
type Affiliate struct {
	ID               uuid.UUID
	MerchantID       uuid.UUID
	FirstName        string
	LastName         string
	Email            string
	WebsiteURL       *string
	CommissionsTotal float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsNew reports whether the affiliate has been persisted yet.
func (a Affiliate) IsNew() bool {
	return a.ID == uuid.Nil
}

// SameAttributes compares the importable attributes of two affiliates.
// Identity and timestamps are ignored.
func (a Affiliate) SameAttributes(other Affiliate) bool {
	if a.FirstName != other.FirstName || a.LastName != other.LastName || a.Email != other.Email {
		return false
	}
	if a.CommissionsTotal != other.CommissionsTotal {
		return false
	}
	if (a.WebsiteURL == nil) != (other.WebsiteURL == nil) {
		return false
	}
	if a.WebsiteURL != nil && *a.WebsiteURL != *other.WebsiteURL {
		return false
	}
	return true
}

// Validate returns human-readable validation messages, empty when the
// affiliate is valid.
func (a Affiliate) Validate() []string {
	var messages []string
	if a.FirstName == "" {
		messages = append(messages, "First name can't be blank")
	}
	if a.LastName == "" {
		messages = append(messages, "Last name can't be blank")
	}
	switch {
	case a.Email == "":
		messages = append(messages, "Email can't be blank")
	case !emailPattern.MatchString(a.Email):
		messages = append(messages, "Email is invalid")
	}
	if a.WebsiteURL != nil && !validWebsiteURL(*a.WebsiteURL) {
		messages = append(messages, "Website url is invalid")
	}
	if a.CommissionsTotal < 0 {
		messages = append(messages, "Commissions total must be greater than or equal to 0")
	}
	return messages
}

func validWebsiteURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}
