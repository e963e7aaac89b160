package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// ErrEmailTaken is returned by the affiliate store when a write violates
// the (merchant_id, email) uniqueness constraint.
var ErrEmailTaken = errors.New("email already taken for merchant")

// Merchant is the owning side of the affiliate relationship. The import
// pipeline only reads merchants; it never creates or mutates them.
type Merchant struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
