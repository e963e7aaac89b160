package domain

import (
	"time"

	"github.com/google/uuid"
)

// Import audit lifecycle. A record starts pending and moves to exactly one
// terminal status; it never returns to pending.
const (
	AuditStatusPending             = "pending"
	AuditStatusProcessing          = "processing"
	AuditStatusProcessed           = "processed"
	AuditStatusProcessedWithErrors = "processed_with_errors"
	AuditStatusFailed              = "failed"
)

const ImportTypeAffiliate = "affiliate"

// ValidAuditStatuses lists every status the store accepts.
var ValidAuditStatuses = []string{
	AuditStatusPending,
	AuditStatusProcessing,
	AuditStatusProcessed,
	AuditStatusProcessedWithErrors,
	AuditStatusFailed,
}

// ImportAudit tracks one import attempt. Path is the object-storage key the
// upload was (or will be) written to and uniquely identifies the attempt.
type ImportAudit struct {
	ID                  uuid.UUID
	Path                string
	Filename            string
	ImportType          string
	Status              string
	TotalSuccessfulRows int
	TotalFailedRows     int
	ErrorDetails        []string
	ProcessedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Terminal reports whether the audit reached a final status.
func (a ImportAudit) Terminal() bool {
	switch a.Status {
	case AuditStatusProcessed, AuditStatusProcessedWithErrors, AuditStatusFailed:
		return true
	}
	return false
}
