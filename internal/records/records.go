// Package records defines the engine's view of syncable MIS rows and their
// synchronization lifecycle. Rows are created by upstream business processes;
// the engine owns only the status transitions.
package records

import (
	"fmt"
	"time"
)

// EntityKind identifies which kind of MIS record a row represents.
type EntityKind string

// Supported entity kinds.
const (
	KindApplicant EntityKind = "APPLICANT"
	KindStudent   EntityKind = "STUDENT"
	KindInvoice   EntityKind = "INVOICE"
	KindPayment   EntityKind = "PAYMENT"
)

// ParseEntityKind converts a string (e.g. from a URL or config file) into an
// EntityKind, accepting any casing.
func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(normalizeKind(s)) {
	case KindApplicant:
		return KindApplicant, nil
	case KindStudent:
		return KindStudent, nil
	case KindInvoice:
		return KindInvoice, nil
	case KindPayment:
		return KindPayment, nil
	default:
		return "", fmt.Errorf("unrecognized entity kind: %s", s)
	}
}

func normalizeKind(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// SyncStatus is the per-record synchronization state.
type SyncStatus string

// Record state machine: NOT_SYNCED -> IN_PROGRESS -> {SYNCED | FAILED}.
// FAILED and a stale IN_PROGRESS are both re-enterable on the next run.
const (
	StatusNotSynced  SyncStatus = "NOT_SYNCED"
	StatusSynced     SyncStatus = "SYNCED"
	StatusFailed     SyncStatus = "FAILED"
	StatusInProgress SyncStatus = "IN_PROGRESS"
)

// ClaimableStatuses are the states a record may be selected from for a sync
// pass. IN_PROGRESS is claimable because it represents a crash-recovery case,
// not a terminal state.
func ClaimableStatuses() []SyncStatus {
	return []SyncStatus{StatusNotSynced, StatusFailed, StatusInProgress}
}

// Record is one syncable MIS row. Field population depends on Kind: applicants
// and students carry person fields, invoices and payments carry transaction
// fields. Lookup foreign keys are resolved by the enrichment cache, never
// dereferenced one row at a time.
type Record struct {
	ID   int64
	Kind EntityKind

	// Person fields (applicants, students)
	TrackingID string
	RegNo      string
	FirstName  string
	MiddleName string
	LastName   string
	Sex        string
	NationalID string
	Phone      string
	Email      string

	// Transaction fields (invoices, payments)
	ReferenceNo      string
	Amount           float64
	TxnDate          *time.Time
	DueDate          *time.Time
	CustomerRemoteID string
	InvoiceRemoteID  string

	// Lookup foreign keys
	CampusID      *int64
	ProgramID     *int64
	CountryID     *int64
	ProgramModeID *int64
	LevelID       *int64
	IntakeID      *int64

	// Sync lifecycle, owned by the orchestrator
	Status    SyncStatus
	RemoteID  *string
	LastError string
	PushedBy  string
	PushedAt  *time.Time
}

// HasRemoteID reports whether the record has already been created remotely.
// Such a record must only ever be updated by remote id, never re-created.
func (r *Record) HasRemoteID() bool {
	return r.RemoteID != nil && *r.RemoteID != ""
}

// DisplayRef returns the human-facing identifier for the record: tracking id
// for applicants, registration number for students, reference number for
// transactions, falling back to the local id.
func (r *Record) DisplayRef() string {
	switch {
	case r.TrackingID != "":
		return r.TrackingID
	case r.RegNo != "":
		return r.RegNo
	case r.ReferenceNo != "":
		return r.ReferenceNo
	default:
		return fmt.Sprintf("%d", r.ID)
	}
}
