package models

import (
	"fmt"

	"gorm.io/gorm"
)

// CreditKind is the type of a ledger entry
type CreditKind string

// Credit kinds
const (
	// CreditKindCharge reserves credits when an attempt starts
	CreditKindCharge CreditKind = "charge"
	// CreditKindRefund returns the reservation of a failed attempt
	CreditKindRefund CreditKind = "refund"
	// CreditKindSettle finalizes the reservation of a completed job
	CreditKindSettle CreditKind = "settle"
)

// String returns the string representation of the credit kind
func (k CreditKind) String() string {
	return string(k)
}

// ParseCreditKind converts a string to a CreditKind
func ParseCreditKind(str string) (CreditKind, error) {
	switch CreditKind(str) {
	case CreditKindCharge, CreditKindRefund, CreditKindSettle:
		return CreditKind(str), nil
	default:
		return "", fmt.Errorf("invalid credit kind: %s", str)
	}
}

// CreditEntry is one ledger hook invocation. There is at most one entry per
// job, kind and attempt.
type CreditEntry struct {
	gorm.Model
	JobID   string     `json:"job_id" gorm:"not null;type:varchar(36);uniqueIndex:idx_credit_job_kind_attempt"`
	Kind    CreditKind `json:"kind" gorm:"not null;type:varchar(16);uniqueIndex:idx_credit_job_kind_attempt"`
	Attempt int        `json:"attempt" gorm:"not null;uniqueIndex:idx_credit_job_kind_attempt"`
	Units   int        `json:"units" gorm:"not null"`
}

// TableName overrides the default table name
func (CreditEntry) TableName() string {
	return "credit_entries"
}
