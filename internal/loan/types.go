package loan

import (
	"errors"
	"time"
)

// Status enumerates the workflow states of a loan application.
type Status string

const (
	StatusSubmitted                   Status = "SUBMITTED"
	StatusInReview                    Status = "IN_REVIEW"
	StatusWaitingApproval             Status = "WAITING_APPROVAL"
	StatusApprovedWaitingDisbursement Status = "APPROVED_WAITING_DISBURSEMENT"
	StatusDisbursed                   Status = "DISBURSED"
	StatusRejected                    Status = "REJECTED"
)

// AllStatuses lists every workflow state in happy-path order, REJECTED last.
var AllStatuses = []Status{
	StatusSubmitted,
	StatusInReview,
	StatusWaitingApproval,
	StatusApprovedWaitingDisbursement,
	StatusDisbursed,
	StatusRejected,
}

// Valid reports whether s is a known workflow state.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusWaitingApproval,
		StatusApprovedWaitingDisbursement, StatusDisbursed, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDisbursed || s == StatusRejected
}

// Application is a loan application. Status is mutated only through the
// workflow service; every mutation appends a HistoryRecord.
type Application struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	ProductID string    `json:"product_id"`
	Currency  string    `json:"currency"`
	Amount    int64     `json:"amount"` // minor units
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryRecord is an append-only trace of one workflow transition.
// Records are never edited or deleted.
type HistoryRecord struct {
	ID         string    `json:"id"`
	LoanID     string    `json:"loan_id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrNotFound     = errors.New("loan: application not found")
	ErrIllegalState = errors.New("loan: illegal state for requested transition")
	ErrConflict     = errors.New("loan: conflict")
	ErrInvalidInput = errors.New("loan: invalid input")
)
