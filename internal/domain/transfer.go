/**
 * @description
 * This file defines the core domain models for the fund-transfer-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are `decimal.Decimal` values at currency scale, which avoids
 *   floating-point inaccuracies with financial data.
 * - A transfer only ever moves forward through its status lifecycle; terminal
 *   statuses are never left.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus is the lifecycle state of a fund transfer.
type TransferStatus string

const (
	StatusPending    TransferStatus = "PENDING"
	StatusProcessing TransferStatus = "PROCESSING"
	StatusCompleted  TransferStatus = "COMPLETED"
	StatusFailed     TransferStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s TransferStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. The lifecycle is PENDING -> PROCESSING -> COMPLETED | FAILED.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Transfer represents a request to move funds between two accounts, tracked
// through its status lifecycle. This struct maps directly to the
// `fund_transfers` table in the database.
type Transfer struct {
	ID                  uuid.UUID       `json:"transfer_id"`
	CustomerID          uuid.UUID       `json:"customer_id"`
	SourceAccountNumber string          `json:"source_account_number"`
	TargetAccountNumber string          `json:"target_account_number"`
	Amount              decimal.Decimal `json:"amount"`
	Remarks             string          `json:"remarks,omitempty"`
	Status              TransferStatus  `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TransferRequest is the DTO for incoming transfer API requests.
type TransferRequest struct {
	SourceAccountNumber string          `json:"source_account_number"`
	TargetAccountNumber string          `json:"target_account_number"`
	Amount              decimal.Decimal `json:"amount"`
	Remarks             string          `json:"remarks"`
}

// TransferEvent is the message payload published to the event channel when a
// transfer is accepted. It is an immutable snapshot of the transfer at publish
// time; the consumer works from this snapshot alone.
type TransferEvent struct {
	TransferID          uuid.UUID       `json:"transfer_id"`
	CustomerID          uuid.UUID       `json:"customer_id"`
	SourceAccountNumber string          `json:"source_account_number"`
	TargetAccountNumber string          `json:"target_account_number"`
	Amount              decimal.Decimal `json:"amount"`
	TransferDate        time.Time       `json:"transfer_date"`
	Remarks             string          `json:"remarks,omitempty"`
}

// NewTransferEvent builds the channel payload from a freshly persisted transfer.
func NewTransferEvent(t *Transfer) TransferEvent {
	return TransferEvent{
		TransferID:          t.ID,
		CustomerID:          t.CustomerID,
		SourceAccountNumber: t.SourceAccountNumber,
		TargetAccountNumber: t.TargetAccountNumber,
		Amount:              t.Amount,
		TransferDate:        t.CreatedAt,
		Remarks:             t.Remarks,
	}
}
