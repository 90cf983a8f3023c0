/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the fund-transfer-service. By defining an
 * interface, we decouple the application's business logic from the specific database
 * implementation (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/bingbank/fund-transfer-service/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with the transfer store.
type Repository interface {
	// CreateTransfer persists a new transfer record and fills in its
	// server-assigned ID and timestamps.
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error

	// FindTransferByID returns a single transfer or ErrTransferNotFound.
	FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error)

	// FindTransfersByCustomerID returns a customer's transfers ordered
	// newest first by creation time, regardless of status.
	FindTransfersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Transfer, error)

	// UpdateTransferStatus advances a transfer to newStatus and returns the
	// resulting row. A transfer already in a terminal status is never moved
	// backward: the update is logged and no-opped, and the current row is
	// returned unchanged. Redelivered events depend on this behavior.
	UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, newStatus domain.TransferStatus) (*domain.Transfer, error)
}
