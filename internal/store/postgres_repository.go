/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the `fund_transfers`
 * table.
 *
 * @dependencies
 * - context, errors, log: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"log"

	"github.com/bingbank/fund-transfer-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTransferNotFound = errors.New("transfer not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transferColumns = `id, customer_id, source_account_number, target_account_number, amount, remarks, status, created_at, updated_at`

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(
		&t.ID,
		&t.CustomerID,
		&t.SourceAccountNumber,
		&t.TargetAccountNumber,
		&t.Amount,
		&t.Remarks,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CreateTransfer inserts a new transfer row. The database assigns the UUID and
// timestamps; they are written back onto the passed struct.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO fund_transfers (customer_id, source_account_number, target_account_number, amount, remarks, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		transfer.CustomerID,
		transfer.SourceAccountNumber,
		transfer.TargetAccountNumber,
		transfer.Amount,
		transfer.Remarks,
		transfer.Status,
	).Scan(&transfer.ID, &transfer.CreatedAt, &transfer.UpdatedAt)
}

// FindTransferByID retrieves a transfer by its identifier.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM fund_transfers WHERE id = $1`
	return scanTransfer(r.db.QueryRow(ctx, query, transferID))
}

// FindTransfersByCustomerID retrieves a customer's transfer history, newest first.
func (r *PostgresRepository) FindTransfersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM fund_transfers WHERE customer_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []domain.Transfer{}
	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(
			&t.ID,
			&t.CustomerID,
			&t.SourceAccountNumber,
			&t.TargetAccountNumber,
			&t.Amount,
			&t.Remarks,
			&t.Status,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// UpdateTransferStatus advances a transfer's status. The UPDATE is guarded so a
// terminal row is never rewritten; when the guard rejects the write the current
// row is re-read and returned, and the stale update is logged. A single UPDATE
// keeps the status change atomic with respect to concurrent readers.
func (r *PostgresRepository) UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, newStatus domain.TransferStatus) (*domain.Transfer, error) {
	query := `
		UPDATE fund_transfers
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')
		RETURNING ` + transferColumns
	transfer, err := scanTransfer(r.db.QueryRow(ctx, query, transferID, newStatus))
	if err == nil {
		return transfer, nil
	}
	if !errors.Is(err, ErrTransferNotFound) {
		return nil, err
	}

	// Either the transfer does not exist or it is already terminal. Re-read to
	// tell the two apart; redelivered events make the terminal case routine.
	current, findErr := r.FindTransferByID(ctx, transferID)
	if findErr != nil {
		return nil, findErr
	}
	log.Printf("level=warn component=store msg=\"ignoring status update on terminal transfer\" transfer_id=%s current_status=%s requested_status=%s",
		transferID, current.Status, newStatus)
	return current, nil
}
