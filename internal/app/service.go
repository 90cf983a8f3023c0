/**
 * @description
 * This file contains the transfer acceptance logic for the fund-transfer-service.
 * The `Service` struct validates incoming transfer requests against the
 * account-service, persists accepted transfers, and hands them to the event
 * channel for asynchronous execution by the consumer.
 *
 * Key features:
 * - Validation order is fixed: target existence, source ownership, balance,
 *   same-account. Each failure maps to a distinct sentinel error.
 * - Side effects on success are strictly ordered: persist PENDING, publish the
 *   event keyed by transfer id, then advance to PROCESSING. A publish failure
 *   leaves the transfer PENDING and is never retried here.
 * - Balance validation is a read-only snapshot; the account-service's debit
 *   operation remains the sole overdraft authority at execution time.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For transfer and customer identifiers.
 * - github.com/shopspring/decimal: Fixed-point money amounts.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/ledgerclient, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bingbank/fund-transfer-service/internal/domain"
	"github.com/bingbank/fund-transfer-service/internal/store"
	"github.com/bingbank/fund-transfer-service/pkg/ledgerclient"
	"github.com/bingbank/fund-transfer-service/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerClient is the slice of the account-service API the transfer flows use.
type LedgerClient interface {
	ExistsAccount(ctx context.Context, accountNumber, bearerToken string) (bool, error)
	GetAccount(ctx context.Context, accountNumber, bearerToken string) (*ledgerclient.Account, error)
	Debit(ctx context.Context, accountNumber string, amount decimal.Decimal, description, bearerToken string) (*ledgerclient.BalanceResult, error)
	Credit(ctx context.Context, accountNumber string, amount decimal.Decimal, description, bearerToken string) (*ledgerclient.BalanceResult, error)
}

// TransferRateLimiter throttles transfer initiation per customer.
type TransferRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the transfer acceptance logic.
type Service struct {
	repo          store.Repository
	ledger        LedgerClient
	eventProducer rabbitmq.Publisher

	rateLimiter        TransferRateLimiter
	rateLimitPerMinute int
}

// NewService creates a new fund transfer service instance.
func NewService(repo store.Repository, ledger LedgerClient, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		ledger:        ledger,
		eventProducer: producer,
	}
}

// SetTransferRateLimiter enables per-customer initiation throttling. A nil
// limiter or non-positive limit leaves throttling disabled.
func (s *Service) SetTransferRateLimiter(limiter TransferRateLimiter, perMinute int) {
	s.rateLimiter = limiter
	s.rateLimitPerMinute = perMinute
}

// InitiateTransfer validates and accepts a transfer request on behalf of
// customerID. authHeader is the caller's bearer credential, forwarded to the
// account-service for the read-only validation calls.
func (s *Service) InitiateTransfer(ctx context.Context, customerID uuid.UUID, req domain.TransferRequest, authHeader string) (*domain.Transfer, error) {
	log.Printf("level=info component=acceptance msg=\"transfer requested\" customer_id=%s source=%s target=%s amount=%s",
		customerID, req.SourceAccountNumber, req.TargetAccountNumber, req.Amount)

	// Reject non-positive amounts before any remote call.
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	if err := s.consumeInitiationBudget(ctx, customerID); err != nil {
		return nil, err
	}

	// 1. Target account must exist.
	exists, err := s.ledger.ExistsAccount(ctx, req.TargetAccountNumber, authHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate target account: %w", err)
	}
	if !exists {
		return nil, ErrTargetAccountNotFound
	}

	// 2. Source account must belong to the requesting customer.
	sourceAccount, err := s.ledger.GetAccount(ctx, req.SourceAccountNumber, authHeader)
	if err != nil {
		if errors.Is(err, ledgerclient.ErrAccountNotFound) {
			return nil, ErrUnauthorizedSourceAccount
		}
		return nil, fmt.Errorf("failed to validate source account: %w", err)
	}
	if sourceAccount.CustomerID != customerID {
		return nil, ErrUnauthorizedSourceAccount
	}

	// 3. Snapshot balance check. A race against other movements is accepted;
	// the debit at execution time is the overdraft authority.
	if sourceAccount.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	// 4. Source and target must differ.
	if req.SourceAccountNumber == req.TargetAccountNumber {
		return nil, ErrSameAccount
	}

	transfer := &domain.Transfer{
		CustomerID:          customerID,
		SourceAccountNumber: req.SourceAccountNumber,
		TargetAccountNumber: req.TargetAccountNumber,
		Amount:              req.Amount,
		Remarks:             req.Remarks,
		Status:              domain.StatusPending,
	}
	if err := s.repo.CreateTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("failed to create transfer record: %w", err)
	}
	log.Printf("level=info component=acceptance msg=\"transfer record created\" transfer_id=%s status=%s", transfer.ID, transfer.Status)

	event := domain.NewTransferEvent(transfer)
	if err := s.eventProducer.PublishTransferEvent(ctx, event); err != nil {
		// The transfer stays PENDING; it needs manual intervention or a
		// reconciliation sweep to progress.
		log.Printf("level=error component=acceptance msg=\"event publish failed; transfer stuck pending\" transfer_id=%s err=%v", transfer.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	log.Printf("level=info component=acceptance msg=\"transfer event published\" transfer_id=%s", transfer.ID)

	updated, err := s.repo.UpdateTransferStatus(ctx, transfer.ID, domain.StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to mark transfer as processing: %w", err)
	}
	return updated, nil
}

// GetTransferHistory returns a customer's transfers, newest first.
func (s *Service) GetTransferHistory(ctx context.Context, customerID uuid.UUID) ([]domain.Transfer, error) {
	return s.repo.FindTransfersByCustomerID(ctx, customerID)
}

// GetTransferByID returns a single transfer.
func (s *Service) GetTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	return s.repo.FindTransferByID(ctx, transferID)
}

func (s *Service) consumeInitiationBudget(ctx context.Context, customerID uuid.UUID) error {
	if s.rateLimiter == nil || s.rateLimitPerMinute <= 0 {
		return nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "transfer_initiate", customerID.String(), s.rateLimitPerMinute, time.Minute)
	if err != nil {
		// Limiter unavailability must not block money movement.
		log.Printf("level=warn component=acceptance msg=\"rate limiter unavailable; allowing request\" customer_id=%s err=%v", customerID, err)
		return nil
	}
	if count > s.rateLimitPerMinute {
		log.Printf("level=warn component=acceptance msg=\"transfer initiation throttled\" customer_id=%s count=%d retry_after=%d", customerID, count, retryAfter)
		return ErrRateLimited
	}
	return nil
}
