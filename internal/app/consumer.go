package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bingbank/fund-transfer-service/internal/domain"
	"github.com/bingbank/fund-transfer-service/internal/store"
	"github.com/bingbank/fund-transfer-service/pkg/txlogclient"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementRecorder writes audit ledger entries to the transaction-service.
type MovementRecorder interface {
	RecordMovement(ctx context.Context, accountNumber string, amount decimal.Decimal, direction, sourceAccount, targetAccount, description, bearerToken string) error
}

// TokenMinter issues the worker's service-identity credential.
type TokenMinter interface {
	Mint() (string, error)
}

// TransferExecutionConsumer executes accepted transfers delivered from the
// event channel: debit the source, credit the target, record both ledger
// entries, and finalize the transfer status. One delivery is processed to
// completion per invocation; concurrency comes from independent deliveries.
type TransferExecutionConsumer struct {
	repo   store.Repository
	ledger LedgerClient
	txlog  MovementRecorder
	tokens TokenMinter
}

func NewTransferExecutionConsumer(repo store.Repository, ledger LedgerClient, txlog MovementRecorder, tokens TokenMinter) *TransferExecutionConsumer {
	return &TransferExecutionConsumer{repo: repo, ledger: ledger, txlog: txlog, tokens: tokens}
}

// HandleMessage is the channel binding entry point. Returning false re-queues
// the delivery; malformed payloads are acknowledged to drop them.
func (c *TransferExecutionConsumer) HandleMessage(body []byte) bool {
	var event domain.TransferEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("transfer-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.TransferID == uuid.Nil {
		log.Printf("transfer-consumer: missing transfer id in event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Printf("transfer-consumer: processing error for transfer %s: %v", event.TransferID, err)
		return false
	}

	return true
}

// processEvent drives one transfer through the execution state machine. It
// returns an error only for infrastructure failures that warrant redelivery;
// business failures finalize the transfer as FAILED and are acknowledged.
func (c *TransferExecutionConsumer) processEvent(ctx context.Context, event domain.TransferEvent) error {
	transfer, err := c.repo.FindTransferByID(ctx, event.TransferID)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			log.Printf("transfer-consumer: no transfer record for %s; acknowledging", event.TransferID)
			return nil
		}
		return fmt.Errorf("lookup transfer: %w", err)
	}

	// Redelivery guard: a transfer that already reached a terminal status must
	// not have its money movement applied again.
	if transfer.Status.IsTerminal() {
		log.Printf("transfer-consumer: transfer %s already %s; skipping redelivery", transfer.ID, transfer.Status)
		return nil
	}

	authToken, err := c.tokens.Mint()
	if err != nil {
		return fmt.Errorf("mint service token: %w", err)
	}

	reference := fmt.Sprintf("Transfer#%s", event.TransferID)

	// Step A: debit the source account.
	if _, err := c.ledger.Debit(ctx, event.SourceAccountNumber, event.Amount,
		fmt.Sprintf("Transfer to %s - %s", event.TargetAccountNumber, reference), authToken); err != nil {
		log.Printf("transfer-consumer: debit failed for transfer %s: %v", event.TransferID, err)
		return c.markFailed(ctx, event.TransferID)
	}
	log.Printf("transfer-consumer: debited %s from account %s for transfer %s", event.Amount, event.SourceAccountNumber, event.TransferID)

	// Step B: credit the target account. A failure here leaves the source
	// debited: there is no compensating credit in the current design.
	if _, err := c.ledger.Credit(ctx, event.TargetAccountNumber, event.Amount,
		fmt.Sprintf("Transfer from %s - %s", event.SourceAccountNumber, reference), authToken); err != nil {
		log.Printf("transfer-consumer: credit failed for transfer %s: %v", event.TransferID, err)
		return c.markFailed(ctx, event.TransferID)
	}
	log.Printf("transfer-consumer: credited %s to account %s for transfer %s", event.Amount, event.TargetAccountNumber, event.TransferID)

	// Steps C and D: audit entries. These are secondary to the money movement;
	// failures are logged and swallowed without touching the transfer status.
	auditDescription := fmt.Sprintf("Fund Transfer - %s", reference)
	if err := c.txlog.RecordMovement(ctx, event.SourceAccountNumber, event.Amount, txlogclient.DirectionDebit,
		event.SourceAccountNumber, event.TargetAccountNumber, auditDescription, authToken); err != nil {
		log.Printf("transfer-consumer: debit ledger entry failed for transfer %s: %v", event.TransferID, err)
	}
	if err := c.txlog.RecordMovement(ctx, event.TargetAccountNumber, event.Amount, txlogclient.DirectionCredit,
		event.SourceAccountNumber, event.TargetAccountNumber, auditDescription, authToken); err != nil {
		log.Printf("transfer-consumer: credit ledger entry failed for transfer %s: %v", event.TransferID, err)
	}

	if _, err := c.repo.UpdateTransferStatus(ctx, event.TransferID, domain.StatusCompleted); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	log.Printf("transfer-consumer: transfer %s completed", event.TransferID)
	return nil
}

func (c *TransferExecutionConsumer) markFailed(ctx context.Context, transferID uuid.UUID) error {
	if _, err := c.repo.UpdateTransferStatus(ctx, transferID, domain.StatusFailed); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}
