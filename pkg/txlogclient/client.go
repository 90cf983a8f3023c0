/**
 * @description
 * This package provides a client for communicating with the transaction-service,
 * which keeps the immutable ledger entries used for audit trails and statements.
 * Recording a movement is best-effort from the transfer flow's point of view:
 * the client returns errors, but callers log and continue.
 */
package txlogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Movement directions recorded against an account.
const (
	DirectionDebit  = "DEBIT"
	DirectionCredit = "CREDIT"
)

// Client is a client for the transaction-service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new transaction-service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type movementEntry struct {
	AccountNumber       string          `json:"account_number"`
	Amount              decimal.Decimal `json:"amount"`
	TransactionType     string          `json:"transaction_type"`
	SourceAccountNumber string          `json:"source_account_number"`
	TargetAccountNumber string          `json:"target_account_number"`
	Description         string          `json:"description"`
}

// RecordMovement writes one ledger entry for an account movement.
func (c *Client) RecordMovement(ctx context.Context, accountNumber string, amount decimal.Decimal, direction, sourceAccount, targetAccount, description, bearerToken string) error {
	if c.baseURL == "" {
		return fmt.Errorf("transaction service base url is empty")
	}

	url := fmt.Sprintf("%s/api/transactions/create", c.baseURL)
	body, err := json.Marshal(movementEntry{
		AccountNumber:       accountNumber,
		Amount:              amount,
		TransactionType:     direction,
		SourceAccountNumber: sourceAccount,
		TargetAccountNumber: targetAccount,
		Description:         description,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal movement entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to transaction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("transaction service returned error status %d", resp.StatusCode)
	}
	return nil
}
