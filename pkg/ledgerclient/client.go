/**
 * @description
 * This package provides a client for communicating with the account-service,
 * which holds the authoritative account balances. It encapsulates the logic for
 * making authenticated API calls for account existence checks, account reads,
 * and the debit/credit operations performed during transfer execution.
 *
 * @notes
 * - Debit and credit are the sole authority on overdrafts: the client surfaces
 *   ErrInsufficientFunds when the account-service rejects a debit so callers
 *   can distinguish it from transient failures.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Client is a client for the account-service ledger API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new account-service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Account is the subset of account data the transfer flows need.
type Account struct {
	AccountNumber string          `json:"account_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Balance       decimal.Decimal `json:"balance"`
}

// BalanceResult is the response from a debit or credit operation.
type BalanceResult struct {
	AccountNumber string          `json:"account_number"`
	NewBalance    decimal.Decimal `json:"balance"`
	Message       string          `json:"message,omitempty"`
}

type movementRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type apiError struct {
	Error string `json:"error"`
}

// ExistsAccount checks whether an account number is known to the account-service.
func (c *Client) ExistsAccount(ctx context.Context, accountNumber, bearerToken string) (bool, error) {
	url := fmt.Sprintf("%s/api/accounts/exists/%s", c.baseURL, accountNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request to account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("account service returned error status %d", resp.StatusCode)
	}

	var payload struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return payload.Exists, nil
}

// GetAccount reads an account's owner and current balance.
func (c *Client) GetAccount(ctx context.Context, accountNumber, bearerToken string) (*Account, error) {
	url := fmt.Sprintf("%s/api/accounts/%s", c.baseURL, accountNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrAccountNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("account service returned error status %d", resp.StatusCode)
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &account, nil
}

// Debit removes amount from an account. The description should reference the
// transfer identifier for traceability on ledger statements.
func (c *Client) Debit(ctx context.Context, accountNumber string, amount decimal.Decimal, description, bearerToken string) (*BalanceResult, error) {
	return c.move(ctx, accountNumber, "debit", amount, description, bearerToken)
}

// Credit adds amount to an account.
func (c *Client) Credit(ctx context.Context, accountNumber string, amount decimal.Decimal, description, bearerToken string) (*BalanceResult, error) {
	return c.move(ctx, accountNumber, "credit", amount, description, bearerToken)
}

func (c *Client) move(ctx context.Context, accountNumber, operation string, amount decimal.Decimal, description, bearerToken string) (*BalanceResult, error) {
	url := fmt.Sprintf("%s/api/accounts/%s/%s", c.baseURL, accountNumber, operation)

	body, err := json.Marshal(movementRequest{Amount: amount, Description: description})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request to account service: %w", operation, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrAccountNotFound
	case resp.StatusCode == http.StatusPaymentRequired, resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrInsufficientFunds
	case resp.StatusCode >= 400:
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && strings.Contains(strings.ToLower(apiErr.Error), "insufficient") {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("account service %s returned error status %d", operation, resp.StatusCode)
	}

	var result BalanceResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
