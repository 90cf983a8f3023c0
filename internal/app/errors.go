package app

import "errors"

// Validation errors surfaced synchronously by InitiateTransfer. When one of
// these is returned no transfer record has been created.
var (
	ErrInvalidAmount             = errors.New("transfer amount must be greater than zero")
	ErrTargetAccountNotFound     = errors.New("target account does not exist")
	ErrUnauthorizedSourceAccount = errors.New("source account does not belong to the requesting customer")
	ErrInsufficientFunds         = errors.New("insufficient balance in source account")
	ErrSameAccount               = errors.New("cannot transfer to the same account")
	ErrRateLimited               = errors.New("transfer rate limit exceeded")
)

// ErrPublishFailed wraps channel publish failures. The transfer has been
// persisted as PENDING and will not progress without operator intervention.
var ErrPublishFailed = errors.New("failed to publish transfer event")
