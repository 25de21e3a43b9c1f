package orchestrator

import "errors"

var (
	// ErrTransactionNotFound is returned when the transaction id resolves to
	// no row.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAlreadyProcessed is returned when a transaction is no longer
	// pending. Attempting to re-process a terminal transaction is a caller
	// bug, not a retryable condition.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrAmountInvalid is returned for non-positive amounts.
	ErrAmountInvalid = errors.New("amount must be positive")
	// ErrLimitExceeded is returned when the amount exceeds the configured
	// per-transaction ceiling.
	ErrLimitExceeded = errors.New("amount exceeds per-transaction limit")
	// ErrGatewayNotFound is returned when no gateway is configured for the
	// requested type.
	ErrGatewayNotFound = errors.New("gateway not configured")
	// ErrGatewayInactive is returned when the gateway exists but is disabled.
	ErrGatewayInactive = errors.New("gateway is inactive")
	// ErrWalletNotFound is returned by CreatePayment for an unknown wallet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrCurrencyMismatch is returned when the payment currency differs from
	// the wallet currency.
	ErrCurrencyMismatch = errors.New("currency does not match wallet")
)
