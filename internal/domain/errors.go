package domain

import "errors"

var (
	// Validation errors: surfaced to the caller, never retried.
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidRange        = errors.New("start date must not be after end date")
	ErrDescriptionTooLong  = errors.New("description exceeds maximum length")
	ErrInvalidLedgerName   = errors.New("invalid ledger name")
	ErrInsufficientFunds   = errors.New("insufficient funds for debit")
	ErrUnknownEntryKind    = errors.New("unknown entry kind")
	ErrInconsistentBalance = errors.New("ledger balance does not match its entries")

	// Lookup errors
	ErrLedgerNotFound = errors.New("ledger not found")

	// Infrastructure errors: recovered by the consolidation worker through requeue.
	ErrTransientStoreFailure = errors.New("transient store failure")
	ErrConcurrentUpdate      = errors.New("ledger was modified concurrently")
	ErrCircuitOpen           = errors.New("circuit breaker is open")

	// Consolidation errors
	ErrConsolidationInProgress = errors.New("consolidation already running for date")
	ErrRetryExhausted          = errors.New("consolidation retries exhausted")
)
