package usecase

import (
	"errors"
	"time"
)

const (
	// DailyReportTTL is how long an on-demand daily or period report is cached.
	DailyReportTTL = 24 * time.Hour

	// SnapshotTTL is how long the result of a daily consolidation run is cached.
	SnapshotTTL = 30 * 24 * time.Hour

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// maxAppendAttempts bounds reloads after a concurrent ledger update.
	maxAppendAttempts = 3
)

// IdempotencyPending is the value an IdempotencyStore holds for a key
// whose request has not completed yet.
const IdempotencyPending = "processing"

// ErrCacheMiss is returned by Cache implementations when a key is absent.
var ErrCacheMiss = errors.New("cache miss")
