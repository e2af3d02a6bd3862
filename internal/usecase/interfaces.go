package usecase

import (
	"context"
	"time"

	"github.com/iho/cashflow/internal/domain"
)

// LedgerReadRepository defines read access to ledgers and stored reports.
type LedgerReadRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ledger, error)
	// GetByDate returns the ledgers having at least one entry on the UTC day of date.
	GetByDate(ctx context.Context, date time.Time) ([]*domain.Ledger, error)
	GetAll(ctx context.Context) ([]*domain.Ledger, error)
	GetReportsByDate(ctx context.Context, date time.Time) ([]domain.Report, error)
}

// LedgerWriteRepository defines write access to ledgers and reports.
type LedgerWriteRepository interface {
	Add(ctx context.Context, ledger *domain.Ledger) error
	// Update stores the ledger's name and balance and appends its pending
	// entries. Fails with domain.ErrConcurrentUpdate when the stored version
	// moved since the ledger was loaded.
	Update(ctx context.Context, ledger *domain.Ledger) error
	// Delete removes the ledger and its entries. Stored reports are kept.
	Delete(ctx context.Context, id string) error
	// AddReport stores r unless a report with the same scope, range and
	// fingerprint exists. Returns true when a row was inserted.
	AddReport(ctx context.Context, r domain.Report) (bool, error)
	// AddReports stores a batch atomically with the same insert-if-absent
	// rule and returns the number of rows inserted.
	AddReports(ctx context.Context, reports []domain.Report) (int, error)
}

// LedgerRepository combines read and write access.
type LedgerRepository interface {
	LedgerReadRepository
	LedgerWriteRepository
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MessageHandler processes one message. A nil return acknowledges it;
// an error requeues it.
type MessageHandler func(ctx context.Context, payload []byte) error

// MessageChannel is an at-least-once work queue.
type MessageChannel interface {
	Publish(ctx context.Context, queue string, payload []byte) error
	// Subscribe delivers messages of queue to handler until ctx is done.
	Subscribe(ctx context.Context, queue string, handler MessageHandler) error
}

// DateLock guards a consolidation date across processes.
type DateLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// CacheObserver receives report cache outcomes, labelled by key namespace.
type CacheObserver interface {
	CacheHit(namespace string)
	CacheMiss(namespace string)
	CacheError(operation string)
}
