package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/cashflow/internal/domain"
)

// LedgerUseCase handles ledger business logic.
type LedgerUseCase struct {
	repo   LedgerRepository
	cache  *ReportCache
	idGen  IDGenerator
	policy domain.DebitPolicy
	now    func() time.Time
}

// LedgerOption configures a LedgerUseCase.
type LedgerOption func(*LedgerUseCase)

// WithLedgerClock overrides the clock used to stamp entries.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(uc *LedgerUseCase) { uc.now = now }
}

// WithDebitPolicy sets the overdraft policy applied to every ledger.
func WithDebitPolicy(p domain.DebitPolicy) LedgerOption {
	return func(uc *LedgerUseCase) { uc.policy = p }
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(repo LedgerRepository, cache *ReportCache, idGen IDGenerator, opts ...LedgerOption) *LedgerUseCase {
	uc := &LedgerUseCase{
		repo:   repo,
		cache:  cache,
		idGen:  idGen,
		policy: domain.DebitPolicyAllowOverdraft,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *LedgerUseCase) ledgerOptions() []domain.LedgerOption {
	return []domain.LedgerOption{
		domain.WithClock(uc.now),
		domain.WithIDGenerator(uc.idGen.Generate),
		domain.WithDebitPolicy(uc.policy),
	}
}

// RegisterLedgerInput represents input for registering a ledger.
type RegisterLedgerInput struct {
	Name          string
	InitialCredit *domain.Amount
	Description   string
}

// RegisterLedger opens a new ledger, optionally with an initial credit.
func (uc *LedgerUseCase) RegisterLedger(ctx context.Context, input RegisterLedgerInput) (*domain.Ledger, error) {
	ledger, err := domain.NewLedger(input.Name, uc.now(), uc.ledgerOptions()...)
	if err != nil {
		return nil, err
	}

	var credited *domain.Entry
	if input.InitialCredit != nil {
		e, err := ledger.AddCredit(*input.InitialCredit, input.Description)
		if err != nil {
			return nil, err
		}
		credited = &e
	}

	if err := uc.repo.Add(ctx, ledger); err != nil {
		return nil, fmt.Errorf("add ledger: %w", err)
	}

	if credited != nil {
		uc.cache.Retire(ctx, NamespaceDaily, []time.Time{credited.Date()}, uc.now())
	}
	return ledger, nil
}

// AppendEntryInput represents input for a credit or a debit.
type AppendEntryInput struct {
	LedgerID    string
	Amount      domain.Amount
	Description string
}

// Credit appends a credit to a ledger.
func (uc *LedgerUseCase) Credit(ctx context.Context, input AppendEntryInput) (domain.Entry, error) {
	return uc.appendEntry(ctx, input, (*domain.Ledger).AddCredit)
}

// Debit appends a debit to a ledger.
func (uc *LedgerUseCase) Debit(ctx context.Context, input AppendEntryInput) (domain.Entry, error) {
	return uc.appendEntry(ctx, input, (*domain.Ledger).AddDebit)
}

func (uc *LedgerUseCase) appendEntry(
	ctx context.Context,
	input AppendEntryInput,
	add func(*domain.Ledger, domain.Amount, string) (domain.Entry, error),
) (domain.Entry, error) {
	// Validate before touching the store.
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return domain.Entry{}, err
	}
	if err := domain.ValidateDescription(input.Description); err != nil {
		return domain.Entry{}, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		ledger, err := uc.load(ctx, input.LedgerID)
		if err != nil {
			return domain.Entry{}, err
		}

		entry, err := add(ledger, input.Amount, input.Description)
		if err != nil {
			return domain.Entry{}, err
		}

		err = uc.repo.Update(ctx, ledger)
		if err == nil {
			uc.cache.Retire(ctx, NamespaceDaily, []time.Time{entry.Date()}, uc.now())
			return entry, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return domain.Entry{}, fmt.Errorf("update ledger %s: %w", input.LedgerID, err)
		}
		lastErr = err
	}

	return domain.Entry{}, lastErr
}

// RenameLedger changes a ledger's name.
func (uc *LedgerUseCase) RenameLedger(ctx context.Context, id, name string) (*domain.Ledger, error) {
	ledger, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ledger.Rename(name); err != nil {
		return nil, err
	}
	if err := uc.repo.Update(ctx, ledger); err != nil {
		return nil, fmt.Errorf("update ledger %s: %w", id, err)
	}
	return ledger, nil
}

// DeleteLedger removes a ledger and its entries. Every cached report that
// may include those entries is retired; stored reports are kept.
func (uc *LedgerUseCase) DeleteLedger(ctx context.Context, id string) error {
	ledger, err := uc.load(ctx, id)
	if err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete ledger %s: %w", id, err)
	}

	uc.cache.Retire(ctx, NamespaceDaily, ledger.EntryDays(), uc.now())
	uc.cache.BumpEpoch(ctx, uc.now())
	return nil
}

// GetLedger retrieves a ledger by ID.
func (uc *LedgerUseCase) GetLedger(ctx context.Context, id string) (*domain.Ledger, error) {
	return uc.load(ctx, id)
}

// ListLedgersInput represents input for listing ledgers.
type ListLedgersInput struct {
	Limit  int
	Offset int
}

// ListLedgers lists ledgers with pagination.
func (uc *LedgerUseCase) ListLedgers(ctx context.Context, input ListLedgersInput) ([]*domain.Ledger, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	ledgers, err := uc.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if offset >= len(ledgers) {
		return []*domain.Ledger{}, nil
	}
	end := min(offset+limit, len(ledgers))
	return ledgers[offset:end], nil
}

// EntriesByDate returns a ledger's entries recorded on date.
func (uc *LedgerUseCase) EntriesByDate(ctx context.Context, id string, date time.Time) ([]domain.Entry, error) {
	ledger, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return ledger.EntriesByDate(date), nil
}

func (uc *LedgerUseCase) load(ctx context.Context, id string) (*domain.Ledger, error) {
	ledger, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ledger.Apply(uc.ledgerOptions()...)
	return ledger, nil
}
