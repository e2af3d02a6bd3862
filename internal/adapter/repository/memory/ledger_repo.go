package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iho/cashflow/internal/domain"
)

type reportKey struct {
	scope       string
	start, end  time.Time
	fingerprint string
}

// LedgerRepository implements usecase.LedgerRepository in process memory.
type LedgerRepository struct {
	mu         sync.RWMutex
	ledgers    map[string]domain.LedgerSnapshot
	reports    []domain.Report
	reportKeys map[reportKey]struct{}
}

// NewLedgerRepository creates an empty LedgerRepository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		ledgers:    make(map[string]domain.LedgerSnapshot),
		reportKeys: make(map[reportKey]struct{}),
	}
}

// GetByID retrieves a ledger by ID.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*domain.Ledger, error) {
	r.mu.RLock()
	s, ok := r.ledgers[id]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrLedgerNotFound
	}
	return domain.RestoreLedger(copySnapshot(s))
}

// GetByDate returns the ledgers with entries on date, ordered by ID.
func (r *LedgerRepository) GetByDate(ctx context.Context, date time.Time) ([]*domain.Ledger, error) {
	return r.list(func(s domain.LedgerSnapshot) bool {
		return slices.ContainsFunc(s.Entries, func(e domain.Entry) bool {
			return domain.SameDay(e.Timestamp, date)
		})
	})
}

// GetAll returns every ledger ordered by ID.
func (r *LedgerRepository) GetAll(ctx context.Context) ([]*domain.Ledger, error) {
	return r.list(func(domain.LedgerSnapshot) bool { return true })
}

func (r *LedgerRepository) list(keep func(domain.LedgerSnapshot) bool) ([]*domain.Ledger, error) {
	r.mu.RLock()
	snapshots := make([]domain.LedgerSnapshot, 0, len(r.ledgers))
	for _, s := range r.ledgers {
		if keep(s) {
			snapshots = append(snapshots, copySnapshot(s))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(snapshots, func(a, b domain.LedgerSnapshot) int {
		return strings.Compare(a.ID, b.ID)
	})

	ledgers := make([]*domain.Ledger, 0, len(snapshots))
	for _, s := range snapshots {
		l, err := domain.RestoreLedger(s)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

// Add stores a new ledger with its entries.
func (r *LedgerRepository) Add(ctx context.Context, ledger *domain.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ledgers[ledger.ID()]; ok {
		return fmt.Errorf("ledger %s already exists", ledger.ID())
	}

	s := ledger.Snapshot()
	s.Version++
	r.ledgers[s.ID] = s
	ledger.MarkCommitted()
	return nil
}

// Update stores name and balance and appends pending entries.
func (r *LedgerRepository) Update(ctx context.Context, ledger *domain.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.ledgers[ledger.ID()]
	if !ok {
		return domain.ErrLedgerNotFound
	}
	if stored.Version != ledger.Version() {
		return fmt.Errorf("%w: ledger %s at version %d, expected %d",
			domain.ErrConcurrentUpdate, ledger.ID(), stored.Version, ledger.Version())
	}

	stored.Name = ledger.Name()
	stored.Balance = ledger.CurrentBalance()
	stored.Entries = append(slices.Clip(stored.Entries), ledger.PendingEntries()...)
	stored.Version++
	r.ledgers[stored.ID] = stored

	ledger.MarkCommitted()
	return nil
}

// Delete removes a ledger and its entries.
func (r *LedgerRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ledgers[id]; !ok {
		return domain.ErrLedgerNotFound
	}
	delete(r.ledgers, id)
	return nil
}

// AddReport stores rep unless an identical consolidation exists.
func (r *LedgerRepository) AddReport(ctx context.Context, rep domain.Report) (bool, error) {
	n, err := r.AddReports(ctx, []domain.Report{rep})
	return n == 1, err
}

// AddReports stores a batch atomically.
func (r *LedgerRepository) AddReports(ctx context.Context, reports []domain.Report) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, rep := range reports {
		k := reportKey{
			scope:       rep.Scope,
			start:       domain.Day(rep.StartDate),
			end:         domain.Day(rep.EndDate),
			fingerprint: rep.Fingerprint,
		}
		if _, ok := r.reportKeys[k]; ok {
			continue
		}
		r.reportKeys[k] = struct{}{}
		rep.Entries = slices.Clone(rep.Entries)
		r.reports = append(r.reports, rep)
		inserted++
	}
	return inserted, nil
}

// GetReportsByDate returns the daily reports of date in insertion order.
func (r *LedgerRepository) GetReportsByDate(ctx context.Context, date time.Time) ([]domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	day := domain.Day(date)
	out := make([]domain.Report, 0)
	for _, rep := range r.reports {
		if rep.StartDate.Equal(day) && rep.EndDate.Equal(day) {
			rep.Entries = slices.Clone(rep.Entries)
			out = append(out, rep)
		}
	}
	return out, nil
}

func copySnapshot(s domain.LedgerSnapshot) domain.LedgerSnapshot {
	s.Entries = slices.Clone(s.Entries)
	return s
}
