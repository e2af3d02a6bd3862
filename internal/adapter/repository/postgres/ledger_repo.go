package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/infrastructure/postgres/generated"
)

// LedgerRepository implements usecase.LedgerRepository on PostgreSQL.
type LedgerRepository struct {
	tx      *TxManager
	retrier *Retrier
	now     func() time.Time
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool, logger zerolog.Logger) *LedgerRepository {
	return newLedgerRepository(pool, logger)
}

func newLedgerRepository(pool pgxPool, logger zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{
		tx:      newTxManager(pool),
		retrier: NewRetrier(logger.With().Str("component", "postgres_ledger_repo").Logger()),
		now:     time.Now,
	}
}

// GetByID retrieves a ledger with all of its entries.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*domain.Ledger, error) {
	var ledger *domain.Ledger

	err := r.retrier.Retry(ctx, func() error {
		return r.tx.ReadOnly(ctx, func(q *generated.Queries) error {
			row, err := q.GetLedgerByID(ctx, id)
			if err != nil {
				return err
			}
			ledgers, err := hydrate(ctx, q, []generated.Ledger{row})
			if err != nil {
				return err
			}
			ledger = ledgers[0]
			return nil
		})
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLedgerNotFound
	}
	if err != nil {
		return nil, storeError("get ledger", err)
	}

	return ledger, nil
}

// GetByDate returns the ledgers with entries on date, ordered by ID.
func (r *LedgerRepository) GetByDate(ctx context.Context, date time.Time) ([]*domain.Ledger, error) {
	return r.list(ctx, "list ledgers by date", func(q *generated.Queries) ([]generated.Ledger, error) {
		return q.ListLedgersByEntryDate(ctx, toPgDate(date))
	})
}

// GetAll returns every ledger ordered by ID.
func (r *LedgerRepository) GetAll(ctx context.Context) ([]*domain.Ledger, error) {
	return r.list(ctx, "list ledgers", func(q *generated.Queries) ([]generated.Ledger, error) {
		return q.ListLedgers(ctx)
	})
}

func (r *LedgerRepository) list(
	ctx context.Context,
	op string,
	query func(q *generated.Queries) ([]generated.Ledger, error),
) ([]*domain.Ledger, error) {
	var ledgers []*domain.Ledger

	err := r.retrier.Retry(ctx, func() error {
		return r.tx.ReadOnly(ctx, func(q *generated.Queries) error {
			rows, err := query(q)
			if err != nil {
				return err
			}
			ledgers, err = hydrate(ctx, q, rows)
			return err
		})
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	return ledgers, nil
}

// hydrate loads the entries of rows and rebuilds the aggregates.
func hydrate(ctx context.Context, q *generated.Queries, rows []generated.Ledger) ([]*domain.Ledger, error) {
	ledgers := make([]*domain.Ledger, 0, len(rows))
	if len(rows) == 0 {
		return ledgers, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	entryRows, err := q.ListEntriesByLedgerIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byLedger := make(map[string][]domain.Entry, len(rows))
	for _, e := range entryRows {
		byLedger[e.LedgerID] = append(byLedger[e.LedgerID], rowToEntry(e))
	}

	for _, row := range rows {
		l, err := domain.RestoreLedger(domain.LedgerSnapshot{
			ID:         row.ID,
			Name:       row.Name,
			OpenedDate: row.OpenedDate.Time,
			Balance:    numericToAmount(row.Balance),
			Version:    row.Version,
			Entries:    byLedger[row.ID],
		})
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}

	return ledgers, nil
}

// Add stores a new ledger with its entries.
func (r *LedgerRepository) Add(ctx context.Context, ledger *domain.Ledger) error {
	now := r.now().UTC()

	err := r.retrier.Retry(ctx, func() error {
		return r.tx.WithTx(ctx, func(q *generated.Queries) error {
			err := q.CreateLedger(ctx, generated.CreateLedgerParams{
				ID:         ledger.ID(),
				Name:       ledger.Name(),
				OpenedDate: toPgDate(ledger.OpenedDate()),
				Balance:    amountToNumeric(ledger.CurrentBalance()),
				Version:    ledger.Version() + 1,
				CreatedAt:  timeToPgTimestamptz(now),
			})
			if err != nil {
				return err
			}
			return insertEntries(ctx, q, ledger.Entries(), 0)
		})
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("ledger %s already exists", ledger.ID())
	}
	if err != nil {
		return storeError("add ledger", err)
	}

	ledger.MarkCommitted()
	return nil
}

// Update stores name and balance and appends pending entries, provided no
// other writer committed since ledger was loaded.
func (r *LedgerRepository) Update(ctx context.Context, ledger *domain.Ledger) error {
	pending := ledger.PendingEntries()
	base := ledger.EntryCount() - len(pending)
	now := r.now().UTC()

	err := r.retrier.Retry(ctx, func() error {
		return r.tx.WithTx(ctx, func(q *generated.Queries) error {
			n, err := q.UpdateLedger(ctx, generated.UpdateLedgerParams{
				ID:        ledger.ID(),
				Name:      ledger.Name(),
				Balance:   amountToNumeric(ledger.CurrentBalance()),
				Version:   ledger.Version(),
				UpdatedAt: timeToPgTimestamptz(now),
			})
			if err != nil {
				return err
			}
			if n == 0 {
				exists, err := q.LedgerExists(ctx, ledger.ID())
				if err != nil {
					return err
				}
				if !exists {
					return domain.ErrLedgerNotFound
				}
				return fmt.Errorf("%w: ledger %s changed since version %d",
					domain.ErrConcurrentUpdate, ledger.ID(), ledger.Version())
			}
			return insertEntries(ctx, q, pending, base)
		})
	})
	if err != nil {
		return storeError("update ledger", err)
	}

	ledger.MarkCommitted()
	return nil
}

func insertEntries(ctx context.Context, q *generated.Queries, entries []domain.Entry, base int) error {
	for i, e := range entries {
		err := q.CreateEntry(ctx, generated.CreateEntryParams{
			ID:          e.ID,
			LedgerID:    e.LedgerID,
			Seq:         int64(base + i),
			Kind:        string(e.Kind),
			Amount:      amountToNumeric(e.Amount),
			Description: e.Description,
			EntryDate:   toPgDate(e.Timestamp),
			CreatedAt:   timeToPgTimestamptz(e.Timestamp),
		})
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}
	return nil
}

// Delete removes a ledger; its entries go with it. Stored reports are kept.
func (r *LedgerRepository) Delete(ctx context.Context, id string) error {
	var n int64
	err := r.retrier.Retry(ctx, func() error {
		return r.tx.WithTx(ctx, func(q *generated.Queries) error {
			var err error
			n, err = q.DeleteLedger(ctx, id)
			return err
		})
	})
	if err != nil {
		return storeError("delete ledger", err)
	}
	if n == 0 {
		return domain.ErrLedgerNotFound
	}
	return nil
}

// AddReport stores rep unless an identical consolidation exists.
func (r *LedgerRepository) AddReport(ctx context.Context, rep domain.Report) (bool, error) {
	n, err := r.AddReports(ctx, []domain.Report{rep})
	return n == 1, err
}

// AddReports stores a batch in one transaction and returns how many rows
// were new.
func (r *LedgerRepository) AddReports(ctx context.Context, reports []domain.Report) (int, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	params := make([]generated.InsertReportParams, 0, len(reports))
	for _, rep := range reports {
		p, err := reportToParams(rep)
		if err != nil {
			return 0, err
		}
		params = append(params, p)
	}

	var inserted int
	err := r.retrier.Retry(ctx, func() error {
		inserted = 0
		return r.tx.WithTx(ctx, func(q *generated.Queries) error {
			for _, p := range params {
				n, err := q.InsertReport(ctx, p)
				if err != nil {
					return fmt.Errorf("insert report %s: %w", p.ID, err)
				}
				inserted += int(n)
			}
			return nil
		})
	})
	if err != nil {
		return 0, storeError("add reports", err)
	}

	return inserted, nil
}

// GetReportsByDate returns the daily reports of date in insertion order.
func (r *LedgerRepository) GetReportsByDate(ctx context.Context, date time.Time) ([]domain.Report, error) {
	var rows []generated.Report
	err := r.retrier.Retry(ctx, func() error {
		var err error
		rows, err = generated.New(r.tx.pool).ListDailyReportsByDate(ctx, toPgDate(date))
		return err
	})
	if err != nil {
		return nil, storeError("list reports", err)
	}

	reports := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		rep, err := rowToReport(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// storeError passes domain errors through and marks everything else as a
// transient store failure.
func storeError(op string, err error) error {
	for _, target := range []error{
		domain.ErrLedgerNotFound,
		domain.ErrConcurrentUpdate,
		domain.ErrInconsistentBalance,
		domain.ErrUnknownEntryKind,
		context.Canceled,
	} {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrTransientStoreFailure, op, err)
}

func rowToEntry(row generated.Entry) domain.Entry {
	return domain.Entry{
		ID:          row.ID,
		LedgerID:    row.LedgerID,
		Kind:        domain.EntryKind(row.Kind),
		Amount:      numericToAmount(row.Amount),
		Description: row.Description,
		Timestamp:   row.CreatedAt.Time.UTC(),
	}
}

func reportToParams(rep domain.Report) (generated.InsertReportParams, error) {
	entries := rep.Entries
	if entries == nil {
		entries = []domain.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return generated.InsertReportParams{}, fmt.Errorf("encode report %s entries: %w", rep.ID, err)
	}

	return generated.InsertReportParams{
		ID:           rep.ID,
		Scope:        rep.Scope,
		StartDate:    toPgDate(rep.StartDate),
		EndDate:      toPgDate(rep.EndDate),
		TotalCredits: amountToNumeric(rep.TotalCredits),
		TotalDebits:  amountToNumeric(rep.TotalDebits),
		FinalBalance: amountToNumeric(rep.FinalBalance),
		Entries:      data,
		Fingerprint:  rep.Fingerprint,
		CreatedAt:    timeToPgTimestamptz(rep.CreatedAt),
	}, nil
}

func rowToReport(row generated.Report) (domain.Report, error) {
	entries := make([]domain.Entry, 0)
	if err := json.Unmarshal(row.Entries, &entries); err != nil {
		return domain.Report{}, fmt.Errorf("decode report %s entries: %w", row.ID, err)
	}

	return domain.Report{
		ID:           row.ID,
		Scope:        row.Scope,
		StartDate:    row.StartDate.Time,
		EndDate:      row.EndDate.Time,
		TotalCredits: numericToAmount(row.TotalCredits),
		TotalDebits:  numericToAmount(row.TotalDebits),
		FinalBalance: numericToAmount(row.FinalBalance),
		Entries:      entries,
		Fingerprint:  row.Fingerprint,
		CreatedAt:    row.CreatedAt.Time.UTC(),
	}, nil
}

// Type conversion helpers.
func amountToNumeric(a domain.Amount) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(a.Decimal().String())

	return n
}

func numericToAmount(n pgtype.Numeric) domain.Amount {
	if !n.Valid {
		return domain.ZeroAmount
	}

	d := decimal.NewFromBigInt(n.Int, n.Exp)
	return domain.AmountFromDecimal(d)
}

func toPgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.Day(t), Valid: true}
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
