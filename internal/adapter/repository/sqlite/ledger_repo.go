/*
Package sqlite provides a single-file SQLite implementation of
usecase.LedgerRepository for local runs and small deployments.

TABLES:

	ledgers:  one row per ledger with its stored balance and version
	entries:  append-only credits and debits, ordered by (ledger_id, seq)
	reports:  immutable consolidations, unique on (scope, start, end, fingerprint)

Amounts are stored as decimal text and timestamps as RFC 3339 text in UTC,
so values round-trip exactly.

The schema is applied on New. The database is opened in WAL mode with
foreign keys on, and the pool holds a single connection: SQLite allows one
writer at a time and ":memory:" databases are per connection.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/iho/cashflow/internal/domain"
)

const timeLayout = time.RFC3339Nano

var errLedgerExists = errors.New("ledger already exists")

// LedgerRepository implements usecase.LedgerRepository on SQLite.
type LedgerRepository struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func New(path string) (*LedgerRepository, error) {
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		dsn = "file:" + path
	}
	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	repo := &LedgerRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repo, nil
}

// Close closes the database.
func (r *LedgerRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database is reachable.
func (r *LedgerRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *LedgerRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledgers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		opened_date TEXT NOT NULL,
		balance TEXT NOT NULL,
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		ledger_id TEXT NOT NULL REFERENCES ledgers(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('credit', 'debit')),
		amount TEXT NOT NULL,
		description TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (ledger_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_entry_date ON entries(entry_date);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_credits TEXT NOT NULL,
		total_debits TEXT NOT NULL,
		final_balance TEXT NOT NULL,
		entries_json TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (scope, start_date, end_date, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_range ON reports(start_date, end_date);
	`
	_, err := r.db.Exec(schema)
	return err
}

// GetByID retrieves a ledger by ID.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*domain.Ledger, error) {
	var ledgers []*domain.Ledger
	err := r.read(ctx, func(tx *sql.Tx) error {
		var err error
		ledgers, err = loadLedgers(ctx, tx,
			`SELECT id, name, opened_date, balance, version FROM ledgers WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return nil, storeError("get ledger", err)
	}
	if len(ledgers) == 0 {
		return nil, domain.ErrLedgerNotFound
	}
	return ledgers[0], nil
}

// GetByDate returns the ledgers with entries on date, ordered by ID.
func (r *LedgerRepository) GetByDate(ctx context.Context, date time.Time) ([]*domain.Ledger, error) {
	var ledgers []*domain.Ledger
	err := r.read(ctx, func(tx *sql.Tx) error {
		var err error
		ledgers, err = loadLedgers(ctx, tx, `
			SELECT id, name, opened_date, balance, version FROM ledgers
			WHERE id IN (SELECT DISTINCT ledger_id FROM entries WHERE entry_date = ?)
			ORDER BY id`, dayString(date))
		return err
	})
	if err != nil {
		return nil, storeError("get ledgers by date", err)
	}
	return ledgers, nil
}

// GetAll returns every ledger ordered by ID.
func (r *LedgerRepository) GetAll(ctx context.Context) ([]*domain.Ledger, error) {
	var ledgers []*domain.Ledger
	err := r.read(ctx, func(tx *sql.Tx) error {
		var err error
		ledgers, err = loadLedgers(ctx, tx,
			`SELECT id, name, opened_date, balance, version FROM ledgers ORDER BY id`)
		return err
	})
	if err != nil {
		return nil, storeError("list ledgers", err)
	}
	return ledgers, nil
}

// Add stores a new ledger with its entries.
func (r *LedgerRepository) Add(ctx context.Context, ledger *domain.Ledger) error {
	err := r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledgers (id, name, opened_date, balance, version) VALUES (?, ?, ?, ?, ?)`,
			ledger.ID(), ledger.Name(), dayString(ledger.OpenedDate()),
			ledger.CurrentBalance().String(), ledger.Version()+1)
		if err != nil {
			if isConstraint(err) {
				return fmt.Errorf("%w: %s", errLedgerExists, ledger.ID())
			}
			return err
		}
		return insertEntries(ctx, tx, ledger.PendingEntries(), 0)
	})
	if err != nil {
		return storeError("add ledger", err)
	}

	ledger.MarkCommitted()
	return nil
}

// Update stores name and balance and appends pending entries.
func (r *LedgerRepository) Update(ctx context.Context, ledger *domain.Ledger) error {
	err := r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE ledgers SET name = ?, balance = ?, version = version + 1 WHERE id = ? AND version = ?`,
			ledger.Name(), ledger.CurrentBalance().String(), ledger.ID(), ledger.Version())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists bool
			err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ledgers WHERE id = ?)`, ledger.ID()).Scan(&exists)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrLedgerNotFound
			}
			return fmt.Errorf("%w: ledger %s at version %d", domain.ErrConcurrentUpdate, ledger.ID(), ledger.Version())
		}

		base := ledger.EntryCount() - len(ledger.PendingEntries())
		return insertEntries(ctx, tx, ledger.PendingEntries(), base)
	})
	if err != nil {
		return storeError("update ledger", err)
	}

	ledger.MarkCommitted()
	return nil
}

// Delete removes a ledger and, through the foreign key, its entries.
func (r *LedgerRepository) Delete(ctx context.Context, id string) error {
	err := r.write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM ledgers WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrLedgerNotFound
		}
		return nil
	})
	if err != nil {
		return storeError("delete ledger", err)
	}
	return nil
}

// AddReport stores rep unless an identical consolidation exists.
func (r *LedgerRepository) AddReport(ctx context.Context, rep domain.Report) (bool, error) {
	n, err := r.AddReports(ctx, []domain.Report{rep})
	return n == 1, err
}

// AddReports stores a batch in one transaction.
func (r *LedgerRepository) AddReports(ctx context.Context, reports []domain.Report) (int, error) {
	inserted := 0
	err := r.write(ctx, func(tx *sql.Tx) error {
		inserted = 0
		for _, rep := range reports {
			entries := rep.Entries
			if entries == nil {
				entries = []domain.Entry{}
			}
			data, err := json.Marshal(entries)
			if err != nil {
				return fmt.Errorf("encode report %s entries: %w", rep.ID, err)
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO reports (id, scope, start_date, end_date, total_credits, total_debits,
					final_balance, entries_json, fingerprint, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (scope, start_date, end_date, fingerprint) DO NOTHING`,
				rep.ID, rep.Scope, dayString(rep.StartDate), dayString(rep.EndDate),
				rep.TotalCredits.String(), rep.TotalDebits.String(), rep.FinalBalance.String(),
				string(data), rep.Fingerprint, rep.CreatedAt.UTC().Format(timeLayout))
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, storeError("add reports", err)
	}
	return inserted, nil
}

// GetReportsByDate returns the daily reports of date in insertion order.
func (r *LedgerRepository) GetReportsByDate(ctx context.Context, date time.Time) ([]domain.Report, error) {
	key := dayString(date)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, scope, start_date, end_date, total_credits, total_debits,
			final_balance, entries_json, fingerprint, created_at
		FROM reports WHERE start_date = ? AND end_date = ?
		ORDER BY rowid`, key, key)
	if err != nil {
		return nil, storeError("get reports", err)
	}
	defer rows.Close()

	reports := make([]domain.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, storeError("get reports", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("get reports", err)
	}
	return reports, nil
}

func (r *LedgerRepository) read(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

func (r *LedgerRepository) write(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

type ledgerRow struct {
	id, name, opened, balance string
	version                   int64
}

// loadLedgers runs a ledger query and attaches each ledger's entries.
// The ledger rows are drained before the entry query runs, since the
// transaction holds the only connection.
func loadLedgers(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]*domain.Ledger, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var heads []ledgerRow
	for rows.Next() {
		var h ledgerRow
		if err := rows.Scan(&h.id, &h.name, &h.opened, &h.balance, &h.version); err != nil {
			rows.Close()
			return nil, err
		}
		heads = append(heads, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ledgers := make([]*domain.Ledger, 0, len(heads))
	for _, h := range heads {
		entries, err := loadEntries(ctx, tx, h.id)
		if err != nil {
			return nil, err
		}
		opened, err := domain.ParseDay(h.opened)
		if err != nil {
			return nil, fmt.Errorf("ledger %s opened date: %w", h.id, err)
		}
		balance, err := domain.ParseAmount(h.balance)
		if err != nil {
			return nil, fmt.Errorf("ledger %s balance: %w", h.id, err)
		}

		l, err := domain.RestoreLedger(domain.LedgerSnapshot{
			ID:         h.id,
			Name:       h.name,
			OpenedDate: opened,
			Balance:    balance,
			Version:    h.version,
			Entries:    entries,
		})
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, nil
}

func loadEntries(ctx context.Context, tx *sql.Tx, ledgerID string) ([]domain.Entry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, kind, amount, description, created_at
		FROM entries WHERE ledger_id = ? ORDER BY seq`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var (
			e                domain.Entry
			kind, amount, at string
		)
		if err := rows.Scan(&e.ID, &kind, &amount, &e.Description, &at); err != nil {
			return nil, err
		}
		e.LedgerID = ledgerID
		e.Kind = domain.EntryKind(kind)
		if e.Amount, err = domain.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("entry %s amount: %w", e.ID, err)
		}
		if e.Timestamp, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("entry %s timestamp: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []domain.Entry, base int) error {
	for i, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (id, ledger_id, seq, kind, amount, description, entry_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.LedgerID, base+i, string(e.Kind), e.Amount.String(), e.Description,
			dayString(e.Timestamp), e.Timestamp.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (domain.Report, error) {
	var (
		rep                            domain.Report
		start, end, created            string
		credits, debits, balance, data string
	)
	if err := s.Scan(&rep.ID, &rep.Scope, &start, &end, &credits, &debits,
		&balance, &data, &rep.Fingerprint, &created); err != nil {
		return domain.Report{}, err
	}

	var err error
	if rep.StartDate, err = domain.ParseDay(start); err != nil {
		return domain.Report{}, err
	}
	if rep.EndDate, err = domain.ParseDay(end); err != nil {
		return domain.Report{}, err
	}
	if rep.TotalCredits, err = domain.ParseAmount(credits); err != nil {
		return domain.Report{}, err
	}
	if rep.TotalDebits, err = domain.ParseAmount(debits); err != nil {
		return domain.Report{}, err
	}
	if rep.FinalBalance, err = domain.ParseAmount(balance); err != nil {
		return domain.Report{}, err
	}
	if rep.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return domain.Report{}, err
	}
	rep.Entries = make([]domain.Entry, 0)
	if err := json.Unmarshal([]byte(data), &rep.Entries); err != nil {
		return domain.Report{}, fmt.Errorf("decode report %s entries: %w", rep.ID, err)
	}
	return rep, nil
}

func dayString(t time.Time) string {
	return domain.Day(t).Format(domain.DateLayout)
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// storeError keeps domain errors and wraps driver failures as transient.
func storeError(op string, err error) error {
	for _, target := range []error{
		domain.ErrLedgerNotFound,
		domain.ErrConcurrentUpdate,
		domain.ErrInconsistentBalance,
		domain.ErrUnknownEntryKind,
		errLedgerExists,
		context.Canceled,
	} {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrTransientStoreFailure, op, err)
}
