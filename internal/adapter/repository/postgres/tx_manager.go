package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/cashflow/internal/infrastructure/postgres/generated"
)

// pgxPool is the part of *pgxpool.Pool the repository needs.
type pgxPool interface {
	generated.DBTX
	Begin(context.Context) (pgx.Tx, error)
	BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error)
}

// TxManager runs query functions inside transactions.
type TxManager struct {
	pool pgxPool
}

func newTxManager(pool pgxPool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx runs fn in a read-write transaction and commits when it returns nil.
func (m *TxManager) WithTx(ctx context.Context, fn func(q *generated.Queries) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	return run(ctx, tx, fn)
}

// ReadOnly runs fn in a repeatable-read, read-only transaction so that
// related rows are read from one snapshot.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(q *generated.Queries) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return err
	}
	return run(ctx, tx, fn)
}

func run(ctx context.Context, tx pgx.Tx, fn func(q *generated.Queries) error) error {
	if err := fn(generated.New(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
