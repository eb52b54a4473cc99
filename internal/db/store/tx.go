package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store adds transactional operations on top of Queries.
type Store struct {
	*Queries
	db TxBeginner
}

func NewStore(db TxBeginner) *Store {
	return &Store{Queries: New(db), db: db}
}

// execTx runs fn inside one transaction, rolling back when fn fails.
func (s *Store) execTx(ctx context.Context, fn func(*Queries) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(s.WithTx(tx))
	})
}

// ReplaceDeviceBindings swaps an iteration's whole roster. Deleting first lets serials
// move between participants without tripping the per-iteration serial index.
func (s *Store) ReplaceDeviceBindings(ctx context.Context, iterationID int64, arg []InsertDeviceBindingParams) error {
	return s.execTx(ctx, func(q *Queries) error {
		if err := q.DeleteDeviceBindings(ctx, iterationID); err != nil {
			return err
		}
		return q.InsertDeviceBindings(ctx, arg)
	})
}
