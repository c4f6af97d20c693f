// Package postgres is the PostgreSQL Repository. It implements
// core.Transactor, so reservations and work-order creation commit or roll
// back as one database transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"factory-mrp/internal/core"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store runs every statement against q: the pool, or a transaction when the
// Store was handed out by WithTx.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var (
	_ core.Repository = (*Store)(nil)
	_ core.Transactor = (*Store)(nil)
)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// WithTx runs fn inside one transaction. Calls nested inside fn reuse the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx core.Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", core.ErrStorageFailure, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", core.ErrStorageFailure, err)
	}
	return nil
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// mapError translates constraint violations into domain errors and marks
// everything else as a storage failure.
func mapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case "items_item_code_key":
				return fmt.Errorf("%s: %w", op, core.ErrDuplicateItemCode)
			case "work_orders_wo_number_key":
				return fmt.Errorf("%s: %w", op, core.ErrDuplicateWONumber)
			case "bom_finished_good_id_raw_material_id_key":
				return fmt.Errorf("%s: %w: raw material listed twice", op, core.ErrInvalidBOMLine)
			}
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", op, core.ErrItemNotFound, pgErr.Detail)
		case codeCheckViolation:
			if pgErr.ConstraintName == "items_current_stock_check" {
				return fmt.Errorf("%s: %w", op, core.ErrInsufficientStock)
			}
		}
	}
	return fmt.Errorf("%w: %s: %w", core.ErrStorageFailure, op, err)
}
