package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"factory-mrp/internal/core"
)

func (s *Store) GetBOM(ctx context.Context, finishedGoodID uuid.UUID) ([]core.BOMLine, error) {
	rows, err := s.q.Query(ctx, bomSelect+`
		WHERE b.finished_good_id = $1
		ORDER BY b.created_at, r.item_code`, finishedGoodID)
	if err != nil {
		return nil, mapError("query BOM", err)
	}
	return scanBOMLines(rows)
}

func (s *Store) GetItemStock(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var stock decimal.Decimal
	err := s.q.QueryRow(ctx, "SELECT current_stock FROM items WHERE id = $1", itemID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s", core.ErrItemNotFound, itemID)
		}
		return decimal.Zero, mapError("read stock", err)
	}
	return stock, nil
}

// AdjustStock applies delta only when the result stays non-negative. The
// condition is evaluated by the UPDATE itself, so two concurrent callers can
// never both pass a check that only one of them can satisfy.
func (s *Store) AdjustStock(ctx context.Context, itemID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var next decimal.Decimal
	err := s.q.QueryRow(ctx, `
		UPDATE items
		SET current_stock = current_stock + $1, updated_at = now()
		WHERE id = $2 AND current_stock + $1 >= 0
		RETURNING current_stock`,
		delta, itemID,
	).Scan(&next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, mapError("adjust stock", err)
	}

	// Zero rows: either the item is gone or the condition failed.
	current, readErr := s.GetItemStock(ctx, itemID)
	if readErr != nil {
		return decimal.Zero, readErr
	}
	return current, fmt.Errorf("%w: item %s has %s, change %s", core.ErrInsufficientStock, itemID, current, delta)
}

func (s *Store) RecordMovement(ctx context.Context, m *core.StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO stock_movements (id, item_id, quantity, movement_type, reference_type, reference_id, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		m.ID, m.ItemID, m.Quantity, string(m.Type), m.ReferenceType, m.ReferenceID, m.Notes, m.CreatedBy,
	).Scan(&m.CreatedAt)
	if err != nil {
		return mapError("insert stock movement", err)
	}
	return nil
}

func (s *Store) DeleteMovement(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM stock_movements WHERE id = $1", id)
	if err != nil {
		return mapError("delete stock movement", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("movement %s not found", id)
	}
	return nil
}

// ── Movement log ──────────────────────────────────────────────────────────────

func (s *Store) ListMovements(ctx context.Context, filter core.MovementFilter) ([]core.StockMovement, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, item_id, quantity, movement_type, reference_type, reference_id, notes, created_by, created_at
		FROM stock_movements
		WHERE ($1::uuid IS NULL OR item_id = $1)
		  AND ($2::uuid IS NULL OR reference_id = $2)
		  AND ($3 = '' OR movement_type = $3)
		ORDER BY created_at, id`,
		filter.ItemID, filter.ReferenceID, string(filter.Type),
	)
	if err != nil {
		return nil, mapError("query stock movements", err)
	}
	defer rows.Close()

	var out []core.StockMovement
	for rows.Next() {
		var m core.StockMovement
		var typ string
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Quantity, &typ, &m.ReferenceType, &m.ReferenceID,
			&m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, mapError("scan stock movement", err)
		}
		m.Type = core.MovementType(typ)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate stock movements", err)
	}
	return out, nil
}

func (s *Store) SumMovements(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := s.q.Query(ctx, "SELECT item_id, SUM(quantity) FROM stock_movements GROUP BY item_id")
	if err != nil {
		return nil, mapError("sum stock movements", err)
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]decimal.Decimal)
	for rows.Next() {
		var id uuid.UUID
		var sum decimal.Decimal
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, mapError("scan movement sum", err)
		}
		sums[id] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate movement sums", err)
	}
	return sums, nil
}
