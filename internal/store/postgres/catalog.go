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

const itemColumns = `id, item_code, name, description, category, unit, unit_price,
	current_stock, min_stock, max_stock, is_raw_material, is_finished_good,
	created_by, created_at, updated_at`

func scanItem(row pgx.Row) (*core.Item, error) {
	var it core.Item
	var maxStock decimal.NullDecimal
	if err := row.Scan(&it.ID, &it.Code, &it.Name, &it.Description, &it.Category, &it.Unit, &it.UnitPrice,
		&it.CurrentStock, &it.MinStock, &maxStock, &it.IsRawMaterial, &it.IsFinishedGood,
		&it.CreatedBy, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	if maxStock.Valid {
		it.MaxStock = &maxStock.Decimal
	}
	return &it, nil
}

func (s *Store) CreateItem(ctx context.Context, item *core.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	var maxStock decimal.NullDecimal
	if item.MaxStock != nil {
		maxStock = decimal.NewNullDecimal(*item.MaxStock)
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO items (id, item_code, name, description, category, unit, unit_price,
		                   current_stock, min_stock, max_stock, is_raw_material, is_finished_good, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		item.ID, item.Code, item.Name, item.Description, item.Category, item.Unit, item.UnitPrice,
		item.CurrentStock, item.MinStock, maxStock, item.IsRawMaterial, item.IsFinishedGood, item.CreatedBy,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return mapError(fmt.Sprintf("insert item %q", item.Code), err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*core.Item, error) {
	it, err := scanItem(s.q.QueryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrItemNotFound, id)
		}
		return nil, mapError("get item", err)
	}
	return it, nil
}

func (s *Store) ListItems(ctx context.Context, filter core.ItemFilter) ([]core.Item, error) {
	rows, err := s.q.Query(ctx, "SELECT "+itemColumns+` FROM items
		WHERE ($1::boolean IS NULL OR is_raw_material = $1)
		  AND ($2::boolean IS NULL OR is_finished_good = $2)
		ORDER BY item_code`,
		filter.RawMaterial, filter.FinishedGood,
	)
	if err != nil {
		return nil, mapError("query items", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, mapError("scan item", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate items", err)
	}
	return items, nil
}

// ── Bills of materials ────────────────────────────────────────────────────────

const bomSelect = `
	SELECT b.id, b.finished_good_id, b.raw_material_id, r.item_code, r.name,
	       b.quantity_required, COALESCE(NULLIF(b.unit, ''), r.unit), b.notes, b.created_at
	FROM bom b
	JOIN items r ON r.id = b.raw_material_id`

func scanBOMLines(rows pgx.Rows) ([]core.BOMLine, error) {
	defer rows.Close()
	var lines []core.BOMLine
	for rows.Next() {
		var l core.BOMLine
		if err := rows.Scan(&l.ID, &l.FinishedGoodID, &l.RawMaterialID, &l.RawMaterialCode, &l.RawMaterialName,
			&l.QuantityRequired, &l.Unit, &l.Notes, &l.CreatedAt); err != nil {
			return nil, mapError("scan BOM line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate BOM lines", err)
	}
	return lines, nil
}

func (s *Store) CreateBOM(ctx context.Context, lines []core.BOMLine) error {
	batch := &pgx.Batch{}
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		l := lines[i]
		batch.Queue(`
			INSERT INTO bom (id, finished_good_id, raw_material_id, quantity_required, unit, notes)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, l.FinishedGoodID, l.RawMaterialID, l.QuantityRequired, l.Unit, l.Notes)
	}

	// A batch is not atomic on its own; run it in a transaction unless one is open.
	return s.WithTx(ctx, func(r core.Repository) error {
		tx := r.(*Store)
		br := tx.sendBatch(ctx, batch)
		defer br.Close()
		for range lines {
			if _, err := br.Exec(); err != nil {
				return mapError("insert BOM line", err)
			}
		}
		return nil
	})
}

func (s *Store) sendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	type batcher interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	}
	return s.q.(batcher).SendBatch(ctx, b)
}

func (s *Store) ListBOMLines(ctx context.Context) ([]core.BOMLine, error) {
	rows, err := s.q.Query(ctx, bomSelect+" ORDER BY b.finished_good_id, b.created_at")
	if err != nil {
		return nil, mapError("query BOM lines", err)
	}
	return scanBOMLines(rows)
}

func (s *Store) DeleteBOM(ctx context.Context, finishedGoodID uuid.UUID) (int, error) {
	tag, err := s.q.Exec(ctx, "DELETE FROM bom WHERE finished_good_id = $1", finishedGoodID)
	if err != nil {
		return 0, mapError("delete BOM", err)
	}
	return int(tag.RowsAffected()), nil
}
