package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"factory-mrp/internal/core"
)

const workOrderSelect = `
	SELECT w.id, w.wo_number, w.item_id, i.item_code, i.name,
	       w.quantity_to_produce, w.quantity_produced, w.status, w.production_stage,
	       w.start_date, w.target_date, w.completion_date, w.notes, w.created_by,
	       w.created_at, w.updated_at
	FROM work_orders w
	JOIN items i ON i.id = w.item_id`

func scanWorkOrder(row pgx.Row) (*core.WorkOrder, error) {
	var wo core.WorkOrder
	var status, stage string
	if err := row.Scan(&wo.ID, &wo.Number, &wo.ItemID, &wo.ItemCode, &wo.ItemName,
		&wo.QuantityToProduce, &wo.QuantityProduced, &status, &stage,
		&wo.StartDate, &wo.TargetDate, &wo.CompletionDate, &wo.Notes, &wo.CreatedBy,
		&wo.CreatedAt, &wo.UpdatedAt); err != nil {
		return nil, err
	}
	wo.Status = core.WorkOrderStatus(status)
	wo.Stage = core.ProductionStage(stage)
	return &wo, nil
}

func (s *Store) CreateWorkOrder(ctx context.Context, wo *core.WorkOrder) error {
	if wo.ID == uuid.Nil {
		wo.ID = uuid.New()
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO work_orders (id, wo_number, item_id, quantity_to_produce, quantity_produced,
		                         status, production_stage, start_date, target_date, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		wo.ID, wo.Number, wo.ItemID, wo.QuantityToProduce, wo.QuantityProduced,
		string(wo.Status), string(wo.Stage), wo.StartDate, wo.TargetDate, wo.Notes, wo.CreatedBy,
	).Scan(&wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		return mapError(fmt.Sprintf("insert work order %s", wo.Number), err)
	}
	return nil
}

func (s *Store) GetWorkOrder(ctx context.Context, id uuid.UUID) (*core.WorkOrder, error) {
	return s.getWorkOrder(ctx, workOrderSelect+" WHERE w.id = $1", id)
}

// LockWorkOrder takes a row lock on the work order for the rest of the transaction.
func (s *Store) LockWorkOrder(ctx context.Context, id uuid.UUID) (*core.WorkOrder, error) {
	return s.getWorkOrder(ctx, workOrderSelect+" WHERE w.id = $1 FOR UPDATE OF w", id)
}

func (s *Store) getWorkOrder(ctx context.Context, query string, id uuid.UUID) (*core.WorkOrder, error) {
	wo, err := scanWorkOrder(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, id)
		}
		return nil, mapError("get work order", err)
	}
	return wo, nil
}

func (s *Store) ListWorkOrders(ctx context.Context, status *core.WorkOrderStatus) ([]core.WorkOrder, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.q.Query(ctx, workOrderSelect+`
		WHERE ($1::text IS NULL OR w.status = $1)
		ORDER BY w.created_at DESC`, filter)
	if err != nil {
		return nil, mapError("query work orders", err)
	}
	defer rows.Close()

	var out []core.WorkOrder
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			return nil, mapError("scan work order", err)
		}
		out = append(out, *wo)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate work orders", err)
	}
	return out, nil
}

func (s *Store) UpdateWorkOrder(ctx context.Context, wo *core.WorkOrder) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE work_orders
		SET quantity_produced = $2, status = $3, production_stage = $4,
		    completion_date = $5, notes = $6, updated_at = now()
		WHERE id = $1`,
		wo.ID, wo.QuantityProduced, string(wo.Status), string(wo.Stage), wo.CompletionDate, wo.Notes,
	)
	if err != nil {
		return mapError("update work order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, wo.ID)
	}
	return nil
}

func (s *Store) DeleteWorkOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM work_orders WHERE id = $1", id)
	if err != nil {
		return mapError("delete work order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, id)
	}
	return nil
}

func (s *Store) AddProductionLog(ctx context.Context, l *core.ProductionLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO production_logs (id, work_order_id, production_stage, quantity_completed, notes, logged_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING logged_at`,
		l.ID, l.WorkOrderID, string(l.Stage), l.QuantityCompleted, l.Notes, l.LoggedBy,
	).Scan(&l.LoggedAt)
	if err != nil {
		mapped := mapError("insert production log", err)
		if errors.Is(mapped, core.ErrItemNotFound) {
			return fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, l.WorkOrderID)
		}
		return mapped
	}
	return nil
}

func (s *Store) ListProductionLogs(ctx context.Context, workOrderID uuid.UUID) ([]core.ProductionLog, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, work_order_id, production_stage, quantity_completed, notes, logged_by, logged_at
		FROM production_logs
		WHERE work_order_id = $1
		ORDER BY logged_at, id`, workOrderID)
	if err != nil {
		return nil, mapError("query production logs", err)
	}
	defer rows.Close()

	var out []core.ProductionLog
	for rows.Next() {
		var l core.ProductionLog
		var stage string
		if err := rows.Scan(&l.ID, &l.WorkOrderID, &stage, &l.QuantityCompleted, &l.Notes, &l.LoggedBy, &l.LoggedAt); err != nil {
			return nil, mapError("scan production log", err)
		}
		l.Stage = core.ProductionStage(stage)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate production logs", err)
	}
	return out, nil
}
