package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReservationState is the lifecycle of a single reservation attempt:
//
//	validating → reserving → committed | rolled_back
type ReservationState string

const (
	StateValidating ReservationState = "validating"
	StateReserving  ReservationState = "reserving"
	StateCommitted  ReservationState = "committed"
	StateRolledBack ReservationState = "rolled_back"
)

// referenceTypeWorkOrder tags movements that belong to a work order.
const referenceTypeWorkOrder = "work_order"

// StockReservationCoordinator turns a feasible requirement list into stock
// decrements plus production_use movements tied to one work order.
type StockReservationCoordinator interface {
	// Reserve re-reads stock for every requirement, refuses with an
	// *InsufficientStockError if any line is short, and otherwise decrements
	// every raw material by QuantityPerUnit × productionQuantity. Either all
	// lines are applied and recorded or none are.
	Reserve(ctx context.Context, workOrderID uuid.UUID, reqs []Requirement, productionQuantity int64) (*ReservationReceipt, error)

	// Release returns fraction (0 < fraction <= 1) of each reserved line to
	// stock as production_return movements. History is never deleted.
	Release(ctx context.Context, workOrderID uuid.UUID, reserved []ReservedLine, fraction decimal.Decimal) ([]StockMovement, error)
}

type reservationCoordinator struct {
	store  StockStore
	logger *zap.Logger
	now    func() time.Time
}

// NewStockReservationCoordinator builds a coordinator over store. When store
// also implements Transactor, each reservation runs in one transaction;
// otherwise a failed reservation is undone by compensating writes.
func NewStockReservationCoordinator(store StockStore, logger *zap.Logger) StockReservationCoordinator {
	return newReservationCoordinator(store, logger)
}

func newReservationCoordinator(store StockStore, logger *zap.Logger) *reservationCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reservationCoordinator{store: store, logger: logger, now: time.Now}
}

// plannedLine is one raw material to decrement.
type plannedLine struct {
	itemID   uuid.UUID
	code     string
	name     string
	quantity decimal.Decimal
}

func (c *reservationCoordinator) Reserve(ctx context.Context, workOrderID uuid.UUID, reqs []Requirement, productionQuantity int64) (*ReservationReceipt, error) {
	plan, err := planReservation(reqs, productionQuantity)
	if err != nil {
		return nil, err
	}

	var receipt *ReservationReceipt
	if tx, ok := c.store.(Transactor); ok {
		err = tx.WithTx(ctx, func(r Repository) error {
			var err error
			receipt, err = c.apply(ctx, r, workOrderID, plan, productionQuantity, false)
			return err
		})
	} else {
		receipt, err = c.apply(ctx, c.store, workOrderID, plan, productionQuantity, true)
	}
	if err != nil {
		c.transition(workOrderID, StateRolledBack, zap.Error(err))
		return nil, err
	}
	c.commit(receipt)
	return receipt, nil
}

// planReservation recomputes totals from the per-unit quantities rather than
// trusting the caller's snapshot, merges duplicate materials, and orders lines
// by item id so concurrent reservations lock rows in the same order.
func planReservation(reqs []Requirement, productionQuantity int64) ([]plannedLine, error) {
	if productionQuantity <= 0 {
		return nil, fmt.Errorf("%w: production quantity must be a positive integer, got %d", ErrInvalidQuantity, productionQuantity)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: nothing to reserve", ErrNoBOMDefined)
	}

	qty := decimal.NewFromInt(productionQuantity)
	byItem := make(map[uuid.UUID]int, len(reqs))
	var plan []plannedLine
	for _, r := range reqs {
		if !r.QuantityPerUnit.IsPositive() {
			return nil, fmt.Errorf("%w: %s requires %s per unit (must be positive)",
				ErrInvalidBOMLine, requirementLabel(r), r.QuantityPerUnit.String())
		}
		total := r.QuantityPerUnit.Mul(qty)
		if i, ok := byItem[r.RawMaterialID]; ok {
			plan[i].quantity = plan[i].quantity.Add(total)
			continue
		}
		byItem[r.RawMaterialID] = len(plan)
		plan = append(plan, plannedLine{
			itemID:   r.RawMaterialID,
			code:     r.RawMaterialCode,
			name:     r.RawMaterialName,
			quantity: total,
		})
	}

	sort.Slice(plan, func(i, j int) bool {
		return bytes.Compare(plan[i].itemID[:], plan[j].itemID[:]) < 0
	})
	return plan, nil
}

// apply validates and reserves plan against st. With compensate set, any
// failure after the first write reverses what was already applied.
func (c *reservationCoordinator) apply(ctx context.Context, st StockStore, workOrderID uuid.UUID,
	plan []plannedLine, productionQuantity int64, compensate bool) (*ReservationReceipt, error) {

	c.transition(workOrderID, StateValidating)
	var short []Shortage
	for _, p := range plan {
		stock, err := st.GetItemStock(ctx, p.itemID)
		if err != nil {
			return nil, classify(fmt.Sprintf("failed to read stock for %s", p.label()), err)
		}
		if stock.LessThan(p.quantity) {
			short = append(short, p.shortage(stock))
		}
	}
	if len(short) > 0 {
		return nil, &InsufficientStockError{Items: short}
	}

	c.transition(workOrderID, StateReserving)
	actor := ActorFromContext(ctx)
	applied := make([]ReservedLine, 0, len(plan))
	for _, p := range plan {
		newStock, err := st.AdjustStock(ctx, p.itemID, p.quantity.Neg())
		if err != nil {
			err = c.decrementFailure(ctx, st, p, err)
			if compensate {
				err = c.compensate(ctx, st, workOrderID, applied, err)
			}
			return nil, err
		}

		ref := workOrderID
		m := &StockMovement{
			ItemID:        p.itemID,
			Quantity:      p.quantity.Neg(),
			Type:          MovementProductionUse,
			ReferenceType: referenceTypeWorkOrder,
			ReferenceID:   &ref,
			Notes:         fmt.Sprintf("Reserved for work order %s", workOrderID),
			CreatedBy:     actor,
		}
		if err := st.RecordMovement(ctx, m); err != nil {
			err = classify(fmt.Sprintf("failed to record movement for %s", p.label()), err)
			if compensate {
				// The decrement for this line already landed; undo it along with the rest.
				applied = append(applied, ReservedLine{ItemID: p.itemID, ItemCode: p.code, Quantity: p.quantity})
				err = c.compensate(ctx, st, workOrderID, applied, err)
			}
			return nil, err
		}

		applied = append(applied, ReservedLine{
			ItemID:     p.itemID,
			ItemCode:   p.code,
			Quantity:   p.quantity,
			NewStock:   newStock,
			MovementID: m.ID,
		})
	}

	return &ReservationReceipt{
		WorkOrderID: workOrderID,
		Quantity:    productionQuantity,
		State:       StateReserving,
		Lines:       applied,
		ReservedAt:  c.now(),
	}, nil
}

// decrementFailure maps a failed conditional decrement. Losing a race to a
// concurrent reservation surfaces as InsufficientStock with the stock seen now.
func (c *reservationCoordinator) decrementFailure(ctx context.Context, st StockStore, p plannedLine, err error) error {
	if !errors.Is(err, ErrInsufficientStock) {
		return classify(fmt.Sprintf("failed to reserve %s", p.label()), err)
	}
	available, readErr := st.GetItemStock(ctx, p.itemID)
	if readErr != nil {
		return fmt.Errorf("%w: %s refused the decrement and its stock could not be re-read: %w",
			ErrStorageFailure, p.label(), readErr)
	}
	return &InsufficientStockError{Items: []Shortage{p.shortage(available)}}
}

// undoRelease takes back credits made by release. Movements with a nil ID
// only reverse the stock change.
func (c *reservationCoordinator) undoRelease(ctx context.Context, st StockStore, workOrderID uuid.UUID,
	released []StockMovement, cause error) error {

	lines := make([]ReservedLine, 0, len(released))
	for _, m := range released {
		lines = append(lines, ReservedLine{ItemID: m.ItemID, Quantity: m.Quantity.Neg(), MovementID: m.ID})
	}
	return c.compensate(ctx, st, workOrderID, lines, cause)
}

// compensate reverses applied lines newest first, ignoring ctx cancellation.
func (c *reservationCoordinator) compensate(ctx context.Context, st StockStore, workOrderID uuid.UUID,
	applied []ReservedLine, cause error) error {

	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		l := applied[i]
		if _, err := st.AdjustStock(ctx, l.ItemID, l.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", l.ItemID, err))
		}
		if l.MovementID != uuid.Nil {
			if err := st.DeleteMovement(ctx, l.MovementID); err != nil {
				errs = append(errs, fmt.Errorf("delete movement %s: %w", l.MovementID, err))
			}
		}
	}
	if len(errs) > 0 {
		c.logger.Error("reservation compensation incomplete; stock needs reconciliation",
			zap.String("work_order_id", workOrderID.String()),
			zap.Error(errors.Join(errs...)),
		)
		return errors.Join(cause, fmt.Errorf("%w: compensation incomplete: %w", ErrStorageFailure, errors.Join(errs...)))
	}
	return cause
}

func (c *reservationCoordinator) Release(ctx context.Context, workOrderID uuid.UUID, reserved []ReservedLine, fraction decimal.Decimal) ([]StockMovement, error) {
	if !fraction.IsPositive() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: release fraction must be in (0, 1], got %s", ErrInvalidQuantity, fraction.String())
	}

	var out []StockMovement
	err := inStockUnitOfWork(ctx, c.store, func(st StockStore) error {
		var err error
		out, err = c.release(ctx, st, workOrderID, reserved, fraction)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// release credits each line back. It is not compensated: a partial release
// leaves correct movements for the lines that did land.
func (c *reservationCoordinator) release(ctx context.Context, st StockStore, workOrderID uuid.UUID,
	reserved []ReservedLine, fraction decimal.Decimal) ([]StockMovement, error) {

	actor := ActorFromContext(ctx)
	out := make([]StockMovement, 0, len(reserved))
	for _, l := range reserved {
		qty := l.Quantity.Mul(fraction).Round(QuantityScale)
		if !qty.IsPositive() {
			continue
		}
		if _, err := st.AdjustStock(ctx, l.ItemID, qty); err != nil {
			return out, classify(fmt.Sprintf("failed to release %s", l.ItemID), err)
		}
		ref := workOrderID
		m := StockMovement{
			ItemID:        l.ItemID,
			Quantity:      qty,
			Type:          MovementProductionReturn,
			ReferenceType: referenceTypeWorkOrder,
			ReferenceID:   &ref,
			Notes:         fmt.Sprintf("Released from work order %s", workOrderID),
			CreatedBy:     actor,
		}
		if err := st.RecordMovement(ctx, &m); err != nil {
			// The credit landed without its movement; report it so it can be undone.
			m.ID = uuid.Nil
			return append(out, m), classify(fmt.Sprintf("failed to record release for %s", l.ItemID), err)
		}
		out = append(out, m)
	}
	c.logger.Info("stock reservation released",
		zap.String("work_order_id", workOrderID.String()),
		zap.String("fraction", fraction.String()),
		zap.Int("lines", len(out)),
	)
	return out, nil
}

func (c *reservationCoordinator) commit(receipt *ReservationReceipt) {
	receipt.State = StateCommitted
	c.transition(receipt.WorkOrderID, StateCommitted, zap.Int("lines", len(receipt.Lines)))
}

func (c *reservationCoordinator) transition(workOrderID uuid.UUID, state ReservationState, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("work_order_id", workOrderID.String()),
		zap.String("state", string(state)),
	}, fields...)
	switch state {
	case StateCommitted:
		c.logger.Info("stock reservation committed", fields...)
	case StateRolledBack:
		c.logger.Warn("stock reservation rolled back", fields...)
	default:
		c.logger.Debug("stock reservation", fields...)
	}
}

func (p plannedLine) label() string {
	if p.code != "" {
		return p.code
	}
	return p.itemID.String()
}

func (p plannedLine) shortage(available decimal.Decimal) Shortage {
	return Shortage{
		ItemID:    p.itemID,
		ItemCode:  p.code,
		ItemName:  p.name,
		Required:  p.quantity,
		Available: available,
	}
}

func requirementLabel(r Requirement) string {
	if r.RawMaterialCode != "" {
		return r.RawMaterialCode
	}
	return r.RawMaterialID.String()
}
