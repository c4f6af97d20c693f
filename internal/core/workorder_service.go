package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateWorkOrderInput is the request to start producing a finished good.
type CreateWorkOrderInput struct {
	ItemID     uuid.UUID
	Quantity   int64
	Number     string // optional; generated as WO-<8 digits> when empty
	StartDate  *time.Time
	TargetDate *time.Time
	Notes      string
}

// UpdateWorkOrderInput carries a partial progress update. Nil fields are left unchanged.
type UpdateWorkOrderInput struct {
	Status           *WorkOrderStatus
	Stage            *ProductionStage
	QuantityProduced *int64
	Notes            *string
}

// WorkOrderResult is a created work order together with the stock it reserved.
type WorkOrderResult struct {
	WorkOrder   *WorkOrder          `json:"work_order"`
	Reservation *ReservationReceipt `json:"reservation"`
}

// WorkOrderService creates work orders with their stock reservation and
// tracks production progress through the status state machine.
type WorkOrderService interface {
	// Create explodes the BOM, refuses the order if any material is short, and
	// otherwise reserves stock, inserts the work order and its first production
	// log as one unit of work.
	Create(ctx context.Context, in CreateWorkOrderInput) (*WorkOrderResult, error)
	Get(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	List(ctx context.Context, status *WorkOrderStatus) ([]WorkOrder, error)
	// UpdateProgress applies a status transition, stage change, or produced
	// quantity. Cancelling releases the reservation share of unproduced units.
	UpdateProgress(ctx context.Context, id uuid.UUID, in UpdateWorkOrderInput) (*WorkOrder, error)
	ProductionLogs(ctx context.Context, id uuid.UUID) ([]ProductionLog, error)
}

var workOrderTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	StatusPending:    {StatusApproved, StatusCancelled},
	StatusApproved:   {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a work order may move from one status to another.
func CanTransition(from, to WorkOrderStatus) bool {
	for _, s := range workOrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type workOrderService struct {
	repo     Repository
	exploder BOMExploder
	coord    *reservationCoordinator
	logger   *zap.Logger
	now      func() time.Time

	// mu serializes progress updates on stores without transactions.
	mu sync.Mutex
}

func NewWorkOrderService(repo Repository, logger *zap.Logger) WorkOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workOrderService{
		repo:     repo,
		exploder: NewBOMExploder(repo),
		coord:    newReservationCoordinator(repo, logger),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *workOrderService) Create(ctx context.Context, in CreateWorkOrderInput) (*WorkOrderResult, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: production quantity must be a positive integer, got %d", ErrInvalidQuantity, in.Quantity)
	}
	if in.StartDate != nil && in.TargetDate != nil && in.TargetDate.Before(*in.StartDate) {
		return nil, fmt.Errorf("%w: target date is before start date", ErrInvalidInput)
	}

	item, err := s.repo.GetItem(ctx, in.ItemID)
	if err != nil {
		return nil, classify("failed to load finished good", err)
	}
	if !item.IsFinishedGood {
		return nil, fmt.Errorf("%w: item %s is not a finished good", ErrInvalidInput, item.Code)
	}

	reqs, err := s.exploder.Compute(ctx, in.ItemID, in.Quantity)
	if err != nil {
		return nil, err
	}
	// Refuse up front so a known shortage never reaches the write path.
	if short := Shortages(reqs); len(short) > 0 {
		return nil, &InsufficientStockError{Items: short}
	}
	plan, err := planReservation(reqs, in.Quantity)
	if err != nil {
		return nil, err
	}

	now := s.now()
	actor := ActorFromContext(ctx)
	wo := &WorkOrder{
		ID:                uuid.New(),
		Number:            in.Number,
		ItemID:            item.ID,
		ItemCode:          item.Code,
		ItemName:          item.Name,
		QuantityToProduce: in.Quantity,
		Status:            StatusPending,
		Stage:             StagePlanning,
		StartDate:         in.StartDate,
		TargetDate:        in.TargetDate,
		Notes:             in.Notes,
		CreatedBy:         actor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if wo.Number == "" {
		wo.Number = fmt.Sprintf("WO-%08d", now.UnixMilli()%100_000_000)
	}
	createdLog := &ProductionLog{
		WorkOrderID: wo.ID,
		Stage:       StagePlanning,
		Notes:       "Work order created",
		LoggedBy:    actor,
		LoggedAt:    now,
	}

	var receipt *ReservationReceipt
	if tx, ok := s.repo.(Transactor); ok {
		err = tx.WithTx(ctx, func(r Repository) error {
			var err error
			if receipt, err = s.coord.apply(ctx, r, wo.ID, plan, in.Quantity, false); err != nil {
				return err
			}
			if err := r.CreateWorkOrder(ctx, wo); err != nil {
				return classify("failed to insert work order", err)
			}
			if err := r.AddProductionLog(ctx, createdLog); err != nil {
				return classify("failed to insert production log", err)
			}
			return nil
		})
	} else {
		receipt, err = s.createCompensated(ctx, wo, plan, createdLog)
	}
	if err != nil {
		s.coord.transition(wo.ID, StateRolledBack, zap.Error(err))
		return nil, err
	}
	s.coord.commit(receipt)

	s.logger.Info("work order created",
		zap.String("work_order_id", wo.ID.String()),
		zap.String("wo_number", wo.Number),
		zap.String("item_code", wo.ItemCode),
		zap.Int64("quantity", wo.QuantityToProduce),
		zap.String("created_by", actor),
	)
	return &WorkOrderResult{WorkOrder: wo, Reservation: receipt}, nil
}

// createCompensated is the non-transactional Create path: every write after
// the reservation undoes the reservation if it fails.
func (s *workOrderService) createCompensated(ctx context.Context, wo *WorkOrder, plan []plannedLine, createdLog *ProductionLog) (*ReservationReceipt, error) {
	receipt, err := s.coord.apply(ctx, s.repo, wo.ID, plan, wo.QuantityToProduce, true)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateWorkOrder(ctx, wo); err != nil {
		return nil, s.coord.compensate(ctx, s.repo, wo.ID, receipt.Lines, classify("failed to insert work order", err))
	}
	if err := s.repo.AddProductionLog(ctx, createdLog); err != nil {
		cause := classify("failed to insert production log", err)
		if delErr := s.repo.DeleteWorkOrder(context.WithoutCancel(ctx), wo.ID); delErr != nil {
			s.logger.Error("failed to remove work order after failed create",
				zap.String("work_order_id", wo.ID.String()), zap.Error(delErr))
		}
		return nil, s.coord.compensate(ctx, s.repo, wo.ID, receipt.Lines, cause)
	}
	return receipt, nil
}

func (s *workOrderService) Get(ctx context.Context, id uuid.UUID) (*WorkOrder, error) {
	wo, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, classify("failed to load work order", err)
	}
	return wo, nil
}

func (s *workOrderService) List(ctx context.Context, status *WorkOrderStatus) ([]WorkOrder, error) {
	wos, err := s.repo.ListWorkOrders(ctx, status)
	if err != nil {
		return nil, classify("failed to list work orders", err)
	}
	return wos, nil
}

func (s *workOrderService) ProductionLogs(ctx context.Context, id uuid.UUID) ([]ProductionLog, error) {
	if _, err := s.repo.GetWorkOrder(ctx, id); err != nil {
		return nil, classify("failed to load work order", err)
	}
	logs, err := s.repo.ListProductionLogs(ctx, id)
	if err != nil {
		return nil, classify("failed to list production logs", err)
	}
	return logs, nil
}

func (s *workOrderService) UpdateProgress(ctx context.Context, id uuid.UUID, in UpdateWorkOrderInput) (*WorkOrder, error) {
	if in.QuantityProduced != nil && *in.QuantityProduced < 0 {
		return nil, fmt.Errorf("%w: quantity produced cannot be negative", ErrInvalidQuantity)
	}

	_, transactional := s.repo.(Transactor)
	if !transactional {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	var updated *WorkOrder
	err := inUnitOfWork(ctx, s.repo, func(r Repository) error {
		wo, err := r.LockWorkOrder(ctx, id)
		if err != nil {
			return classify("failed to lock work order", err)
		}
		prev := *wo

		if err := applyProgress(wo, in); err != nil {
			return err
		}
		now := s.now()
		if wo.Status == StatusCompleted && prev.Status != StatusCompleted {
			wo.CompletionDate = &now
			wo.Stage = StageCompleted
		}
		wo.UpdatedAt = now

		// Stock goes back before the order turns terminal. Without a
		// transaction a failed release or save undoes the credited lines.
		var released []StockMovement
		if wo.Status == StatusCancelled && prev.Status != StatusCancelled {
			released, err = s.releaseUnproduced(ctx, r, wo)
			if err != nil {
				if !transactional {
					return s.coord.undoRelease(ctx, r, wo.ID, released, err)
				}
				return err
			}
		}
		if err := r.UpdateWorkOrder(ctx, wo); err != nil {
			err = classify("failed to update work order", err)
			if !transactional && len(released) > 0 {
				return s.coord.undoRelease(ctx, r, wo.ID, released, err)
			}
			return err
		}

		if note := progressNote(prev, *wo); note != "" {
			entry := &ProductionLog{
				WorkOrderID:       wo.ID,
				Stage:             wo.Stage,
				QuantityCompleted: wo.QuantityProduced - prev.QuantityProduced,
				Notes:             note,
				LoggedBy:          ActorFromContext(ctx),
				LoggedAt:          now,
			}
			if err := r.AddProductionLog(ctx, entry); err != nil {
				return classify("failed to insert production log", err)
			}
		}
		updated = wo
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work order updated",
		zap.String("work_order_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
		zap.String("stage", string(updated.Stage)),
		zap.Int64("quantity_produced", updated.QuantityProduced),
	)
	return updated, nil
}

// applyProgress validates in against the current state of wo and mutates wo.
func applyProgress(wo *WorkOrder, in UpdateWorkOrderInput) error {
	if wo.Status.IsTerminal() {
		return fmt.Errorf("%w: work order %s is %s", ErrInvalidTransition, wo.Number, wo.Status)
	}
	if in.Status != nil && *in.Status != wo.Status {
		if !CanTransition(wo.Status, *in.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, wo.Status, *in.Status)
		}
		wo.Status = *in.Status
	}
	if in.Stage != nil {
		wo.Stage = *in.Stage
	}
	if in.QuantityProduced != nil {
		q := *in.QuantityProduced
		if q < wo.QuantityProduced {
			return fmt.Errorf("%w: quantity produced cannot decrease from %d to %d", ErrInvalidQuantity, wo.QuantityProduced, q)
		}
		wo.QuantityProduced = q
	}
	if in.Notes != nil {
		wo.Notes = *in.Notes
	}
	return nil
}

func progressNote(prev, cur WorkOrder) string {
	switch {
	case prev.Status != cur.Status:
		return fmt.Sprintf("Status changed from %s to %s", prev.Status, cur.Status)
	case prev.Stage != cur.Stage:
		return fmt.Sprintf("Stage changed from %s to %s", prev.Stage, cur.Stage)
	case prev.QuantityProduced != cur.QuantityProduced:
		return fmt.Sprintf("Produced %d of %d", cur.QuantityProduced, cur.QuantityToProduce)
	}
	return ""
}

// releaseUnproduced credits back the reservation share of units never
// produced. Overproduced orders release nothing. On error the returned
// movements are the credits that already landed.
func (s *workOrderService) releaseUnproduced(ctx context.Context, r Repository, wo *WorkOrder) ([]StockMovement, error) {
	remaining := wo.QuantityToProduce - wo.QuantityProduced
	if remaining <= 0 {
		return nil, nil
	}
	ref := wo.ID
	moves, err := r.ListMovements(ctx, MovementFilter{ReferenceID: &ref, Type: MovementProductionUse})
	if err != nil {
		return nil, classify("failed to load reservation movements", err)
	}
	lines := make([]ReservedLine, 0, len(moves))
	for _, m := range moves {
		lines = append(lines, ReservedLine{ItemID: m.ItemID, Quantity: m.Quantity.Neg(), MovementID: m.ID})
	}
	fraction := decimal.NewFromInt(remaining).Div(decimal.NewFromInt(wo.QuantityToProduce))
	return s.coord.release(ctx, r, wo.ID, lines, fraction)
}
