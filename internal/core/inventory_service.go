package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateItemInput describes a new catalog item.
type CreateItemInput struct {
	Code           string
	Name           string
	Description    string
	Category       string
	Unit           string
	UnitPrice      decimal.Decimal
	OpeningStock   decimal.Decimal
	MinStock       decimal.Decimal
	MaxStock       *decimal.Decimal
	IsRawMaterial  bool
	IsFinishedGood bool
}

// InventoryService manages the item catalog and stock movements outside of
// production reservations.
type InventoryService interface {
	// CreateItem inserts an item; a positive opening stock is recorded as an
	// opening movement so the movement log always sums to current stock.
	CreateItem(ctx context.Context, in CreateItemInput) (*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	LowStock(ctx context.Context) ([]Item, error)
	// ReceiveStock books a goods receipt as a positive "in" movement.
	ReceiveStock(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal, notes string) (*StockMovement, error)
	Movements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error)
	// Reconcile reports every item whose current stock differs from the sum of its movements.
	Reconcile(ctx context.Context) ([]StockDrift, error)
}

type inventoryService struct {
	repo   Repository
	logger *zap.Logger
}

func NewInventoryService(repo Repository, logger *zap.Logger) InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inventoryService{repo: repo, logger: logger}
}

func (s *inventoryService) CreateItem(ctx context.Context, in CreateItemInput) (*Item, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	switch {
	case in.Code == "":
		return nil, fmt.Errorf("%w: item code is required", ErrInvalidInput)
	case in.Name == "":
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	case in.Unit == "":
		return nil, fmt.Errorf("%w: unit is required", ErrInvalidInput)
	case !in.IsRawMaterial && !in.IsFinishedGood:
		return nil, fmt.Errorf("%w: item must be a raw material, a finished good, or both", ErrInvalidInput)
	case in.OpeningStock.IsNegative():
		return nil, fmt.Errorf("%w: opening stock cannot be negative", ErrInvalidQuantity)
	case in.MinStock.IsNegative():
		return nil, fmt.Errorf("%w: minimum stock cannot be negative", ErrInvalidQuantity)
	case in.UnitPrice.IsNegative():
		return nil, fmt.Errorf("%w: unit price cannot be negative", ErrInvalidInput)
	case in.MaxStock != nil && in.MaxStock.LessThan(in.MinStock):
		return nil, fmt.Errorf("%w: maximum stock is below minimum stock", ErrInvalidQuantity)
	case !fitsScale(in.OpeningStock), !fitsScale(in.MinStock), !fitsScale(in.UnitPrice),
		in.MaxStock != nil && !fitsScale(*in.MaxStock):
		return nil, fmt.Errorf("%w: quantities carry at most %d decimal places", ErrInvalidQuantity, QuantityScale)
	}

	now := time.Now()
	actor := ActorFromContext(ctx)
	item := &Item{
		ID:             uuid.New(),
		Code:           in.Code,
		Name:           in.Name,
		Description:    in.Description,
		Category:       in.Category,
		Unit:           in.Unit,
		UnitPrice:      in.UnitPrice,
		CurrentStock:   in.OpeningStock,
		MinStock:       in.MinStock,
		MaxStock:       in.MaxStock,
		IsRawMaterial:  in.IsRawMaterial,
		IsFinishedGood: in.IsFinishedGood,
		CreatedBy:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := inUnitOfWork(ctx, s.repo, func(r Repository) error {
		if err := r.CreateItem(ctx, item); err != nil {
			return classify(fmt.Sprintf("failed to insert item %s", item.Code), err)
		}
		if !item.CurrentStock.IsPositive() {
			return nil
		}
		ref := item.ID
		if err := r.RecordMovement(ctx, &StockMovement{
			ItemID:        item.ID,
			Quantity:      item.CurrentStock,
			Type:          MovementOpening,
			ReferenceType: "item",
			ReferenceID:   &ref,
			Notes:         "Opening stock",
			CreatedBy:     actor,
		}); err != nil {
			return classify("failed to record opening stock", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("item created", zap.String("item_code", item.Code), zap.String("opening_stock", item.CurrentStock.String()))
	return item, nil
}

func (s *inventoryService) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, classify("failed to load item", err)
	}
	return item, nil
}

func (s *inventoryService) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, classify("failed to list items", err)
	}
	return items, nil
}

func (s *inventoryService) LowStock(ctx context.Context) ([]Item, error) {
	items, err := s.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, err
	}
	var low []Item
	for _, it := range items {
		if it.IsLowStock() {
			low = append(low, it)
		}
	}
	return low, nil
}

func (s *inventoryService) ReceiveStock(ctx context.Context, itemID uuid.UUID, qty decimal.Decimal, notes string) (*StockMovement, error) {
	if !qty.IsPositive() {
		return nil, fmt.Errorf("%w: receive quantity must be positive, got %s", ErrInvalidQuantity, qty)
	}
	if !fitsScale(qty) {
		return nil, fmt.Errorf("%w: receive quantity %s has more than %d decimal places", ErrInvalidQuantity, qty, QuantityScale)
	}
	if notes == "" {
		notes = "Goods receipt"
	}

	m := &StockMovement{
		ItemID:    itemID,
		Quantity:  qty,
		Type:      MovementIn,
		Notes:     notes,
		CreatedBy: ActorFromContext(ctx),
	}
	err := inUnitOfWork(ctx, s.repo, func(r Repository) error {
		if _, err := r.AdjustStock(ctx, itemID, qty); err != nil {
			return classify("failed to increase stock", err)
		}
		if err := r.RecordMovement(ctx, m); err != nil {
			// Without a transaction the increase already landed; take it back.
			if _, ok := r.(Transactor); !ok {
				if _, undoErr := r.AdjustStock(context.WithoutCancel(ctx), itemID, qty.Neg()); undoErr != nil {
					s.logger.Error("failed to undo stock receipt", zap.String("item_id", itemID.String()), zap.Error(undoErr))
				}
			}
			return classify("failed to record receipt", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock received", zap.String("item_id", itemID.String()), zap.String("quantity", qty.String()))
	return m, nil
}

func (s *inventoryService) Movements(ctx context.Context, itemID uuid.UUID) ([]StockMovement, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, classify("failed to load item", err)
	}
	moves, err := s.repo.ListMovements(ctx, MovementFilter{ItemID: &itemID})
	if err != nil {
		return nil, classify("failed to list movements", err)
	}
	return moves, nil
}

func (s *inventoryService) Reconcile(ctx context.Context) ([]StockDrift, error) {
	items, err := s.repo.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, classify("failed to list items", err)
	}
	sums, err := s.repo.SumMovements(ctx)
	if err != nil {
		return nil, classify("failed to sum movements", err)
	}

	var drift []StockDrift
	for _, it := range items {
		sum := sums[it.ID]
		if it.CurrentStock.Equal(sum) {
			continue
		}
		drift = append(drift, StockDrift{
			ItemID:       it.ID,
			ItemCode:     it.Code,
			CurrentStock: it.CurrentStock,
			MovementSum:  sum,
			Difference:   it.CurrentStock.Sub(sum),
		})
	}
	if len(drift) > 0 {
		s.logger.Warn("stock drift detected", zap.Int("items", len(drift)))
	}
	return drift, nil
}
