package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockStore is the data-access collaborator of the exploder and the
// reservation coordinator.
//
// AdjustStock must be an atomic conditional update: it applies delta only if
// the resulting stock stays non-negative, returning ErrInsufficientStock
// otherwise and ErrItemNotFound for an unknown item.
type StockStore interface {
	GetBOM(ctx context.Context, finishedGoodID uuid.UUID) ([]BOMLine, error)
	GetItemStock(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
	AdjustStock(ctx context.Context, itemID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	// RecordMovement appends m, assigning ID and CreatedAt when unset.
	RecordMovement(ctx context.Context, m *StockMovement) error
	// DeleteMovement exists only for compensating a failed reservation.
	DeleteMovement(ctx context.Context, id uuid.UUID) error
}

// ItemFilter narrows ListItems. Nil fields match everything.
type ItemFilter struct {
	RawMaterial  *bool
	FinishedGood *bool
}

// CatalogStore persists items and bills of materials.
type CatalogStore interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	CreateBOM(ctx context.Context, lines []BOMLine) error
	// ListBOMLines returns every BOM line of every finished good.
	ListBOMLines(ctx context.Context) ([]BOMLine, error)
	DeleteBOM(ctx context.Context, finishedGoodID uuid.UUID) (int, error)
}

// WorkOrderStore persists work orders and their production logs.
type WorkOrderStore interface {
	CreateWorkOrder(ctx context.Context, wo *WorkOrder) error
	GetWorkOrder(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	// LockWorkOrder reads a work order for update within the current unit of work.
	LockWorkOrder(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	ListWorkOrders(ctx context.Context, status *WorkOrderStatus) ([]WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, wo *WorkOrder) error
	DeleteWorkOrder(ctx context.Context, id uuid.UUID) error
	AddProductionLog(ctx context.Context, l *ProductionLog) error
	ListProductionLogs(ctx context.Context, workOrderID uuid.UUID) ([]ProductionLog, error)
}

// MovementFilter narrows ListMovements. Zero-valued fields match everything.
type MovementFilter struct {
	ItemID      *uuid.UUID
	ReferenceID *uuid.UUID
	Type        MovementType
}

// MovementLog reads the append-only stock movement history.
type MovementLog interface {
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	// SumMovements returns the signed movement total per item.
	SumMovements(ctx context.Context) (map[uuid.UUID]decimal.Decimal, error)
}

// Repository is the full persistence surface of the application.
type Repository interface {
	StockStore
	CatalogStore
	WorkOrderStore
	MovementLog
}

// Transactor is implemented by stores that can run a unit of work inside a
// single database transaction. fn receives a Repository bound to that
// transaction; returning an error rolls everything back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

// inUnitOfWork runs fn in a transaction when repo supports it, or directly otherwise.
func inUnitOfWork(ctx context.Context, repo Repository, fn func(Repository) error) error {
	if tx, ok := repo.(Transactor); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(repo)
}

// inStockUnitOfWork is inUnitOfWork for callers holding only a StockStore.
func inStockUnitOfWork(ctx context.Context, st StockStore, fn func(StockStore) error) error {
	if tx, ok := st.(Transactor); ok {
		return tx.WithTx(ctx, func(r Repository) error { return fn(r) })
	}
	return fn(st)
}
