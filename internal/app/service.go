package app

import (
	"context"

	"github.com/google/uuid"

	"factory-mrp/internal/core"
)

// ApplicationService is the single interface all UI adapters (REPL, CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// CalculateRequirements explodes the BOM of a finished good for a production
	// quantity and reports per-material shortages. Nothing is reserved.
	CalculateRequirements(ctx context.Context, req CalculateRequest) (*RequirementsResult, error)

	// ExportRequirements renders CalculateRequirements as an XLSX workbook.
	ExportRequirements(ctx context.Context, req CalculateRequest) (*ExportResult, error)

	// ResolveItem looks an item up by UUID or by item code.
	ResolveItem(ctx context.Context, ref string) (*core.Item, error)

	CreateItem(ctx context.Context, req CreateItemRequest) (*core.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*core.Item, error)

	// ListItems returns the catalog; kind is "raw", "finished" or empty for all.
	ListItems(ctx context.Context, kind string) (*ItemListResult, error)

	// GetStockLevels returns every item with its low-stock flag.
	GetStockLevels(ctx context.Context) (*StockResult, error)

	// ReceiveStock records a goods receipt as an "in" movement.
	ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.StockMovement, error)

	ItemMovements(ctx context.Context, id uuid.UUID) ([]core.StockMovement, error)

	// Reconcile compares every item's stock with its movement log.
	Reconcile(ctx context.Context) (*ReconcileResult, error)

	DefineBOM(ctx context.Context, req DefineBOMRequest) (*core.BOM, error)
	GetBOM(ctx context.Context, finishedGoodID uuid.UUID) (*core.BOM, error)
	ListBOMs(ctx context.Context) ([]core.BOM, error)
	DeleteBOM(ctx context.Context, finishedGoodID uuid.UUID) error

	// CreateWorkOrder validates feasibility and atomically reserves materials.
	// A shortage yields core.InsufficientStockError and writes nothing.
	CreateWorkOrder(ctx context.Context, req CreateWorkOrderRequest) (*core.WorkOrderResult, error)
	GetWorkOrder(ctx context.Context, id uuid.UUID) (*core.WorkOrder, error)

	// ResolveWorkOrder looks a work order up by UUID or by WO number.
	ResolveWorkOrder(ctx context.Context, ref string) (*core.WorkOrder, error)

	// ListWorkOrders returns work orders, optionally filtered by status.
	ListWorkOrders(ctx context.Context, status string) (*WorkOrderListResult, error)

	// UpdateWorkOrder applies a status transition, stage change or produced quantity.
	UpdateWorkOrder(ctx context.Context, id uuid.UUID, req UpdateWorkOrderRequest) (*core.WorkOrder, error)
	WorkOrderLogs(ctx context.Context, id uuid.UUID) ([]core.ProductionLog, error)
}
