package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"factory-mrp/internal/core"
	"factory-mrp/internal/export"
)

type appService struct {
	repo             core.Repository
	exploder         core.BOMExploder
	inventoryService core.InventoryService
	bomService       core.BOMService
	workOrderService core.WorkOrderService
	logger           *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	repo core.Repository,
	inventoryService core.InventoryService,
	bomService core.BOMService,
	workOrderService core.WorkOrderService,
	logger *zap.Logger,
) ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &appService{
		repo:             repo,
		exploder:         core.NewBOMExploder(repo),
		inventoryService: inventoryService,
		bomService:       bomService,
		workOrderService: workOrderService,
		logger:           logger,
	}
}

// New wires every domain service over repo.
func New(repo core.Repository, logger *zap.Logger) ApplicationService {
	return NewAppService(repo,
		core.NewInventoryService(repo, logger),
		core.NewBOMService(repo, logger),
		core.NewWorkOrderService(repo, logger),
		logger,
	)
}

// ── MRP ───────────────────────────────────────────────────────────────────────

func (s *appService) CalculateRequirements(ctx context.Context, req CalculateRequest) (*RequirementsResult, error) {
	reqs, err := s.exploder.Compute(ctx, req.ItemID, req.Quantity)
	if err != nil {
		return nil, err
	}
	item, err := s.inventoryService.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	return &RequirementsResult{
		Item:         item,
		Quantity:     req.Quantity,
		Requirements: reqs,
		Feasible:     core.Feasible(reqs),
	}, nil
}

func (s *appService) ExportRequirements(ctx context.Context, req CalculateRequest) (*ExportResult, error) {
	res, err := s.CalculateRequirements(ctx, req)
	if err != nil {
		return nil, err
	}
	f, filename, err := export.RequirementsWorkbook(res.Item, res.Quantity, res.Requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to build requirement sheet: %w", err)
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write requirement sheet: %w", err)
	}
	return &ExportResult{Filename: filename, Content: buf.Bytes()}, nil
}

// ── Items ─────────────────────────────────────────────────────────────────────

// ResolveItem accepts either an item UUID or an item code.
func (s *appService) ResolveItem(ctx context.Context, ref string) (*core.Item, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return s.inventoryService.GetItem(ctx, id)
	}
	items, err := s.inventoryService.ListItems(ctx, core.ItemFilter{})
	if err != nil {
		return nil, err
	}
	for i := range items {
		if strings.EqualFold(items[i].Code, ref) {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("item %q: %w", ref, core.ErrItemNotFound)
}

func (s *appService) CreateItem(ctx context.Context, req CreateItemRequest) (*core.Item, error) {
	return s.inventoryService.CreateItem(ctx, core.CreateItemInput{
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Unit:           req.Unit,
		UnitPrice:      req.UnitPrice,
		OpeningStock:   req.OpeningStock,
		MinStock:       req.MinStock,
		MaxStock:       req.MaxStock,
		IsRawMaterial:  req.IsRawMaterial,
		IsFinishedGood: req.IsFinishedGood,
	})
}

func (s *appService) GetItem(ctx context.Context, id uuid.UUID) (*core.Item, error) {
	return s.inventoryService.GetItem(ctx, id)
}

func (s *appService) ListItems(ctx context.Context, kind string) (*ItemListResult, error) {
	yes := true
	var filter core.ItemFilter
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "":
	case "raw", "raw_material":
		filter.RawMaterial = &yes
	case "finished", "finished_good":
		filter.FinishedGood = &yes
	default:
		return nil, fmt.Errorf("unknown item kind %q: %w", kind, core.ErrInvalidInput)
	}
	items, err := s.inventoryService.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ItemListResult{Items: items}, nil
}

func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	items, err := s.inventoryService.ListItems(ctx, core.ItemFilter{})
	if err != nil {
		return nil, err
	}
	res := &StockResult{Items: items}
	for _, it := range items {
		if it.IsLowStock() {
			res.LowStock++
		}
	}
	return res, nil
}

func (s *appService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.StockMovement, error) {
	return s.inventoryService.ReceiveStock(ctx, req.ItemID, req.Quantity, req.Notes)
}

func (s *appService) ItemMovements(ctx context.Context, id uuid.UUID) ([]core.StockMovement, error) {
	return s.inventoryService.Movements(ctx, id)
}

func (s *appService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	drift, err := s.inventoryService.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		s.logger.Warn("stock drift detected", zap.Int("items", len(drift)))
	}
	return &ReconcileResult{Drift: drift, Clean: len(drift) == 0}, nil
}

// ── BOMs ──────────────────────────────────────────────────────────────────────

func (s *appService) DefineBOM(ctx context.Context, req DefineBOMRequest) (*core.BOM, error) {
	lines := make([]core.BOMLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.BOMLineInput{
			RawMaterialID:    l.RawMaterialID,
			QuantityRequired: l.QuantityRequired,
			Unit:             l.Unit,
			Notes:            l.Notes,
		}
	}
	return s.bomService.Define(ctx, req.FinishedGoodID, lines)
}

func (s *appService) GetBOM(ctx context.Context, finishedGoodID uuid.UUID) (*core.BOM, error) {
	return s.bomService.Get(ctx, finishedGoodID)
}

func (s *appService) ListBOMs(ctx context.Context) ([]core.BOM, error) {
	return s.bomService.List(ctx)
}

func (s *appService) DeleteBOM(ctx context.Context, finishedGoodID uuid.UUID) error {
	return s.bomService.Delete(ctx, finishedGoodID)
}

// ── Work orders ───────────────────────────────────────────────────────────────

func (s *appService) CreateWorkOrder(ctx context.Context, req CreateWorkOrderRequest) (*core.WorkOrderResult, error) {
	return s.workOrderService.Create(ctx, core.CreateWorkOrderInput{
		ItemID:     req.ItemID,
		Quantity:   req.Quantity,
		Number:     req.Number,
		StartDate:  req.StartDate,
		TargetDate: req.TargetDate,
		Notes:      req.Notes,
	})
}

func (s *appService) GetWorkOrder(ctx context.Context, id uuid.UUID) (*core.WorkOrder, error) {
	return s.workOrderService.Get(ctx, id)
}

func (s *appService) ResolveWorkOrder(ctx context.Context, ref string) (*core.WorkOrder, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return s.workOrderService.Get(ctx, id)
	}
	orders, err := s.workOrderService.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if strings.EqualFold(orders[i].Number, ref) {
			return &orders[i], nil
		}
	}
	return nil, fmt.Errorf("work order %q: %w", ref, core.ErrWorkOrderNotFound)
}

func (s *appService) ListWorkOrders(ctx context.Context, status string) (*WorkOrderListResult, error) {
	var filter *core.WorkOrderStatus
	if status = strings.TrimSpace(status); status != "" {
		st, err := core.ParseWorkOrderStatus(strings.ToLower(status))
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	orders, err := s.workOrderService.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &WorkOrderListResult{WorkOrders: orders}, nil
}

func (s *appService) UpdateWorkOrder(ctx context.Context, id uuid.UUID, req UpdateWorkOrderRequest) (*core.WorkOrder, error) {
	in := core.UpdateWorkOrderInput{
		QuantityProduced: req.QuantityProduced,
		Notes:            req.Notes,
	}
	if req.Status != nil {
		st, err := core.ParseWorkOrderStatus(strings.ToLower(*req.Status))
		if err != nil {
			return nil, err
		}
		in.Status = &st
	}
	if req.Stage != nil {
		stage, err := core.ParseProductionStage(strings.ToLower(*req.Stage))
		if err != nil {
			return nil, err
		}
		in.Stage = &stage
	}
	return s.workOrderService.UpdateProgress(ctx, id, in)
}

func (s *appService) WorkOrderLogs(ctx context.Context, id uuid.UUID) ([]core.ProductionLog, error) {
	return s.workOrderService.ProductionLogs(ctx, id)
}
