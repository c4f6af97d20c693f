// Package memory is an in-process Repository for development, demos and
// tests. It has no transactions: the core services fall back to
// compensating writes when running on it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"factory-mrp/internal/core"
)

// Store keeps every table in maps guarded by one mutex. Records are copied
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	items      map[uuid.UUID]*core.Item
	itemCodes  map[string]uuid.UUID
	bomLines   []core.BOMLine
	workOrders map[uuid.UUID]*core.WorkOrder
	woNumbers  map[string]uuid.UUID
	logs       []core.ProductionLog
	movements  []core.StockMovement

	now func() time.Time
}

var _ core.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		items:      make(map[uuid.UUID]*core.Item),
		itemCodes:  make(map[string]uuid.UUID),
		workOrders: make(map[uuid.UUID]*core.WorkOrder),
		woNumbers:  make(map[string]uuid.UUID),
		now:        time.Now,
	}
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *Store) GetBOM(_ context.Context, finishedGoodID uuid.UUID) ([]core.BOMLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.BOMLine
	for _, l := range s.bomLines {
		if l.FinishedGoodID == finishedGoodID {
			out = append(out, s.joinLine(l))
		}
	}
	return out, nil
}

func (s *Store) GetItemStock(_ context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[itemID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrItemNotFound, itemID)
	}
	return it.CurrentStock, nil
}

func (s *Store) AdjustStock(_ context.Context, itemID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[itemID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrItemNotFound, itemID)
	}
	next := it.CurrentStock.Add(delta)
	if next.IsNegative() {
		return it.CurrentStock, fmt.Errorf("%w: %s has %s, change %s", core.ErrInsufficientStock, it.Code, it.CurrentStock, delta)
	}
	it.CurrentStock = next
	it.UpdatedAt = s.now()
	return next, nil
}

func (s *Store) RecordMovement(_ context.Context, m *core.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[m.ItemID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrItemNotFound, m.ItemID)
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.movements = append(s.movements, *m)
	return nil
}

func (s *Store) DeleteMovement(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.movements {
		if m.ID == id {
			s.movements = append(s.movements[:i], s.movements[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("movement %s not found", id)
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *Store) CreateItem(_ context.Context, item *core.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.itemCodes[item.Code]; dup {
		return fmt.Errorf("%w: %s", core.ErrDuplicateItemCode, item.Code)
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	cp := *item
	s.items[item.ID] = &cp
	s.itemCodes[item.Code] = item.ID
	return nil
}

func (s *Store) GetItem(_ context.Context, id uuid.UUID) (*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrItemNotFound, id)
	}
	cp := *it
	return &cp, nil
}

// ItemByCode is a lookup convenience for seeding and tests.
func (s *Store) ItemByCode(code string) (*core.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.itemCodes[code]
	if !ok {
		return nil, false
	}
	cp := *s.items[id]
	return &cp, true
}

func (s *Store) ListItems(_ context.Context, filter core.ItemFilter) ([]core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Item
	for _, it := range s.items {
		if filter.RawMaterial != nil && it.IsRawMaterial != *filter.RawMaterial {
			continue
		}
		if filter.FinishedGood != nil && it.IsFinishedGood != *filter.FinishedGood {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) CreateBOM(_ context.Context, lines []core.BOMLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lines {
		if _, ok := s.items[l.FinishedGoodID]; !ok {
			return fmt.Errorf("%w: %s", core.ErrItemNotFound, l.FinishedGoodID)
		}
		if _, ok := s.items[l.RawMaterialID]; !ok {
			return fmt.Errorf("%w: %s", core.ErrItemNotFound, l.RawMaterialID)
		}
	}
	now := s.now()
	for _, l := range lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		s.bomLines = append(s.bomLines, l)
	}
	return nil
}

// PutBOMLine stores a line without any validation. Tests use it to model
// corrupt BOM data that the services would never write.
func (s *Store) PutBOMLine(l core.BOMLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	s.bomLines = append(s.bomLines, l)
}

func (s *Store) ListBOMLines(_ context.Context) ([]core.BOMLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.BOMLine, 0, len(s.bomLines))
	for _, l := range s.bomLines {
		out = append(out, s.joinLine(l))
	}
	return out, nil
}

func (s *Store) DeleteBOM(_ context.Context, finishedGoodID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.bomLines[:0]
	removed := 0
	for _, l := range s.bomLines {
		if l.FinishedGoodID == finishedGoodID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	s.bomLines = kept
	return removed, nil
}

// joinLine fills the display columns a SQL join would provide. Caller holds mu.
func (s *Store) joinLine(l core.BOMLine) core.BOMLine {
	if raw, ok := s.items[l.RawMaterialID]; ok {
		l.RawMaterialCode = raw.Code
		l.RawMaterialName = raw.Name
		if l.Unit == "" {
			l.Unit = raw.Unit
		}
	}
	return l
}

// ── Work orders ───────────────────────────────────────────────────────────────

func (s *Store) CreateWorkOrder(_ context.Context, wo *core.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[wo.ItemID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrItemNotFound, wo.ItemID)
	}
	if _, dup := s.woNumbers[wo.Number]; dup {
		return fmt.Errorf("%w: %s", core.ErrDuplicateWONumber, wo.Number)
	}
	if wo.ID == uuid.Nil {
		wo.ID = uuid.New()
	}
	cp := *wo
	s.workOrders[wo.ID] = &cp
	s.woNumbers[wo.Number] = wo.ID
	return nil
}

func (s *Store) GetWorkOrder(_ context.Context, id uuid.UUID) (*core.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wo, ok := s.workOrders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, id)
	}
	return s.joinWorkOrder(*wo), nil
}

// LockWorkOrder is a plain read; WorkOrderService serializes updates itself
// on stores without transactions.
func (s *Store) LockWorkOrder(ctx context.Context, id uuid.UUID) (*core.WorkOrder, error) {
	return s.GetWorkOrder(ctx, id)
}

func (s *Store) ListWorkOrders(_ context.Context, status *core.WorkOrderStatus) ([]core.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.WorkOrder
	for _, wo := range s.workOrders {
		if status != nil && wo.Status != *status {
			continue
		}
		out = append(out, *s.joinWorkOrder(*wo))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateWorkOrder(_ context.Context, wo *core.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workOrders[wo.ID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, wo.ID)
	}
	cp := *wo
	s.workOrders[wo.ID] = &cp
	return nil
}

func (s *Store) DeleteWorkOrder(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wo, ok := s.workOrders[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, id)
	}
	delete(s.woNumbers, wo.Number)
	delete(s.workOrders, id)
	kept := s.logs[:0]
	for _, l := range s.logs {
		if l.WorkOrderID != id {
			kept = append(kept, l)
		}
	}
	s.logs = kept
	return nil
}

func (s *Store) AddProductionLog(_ context.Context, l *core.ProductionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workOrders[l.WorkOrderID]; !ok {
		return fmt.Errorf("%w: %s", core.ErrWorkOrderNotFound, l.WorkOrderID)
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.LoggedAt.IsZero() {
		l.LoggedAt = s.now()
	}
	s.logs = append(s.logs, *l)
	return nil
}

func (s *Store) ListProductionLogs(_ context.Context, workOrderID uuid.UUID) ([]core.ProductionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.ProductionLog
	for _, l := range s.logs {
		if l.WorkOrderID == workOrderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) joinWorkOrder(wo core.WorkOrder) *core.WorkOrder {
	if it, ok := s.items[wo.ItemID]; ok {
		wo.ItemCode, wo.ItemName = it.Code, it.Name
	}
	return &wo
}

// ── Movement log ──────────────────────────────────────────────────────────────

func (s *Store) ListMovements(_ context.Context, filter core.MovementFilter) ([]core.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.StockMovement
	for _, m := range s.movements {
		if filter.ItemID != nil && m.ItemID != *filter.ItemID {
			continue
		}
		if filter.ReferenceID != nil && (m.ReferenceID == nil || *m.ReferenceID != *filter.ReferenceID) {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) SumMovements(_ context.Context) (map[uuid.UUID]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[uuid.UUID]decimal.Decimal)
	for _, m := range s.movements {
		sums[m.ItemID] = sums[m.ItemID].Add(m.Quantity)
	}
	return sums, nil
}
