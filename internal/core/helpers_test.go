package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"factory-mrp/internal/core"
	"factory-mrp/internal/store/memory"
)

var errDiskOnFire = errors.New("disk on fire")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// chairFixture is the catalog used throughout: one Chair needs 4 Legs,
// 1 Seat and 2 Armrests.
type chairFixture struct {
	repo    core.Repository
	chair   *core.Item
	leg     *core.Item
	seat    *core.Item
	armrest *core.Item
}

func (f *chairFixture) stock(t *testing.T, item *core.Item) decimal.Decimal {
	t.Helper()
	s, err := f.repo.GetItemStock(context.Background(), item.ID)
	require.NoError(t, err)
	return s
}

func (f *chairFixture) reservationMovements(t *testing.T) []core.StockMovement {
	t.Helper()
	moves, err := f.repo.ListMovements(context.Background(), core.MovementFilter{Type: core.MovementProductionUse})
	require.NoError(t, err)
	return moves
}

func newChairFixture(t *testing.T, repo core.Repository) *chairFixture {
	t.Helper()
	ctx := context.Background()
	inv := core.NewInventoryService(repo, zap.NewNop())
	boms := core.NewBOMService(repo, zap.NewNop())

	create := func(code, name, unit, opening string, raw, finished bool) *core.Item {
		it, err := inv.CreateItem(ctx, core.CreateItemInput{
			Code:           code,
			Name:           name,
			Unit:           unit,
			OpeningStock:   dec(opening),
			IsRawMaterial:  raw,
			IsFinishedGood: finished,
		})
		require.NoError(t, err)
		return it
	}

	f := &chairFixture{repo: repo}
	f.chair = create("FG-CHAIR", "Chair", "pcs", "0", false, true)
	f.leg = create("RM-LEG", "Leg", "pcs", "10", true, false)
	f.seat = create("RM-SEAT", "Seat", "pcs", "3", true, false)
	f.armrest = create("RM-ARM", "Armrest", "pcs", "100", true, false)

	_, err := boms.Define(ctx, f.chair.ID, []core.BOMLineInput{
		{RawMaterialID: f.leg.ID, QuantityRequired: dec("4")},
		{RawMaterialID: f.seat.ID, QuantityRequired: dec("1")},
		{RawMaterialID: f.armrest.ID, QuantityRequired: dec("2")},
	})
	require.NoError(t, err)
	return f
}

// faultyStore injects failures into an in-memory store. Counters are
// 1-based; zero disables the fault.
type faultyStore struct {
	*memory.Store

	mu              sync.Mutex
	failDecrementOn int
	// refuseDecrementOn reports a lost race on that decrement and breaks
	// every later stock read.
	refuseDecrementOn int
	failMovementOn    int
	failRestore     bool
	failCreateWO    bool
	failStockRead   bool
	decrements      int
	movements       int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.New()}
}

func (f *faultyStore) GetItemStock(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	fail := f.failStockRead
	f.mu.Unlock()
	if fail {
		return decimal.Zero, errDiskOnFire
	}
	return f.Store.GetItemStock(ctx, id)
}

func (f *faultyStore) AdjustStock(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	var fail, refuse bool
	if delta.IsNegative() {
		f.decrements++
		fail = f.failDecrementOn != 0 && f.decrements == f.failDecrementOn
		refuse = f.refuseDecrementOn != 0 && f.decrements == f.refuseDecrementOn
		if refuse {
			f.failStockRead = true
		}
	} else {
		fail = f.failRestore
	}
	f.mu.Unlock()
	if refuse {
		return decimal.Zero, fmt.Errorf("%w: lost race", core.ErrInsufficientStock)
	}
	if fail {
		return decimal.Zero, errDiskOnFire
	}
	return f.Store.AdjustStock(ctx, id, delta)
}

func (f *faultyStore) RecordMovement(ctx context.Context, m *core.StockMovement) error {
	f.mu.Lock()
	f.movements++
	fail := f.failMovementOn != 0 && f.movements == f.failMovementOn
	f.mu.Unlock()
	if fail {
		return errDiskOnFire
	}
	return f.Store.RecordMovement(ctx, m)
}

func (f *faultyStore) CreateWorkOrder(ctx context.Context, wo *core.WorkOrder) error {
	if f.failCreateWO {
		return errDiskOnFire
	}
	return f.Store.CreateWorkOrder(ctx, wo)
}

// arm resets the counters so faults count from the next operation.
func (f *faultyStore) arm(apply func(f *faultyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrements, f.movements = 0, 0
	apply(f)
}
