package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-mrp/internal/core"
	"factory-mrp/internal/store/memory"
)

func requirementFor(t *testing.T, reqs []core.Requirement, code string) core.Requirement {
	t.Helper()
	for _, r := range reqs {
		if r.RawMaterialCode == code {
			return r
		}
	}
	t.Fatalf("no requirement for %s in %+v", code, reqs)
	return core.Requirement{}
}

func TestCompute_ReportsShortagesWithoutRefusing(t *testing.T) {
	f := newChairFixture(t, memory.New())
	exploder := core.NewBOMExploder(f.repo)

	reqs, err := exploder.Compute(context.Background(), f.chair.ID, 3)
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	leg := requirementFor(t, reqs, "RM-LEG")
	assert.True(t, dec("12").Equal(leg.TotalRequired), "leg total %s", leg.TotalRequired)
	assert.True(t, dec("10").Equal(leg.CurrentStock))
	assert.True(t, dec("2").Equal(leg.Shortage), "leg shortage %s", leg.Shortage)

	seat := requirementFor(t, reqs, "RM-SEAT")
	assert.True(t, dec("3").Equal(seat.TotalRequired))
	assert.True(t, seat.Shortage.IsZero())

	arm := requirementFor(t, reqs, "RM-ARM")
	assert.True(t, dec("6").Equal(arm.TotalRequired))
	assert.True(t, arm.Shortage.IsZero())

	assert.False(t, core.Feasible(reqs))
	short := core.Shortages(reqs)
	require.Len(t, short, 1)
	assert.Equal(t, f.leg.ID, short[0].ItemID)
	assert.True(t, dec("2").Equal(short[0].Missing()))
}

func TestCompute_FeasibleRun(t *testing.T) {
	f := newChairFixture(t, memory.New())
	reqs, err := core.NewBOMExploder(f.repo).Compute(context.Background(), f.chair.ID, 2)
	require.NoError(t, err)
	assert.True(t, core.Feasible(reqs))
	assert.Empty(t, core.Shortages(reqs))
}

func TestCompute_IsLinearInQuantity(t *testing.T) {
	f := newChairFixture(t, memory.New())
	exploder := core.NewBOMExploder(f.repo)
	ctx := context.Background()

	one, err := exploder.Compute(ctx, f.chair.ID, 1)
	require.NoError(t, err)
	for _, k := range []int64{2, 7, 1000} {
		many, err := exploder.Compute(ctx, f.chair.ID, k)
		require.NoError(t, err)
		require.Len(t, many, len(one))
		for i := range one {
			want := one[i].TotalRequired.Mul(decimal.NewFromInt(k))
			assert.True(t, want.Equal(many[i].TotalRequired), "k=%d line %s: want %s got %s",
				k, one[i].RawMaterialCode, want, many[i].TotalRequired)
			assert.False(t, many[i].Shortage.IsNegative())
		}
	}
}

func TestCompute_FractionalQuantitiesAreExact(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	inv := core.NewInventoryService(repo, nil)
	fg, err := inv.CreateItem(ctx, core.CreateItemInput{Code: "FG-PASTE", Name: "Paste", Unit: "jar", IsFinishedGood: true})
	require.NoError(t, err)
	resin, err := inv.CreateItem(ctx, core.CreateItemInput{Code: "RM-RESIN", Name: "Resin", Unit: "kg", OpeningStock: dec("1"), IsRawMaterial: true})
	require.NoError(t, err)
	_, err = core.NewBOMService(repo, nil).Define(ctx, fg.ID, []core.BOMLineInput{{RawMaterialID: resin.ID, QuantityRequired: dec("0.1")}})
	require.NoError(t, err)

	reqs, err := core.NewBOMExploder(repo).Compute(ctx, fg.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "0.3", reqs[0].TotalRequired.String())
	assert.True(t, reqs[0].Shortage.IsZero())
}

func TestCompute_Errors(t *testing.T) {
	f := newChairFixture(t, memory.New())
	exploder := core.NewBOMExploder(f.repo)
	ctx := context.Background()

	tests := []struct {
		name string
		fg   uuid.UUID
		qty  int64
		want error
	}{
		{"zero quantity", f.chair.ID, 0, core.ErrInvalidQuantity},
		{"negative quantity", f.chair.ID, -4, core.ErrInvalidQuantity},
		{"item without BOM", f.leg.ID, 1, core.ErrNoBOMDefined},
		{"unknown item", uuid.New(), 1, core.ErrNoBOMDefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs, err := exploder.Compute(ctx, tt.fg, tt.qty)
			assert.Nil(t, reqs)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompute_RejectsCorruptBOMLines(t *testing.T) {
	store := memory.New()
	f := newChairFixture(t, store)
	ctx := context.Background()

	widget, err := core.NewInventoryService(store, nil).CreateItem(ctx, core.CreateItemInput{
		Code: "FG-WIDGET", Name: "Widget", Unit: "pcs", IsFinishedGood: true,
	})
	require.NoError(t, err)
	store.PutBOMLine(core.BOMLine{FinishedGoodID: widget.ID, RawMaterialID: f.leg.ID, QuantityRequired: dec("1")})
	store.PutBOMLine(core.BOMLine{FinishedGoodID: widget.ID, RawMaterialID: f.seat.ID, QuantityRequired: dec("0")})

	_, err = core.NewBOMExploder(store).Compute(ctx, widget.ID, 1)
	assert.ErrorIs(t, err, core.ErrInvalidBOMLine)

	store.PutBOMLine(core.BOMLine{FinishedGoodID: f.leg.ID, RawMaterialID: f.leg.ID, QuantityRequired: dec("1")})
	_, err = core.NewBOMExploder(store).Compute(ctx, f.leg.ID, 1)
	assert.ErrorIs(t, err, core.ErrInvalidBOMLine)
}

func TestCompute_MissingRawMaterial(t *testing.T) {
	store := memory.New()
	f := newChairFixture(t, store)
	ghost := uuid.New()
	store.PutBOMLine(core.BOMLine{FinishedGoodID: f.chair.ID, RawMaterialID: ghost, QuantityRequired: dec("1")})

	_, err := core.NewBOMExploder(store).Compute(context.Background(), f.chair.ID, 1)
	assert.ErrorIs(t, err, core.ErrItemNotFound)
}

func TestCompute_StorageFailure(t *testing.T) {
	store := newFaultyStore()
	f := newChairFixture(t, store)
	store.arm(func(s *faultyStore) { s.failStockRead = true })

	_, err := core.NewBOMExploder(store).Compute(context.Background(), f.chair.ID, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageFailure)
	assert.True(t, errors.Is(err, errDiskOnFire), "cause should stay in the chain")
}
