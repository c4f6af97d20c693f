package core_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-mrp/internal/core"
	"factory-mrp/internal/store/memory"
)

func TestCreateItem_RecordsOpeningMovement(t *testing.T) {
	repo := memory.New()
	svc := core.NewInventoryService(repo, nil)
	ctx := core.WithActor(context.Background(), "bob")

	it, err := svc.CreateItem(ctx, core.CreateItemInput{
		Code: " RM-GLUE ", Name: "Glue", Unit: "kg", OpeningStock: dec("12.5"), MinStock: dec("20"), IsRawMaterial: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "RM-GLUE", it.Code)
	assert.True(t, it.IsLowStock())

	moves, err := svc.Movements(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, core.MovementOpening, moves[0].Type)
	assert.Equal(t, "12.5", moves[0].Quantity.String())
	assert.Equal(t, "bob", moves[0].CreatedBy)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, it.ID, low[0].ID)

	_, err = svc.CreateItem(ctx, core.CreateItemInput{Code: "RM-GLUE", Name: "Glue again", Unit: "kg", IsRawMaterial: true})
	assert.ErrorIs(t, err, core.ErrDuplicateItemCode)
}

func TestCreateItem_Validation(t *testing.T) {
	svc := core.NewInventoryService(memory.New(), nil)
	maxStock := dec("1")
	preciseMax := dec("10.00001")

	tests := []struct {
		name string
		in   core.CreateItemInput
		want error
	}{
		{"missing code", core.CreateItemInput{Name: "x", Unit: "pcs", IsRawMaterial: true}, core.ErrInvalidInput},
		{"missing name", core.CreateItemInput{Code: "x", Unit: "pcs", IsRawMaterial: true}, core.ErrInvalidInput},
		{"missing unit", core.CreateItemInput{Code: "x", Name: "x", IsRawMaterial: true}, core.ErrInvalidInput},
		{"no kind", core.CreateItemInput{Code: "x", Name: "x", Unit: "pcs"}, core.ErrInvalidInput},
		{"negative opening", core.CreateItemInput{Code: "x", Name: "x", Unit: "pcs", IsRawMaterial: true, OpeningStock: dec("-1")}, core.ErrInvalidQuantity},
		{"max below min", core.CreateItemInput{Code: "x", Name: "x", Unit: "pcs", IsRawMaterial: true, MinStock: dec("5"), MaxStock: &maxStock}, core.ErrInvalidQuantity},
		{"opening beyond four places", core.CreateItemInput{Code: "x", Name: "x", Unit: "kg", IsRawMaterial: true, OpeningStock: dec("1.00005")}, core.ErrInvalidQuantity},
		{"min beyond four places", core.CreateItemInput{Code: "x", Name: "x", Unit: "kg", IsRawMaterial: true, MinStock: dec("0.00001")}, core.ErrInvalidQuantity},
		{"max beyond four places", core.CreateItemInput{Code: "x", Name: "x", Unit: "kg", IsRawMaterial: true, MaxStock: &preciseMax}, core.ErrInvalidQuantity},
		{"price beyond four places", core.CreateItemInput{Code: "x", Name: "x", Unit: "kg", IsRawMaterial: true, UnitPrice: dec("9.99999")}, core.ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateItem(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReceiveStock(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewInventoryService(f.repo, nil)
	ctx := context.Background()

	m, err := svc.ReceiveStock(ctx, f.leg.ID, dec("6"), "")
	require.NoError(t, err)
	assert.Equal(t, core.MovementIn, m.Type)
	assert.Equal(t, "Goods receipt", m.Notes)
	assert.Equal(t, "16", f.stock(t, f.leg).String())

	// Receiving legs makes three chairs feasible.
	reqs := explode(t, f.repo, f.chair.ID, 3)
	assert.True(t, core.Feasible(reqs))

	_, err = svc.ReceiveStock(ctx, f.leg.ID, dec("0"), "")
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)
	_, err = svc.ReceiveStock(ctx, f.leg.ID, dec("0.00005"), "")
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)
	assert.Equal(t, "16", f.stock(t, f.leg).String())

	// Trailing zeros are not extra precision.
	_, err = svc.ReceiveStock(ctx, f.leg.ID, dec("0.50000"), "")
	require.NoError(t, err)
	assert.Equal(t, "16.5", f.stock(t, f.leg).String())
	_, err = svc.ReceiveStock(ctx, uuid.New(), dec("1"), "")
	assert.ErrorIs(t, err, core.ErrItemNotFound)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	store := memory.New()
	f := newChairFixture(t, store)
	svc := core.NewInventoryService(store, nil)
	ctx := context.Background()

	drift, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	// A stock change that bypasses the movement log.
	_, err = store.AdjustStock(ctx, f.seat.ID, dec("-1"))
	require.NoError(t, err)

	drift, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, f.seat.ID, drift[0].ItemID)
	assert.Equal(t, "-1", drift[0].Difference.String())
}
