package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-mrp/internal/app"
	"factory-mrp/internal/core"
	"factory-mrp/internal/store/memory"
)

func chairService(t *testing.T) (app.ApplicationService, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := app.New(store, nil)
	ctx := context.Background()
	chair, err := svc.CreateItem(ctx, app.CreateItemRequest{Code: "FG-CHAIR", Name: "Chair", Unit: "pcs", IsFinishedGood: true})
	require.NoError(t, err)
	leg, err := svc.CreateItem(ctx, app.CreateItemRequest{Code: "RM-LEG", Name: "Leg", Unit: "pcs", OpeningStock: decimal.NewFromInt(10), IsRawMaterial: true})
	require.NoError(t, err)
	_, err = svc.DefineBOM(ctx, app.DefineBOMRequest{
		FinishedGoodID: chair.ID,
		Lines:          []app.BOMLineRequest{{RawMaterialID: leg.ID, QuantityRequired: decimal.NewFromInt(4)}},
	})
	require.NoError(t, err)
	return svc, store
}

func TestRun_Calc(t *testing.T) {
	svc, _ := chairService(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, Run(ctx, svc, []string{"calc", "FG-CHAIR", "2", "--json"}, &out))
	var res app.RequirementsResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.Feasible)
	assert.Equal(t, "8", res.Requirements[0].TotalRequired.String())

	path := filepath.Join(t.TempDir(), "req.xlsx")
	out.Reset()
	require.NoError(t, Run(ctx, svc, []string{"calc", "FG-CHAIR", "2", "--xlsx", path}, &out))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	assert.ErrorIs(t, Run(ctx, svc, []string{"calc", "FG-CHAIR", "two"}, &out), core.ErrInvalidQuantity)
	assert.ErrorIs(t, Run(ctx, svc, []string{"calc", "FG-CHAIR"}, &out), ErrUsage)
	assert.ErrorIs(t, Run(ctx, svc, []string{"bogus"}, &out), ErrUsage)
}

func TestRun_WorkOrderAndReconcile(t *testing.T) {
	svc, store := chairService(t)
	ctx := context.Background()

	var out bytes.Buffer
	err := Run(ctx, svc, []string{"wo", "FG-CHAIR", "3"}, &out)
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	assert.Contains(t, out.String(), "short 2")

	out.Reset()
	require.NoError(t, Run(ctx, svc, []string{"wo", "FG-CHAIR", "2"}, &out))
	assert.Contains(t, out.String(), "Reserved:")

	require.NoError(t, Run(ctx, svc, []string{"reconcile"}, &out))

	leg, ok := store.ItemByCode("RM-LEG")
	require.True(t, ok)
	_, err = store.AdjustStock(ctx, leg.ID, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.ErrorIs(t, Run(ctx, svc, []string{"reconcile"}, &out), ErrDrift)
}
