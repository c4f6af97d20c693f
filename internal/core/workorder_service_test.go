package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-mrp/internal/core"
	"factory-mrp/internal/store/memory"
)

func statusPtr(s core.WorkOrderStatus) *core.WorkOrderStatus { return &s }
func stagePtr(s core.ProductionStage) *core.ProductionStage { return &s }
func int64Ptr(v int64) *int64                              { return &v }

func createChairs(t *testing.T, f *chairFixture, svc core.WorkOrderService, qty int64) *core.WorkOrder {
	t.Helper()
	res, err := svc.Create(context.Background(), core.CreateWorkOrderInput{ItemID: f.chair.ID, Quantity: qty})
	require.NoError(t, err)
	return res.WorkOrder
}

func TestWorkOrderCreate_ReservesAndLogs(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)
	ctx := core.WithActor(context.Background(), "alice")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	target := start.Add(72 * time.Hour)

	res, err := svc.Create(ctx, core.CreateWorkOrderInput{
		ItemID: f.chair.ID, Quantity: 2, StartDate: &start, TargetDate: &target, Notes: "rush",
	})
	require.NoError(t, err)

	wo := res.WorkOrder
	assert.True(t, strings.HasPrefix(wo.Number, "WO-"))
	assert.Len(t, wo.Number, len("WO-")+8)
	assert.Equal(t, core.StatusPending, wo.Status)
	assert.Equal(t, core.StagePlanning, wo.Stage)
	assert.Equal(t, int64(0), wo.QuantityProduced)
	assert.Equal(t, "alice", wo.CreatedBy)
	assert.Equal(t, core.StateCommitted, res.Reservation.State)

	assert.Equal(t, "2", f.stock(t, f.leg).String())
	assert.Equal(t, "1", f.stock(t, f.seat).String())
	assert.Equal(t, "96", f.stock(t, f.armrest).String())

	logs, err := svc.ProductionLogs(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Work order created", logs[0].Notes)
	assert.Equal(t, core.StagePlanning, logs[0].Stage)

	got, err := svc.Get(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, "FG-CHAIR", got.ItemCode)
}

func TestWorkOrderCreate_RefusedOnShortageWritesNothing(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)

	_, err := svc.Create(context.Background(), core.CreateWorkOrderInput{ItemID: f.chair.ID, Quantity: 3})
	require.Error(t, err)

	var ise *core.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, []uuid.UUID{f.leg.ID}, ise.ItemIDs())
	assert.Equal(t, "insufficient stock: Leg: need 12, have 10", err.Error())

	wos, err := svc.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, wos)
	assert.Empty(t, f.reservationMovements(t))
	assert.Equal(t, "10", f.stock(t, f.leg).String())
}

func TestWorkOrderCreate_Validation(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)
	ctx := context.Background()
	start := time.Now()
	before := start.Add(-time.Hour)

	tests := []struct {
		name string
		in   core.CreateWorkOrderInput
		want error
	}{
		{"zero quantity", core.CreateWorkOrderInput{ItemID: f.chair.ID}, core.ErrInvalidQuantity},
		{"unknown item", core.CreateWorkOrderInput{ItemID: uuid.New(), Quantity: 1}, core.ErrItemNotFound},
		{"raw material", core.CreateWorkOrderInput{ItemID: f.leg.ID, Quantity: 1}, core.ErrInvalidInput},
		{"dates reversed", core.CreateWorkOrderInput{ItemID: f.chair.ID, Quantity: 1, StartDate: &start, TargetDate: &before}, core.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWorkOrderCreate_NoBOM(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	stool, err := core.NewInventoryService(repo, nil).CreateItem(ctx, core.CreateItemInput{
		Code: "FG-STOOL", Name: "Stool", Unit: "pcs", IsFinishedGood: true,
	})
	require.NoError(t, err)

	_, err = core.NewWorkOrderService(repo, nil).Create(ctx, core.CreateWorkOrderInput{ItemID: stool.ID, Quantity: 1})
	assert.ErrorIs(t, err, core.ErrNoBOMDefined)
}

func TestWorkOrderCreate_DuplicateNumber(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, core.CreateWorkOrderInput{ItemID: f.chair.ID, Quantity: 1, Number: "WO-CHAIR-1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, core.CreateWorkOrderInput{ItemID: f.chair.ID, Quantity: 1, Number: "WO-CHAIR-1"})
	assert.ErrorIs(t, err, core.ErrDuplicateWONumber)

	// The second reservation was undone.
	assert.Equal(t, "6", f.stock(t, f.leg).String())
	assert.Len(t, f.reservationMovements(t), 3)
}

func TestWorkOrderCreate_InsertFailureReleasesReservation(t *testing.T) {
	store := newFaultyStore()
	f := newChairFixture(t, store)
	store.failCreateWO = true

	_, err := core.NewWorkOrderService(store, nil).Create(context.Background(), core.CreateWorkOrderInput{ItemID: f.chair.ID, Quantity: 2})
	assert.ErrorIs(t, err, core.ErrStorageFailure)

	assert.Equal(t, "10", f.stock(t, f.leg).String())
	assert.Equal(t, "3", f.stock(t, f.seat).String())
	assert.Equal(t, "100", f.stock(t, f.armrest).String())
	assert.Empty(t, f.reservationMovements(t))
}

func TestWorkOrderUpdate_StatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []core.WorkOrderStatus
		wantErr bool
	}{
		{"happy path", []core.WorkOrderStatus{core.StatusApproved, core.StatusProcessing, core.StatusCompleted}, false},
		{"cancel pending", []core.WorkOrderStatus{core.StatusCancelled}, false},
		{"cancel processing", []core.WorkOrderStatus{core.StatusApproved, core.StatusProcessing, core.StatusCancelled}, false},
		{"skip approval", []core.WorkOrderStatus{core.StatusProcessing}, true},
		{"complete from pending", []core.WorkOrderStatus{core.StatusCompleted}, true},
		{"back to pending", []core.WorkOrderStatus{core.StatusApproved, core.StatusPending}, true},
		{"reopen cancelled", []core.WorkOrderStatus{core.StatusCancelled, core.StatusApproved}, true},
		{"reopen completed", []core.WorkOrderStatus{core.StatusApproved, core.StatusProcessing, core.StatusCompleted, core.StatusProcessing}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChairFixture(t, memory.New())
			svc := core.NewWorkOrderService(f.repo, nil)
			wo := createChairs(t, f, svc, 1)

			var err error
			for _, st := range tt.path {
				if _, err = svc.UpdateProgress(context.Background(), wo.ID, core.UpdateWorkOrderInput{Status: statusPtr(st)}); err != nil {
					break
				}
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkOrderUpdate_CompletionStampsDateAndStage(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)
	ctx := context.Background()
	wo := createChairs(t, f, svc, 2)

	for _, st := range []core.WorkOrderStatus{core.StatusApproved, core.StatusProcessing} {
		_, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{Status: statusPtr(st)})
		require.NoError(t, err)
	}
	_, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{Stage: stagePtr(core.StageAssembling), QuantityProduced: int64Ptr(1)})
	require.NoError(t, err)

	done, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{Status: statusPtr(core.StatusCompleted), QuantityProduced: int64Ptr(2)})
	require.NoError(t, err)
	require.NotNil(t, done.CompletionDate)
	assert.Equal(t, core.StageCompleted, done.Stage)
	assert.Equal(t, int64(2), done.QuantityProduced)

	logs, err := svc.ProductionLogs(ctx, wo.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
	assert.Equal(t, int64(1), logs[4].QuantityCompleted)

	completed, err := svc.List(ctx, statusPtr(core.StatusCompleted))
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestWorkOrderUpdate_QuantityProducedIsMonotonic(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)
	ctx := context.Background()
	wo := createChairs(t, f, svc, 2)

	_, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{QuantityProduced: int64Ptr(1)})
	require.NoError(t, err)

	_, err = svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{QuantityProduced: int64Ptr(0)})
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)

	// Producing more than ordered is allowed.
	over, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{QuantityProduced: int64Ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), over.QuantityProduced)

	_, err = svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{QuantityProduced: int64Ptr(2)})
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)

	_, err = svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{QuantityProduced: int64Ptr(-1)})
	assert.ErrorIs(t, err, core.ErrInvalidQuantity)

	got, err := svc.Get(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.QuantityProduced)
}

func TestWorkOrderUpdate_CancelAfterOverproductionReleasesNothing(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)
	ctx := context.Background()
	wo := createChairs(t, f, svc, 2)

	_, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{QuantityProduced: int64Ptr(3)})
	require.NoError(t, err)
	cancelled, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{Status: statusPtr(core.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, cancelled.Status)

	assert.Equal(t, "2", f.stock(t, f.leg).String())
	assert.Equal(t, "1", f.stock(t, f.seat).String())
	assert.Equal(t, "96", f.stock(t, f.armrest).String())

	ref := wo.ID
	returns, err := f.repo.ListMovements(ctx, core.MovementFilter{ReferenceID: &ref, Type: core.MovementProductionReturn})
	require.NoError(t, err)
	assert.Empty(t, returns)
}

func TestWorkOrderUpdate_FailedReleaseKeepsOrderOpen(t *testing.T) {
	store := newFaultyStore()
	f := newChairFixture(t, store)
	svc := core.NewWorkOrderService(store, nil)
	ctx := context.Background()
	wo := createChairs(t, f, svc, 2)

	// The second line's credit lands but its movement does not.
	store.arm(func(s *faultyStore) { s.failMovementOn = 2 })
	_, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{Status: statusPtr(core.StatusCancelled)})
	assert.ErrorIs(t, err, core.ErrStorageFailure)

	got, err := svc.Get(ctx, wo.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, got.Status)
	assert.Equal(t, "2", f.stock(t, f.leg).String())
	assert.Equal(t, "1", f.stock(t, f.seat).String())
	assert.Equal(t, "96", f.stock(t, f.armrest).String())

	ref := wo.ID
	returns, err := store.ListMovements(ctx, core.MovementFilter{ReferenceID: &ref, Type: core.MovementProductionReturn})
	require.NoError(t, err)
	assert.Empty(t, returns)

	drift, err := core.NewInventoryService(store, nil).Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	// A retry once storage recovers returns the full reservation.
	store.arm(func(s *faultyStore) { s.failMovementOn = 0 })
	_, err = svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{Status: statusPtr(core.StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, "10", f.stock(t, f.leg).String())
	assert.Equal(t, "3", f.stock(t, f.seat).String())
	assert.Equal(t, "100", f.stock(t, f.armrest).String())
}

func TestWorkOrderUpdate_CancelReleasesUnproducedShare(t *testing.T) {
	f := newChairFixture(t, memory.New())
	svc := core.NewWorkOrderService(f.repo, nil)
	ctx := context.Background()
	wo := createChairs(t, f, svc, 2)

	_, err := svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{QuantityProduced: int64Ptr(1)})
	require.NoError(t, err)
	_, err = svc.UpdateProgress(ctx, wo.ID, core.UpdateWorkOrderInput{Status: statusPtr(core.StatusCancelled)})
	require.NoError(t, err)

	// One of two chairs was never built: half the reservation comes back.
	assert.Equal(t, "6", f.stock(t, f.leg).String())
	assert.Equal(t, "2", f.stock(t, f.seat).String())
	assert.Equal(t, "98", f.stock(t, f.armrest).String())

	ref := wo.ID
	returns, err := f.repo.ListMovements(ctx, core.MovementFilter{ReferenceID: &ref, Type: core.MovementProductionReturn})
	require.NoError(t, err)
	assert.Len(t, returns, 3)

	drift, err := core.NewInventoryService(f.repo, nil).Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestWorkOrder_NotFound(t *testing.T) {
	svc := core.NewWorkOrderService(memory.New(), nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrWorkOrderNotFound)
	_, err = svc.ProductionLogs(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrWorkOrderNotFound)
	_, err = svc.UpdateProgress(ctx, uuid.New(), core.UpdateWorkOrderInput{Status: statusPtr(core.StatusApproved)})
	assert.ErrorIs(t, err, core.ErrWorkOrderNotFound)
}
