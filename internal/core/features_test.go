package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"factory-mrp/internal/core"
	"factory-mrp/internal/store/memory"
)

type mrpTestContext struct {
	store     *memory.Store
	inventory core.InventoryService
	boms      core.BOMService
	workOrder core.WorkOrderService
	items     map[string]*core.Item
	pending   map[uuid.UUID][]core.BOMLineInput

	reqs   []core.Requirement
	result *core.WorkOrderResult
	err    error
}

func (c *mrpTestContext) reset() {
	c.store = memory.New()
	c.inventory = core.NewInventoryService(c.store, nil)
	c.boms = core.NewBOMService(c.store, nil)
	c.workOrder = core.NewWorkOrderService(c.store, nil)
	c.items = make(map[string]*core.Item)
	c.pending = make(map[uuid.UUID][]core.BOMLineInput)
	c.reqs, c.result, c.err = nil, nil, nil
}

func (c *mrpTestContext) item(name string) (*core.Item, error) {
	it, ok := c.items[name]
	if !ok {
		return nil, fmt.Errorf("unknown item %q", name)
	}
	return it, nil
}

// flushBOMs defines every BOM collected from Given steps.
func (c *mrpTestContext) flushBOMs(ctx context.Context) error {
	for fg, lines := range c.pending {
		if _, err := c.boms.Define(ctx, fg, lines); err != nil {
			return err
		}
	}
	c.pending = make(map[uuid.UUID][]core.BOMLineInput)
	return nil
}

func (c *mrpTestContext) aFinishedGood(ctx context.Context, name string) error {
	it, err := c.inventory.CreateItem(ctx, core.CreateItemInput{
		Code: "FG-" + name, Name: name, Unit: "pcs", IsFinishedGood: true,
	})
	if err != nil {
		return err
	}
	c.items[name] = it
	return nil
}

func (c *mrpTestContext) aRawMaterialWithStock(ctx context.Context, name, stock string) error {
	qty, err := decimal.NewFromString(stock)
	if err != nil {
		return err
	}
	it, err := c.inventory.CreateItem(ctx, core.CreateItemInput{
		Code: "RM-" + name, Name: name, Unit: "pcs", OpeningStock: qty, IsRawMaterial: true,
	})
	if err != nil {
		return err
	}
	c.items[name] = it
	return nil
}

func (c *mrpTestContext) needsPerUnit(fgName, qty, rawName string) error {
	fg, err := c.item(fgName)
	if err != nil {
		return err
	}
	raw, err := c.item(rawName)
	if err != nil {
		return err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return err
	}
	c.pending[fg.ID] = append(c.pending[fg.ID], core.BOMLineInput{RawMaterialID: raw.ID, QuantityRequired: q})
	return nil
}

func (c *mrpTestContext) iCalculateRequirementsFor(ctx context.Context, qty int64, name string) error {
	if err := c.flushBOMs(ctx); err != nil {
		return err
	}
	fg, err := c.item(name)
	if err != nil {
		return err
	}
	c.reqs, c.err = core.NewBOMExploder(c.store).Compute(ctx, fg.ID, qty)
	return nil
}

func (c *mrpTestContext) iCreateAWorkOrderFor(ctx context.Context, qty int64, name string) error {
	if err := c.flushBOMs(ctx); err != nil {
		return err
	}
	fg, err := c.item(name)
	if err != nil {
		return err
	}
	c.result, c.err = c.workOrder.Create(ctx, core.CreateWorkOrderInput{ItemID: fg.ID, Quantity: qty})
	return nil
}

func (c *mrpTestContext) theRequirementIsWithShortage(name, total, shortage string) error {
	if c.err != nil {
		return fmt.Errorf("expected requirements but got error: %v", c.err)
	}
	for _, r := range c.reqs {
		if r.RawMaterialName != name {
			continue
		}
		if !r.TotalRequired.Equal(decimal.RequireFromString(total)) {
			return fmt.Errorf("%s: expected total %s, got %s", name, total, r.TotalRequired)
		}
		if !r.Shortage.Equal(decimal.RequireFromString(shortage)) {
			return fmt.Errorf("%s: expected shortage %s, got %s", name, shortage, r.Shortage)
		}
		return nil
	}
	return fmt.Errorf("no requirement for %s", name)
}

func (c *mrpTestContext) theRunIs(feasibility string) error {
	want := feasibility == "feasible"
	if got := core.Feasible(c.reqs); got != want {
		return fmt.Errorf("expected feasible=%v, got %v", want, got)
	}
	return nil
}

var errorsByName = map[string]error{
	"InvalidQuantity":   core.ErrInvalidQuantity,
	"NoBOMDefined":      core.ErrNoBOMDefined,
	"InvalidBOMLine":    core.ErrInvalidBOMLine,
	"InsufficientStock": core.ErrInsufficientStock,
	"ItemNotFound":      core.ErrItemNotFound,
	"StorageFailure":    core.ErrStorageFailure,
}

func (c *mrpTestContext) theRequestFailsWith(name string) error {
	want, ok := errorsByName[name]
	if !ok {
		return fmt.Errorf("unknown error kind %q", name)
	}
	if !errors.Is(c.err, want) {
		return fmt.Errorf("expected %s, got %v", name, c.err)
	}
	return nil
}

func (c *mrpTestContext) theShortageListNamesOnly(name string) error {
	var ise *core.InsufficientStockError
	if !errors.As(c.err, &ise) {
		return fmt.Errorf("expected an insufficient stock error, got %v", c.err)
	}
	if len(ise.Items) != 1 || ise.Items[0].ItemName != name {
		return fmt.Errorf("expected only %s to be short, got %+v", name, ise.Items)
	}
	return nil
}

func (c *mrpTestContext) stockOfIs(ctx context.Context, name, want string) error {
	it, err := c.item(name)
	if err != nil {
		return err
	}
	got, err := c.store.GetItemStock(ctx, it.ID)
	if err != nil {
		return err
	}
	if !got.Equal(decimal.RequireFromString(want)) {
		return fmt.Errorf("stock of %s: expected %s, got %s", name, want, got)
	}
	return nil
}

func (c *mrpTestContext) noReservationMovementsExist(ctx context.Context) error {
	moves, err := c.store.ListMovements(ctx, core.MovementFilter{Type: core.MovementProductionUse})
	if err != nil {
		return err
	}
	if len(moves) != 0 {
		return fmt.Errorf("expected no reservation movements, got %d", len(moves))
	}
	return nil
}

func (c *mrpTestContext) theWorkOrderIsPendingInPlanning() error {
	if c.err != nil {
		return fmt.Errorf("expected a work order but got error: %v", c.err)
	}
	wo := c.result.WorkOrder
	if wo.Status != core.StatusPending || wo.Stage != core.StagePlanning || wo.QuantityProduced != 0 {
		return fmt.Errorf("unexpected work order state: %s/%s/%d", wo.Status, wo.Stage, wo.QuantityProduced)
	}
	return nil
}

func (c *mrpTestContext) hasAProductionUseMovementOf(ctx context.Context, name, qty string) error {
	it, err := c.item(name)
	if err != nil {
		return err
	}
	ref := c.result.WorkOrder.ID
	moves, err := c.store.ListMovements(ctx, core.MovementFilter{ItemID: &it.ID, ReferenceID: &ref, Type: core.MovementProductionUse})
	if err != nil {
		return err
	}
	if len(moves) != 1 {
		return fmt.Errorf("expected one movement for %s, got %d", name, len(moves))
	}
	if !moves[0].Quantity.Equal(decimal.RequireFromString(qty)) {
		return fmt.Errorf("movement for %s: expected %s, got %s", name, qty, moves[0].Quantity)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &mrpTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a finished good "([^"]*)"$`, tc.aFinishedGood)
	ctx.Step(`^a raw material "([^"]*)" with (\d+(?:\.\d+)?) in stock$`, tc.aRawMaterialWithStock)
	ctx.Step(`^"([^"]*)" needs (\d+(?:\.\d+)?) "([^"]*)" per unit$`, tc.needsPerUnit)

	// When steps
	ctx.Step(`^I calculate requirements for (-?\d+) "([^"]*)"$`, tc.iCalculateRequirementsFor)
	ctx.Step(`^I create a work order for (-?\d+) "([^"]*)"$`, tc.iCreateAWorkOrderFor)

	// Then steps
	ctx.Step(`^the requirement for "([^"]*)" is (\S+) with shortage (\S+)$`, tc.theRequirementIsWithShortage)
	ctx.Step(`^the run is (feasible|not feasible)$`, tc.theRunIs)
	ctx.Step(`^the request fails with "([^"]*)"$`, tc.theRequestFailsWith)
	ctx.Step(`^the shortage list names only "([^"]*)"$`, tc.theShortageListNamesOnly)
	ctx.Step(`^stock of "([^"]*)" is (\S+)$`, tc.stockOfIs)
	ctx.Step(`^no reservation movements exist$`, tc.noReservationMovementsExist)
	ctx.Step(`^the work order is pending in planning$`, tc.theWorkOrderIsPendingInPlanning)
	ctx.Step(`^"([^"]*)" has a production_use movement of (\S+)$`, tc.hasAProductionUseMovementOf)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
