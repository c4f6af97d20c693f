// Package seed loads the demo furniture catalog.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"factory-mrp/internal/app"
	"factory-mrp/internal/core"
)

type demoItem struct {
	code, name, unit string
	stock, minStock  string
	finished         bool
}

var demoItems = []demoItem{
	{code: "FG-CHAIR", name: "Chair", unit: "pcs", stock: "0", minStock: "0", finished: true},
	{code: "FG-TABLE", name: "Table", unit: "pcs", stock: "0", minStock: "0", finished: true},
	{code: "RM-LEG", name: "Leg", unit: "pcs", stock: "10", minStock: "20"},
	{code: "RM-SEAT", name: "Seat", unit: "pcs", stock: "3", minStock: "5"},
	{code: "RM-ARM", name: "Armrest", unit: "pcs", stock: "100", minStock: "10"},
	{code: "RM-TOP", name: "Table top", unit: "pcs", stock: "2", minStock: "1"},
	{code: "RM-GLUE", name: "Wood glue", unit: "kg", stock: "5.5", minStock: "1"},
}

var demoBOMs = map[string][]struct {
	material string
	qty      string
}{
	"FG-CHAIR": {{"RM-LEG", "4"}, {"RM-SEAT", "1"}, {"RM-ARM", "2"}},
	"FG-TABLE": {{"RM-LEG", "4"}, {"RM-TOP", "1"}, {"RM-GLUE", "0.125"}},
}

// Demo creates the demo items with their opening stock and BOMs through svc,
// so every opening balance is backed by a movement.
func Demo(ctx context.Context, svc app.ApplicationService) error {
	ids := make(map[string]*core.Item, len(demoItems))
	for _, d := range demoItems {
		item, err := svc.CreateItem(ctx, app.CreateItemRequest{
			Code:           d.code,
			Name:           d.name,
			Unit:           d.unit,
			OpeningStock:   decimal.RequireFromString(d.stock),
			MinStock:       decimal.RequireFromString(d.minStock),
			IsRawMaterial:  !d.finished,
			IsFinishedGood: d.finished,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", d.code, err)
		}
		ids[d.code] = item
	}

	for fg, lines := range demoBOMs {
		req := app.DefineBOMRequest{FinishedGoodID: ids[fg].ID}
		for _, l := range lines {
			req.Lines = append(req.Lines, app.BOMLineRequest{
				RawMaterialID:    ids[l.material].ID,
				QuantityRequired: decimal.RequireFromString(l.qty),
			})
		}
		if _, err := svc.DefineBOM(ctx, req); err != nil {
			return fmt.Errorf("failed to define BOM for %s: %w", fg, err)
		}
	}
	return nil
}
