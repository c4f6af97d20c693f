package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BOMExploder computes the raw-material requirements of a candidate production run.
// It has no side effects: stock is read fresh on every call and nothing is cached.
type BOMExploder interface {
	// Compute explodes the single-level BOM of finishedGoodID for productionQuantity
	// units. The full requirement list is returned even when some lines are short;
	// callers use Feasible or Shortages to decide whether to reserve.
	Compute(ctx context.Context, finishedGoodID uuid.UUID, productionQuantity int64) ([]Requirement, error)
}

type bomExploder struct {
	store StockStore
}

func NewBOMExploder(store StockStore) BOMExploder {
	return &bomExploder{store: store}
}

func (e *bomExploder) Compute(ctx context.Context, finishedGoodID uuid.UUID, productionQuantity int64) ([]Requirement, error) {
	if productionQuantity <= 0 {
		return nil, fmt.Errorf("%w: production quantity must be a positive integer, got %d", ErrInvalidQuantity, productionQuantity)
	}

	lines, err := e.store.GetBOM(ctx, finishedGoodID)
	if err != nil {
		return nil, classify(fmt.Sprintf("failed to load BOM for item %s", finishedGoodID), err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w for item %s", ErrNoBOMDefined, finishedGoodID)
	}

	// Reject corrupt BOM data before touching stock.
	for _, line := range lines {
		if err := validateBOMLine(finishedGoodID, line); err != nil {
			return nil, err
		}
	}

	qty := decimal.NewFromInt(productionQuantity)
	reqs := make([]Requirement, 0, len(lines))
	for _, line := range lines {
		stock, err := e.store.GetItemStock(ctx, line.RawMaterialID)
		if err != nil {
			return nil, classify(fmt.Sprintf("failed to read stock for %s", lineLabel(line)), err)
		}

		total := line.QuantityRequired.Mul(qty)
		reqs = append(reqs, Requirement{
			RawMaterialID:   line.RawMaterialID,
			RawMaterialCode: line.RawMaterialCode,
			RawMaterialName: line.RawMaterialName,
			Unit:            line.Unit,
			QuantityPerUnit: line.QuantityRequired,
			TotalRequired:   total,
			CurrentStock:    stock,
			Shortage:        decimal.Max(decimal.Zero, total.Sub(stock)),
		})
	}
	return reqs, nil
}

func validateBOMLine(finishedGoodID uuid.UUID, line BOMLine) error {
	if !line.QuantityRequired.IsPositive() {
		return fmt.Errorf("%w: %s requires %s per unit (must be positive)",
			ErrInvalidBOMLine, lineLabel(line), line.QuantityRequired.String())
	}
	if line.RawMaterialID == finishedGoodID {
		return fmt.Errorf("%w: item %s lists itself as a raw material", ErrInvalidBOMLine, finishedGoodID)
	}
	return nil
}

func lineLabel(line BOMLine) string {
	if line.RawMaterialCode != "" {
		return line.RawMaterialCode
	}
	return line.RawMaterialID.String()
}

// Feasible reports whether every requirement can be covered by current stock.
// A single short line makes the whole run infeasible.
func Feasible(reqs []Requirement) bool {
	for _, r := range reqs {
		if r.IsShort() {
			return false
		}
	}
	return true
}

// Shortages lists the short lines of reqs in BOM order.
func Shortages(reqs []Requirement) []Shortage {
	var out []Shortage
	for _, r := range reqs {
		if r.IsShort() {
			out = append(out, Shortage{
				ItemID:    r.RawMaterialID,
				ItemCode:  r.RawMaterialCode,
				ItemName:  r.RawMaterialName,
				Required:  r.TotalRequired,
				Available: r.CurrentStock,
			})
		}
	}
	return out
}
