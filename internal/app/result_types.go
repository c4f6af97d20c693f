package app

import "factory-mrp/internal/core"

// RequirementsResult is returned by CalculateRequirements.
type RequirementsResult struct {
	Item         *core.Item         `json:"item"`
	Quantity     int64              `json:"quantity"`
	Requirements []core.Requirement `json:"requirements"`
	Feasible     bool               `json:"feasible"`
}

// Shortages returns only the lines that cannot be covered by current stock.
func (r *RequirementsResult) Shortages() []core.Shortage {
	return core.Shortages(r.Requirements)
}

// ExportResult is a rendered requirement sheet.
type ExportResult struct {
	Filename string
	Content  []byte
}

// ItemListResult is returned by ListItems.
type ItemListResult struct {
	Items []core.Item `json:"items"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Items    []core.Item `json:"items"`
	LowStock int         `json:"low_stock_count"`
}

// ReconcileResult is returned by Reconcile.
type ReconcileResult struct {
	Drift []core.StockDrift `json:"drift"`
	Clean bool              `json:"clean"`
}

// WorkOrderListResult is returned by ListWorkOrders.
type WorkOrderListResult struct {
	WorkOrders []core.WorkOrder `json:"work_orders"`
}
