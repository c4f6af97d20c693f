package repl

import (
	"fmt"
	"io"
	"strings"

	"factory-mrp/internal/app"
	"factory-mrp/internal/core"
)

// PrintRequirements renders an MRP calculation as a table followed by the verdict.
func PrintRequirements(w io.Writer, res *app.RequirementsResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 84))
	fmt.Fprintf(w, "  MATERIAL REQUIREMENTS  %s (%s) x %d\n", res.Item.Name, res.Item.Code, res.Quantity)
	fmt.Fprintln(w, strings.Repeat("=", 84))
	fmt.Fprintf(w, "  %-12s %-22s %-5s %10s %12s %12s %10s\n", "CODE", "MATERIAL", "UNIT", "PER UNIT", "REQUIRED", "IN STOCK", "SHORT")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	for _, r := range res.Requirements {
		marker := ""
		if r.IsShort() {
			marker = " !"
		}
		fmt.Fprintf(w, "  %-12s %-22s %-5s %10s %12s %12s %10s%s\n",
			r.RawMaterialCode, truncate(r.RawMaterialName, 22), r.Unit,
			r.QuantityPerUnit, r.TotalRequired, r.CurrentStock, r.Shortage, marker)
	}
	fmt.Fprintln(w, strings.Repeat("=", 84))
	if res.Feasible {
		fmt.Fprintln(w, "  Feasible: all materials are in stock.")
	} else {
		fmt.Fprintf(w, "  NOT feasible: %d material(s) short.\n", len(res.Shortages()))
	}
}

// PrintItems renders the item catalog with stock levels.
func PrintItems(w io.Writer, items []core.Item) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 76))
	fmt.Fprintf(w, "  %-12s %-26s %-5s %-4s %12s %12s\n", "CODE", "NAME", "UNIT", "KIND", "STOCK", "MIN")
	fmt.Fprintln(w, strings.Repeat("-", 76))
	if len(items) == 0 {
		fmt.Fprintln(w, "  No items found.")
	}
	for _, it := range items {
		marker := ""
		if it.IsLowStock() {
			marker = " LOW"
		}
		fmt.Fprintf(w, "  %-12s %-26s %-5s %-4s %12s %12s%s\n",
			it.Code, truncate(it.Name, 26), it.Unit, itemKind(it), it.CurrentStock, it.MinStock, marker)
	}
	fmt.Fprintln(w, strings.Repeat("=", 76))
}

func itemKind(it core.Item) string {
	switch {
	case it.IsRawMaterial && it.IsFinishedGood:
		return "RM+FG"
	case it.IsFinishedGood:
		return "FG"
	default:
		return "RM"
	}
}

func printBOM(w io.Writer, bom *core.BOM) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "BOM for %s (%s)\n", bom.FinishedGoodName, bom.FinishedGoodCode)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, l := range bom.Lines {
		fmt.Fprintf(w, "  %-12s %-26s %10s %s\n", l.RawMaterialCode, truncate(l.RawMaterialName, 26), l.QuantityRequired, l.Unit)
	}
}

func printBOMs(w io.Writer, boms []core.BOM) {
	if len(boms) == 0 {
		fmt.Fprintln(w, "No bills of materials defined.")
		return
	}
	for i := range boms {
		printBOM(w, &boms[i])
	}
}

// PrintWorkOrders renders work orders one per line.
func PrintWorkOrders(w io.Writer, orders []core.WorkOrder) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "  %-12s %-12s %-20s %9s %-11s %-10s\n", "NUMBER", "ITEM", "NAME", "PRODUCED", "STATUS", "STAGE")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	if len(orders) == 0 {
		fmt.Fprintln(w, "  No work orders found.")
	}
	for _, wo := range orders {
		fmt.Fprintf(w, "  %-12s %-12s %-20s %4d/%-4d %-11s %-10s\n",
			wo.Number, wo.ItemCode, truncate(wo.ItemName, 20), wo.QuantityProduced, wo.QuantityToProduce, wo.Status, wo.Stage)
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))
}

// PrintWorkOrderResult reports a created work order and what it reserved.
func PrintWorkOrderResult(w io.Writer, res *core.WorkOrderResult) {
	wo := res.WorkOrder
	fmt.Fprintf(w, "Work order %s created: %d x %s (%s).\n", wo.Number, wo.QuantityToProduce, wo.ItemName, wo.Status)
	if res.Reservation == nil {
		return
	}
	fmt.Fprintln(w, "Reserved:")
	for _, l := range res.Reservation.Lines {
		fmt.Fprintf(w, "  %-12s %10s  (left %s)\n", l.ItemCode, l.Quantity, l.NewStock)
	}
}

// PrintShortages lists every short material of a refused work order.
func PrintShortages(w io.Writer, ise *core.InsufficientStockError) {
	fmt.Fprintln(w, "Work order refused, insufficient stock:")
	for _, s := range ise.Items {
		fmt.Fprintf(w, "  %-12s %-22s need %s, have %s, short %s\n", s.ItemCode, truncate(s.ItemName, 22), s.Required, s.Available, s.Missing())
	}
}

func printLogs(w io.Writer, logs []core.ProductionLog) {
	for _, l := range logs {
		fmt.Fprintf(w, "  %s  %-10s +%-4d %-8s %s\n",
			l.LoggedAt.Format("2006-01-02 15:04"), l.Stage, l.QuantityCompleted, l.LoggedBy, l.Notes)
	}
}

func printMovements(w io.Writer, moves []core.StockMovement) {
	for _, m := range moves {
		fmt.Fprintf(w, "  %s  %-17s %12s  %s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Type, m.Quantity, m.Notes)
	}
}

// PrintReconcile reports stock drift, or confirms the ledger is consistent.
func PrintReconcile(w io.Writer, res *app.ReconcileResult) {
	if res.Clean {
		fmt.Fprintln(w, "Stock matches the movement log for every item.")
		return
	}
	fmt.Fprintf(w, "%d item(s) drifted from their movement log:\n", len(res.Drift))
	for _, d := range res.Drift {
		fmt.Fprintf(w, "  %-12s stock %s, movements %s, difference %s\n", d.ItemCode, d.CurrentStock, d.MovementSum, d.Difference)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `Commands:
  /items [raw|finished]            list the item catalog
  /stock                           stock levels, low stock flagged
  /receive <item> <qty> [notes]    book a goods receipt
  /movements <item>                stock movement history
  /calc <item> <qty>               material requirements for a run
  /export <item> <qty> [file]      write requirements to an XLSX file
  /boms                            list bills of materials
  /bom <item>                      show one bill of materials
  /new-bom <item>                  define a bill of materials interactively
  /wo <item> <qty>                 create a work order and reserve stock
  /orders [status]                 list work orders
  /status <wo> <status>            move a work order to a new status
  /stage <wo> <stage>              set the production stage
  /produced <wo> <qty>             record units produced
  /logs <wo>                       production log of a work order
  /reconcile                       compare stock with the movement log
  /help, /exit`)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
