package repl

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"factory-mrp/internal/app"
)

// newBOMWizard runs an interactive BOM definition session.
func (r *session) newBOMWizard(fgRef string) error {
	fg, err := r.svc.ResolveItem(r.ctx, fgRef)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Defining BOM for: %s (%s)\n", fg.Name, fg.Code)
	fmt.Fprintln(r.out, "Enter BOM lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Fprintln(r.out, "Format per line: <raw-material> <quantity-per-unit> [unit]")
	fmt.Fprintln(r.out, "  Example: RM-LEG 4")
	fmt.Fprintln(r.out, "  Example: RM-GLUE 0.05 kg")

	var lines []app.BOMLineRequest
	lineNum := 1
	for {
		fmt.Fprintf(r.out, "  Line %d: ", lineNum)
		raw, readErr := r.reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		if strings.EqualFold(raw, "cancel") || (readErr != nil && raw == "") {
			fmt.Fprintln(r.out, "BOM definition cancelled.")
			return nil
		}
		if strings.EqualFold(raw, "done") {
			break
		}
		if raw == "" {
			continue
		}

		parts := strings.Fields(raw)
		if len(parts) < 2 {
			fmt.Fprintln(r.out, "  Invalid format. Use: <raw-material> <quantity-per-unit> [unit]")
			continue
		}
		material, err := r.svc.ResolveItem(r.ctx, parts[0])
		if err != nil {
			fmt.Fprintf(r.out, "  %v\n", err)
			continue
		}
		qty, err := decimal.NewFromString(parts[1])
		if err != nil || !qty.IsPositive() {
			fmt.Fprintln(r.out, "  Invalid quantity.")
			continue
		}
		line := app.BOMLineRequest{RawMaterialID: material.ID, QuantityRequired: qty}
		if len(parts) >= 3 {
			line.Unit = parts[2]
		}
		lines = append(lines, line)
		lineNum++
	}

	if len(lines) == 0 {
		fmt.Fprintln(r.out, "No lines entered. BOM not created.")
		return nil
	}

	bom, err := r.svc.DefineBOM(r.ctx, app.DefineBOMRequest{FinishedGoodID: fg.ID, Lines: lines})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "BOM for %s created with %d line(s).\n", bom.FinishedGoodCode, len(bom.Lines))
	return nil
}
