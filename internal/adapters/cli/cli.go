package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"factory-mrp/internal/adapters/repl"
	"factory-mrp/internal/app"
	"factory-mrp/internal/core"
)

// ErrUsage is returned for unknown subcommands or missing arguments.
var ErrUsage = errors.New("usage")

// ErrDrift is returned by the reconcile command when stock disagrees with the
// movement log, so scripts can fail on it.
var ErrDrift = errors.New("stock drift detected")

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	switch args[0] {
	case "calc", "mrp":
		// app calc <item> <qty> [--json | --xlsx <file>]
		if len(args) < 3 {
			return fmt.Errorf("%w: app calc <item> <qty> [--json | --xlsx <file>]", ErrUsage)
		}
		req, err := calcRequest(ctx, svc, args[1], args[2])
		if err != nil {
			return err
		}
		flags := args[3:]
		switch {
		case len(flags) >= 2 && flags[0] == "--xlsx":
			res, err := svc.ExportRequirements(ctx, req)
			if err != nil {
				return err
			}
			if err := os.WriteFile(flags[1], res.Content, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", flags[1], err)
			}
			fmt.Fprintf(out, "Requirement sheet written to %s.\n", flags[1])
		case len(flags) >= 1 && flags[0] == "--json":
			res, err := svc.CalculateRequirements(ctx, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		default:
			res, err := svc.CalculateRequirements(ctx, req)
			if err != nil {
				return err
			}
			repl.PrintRequirements(out, res)
		}

	case "wo":
		if len(args) < 3 {
			return fmt.Errorf("%w: app wo <item> <qty>", ErrUsage)
		}
		req, err := calcRequest(ctx, svc, args[1], args[2])
		if err != nil {
			return err
		}
		res, err := svc.CreateWorkOrder(ctx, app.CreateWorkOrderRequest{ItemID: req.ItemID, Quantity: req.Quantity})
		if err != nil {
			var ise *core.InsufficientStockError
			if errors.As(err, &ise) {
				repl.PrintShortages(out, ise)
			}
			return err
		}
		repl.PrintWorkOrderResult(out, res)

	case "orders":
		status := ""
		if len(args) > 1 {
			status = args[1]
		}
		res, err := svc.ListWorkOrders(ctx, status)
		if err != nil {
			return err
		}
		repl.PrintWorkOrders(out, res.WorkOrders)

	case "stock":
		res, err := svc.GetStockLevels(ctx)
		if err != nil {
			return err
		}
		repl.PrintItems(out, res.Items)

	case "reconcile":
		res, err := svc.Reconcile(ctx)
		if err != nil {
			return err
		}
		repl.PrintReconcile(out, res)
		if !res.Clean {
			return ErrDrift
		}

	default:
		return fmt.Errorf("%w: unknown command %s\nAvailable: calc, wo, orders, stock, reconcile, token", ErrUsage, args[0])
	}
	return nil
}

func calcRequest(ctx context.Context, svc app.ApplicationService, itemRef, qtyArg string) (app.CalculateRequest, error) {
	item, err := svc.ResolveItem(ctx, itemRef)
	if err != nil {
		return app.CalculateRequest{}, err
	}
	qty, err := strconv.ParseInt(qtyArg, 10, 64)
	if err != nil {
		return app.CalculateRequest{}, fmt.Errorf("%w: quantity %q is not an integer", core.ErrInvalidQuantity, qtyArg)
	}
	return app.CalculateRequest{ItemID: item.ID, Quantity: qty}, nil
}
