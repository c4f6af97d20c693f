package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"factory-mrp/internal/app"
	"factory-mrp/internal/core"
)

var errExit = errors.New("exit")

// Run starts the interactive REPL loop. It reads slash commands from reader
// and writes all output to out. Returns when the user exits or input ends.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "Factory MRP")
	fmt.Fprintln(out, "Type /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	r := &session{ctx: ctx, svc: svc, reader: reader, out: out}
	for {
		fmt.Fprint(out, "\n> ")
		input, readErr := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input != "" {
			if !strings.HasPrefix(input, "/") {
				fmt.Fprintln(out, "Commands start with /. Type /help for all commands.")
			} else if err := r.dispatch(input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return
				}
				r.printError(err)
			}
		}
		if readErr != nil {
			return
		}
	}
}

type session struct {
	ctx    context.Context
	svc    app.ApplicationService
	reader *bufio.Reader
	out    io.Writer
}

func (r *session) printError(err error) {
	var ise *core.InsufficientStockError
	if errors.As(err, &ise) {
		PrintShortages(r.out, ise)
		return
	}
	fmt.Fprintf(r.out, "Error: %v\n", err)
}

func (r *session) usage(format string) error {
	fmt.Fprintln(r.out, "Usage: "+format)
	return nil
}

func (r *session) dispatch(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]
	ctx, svc := r.ctx, r.svc

	switch cmd {
	case "items":
		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}
		res, err := svc.ListItems(ctx, kind)
		if err != nil {
			return err
		}
		PrintItems(r.out, res.Items)

	case "stock":
		res, err := svc.GetStockLevels(ctx)
		if err != nil {
			return err
		}
		PrintItems(r.out, res.Items)
		fmt.Fprintf(r.out, "%d item(s) below minimum stock.\n", res.LowStock)

	case "receive":
		if len(args) < 2 {
			return r.usage("/receive <item> <qty> [notes]")
		}
		item, err := svc.ResolveItem(ctx, args[0])
		if err != nil {
			return err
		}
		qty, err := decimal.NewFromString(args[1])
		if err != nil {
			fmt.Fprintf(r.out, "Invalid quantity: %s\n", args[1])
			return nil
		}
		m, err := svc.ReceiveStock(ctx, app.ReceiveStockRequest{ItemID: item.ID, Quantity: qty, Notes: strings.Join(args[2:], " ")})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Received %s %s of %s.\n", m.Quantity, item.Unit, item.Code)

	case "movements":
		if len(args) < 1 {
			return r.usage("/movements <item>")
		}
		item, err := svc.ResolveItem(ctx, args[0])
		if err != nil {
			return err
		}
		moves, err := svc.ItemMovements(ctx, item.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Movements of %s (stock %s %s):\n", item.Code, item.CurrentStock, item.Unit)
		printMovements(r.out, moves)

	case "calc", "mrp":
		req, ok, err := r.calcRequest(args, "/calc <item> <qty>")
		if err != nil || !ok {
			return err
		}
		res, err := svc.CalculateRequirements(ctx, req)
		if err != nil {
			return err
		}
		PrintRequirements(r.out, res)

	case "export":
		req, ok, err := r.calcRequest(args, "/export <item> <qty> [file]")
		if err != nil || !ok {
			return err
		}
		res, err := svc.ExportRequirements(ctx, req)
		if err != nil {
			return err
		}
		path := res.Filename
		if len(args) >= 3 {
			path = args[2]
		}
		if err := os.WriteFile(path, res.Content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(r.out, "Requirement sheet written to %s.\n", path)

	case "boms":
		boms, err := svc.ListBOMs(ctx)
		if err != nil {
			return err
		}
		printBOMs(r.out, boms)

	case "bom":
		if len(args) < 1 {
			return r.usage("/bom <item>")
		}
		item, err := svc.ResolveItem(ctx, args[0])
		if err != nil {
			return err
		}
		bom, err := svc.GetBOM(ctx, item.ID)
		if err != nil {
			return err
		}
		printBOM(r.out, bom)

	case "new-bom":
		if len(args) < 1 {
			return r.usage("/new-bom <finished-good>")
		}
		return r.newBOMWizard(args[0])

	case "wo":
		req, ok, err := r.calcRequest(args, "/wo <item> <qty>")
		if err != nil || !ok {
			return err
		}
		res, err := svc.CreateWorkOrder(ctx, app.CreateWorkOrderRequest{ItemID: req.ItemID, Quantity: req.Quantity})
		if err != nil {
			return err
		}
		PrintWorkOrderResult(r.out, res)

	case "orders":
		status := ""
		if len(args) > 0 {
			status = args[0]
		}
		res, err := svc.ListWorkOrders(ctx, status)
		if err != nil {
			return err
		}
		PrintWorkOrders(r.out, res.WorkOrders)

	case "status", "stage", "produced":
		if len(args) < 2 {
			return r.usage("/" + cmd + " <wo> <value>")
		}
		return r.updateWorkOrder(cmd, args[0], args[1])

	case "logs":
		if len(args) < 1 {
			return r.usage("/logs <wo>")
		}
		wo, err := svc.ResolveWorkOrder(ctx, args[0])
		if err != nil {
			return err
		}
		logs, err := svc.WorkOrderLogs(ctx, wo.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Production log of %s:\n", wo.Number)
		printLogs(r.out, logs)

	case "reconcile":
		res, err := svc.Reconcile(ctx)
		if err != nil {
			return err
		}
		PrintReconcile(r.out, res)

	case "help", "h":
		printHelp(r.out)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(r.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

// calcRequest parses "<item> <qty>"; ok is false when usage was printed.
func (r *session) calcRequest(args []string, usage string) (app.CalculateRequest, bool, error) {
	if len(args) < 2 {
		return app.CalculateRequest{}, false, r.usage(usage)
	}
	item, err := r.svc.ResolveItem(r.ctx, args[0])
	if err != nil {
		return app.CalculateRequest{}, false, err
	}
	qty, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(r.out, "Invalid quantity: %s\n", args[1])
		return app.CalculateRequest{}, false, nil
	}
	return app.CalculateRequest{ItemID: item.ID, Quantity: qty}, true, nil
}

func (r *session) updateWorkOrder(field, ref, value string) error {
	wo, err := r.svc.ResolveWorkOrder(r.ctx, ref)
	if err != nil {
		return err
	}
	var req app.UpdateWorkOrderRequest
	switch field {
	case "status":
		req.Status = &value
	case "stage":
		req.Stage = &value
	case "produced":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			fmt.Fprintf(r.out, "Invalid quantity: %s\n", value)
			return nil
		}
		req.QuantityProduced = &n
	}
	updated, err := r.svc.UpdateWorkOrder(r.ctx, wo.ID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Work order %s: %s, stage %s, produced %d/%d.\n",
		updated.Number, updated.Status, updated.Stage, updated.QuantityProduced, updated.QuantityToProduce)
	return nil
}
