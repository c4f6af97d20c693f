// restore-seed wipes the MRP tables and loads the demo furniture catalog.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"factory-mrp/internal/app"
	"factory-mrp/internal/config"
	"factory-mrp/internal/db"
	"factory-mrp/internal/logging"
	"factory-mrp/internal/seed"
	"factory-mrp/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	defer pool.Close()

	logger.Info("clearing work orders, BOMs, items and movements")
	if _, err := pool.Exec(ctx,
		`TRUNCATE TABLE stock_movements, production_logs, work_orders, bom, items CASCADE`,
	); err != nil {
		logger.Fatal("failed to clear tables", zap.Error(err))
	}

	svc := app.New(postgres.New(pool), logger)
	if err := seed.Demo(ctx, svc); err != nil {
		logger.Fatal("failed to seed", zap.Error(err))
	}
	logger.Info("seed data restored")
}
