// migrate applies migrations/*.sql to DATABASE_URL in filename order.
//
// Usage: go run ./cmd/migrate [dir]
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"factory-mrp/internal/config"
	"factory-mrp/internal/db"
	"factory-mrp/internal/logging"
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

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrations, err := db.DiscoverMigrations(os.DirFS(dir))
	if err != nil {
		logger.Fatal("discover migrations", zap.Error(err))
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("all migrations processed", zap.Int("count", len(migrations)))
}
