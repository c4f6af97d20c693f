// Package store selects the persistence backend named by configuration.
package store

import (
	"context"
	"fmt"

	"factory-mrp/internal/config"
	"factory-mrp/internal/core"
	"factory-mrp/internal/db"
	"factory-mrp/internal/store/memory"
	"factory-mrp/internal/store/postgres"
)

// Open returns the configured repository and a function releasing its resources.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Repository, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), func() {}, nil
	case config.DriverPostgres, "":
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
