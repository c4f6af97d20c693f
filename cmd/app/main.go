package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"factory-mrp/internal/adapters/cli"
	"factory-mrp/internal/adapters/repl"
	webAdapter "factory-mrp/internal/adapters/web"
	"factory-mrp/internal/app"
	"factory-mrp/internal/config"
	"factory-mrp/internal/core"
	"factory-mrp/internal/logging"
	"factory-mrp/internal/seed"
	"factory-mrp/internal/store"
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

	args := os.Args[1:]

	// app token <username> [role] prints a bearer token for the HTTP API.
	if len(args) > 0 && args[0] == "token" {
		if len(args) < 2 {
			log.Fatal("Usage: app token <username> [role]")
		}
		role := ""
		if len(args) > 2 {
			role = args[2]
		}
		token, err := webAdapter.IssueToken(cfg.Auth.JWTSecret, args[1], role, 24*time.Hour)
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if user := os.Getenv("USER"); user != "" {
		ctx = core.WithActor(ctx, user)
	}

	repo, closeRepo, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeRepo()

	svc := app.New(repo, logger)
	if cfg.Database.Driver == config.DriverMemory {
		if err := seed.Demo(ctx, svc); err != nil {
			logger.Fatal("failed to seed in-memory store", zap.Error(err))
		}
	}

	if len(args) > 0 {
		if err := cli.Run(ctx, svc, args, os.Stdout); err != nil {
			if !errors.Is(err, cli.ErrDrift) {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
			closeRepo()
			os.Exit(1)
		}
		return
	}

	repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout)
}
