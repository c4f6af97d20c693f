package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	webAdapter "factory-mrp/internal/adapters/web"
	"factory-mrp/internal/app"
	"factory-mrp/internal/config"
	"factory-mrp/internal/logging"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer closeRepo()

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set; all requests act as the system user")
	}

	svc := app.New(repo, logger)
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      webAdapter.NewHandler(svc, cfg.Server, cfg.Auth.JWTSecret, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server", zap.Error(err))
		os.Exit(1)
	}
}
