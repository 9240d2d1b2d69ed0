// Command server is the entry point for the charity feed API.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"charityfeed/internal/bootstrap"
	"charityfeed/internal/config"
	"charityfeed/internal/jobs"
	"charityfeed/internal/middleware"
	"charityfeed/internal/server"

	"golang.org/x/sync/errgroup"
)

// @title Charity Feed API
// @version 1.0
// @description Public gallery of foundation posts with likes, comments and shares, plus the operator dashboard.

// @contact.name API Support
// @contact.email support@charityfeed.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.Store, server.Options{})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	scheduler := jobs.NewManager()
	if err := scheduler.Register("reconcile_counters", cfg.ReconcileSchedule, jobs.NewReconcileJob(srv.Engagement(), rt.Redis)); err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()

		middleware.Logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return errors.Join(
			scheduler.Stop(shutdownCtx),
			srv.Shutdown(shutdownCtx),
			rt.ShutdownTracing(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		middleware.Logger.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
