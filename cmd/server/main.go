package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smilemakc/printflow/internal/applog"
	"github.com/smilemakc/printflow/internal/config"
	"github.com/smilemakc/printflow/internal/httpapi"
	"github.com/smilemakc/printflow/internal/registry"
	"github.com/smilemakc/printflow/internal/report"
	"github.com/smilemakc/printflow/internal/storage"
)

func main() {
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := applog.Setup(cfg.LogLevel)
	log.Info("starting printflow rest api server", "port", cfg.Port, "catalog_strict_drift", cfg.CatalogStrictDrift)

	store := storage.NewBunStore(cfg.DatabaseDSN)
	log.Info("using BunStore (PostgreSQL)", "dsn", cfg.MaskedDSN())

	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		log.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}
	log.Info("database schema initialized")

	reg := registry.New(store)
	if err := reg.Bootstrap(ctx); err != nil {
		var drift *registry.CatalogDrift
		if errors.As(err, &drift) && !cfg.CatalogStrictDrift {
			log.Warn("catalog drift detected, continuing because strict drift checking is disabled", "kind", drift.ID, "error", err)
		} else {
			log.Error("catalog registry bootstrap failed", "error", err)
			os.Exit(1)
		}
	}
	log.Info("catalog registry bootstrapped")

	core := httpapi.Core{
		Registry:  reg,
		PrintJobs: store,
		Profiles:  store,
		Workflows: store,
		Reports:   store,
		ErrorLogs: store,
		Clock:     report.SystemClock{},
	}
	srv := httpapi.NewServer(core, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("available endpoints",
		"catalog", "GET /WorkflowStep",
		"print_jobs", "POST /PrintJob, GET /PrintJob/{id}, DELETE /PrintJob/{id}",
		"rasterization_profiles", "POST /RasterizationProfile, GET /RasterizationProfile/{id}, DELETE /RasterizationProfile/{id}",
		"workflows", "POST /Workflow, GET /Workflow/{id}, DELETE /Workflow/{id}",
		"simulation_reports", "POST /SimulationReport, GET /SimulationReport/{id}, DELETE /SimulationReport/{id}",
		"step_times", "GET /SimulationReport/{id}/WorkflowStep/Time",
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := store.Close(); err != nil {
		log.Error("failed to close database connection", "error", err)
	}

	log.Info("server exited gracefully")
}
