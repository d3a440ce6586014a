// Command lendplanner serves conversion-plan and rebalance computations over
// the configured lending markets (Keom, Zerovix, Moonwell, Aave3).
//
// Usage:
//
//	lendplanner --config config.yaml
//	lendplanner setup                      (interactive config wizard)
//	lendplanner simulate fixtures.yaml     (offline plan over fixture markets)
//
// RPC endpoints may reference environment variables loaded from .env.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"lendplanner/config"
	"lendplanner/internal"
	"lendplanner/internal/metrics"
	"lendplanner/internal/services/apr"
	"lendplanner/internal/services/planner"
	"lendplanner/internal/services/rebalance"
	"lendplanner/internal/setup"
	"lendplanner/internal/simulate"
	"lendplanner/internal/storage/journal"
	"lendplanner/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "simulate" {
		if len(os.Args) < 3 {
			log.Fatal("usage: lendplanner simulate <fixtures.yaml>")
		}
		if err := simulate.Run(os.Args[2], os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	marketRegistry, modelRegistry, err := internal.BuildRegistries(cfg)
	if err != nil {
		logger.Fatal("failed to build market registries", zap.Error(err))
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	builder := planner.NewBuilder(logger, marketRegistry, apr.NewPredictor(modelRegistry), cfg.MinHealthFactor, m)
	engine := rebalance.NewEngine(logger, marketRegistry, cfg.MinHealthFactor, cfg.MaxHealthFactorReduction, m)

	store, err := journal.NewWALStore(cfg.JournalDir)
	if err != nil {
		logger.Fatal("failed to open journal", zap.Error(err))
	}
	defer store.Close()

	service := internal.NewPlanService(logger, builder, engine, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(cfg.WebAddr, service, store, promRegistry, logger)
	logger.Info("starting planner API", zap.String("addr", cfg.WebAddr))
	if err := server.Start(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
