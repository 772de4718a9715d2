// Package main — cmd/healer/main.go
//
// netheal agent entrypoint.
//
// Startup sequence:
//  1. Load and validate config from /etc/netheal/config.yaml.
//  2. Initialise structured logger (zap; JSON, or console per log_format).
//  3. Open the Store (BoltDB or in-memory, per storage.backend).
//  4. Prune stale audit-trail entries.
//  5. Start Prometheus metrics server.
//  6. Construct the event bus.
//  7. Start telemetry, correlation, rca, remediation, orchestrator
//     stage workers, each consuming the prior stage's published events.
//  8. Start the operator control socket (if enabled).
//  9. Register SIGHUP handler for config hot-reload.
// 10. Block on SIGINT/SIGTERM for graceful shutdown.
//
// Shutdown sequence (on SIGINT/SIGTERM):
//  1. Cancel root context (propagates to all stage workers).
//  2. Wait a fixed 5s grace period (stage workers are not joined).
//  3. Close the Store.
//  4. Flush logger.
//  5. Exit 0.
//
// On config validation failure: exit 1 immediately.
// On Store open failure: exit 1 immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/correlation"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/operatorctl"
	"github.com/sanketsnayak/netheal/internal/orchestrator"
	"github.com/sanketsnayak/netheal/internal/rca"
	"github.com/sanketsnayak/netheal/internal/remediation"
	"github.com/sanketsnayak/netheal/internal/store"
	"github.com/sanketsnayak/netheal/internal/telemetry"
)

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────────
	configPath := flag.String("config", "/etc/netheal/config.yaml", "Path to config.yaml")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("netheal %s (commit=%s built=%s)\n",
			config.Version, config.GitCommit, config.BuildTime)
		os.Exit(0)
	}

	// ── Step 1: Load config ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
		os.Exit(1)
	}

	// ── Step 2: Initialise logger ─────────────────────────────────────────────
	log, err := buildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	log.Info("netheal starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
		zap.String("node_id", cfg.NodeID),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Step 3: Open Store ────────────────────────────────────────────────────
	st, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatal("store open failed", zap.Error(err),
			zap.String("backend", cfg.Storage.Backend))
	}
	defer st.Close() //nolint:errcheck
	log.Info("store opened", zap.String("backend", cfg.Storage.Backend))

	// ── Step 4: Prune stale audit entries ─────────────────────────────────────
	pruned, err := st.PruneAudit(cfg.Storage.RetentionDays)
	if err != nil {
		log.Warn("audit pruning failed", zap.Error(err))
	} else {
		log.Info("audit trail pruned", zap.Int("deleted", pruned))
	}

	// ── Step 5: Prometheus metrics ────────────────────────────────────────────
	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	// ── Step 6: Event bus ──────────────────────────────────────────────────────
	bus := events.NewBus(256)

	// ── Step 7: Stage workers ─────────────────────────────────────────────────
	collector := telemetry.New(cfg.Telemetry, st, metrics, bus, log.Named("telemetry"))
	go func() {
		if err := collector.ListenAndServe(ctx); err != nil {
			log.Error("telemetry collector error", zap.Error(err))
		}
	}()

	corrEngine := correlation.New(cfg.Correlation, st, metrics, bus, log.Named("correlation"))
	go corrEngine.Run(ctx)

	rcaEngine := rca.New(cfg.RCA, st, metrics, bus, log.Named("rca"))
	go rcaEngine.Run(ctx)

	remEngine := remediation.New(cfg.Remediation, st, metrics, bus, log.Named("remediation"))
	go remEngine.Run(ctx)

	orchEngine := orchestrator.New(cfg.Orchestrator, st, metrics, bus, log.Named("orchestrator"))
	go orchEngine.Run(ctx)

	log.Info("pipeline stage workers started")

	// ── Step 8: Operator control socket ───────────────────────────────────────
	if cfg.Operator.Enabled {
		opServer := operatorctl.NewServer(cfg.Operator.SocketPath, st, orchEngine, remEngine, log.Named("operatorctl"))
		go func() {
			if err := opServer.ListenAndServe(ctx); err != nil {
				log.Error("operator control server error", zap.Error(err))
			}
		}()
		log.Info("operator control socket started", zap.String("path", cfg.Operator.SocketPath))
	} else {
		log.Info("operator control socket disabled")
	}

	// ── Step 9: SIGHUP hot-reload ──────────────────────────────────────────────
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Info("SIGHUP received — reloading config...")
			newCfg, err := config.Load(*configPath)
			if err != nil {
				log.Error("config hot-reload failed — retaining old config", zap.Error(err))
				continue
			}
			config.ApplyHotReload(cfg, newCfg)
			log.Info("config hot-reload successful",
				zap.Float64("new_min_confidence", cfg.Correlation.MinConfidence),
				zap.String("new_remediation_mode", string(cfg.Remediation.Mode)),
			)
		}
	}()

	// ── Step 10: Wait for shutdown signal ─────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	cancel()

	shutdownTimer := time.NewTimer(5 * time.Second)
	defer shutdownTimer.Stop()
	<-shutdownTimer.C

	log.Info("netheal shutdown complete")
}

// openStore opens the configured Store backend.
func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemStore(), nil
	default:
		return store.OpenBolt(cfg.DBPath, cfg.RetentionDays)
	}
}

// buildLogger constructs a zap.Logger with the given level and format.
func buildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
