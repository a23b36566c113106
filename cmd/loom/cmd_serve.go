package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loom/internal/api"
	"loom/internal/auditlog"
	"loom/internal/casestore"
	"loom/internal/config"
	"loom/internal/crm"
	"loom/internal/metrics"
	"loom/internal/pipeline"
	"loom/internal/synthesis"
	"loom/internal/tools"
)

// serveCmd runs the Loom server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Loom API server",
	Long: `Starts the Loom HTTP server: case pipeline, tool registry, report
synthesis, audit log, CouchDB mirror, and the gated CRM proposal endpoints.

Shuts down gracefully on SIGINT/SIGTERM, waiting for in-flight cases.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := casestore.New(cfg.Data.Dir, logger)
	if err != nil {
		return fmt.Errorf("failed to open case store: %w", err)
	}

	index := casestore.NewIndex(store, logger)
	defer index.Close()

	mirror := casestore.NewMirror(cfg.Mirror, logger)

	audit, err := auditlog.Open(cfg.AuditLog.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer audit.Close()

	registry := tools.NewRegistry(cfg.Tools, logger)

	provider, err := synthesis.NewProvider(cfg.Synthesis)
	if err != nil {
		return fmt.Errorf("failed to build synthesis provider: %w", err)
	}
	synth := synthesis.NewSynthesizer(provider, cfg.Synthesis.Timeout.Std(), logger)

	orch := pipeline.New(store, registry, synth, mirror, audit, logger)

	var (
		proposer *crm.Proposer
		ledger   *crm.Ledger
	)
	if client := crm.NewClient(cfg.CRM, logger); client.Configured() {
		proposer = crm.NewProposer(client)
		ledger = crm.NewLedger(client, logger)
	} else {
		logger.Info("CRM not configured, proposal endpoints disabled")
	}

	server := api.New(cfg, orch, store, index, mirror, registry, audit, proposer, ledger, logger)

	logger.Info("loom starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("data_dir", cfg.Data.Dir),
		zap.Strings("tools", registry.Names()))

	err = server.Run(ctx)

	// Let running cases finish persisting their terminal state.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if derr := orch.Shutdown(drainCtx); derr != nil {
		logger.Warn("shutdown drain incomplete", zap.Error(derr))
	}

	return err
}
