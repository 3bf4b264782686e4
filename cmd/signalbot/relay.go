package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signalbot/internal/metrics"
	"signalbot/internal/relay"

	"github.com/spf13/cobra"
)

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Read JSON reply requests from stdin and deliver them",
		Long: `Reads one JSON request per line from stdin:

  {"action":"reply","message":{"source":"+1555","timestamp":1000},"reply":{"body":"hello"}}
  {"action":"read","message":{"source":"+1555","timestamp":1000}}

Bad lines are logged and skipped. Serves Prometheus metrics when metrics.enabled is set.`,
		RunE: runRelay,
	}
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("GET "+cfg.Metrics.Endpoint, metrics.Default.Handler())
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Endpoint)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if rt.auditLog != nil {
		retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
		if _, err := rt.auditLog.Prune(ctx, retention); err != nil {
			logger.Warn("audit prune failed", "err", err)
		}
	}

	logger.Info("relay started", "username", cfg.Bot.Username, "transport", cfg.Transport.Kind)
	sum, err := relay.New(rt.sender, metrics.Default, logger).Run(ctx, os.Stdin)
	logger.Info("relay finished", "processed", sum.Processed, "failed", sum.Failed)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
