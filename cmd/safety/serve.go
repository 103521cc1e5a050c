package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/safety-envelope/internal/health"
	"github.com/danielpatrickdp/safety-envelope/internal/orchestrator"
	"github.com/danielpatrickdp/safety-envelope/internal/store"
	"github.com/danielpatrickdp/safety-envelope/internal/telemetry"
)

// #region serve

func newServeCmd() *cobra.Command {
	var cfgPath, db string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run episodes continuously, exposing gRPC health and Prometheus metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfgPath, db)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", envOr("SAFETY_CONFIG", ""), "path to the YAML config")
	cmd.Flags().StringVar(&db, "db", envOr("SAFETY_DB", ""), "SQLite journal, overrides store.path")
	return cmd
}

func serve(ctx context.Context, cfgPath, db string) error {
	cfg, logger, err := loadConfig(cfgPath, db)
	if err != nil {
		return err
	}
	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := telemetry.New()
	reporter := health.NewReporter(orchestrator.MonitorNames(cfg), logger)
	o, err := orchestrator.NewOrchestrator(cfg, orchestrator.Deps{
		Store:   st,
		Metrics: metrics,
		Health:  reporter,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Health.Addr != "" {
		lis, err := net.Listen("tcp", cfg.Health.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Health.Addr, err)
		}
		logger.Info("health listening", "addr", lis.Addr().String())
		g.Go(func() error { return reporter.Serve(ctx, lis) })
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error { return o.Loop(ctx) })

	err = g.Wait()
	logger.Info("serve stopped", "error", err)
	return err
}

// #endregion serve
