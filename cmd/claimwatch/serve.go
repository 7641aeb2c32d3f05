package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/parcelguard/claimwatch/internal/api"
	"github.com/parcelguard/claimwatch/internal/cache"
	"github.com/parcelguard/claimwatch/internal/metrics"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the sweep trigger API, gRPC health and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root)
		},
	}
}

func runServe(parent context.Context, root *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, root, cache.NewMemoryProvider())
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	cfg := a.cfg

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if cfg.Trigger.Secret == "" {
		logger.Warn("trigger.secret is empty, every sweep trigger will be rejected")
	}

	handler := api.NewHandler(logger, a.service, cfg.Trigger.Secret)
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("trigger api listening", slog.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("trigger api exited", slog.Any("error", err))
			stop()
		}
	}()

	var healthServer *api.HealthServer
	if cfg.Server.GRPCAddress != "" {
		healthServer, err = api.NewHealthServer(logger, cfg.Server.GRPCAddress, a.store, 0)
		if err != nil {
			return fmt.Errorf("create gRPC health server: %w", err)
		}
		go func() {
			logger.Info("grpc health listening", slog.String("address", healthServer.Address()))
			if err := healthServer.Start(); err != nil {
				logger.Error("grpc health server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if healthServer != nil {
		healthServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("trigger api shutdown", slog.Any("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}
	logger.Info("claimwatch stopped")
	return nil
}
