package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parcelguard/claimwatch/internal/cache"
	"github.com/parcelguard/claimwatch/internal/config"
	"github.com/parcelguard/claimwatch/internal/engine"
	"github.com/parcelguard/claimwatch/internal/extractors"
	"github.com/parcelguard/claimwatch/internal/repo"
	"github.com/parcelguard/claimwatch/internal/services"
	"github.com/parcelguard/claimwatch/internal/store"
	"github.com/parcelguard/claimwatch/internal/utils"
)

// app is the wired process: configuration, logger, store and sweep service.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	cache   cache.Provider
	service *services.Service
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// loadApp builds the service graph. fallbackCache is used when Redis is disabled or unreachable.
func loadApp(ctx context.Context, opts *rootOptions, fallbackCache cache.Provider) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.jsonLogs {
		cfg.Logging.JSON = true
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	a := &app{cfg: *cfg, logger: logger, cache: fallbackCache}
	if cfg.Cache.Enabled && cfg.Cache.URL != "" {
		provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			URL:          cfg.Cache.URL,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			Prefix:       "claimwatch:",
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			a.cache = provider
		}
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	extractor, err := extractors.LoadCheckpointExtractor(cfg.Rules.Path, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load checkpoint rules: %w", err)
	}

	var ai engine.AssessmentClient
	if cfg.Clients.Assessment.BaseURL != "" {
		ai = repo.NewAssessmentClient(cfg.Clients.Assessment.BaseURL, cfg.Clients.Assessment.APIKey,
			cfg.Clients.Assessment.Timeout, a.cache, cfg.Cache.AssessmentTTL)
	} else {
		logger.Info("assessment provider not configured, using heuristic classifier only")
	}

	deps := services.Deps{
		Store:     st,
		Pipeline:  engine.NewPipeline(logger, extractor, ai),
		Extractor: extractor,
		Limiter:   services.NewLimiter(cfg.Clients.Tracking.CallInterval),
	}
	if cfg.Clients.Tracking.BaseURL != "" {
		deps.Tracking = repo.NewTrackingClient(cfg.Clients.Tracking.BaseURL, cfg.Clients.Tracking.APIKey,
			cfg.Clients.Tracking.Timeout, a.cache, cfg.Cache.TrackingIDTTL)
	} else {
		logger.Warn("tracking provider not configured, sweeps will assess stored checkpoints only")
	}
	if cfg.Clients.Notify.APIKey != "" {
		deps.Notifier = repo.NewNotifier(cfg.Clients.Notify.BaseURL, cfg.Clients.Notify.APIKey,
			cfg.Clients.Notify.From, cfg.Clients.Notify.Timeout)
	}

	a.service = services.NewService(logger, deps, services.OptionsFromConfig(*cfg))
	return a, nil
}
