// Package api exposes the sweep trigger endpoints and the gRPC health service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/parcelguard/claimwatch/internal/models"
	"github.com/parcelguard/claimwatch/internal/services"
)

// SweepRunner is the slice of services.Service the HTTP surface needs.
type SweepRunner interface {
	Run(ctx context.Context, name models.SweepName) (models.SweepSummary, error)
	Monitoring(ctx context.Context, shipmentID string) (services.MonitoringView, error)
}

// Handler holds the trigger API state.
type Handler struct {
	runner SweepRunner
	secret string
	logger *slog.Logger
}

// NewHandler creates the trigger API handler. An empty secret rejects every trigger.
func NewHandler(logger *slog.Logger, runner SweepRunner, secret string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: runner, secret: secret, logger: logger}
}

// Router builds the chi router with the common middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.requestLog)

	r.Get("/healthz", h.Healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Use(h.requireSecret)
		r.Post("/sweeps/{name}", h.TriggerSweep)
		r.Get("/monitoring/{shipmentID}", h.GetMonitoring)
	})
	return r
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
