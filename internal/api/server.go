package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// StoreHealthService is the health service name that follows database reachability. The
// empty service name reports the same status for checks that do not name a service.
const StoreHealthService = "claimwatch.store"

// DefaultPingInterval is how often the store is pinged when no interval is given.
const DefaultPingInterval = 15 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer serves gRPC health for the sweep engine. Sweeps cannot run without the
// database, so both health services turn NOT_SERVING while the store stops answering pings.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	store      Pinger
	interval   time.Duration
	logger     *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewHealthServer listens on address. A nil store is treated as always reachable.
func NewHealthServer(logger *slog.Logger, address string, store Pinger, interval time.Duration) (*HealthServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	grpc_prometheus.Register(grpcServer)
	reflection.Register(grpcServer)

	s := &HealthServer{
		grpcServer: grpcServer,
		health:     healthSrv,
		listener:   lis,
		store:      store,
		interval:   interval,
		logger:     logger,
		done:       make(chan struct{}),
	}
	s.CheckStore(context.Background())
	return s, nil
}

// CheckStore pings the store once and publishes the result.
func (s *HealthServer) CheckStore(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.store.Ping(pingCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("store ping failed", slog.Any("error", err))
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(StoreHealthService, status)
}

// Start pings the store in the background and serves until Shutdown.
func (s *HealthServer) Start() error {
	go s.watch()
	return s.grpcServer.Serve(s.listener)
}

func (s *HealthServer) watch() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.CheckStore(context.Background())
		}
	}
}

// Shutdown reports NOT_SERVING, then stops gracefully, forcing the stop when ctx ends first.
func (s *HealthServer) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.done) })
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
	case <-stopped:
	}
}

// Address is the bound listener address.
func (s *HealthServer) Address() string {
	return s.listener.Addr().String()
}
