package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/quentinrf/smartband-edge/internal/domain"
)

// ServiceName is the health check name of the heart-rate API
const ServiceName = "smartband.HeartRate"

// DefaultProbeInterval is used when no interval is configured
const DefaultProbeInterval = 30 * time.Second

// NewServer creates a gRPC server exposing grpc.health.v1 and reflection.
// Every service starts as NOT_SERVING until the first probe succeeds.
func NewServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	// Enable gRPC reflection for grpcurl testing
	reflection.Register(srv)

	return srv, hs
}

// HealthWatcher periodically probes the store and publishes the result
type HealthWatcher struct {
	health   *health.Server
	store    domain.Pinger
	interval time.Duration
	timeout  time.Duration
}

// NewHealthWatcher creates a watcher for the given health server
func NewHealthWatcher(hs *health.Server, store domain.Pinger, interval time.Duration) *HealthWatcher {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &HealthWatcher{
		health:   hs,
		store:    store,
		interval: interval,
		timeout:  interval / 2,
	}
}

// Start probes on every tick
// This runs in a goroutine until context is cancelled
func (w *HealthWatcher) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Msg("starting health watcher")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Probe immediately on start
	w.probeOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.probeOnce(ctx)

		case <-ctx.Done():
			w.health.Shutdown()
			log.Info().Msg("stopping health watcher")
			return
		}
	}
}

// probeOnce pings the store and flips the serving status
func (w *HealthWatcher) probeOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := w.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("store probe failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	w.health.SetServingStatus("", status)
	w.health.SetServingStatus(ServiceName, status)
}
