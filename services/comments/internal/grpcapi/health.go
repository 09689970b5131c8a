// Package grpcapi exposes the comments service health over gRPC.
package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the comment store.
const ServiceName = "quotation.comments.v1.Comments"

// Pinger reports whether the comment store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health mirrors the comment store's reachability into the gRPC health
// service.
type Health struct {
	srv    *health.Server
	store  Pinger
	log    *zap.Logger
	period time.Duration
}

func NewHealth(store Pinger, period time.Duration, log *zap.Logger) *Health {
	if log == nil {
		log = zap.NewNop()
	}
	if period <= 0 {
		period = 10 * time.Second
	}
	return &Health{srv: health.NewServer(), store: store, log: log, period: period}
}

// Register adds the health and reflection services to s.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
	reflection.Register(s)
}

// Check pings the store once and publishes the result.
func (h *Health) Check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("comment store ping failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
}

// Run checks every period until ctx is done, then reports NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}
