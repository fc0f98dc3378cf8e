// Package server provides gRPC and metrics server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/zipscope/zipscope/internal/core/api"
	"github.com/zipscope/zipscope/internal/core/auth"
	"github.com/zipscope/zipscope/internal/core/config"
	"github.com/zipscope/zipscope/internal/core/metrics"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// shutdownTimeout bounds graceful stop of both listeners.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server  *grpc.Server
	health  *health.Server
	metrics *http.Server
	config  *config.ServerConfig
}

// NewGRPCServer creates the gRPC server with interceptors and service
// registration. The metrics listener is created only when a metrics port is set.
func NewGRPCServer(cfg *config.ServerConfig, service api.SelectionServiceServer, resolver *auth.Resolver) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver cannot be nil")
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			LoggingUnaryInterceptor(),
			TimeoutUnaryInterceptor(cfg.Server.RequestTimeout),
			resolver.UnaryInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			LoggingStreamInterceptor(),
			resolver.StreamInterceptor(),
		),
	}

	server := grpc.NewServer(opts...)
	api.RegisterSelectionServiceServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s := &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
	}
	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		s.metrics = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// Serve serves gRPC requests on lis until Shutdown is called.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Start binds the gRPC listener and serves requests.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	slog.Info("grpc_listening", "addr", listener.Addr().String())
	return s.Serve(listener)
}

// Run starts the gRPC and metrics servers and blocks until ctx is done or a
// server fails, then shuts both down.
func (s *GRPCServer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Start(gctx); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	if s.metrics != nil {
		g.Go(func() error {
			slog.Info("metrics_listening", "addr", s.metrics.Addr)
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown marks the service not serving, then gracefully stops both servers,
// forcing a stop when ctx expires first.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	var metricsErr error
	if s.metrics != nil {
		metricsErr = s.metrics.Shutdown(ctx)
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return metricsErr
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	}
}
