// Package health exposes liveness and readiness for process supervisors.
//
// /healthz and /readyz return 200 once the daemon has initialized its sound
// card and started its transports. When a gRPC port is configured, the
// standard grpc.health.v1 service reports the same state.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server serves the HTTP probes and, optionally, the gRPC health service.
type Server struct {
	port     int
	grpcPort int
	ready    atomic.Bool
	server   *http.Server
	grpc     *grpchealth.Server
}

// New creates a new health check server. grpcPort 0 disables gRPC health.
func New(port, grpcPort int) *Server {
	s := &Server{port: port, grpcPort: grpcPort, grpc: grpchealth.NewServer()}
	s.grpc.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.grpc.SetServingStatus("", status)
}

// Handler returns the HTTP probe handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.probe)
	mux.HandleFunc("GET /readyz", s.probe)
	return mux
}

func (s *Server) probe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ListenAndServe starts the health servers.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.grpcPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
		if err != nil {
			return fmt.Errorf("grpc health listen: %w", err)
		}
		gs := grpc.NewServer()
		healthpb.RegisterHealthServer(gs, s.grpc)
		slog.Info("grpc health server listening", "port", s.grpcPort)
		go func() {
			if err := gs.Serve(lis); err != nil {
				slog.Error("grpc health server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			s.grpc.Shutdown()
			gs.GracefulStop()
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
