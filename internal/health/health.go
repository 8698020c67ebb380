// Package health reports whether the service's dependencies are reachable,
// over HTTP and the gRPC health checking protocol.
package health

import (
	"context"
	"net/http"
	"time"

	"inventoryapi/internal/httpx"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Checker struct {
	checks []Check
	log    *zap.Logger
}

func NewChecker(log *zap.Logger, checks ...Check) *Checker {
	return &Checker{checks: checks, log: log}
}

// Run returns the failure message per failing dependency, or nil when all pass.
func (c *Checker) Run(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var failures map[string]string
	for _, check := range c.checks {
		if err := check.Probe(ctx); err != nil {
			if failures == nil {
				failures = map[string]string{}
			}
			failures[check.Name] = err.Error()
			c.log.Error("Health check failed", zap.String("dependency", check.Name), zap.Error(err))
		}
	}
	return failures
}

// Handler serves /healthz.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if failures := c.Run(r.Context()); failures != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, httpx.Envelope{"status": "unhealthy", "failures": failures})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{"status": "healthy"})
	}
}

// Server implements grpc.health.v1.Health on top of a Checker.
type Server struct {
	grpc_health_v1.UnimplementedHealthServer
	checker *Checker
}

func NewServer(checker *Checker) *Server {
	return &Server{checker: checker}
}

func (s *Server) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.checker.Run(ctx) != nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

func (s *Server) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if req.GetService() != "" {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	return &grpc_health_v1.HealthCheckResponse{Status: s.status(ctx)}, nil
}

// Watch sends the current status once.
func (s *Server) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	if req.GetService() != "" {
		return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN})
	}
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: s.status(stream.Context())})
}
