package grpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer is a gRPC server exposing the standard health checking protocol and server reflection.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
}

// NewHealthServer creates a HealthServer. Every service starts as NOT_SERVING until flagged otherwise.
func NewHealthServer(services ...string) *HealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	reflection.Register(s)

	hs := &HealthServer{server: s, health: h}
	hs.SetServing("", false)
	for _, service := range services {
		hs.SetServing(service, false)
	}
	return hs
}

// SetServing flags the service, or the whole server when service is empty, as serving or not.
func (h *HealthServer) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(service, status)
}

// Serve blocks serving on lis.
func (h *HealthServer) Serve(lis net.Listener) error {
	return h.server.Serve(lis)
}

// GracefulStop flags every service as NOT_SERVING and waits for pending RPCs.
func (h *HealthServer) GracefulStop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
