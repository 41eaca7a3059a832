package grpc

import (
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewServer builds the engine's gRPC server: token auth on every unary call,
// the standard health service for orchestrator probes and reflection for
// grpcurl. The returned health server starts in NOT_SERVING; main flips it
// once the database and scheduler are up.
func NewServer(apiToken string) (*grpclib.Server, *health.Server) {
	server := grpclib.NewServer(
		grpclib.UnaryInterceptor(AuthInterceptor(apiToken)),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthv1.HealthCheckResponse_NOT_SERVING)
	healthv1.RegisterHealthServer(server, healthServer)

	reflection.Register(server)

	return server, healthServer
}
