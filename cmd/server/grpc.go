package main

import (
	cryptotls "crypto/tls"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// predictorService is the health service name reported next to the
// overall ("") status.
const predictorService = "sepal.Predictor"

// newGRPCServer builds the gRPC server exposing the standard health
// service and server reflection. Both statuses are SERVING only when a
// model is loaded. tlsConfig may be nil.
func newGRPCServer(modelLoaded bool, tlsConfig *cryptotls.Config) (*grpc.Server, *health.Server) {
	var opts []grpc.ServerOption
	if tlsConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}

	grpcServer := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if modelLoaded {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	healthServer.SetServingStatus("", status)
	healthServer.SetServingStatus(predictorService, status)

	reflection.Register(grpcServer)

	return grpcServer, healthServer
}
