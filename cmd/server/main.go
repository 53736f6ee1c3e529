// Command server serves iris species predictions over HTTP.
//
// On startup it loads the trained random forest and its metadata record
// from the artifact store. When no model is stored yet, one is trained
// and saved first. If loading fails the server still starts, reports
// itself unhealthy and answers predictions with 500.
//
// The server exposes:
//   - POST /predict, POST /predict-form - Predictions
//   - GET /health, GET /model-info - Model state and metadata
//   - GET /healthz, GET /metrics - Liveness and Prometheus metrics
//   - gRPC health service with reflection on -grpc-listen
//
// Usage:
//
//	server -listen=:5000 -artifact-dir=/var/lib/sepal
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :5000)
//	GRPC_LISTEN     - gRPC health listen address, empty disables (default: :50051)
//	STORAGE         - Artifact storage: file, memory, redis (default: file)
//	ARTIFACT_DIR    - Directory of the artifact files (default: .)
//	REDIS_ADDR      - Redis address when STORAGE=redis
//	TRAINING_CONFIG - YAML training parameters for startup training
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
//	LOG_FILE        - Rotated log file (default: stderr)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HatiCode/sepal/cmd/server/config"
	"github.com/HatiCode/sepal/cmd/server/metrics"
	"github.com/HatiCode/sepal/cmd/server/router"
	"github.com/HatiCode/sepal/pkg/httpx"
	"github.com/HatiCode/sepal/pkg/logging"
	"github.com/HatiCode/sepal/pkg/storage"
	"github.com/HatiCode/sepal/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger, logCloser := logging.New(logging.Options{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting sepal server",
		"version", version,
		"listen", cfg.Listen,
		"grpc_listen", cfg.GRPCListen,
		"storage", cfg.Storage,
		"tls_enabled", cfg.TLS.Enabled,
		"mtls", cfg.TLS.MutualTLS(),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	trainingCfg, err := cfg.Training()
	if err != nil {
		return err
	}

	tlsConfig, err := tls.NewServerTLSConfig(cfg.TLS)
	if err != nil {
		return err
	}

	store, storeCloser, err := storage.New(cfg.StorageOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := storeCloser.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := loadService(ctx, store, trainingCfg, logger, m)

	handler := httpx.Chain(
		router.SetupRoutes(svc, m, logger),
		httpx.RecoveryMiddleware(logger),
		httpx.LoggingMiddleware(logger),
	)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)
	if tlsConfig != nil {
		httpServer.SetTLSConfig(tlsConfig)
	}

	serverErr := make(chan error, 2)
	go func() {
		if tlsConfig != nil {
			serverErr <- httpServer.StartTLS()
			return
		}
		serverErr <- httpServer.Start()
	}()

	if cfg.GRPCListen != "" {
		grpcServer, healthServer := newGRPCServer(svc.Loaded(), tlsConfig)

		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			return err
		}

		go func() {
			logger.Info("grpc server listening", "address", cfg.GRPCListen)
			if err := grpcServer.Serve(lis); err != nil {
				serverErr <- err
			}
		}()

		defer func() {
			logger.Info("shutting down grpc server")
			healthServer.Shutdown()
			grpcServer.GracefulStop()
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return err
		}
		return errors.New("http server exited")
	}

	logger.Info("shutting down http server")
	if err := httpServer.Stop(cfg.ShutdownTimeout); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	return nil
}
