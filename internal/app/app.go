// Package app собирает витрину: хранилища, сервисы, HTTP API, gRPC health и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// serviceName — имя сервиса в gRPC health.
const serviceName = "storefront"

// Run запускает сервис и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage connections")
		}
	}()

	var workers []backgroundWorker
	serviceOpts := []orders.Option{orders.WithMetrics(metrics.NewCheckoutMetrics())}

	kafkaProducer := initKafkaProducer(cfg, logger)
	healthHandler := newHealthHandler(cfg, deps, kafkaProducer != nil)
	if kafkaProducer != nil {
		serviceOpts = append(serviceOpts, orders.WithOutbox(deps.outboxRepo))
		worker := newOutboxWorker(cfg, deps.outboxRepo, kafkaProducer, logger)
		workers = append(workers, startWorker(ctx, "outbox", worker.Run, logger))
	}
	if deps.cleanupRequired {
		cleanup := newCleanupWorker(cfg, deps.idempotencyRepo, logger)
		workers = append(workers, startWorker(ctx, "idempotency-cleanup", cleanup.Run, logger))
	}

	collections := cfg.Collections.WithDefaults()
	orderService := orders.NewService(deps.store, collections, logger.WithField("layer", "orders"), serviceOpts...)
	inventoryService := inventory.NewService(
		inventory.NewRepository(deps.store, collections.Inventory),
		logger.WithField("layer", "inventory"),
	)
	guard := idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("layer", "idempotency"))

	api := httpapi.NewServer(
		orderService,
		inventoryService,
		logger.WithField("layer", "http"),
		httpapi.WithIdempotencyGuard(guard),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)

	grpcServer, healthServer := newGRPCServer(logger)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 2)
	apiSrv, err := serveHTTP(cfg.HTTPAddr, api.Routes(), logger, errCh)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		stopWorkers(workers, logger)
		closeKafkaProducer(kafkaProducer, logger)
		return err
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers(workers, logger)
		closeKafkaProducer(kafkaProducer, logger)
		return err
	}
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	shutdown := func() {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownHTTP(apiSrv, logger)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers(workers, logger)
		closeKafkaProducer(kafkaProducer, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		shutdown()
		return ctx.Err()
	case err := <-errCh:
		shutdown()
		if errors.Is(err, grpc.ErrServerStopped) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newHealthHandler собирает проверки для /healthz и /readyz: хранилище и
// идемпотентность (если драйвер умеет Ping) и backlog outbox, когда включена публикация.
func newHealthHandler(cfg Config, deps *runtimeDependencies, withOutbox bool) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		handler.RegisterChecker(name, checker)
	}
	if withOutbox && deps.outboxRepo != nil {
		handler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outboxRepo, cfg.OutboxMaxPending, 0))
	}
	return handler
}

// newGRPCServer создаёт gRPC-сервер со стандартным health-сервисом, reflection и метриками.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// stopGRPC пытается остановиться мягко и обрывает соединения по таймауту.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}
