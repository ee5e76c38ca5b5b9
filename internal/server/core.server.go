package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"reconciliation-service/internal/config"
	hrest "reconciliation-service/internal/handler/rest"
	"reconciliation-service/internal/worker"
)

const (
	readinessRetryInterval = 5 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// Run serves HTTP and gRPC health, and runs the sweep worker until ctx is
// cancelled. It returns the first fatal error.
func Run(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) error {
	logger.Info("Starting Reconciliation Service",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr),
		zap.String("env", cfg.AppEnv),
	)

	deps, err := BuildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// --- Seed accounts (idempotent) ---
	if _, err := deps.Seeder.Seed(ctx); err != nil {
		logger.Warn("ledger account seeding failed, will keep resolving", zap.Error(err))
	}

	// --- gRPC health ---
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	// --- HTTP ---
	restHandler := hrest.NewReconciliationRestHandler(
		deps.Reconciliation,
		deps.Balances,
		deps.Ledger,
		deps.Transactions,
		deps.Directory.Ready,
		logger,
	)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: hrest.SetupRoutes(restHandler, hrest.RouterConfig{
			AdminJWTSecret: cfg.AdminJWTSecret,
			AllowedOrigins: cfg.AllowedOrigins,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Sweep worker ---
	var sweepWorker *worker.SweepWorker
	if cfg.SweepEnabled {
		sweepWorker = worker.NewSweepWorker(deps.Reconciliation, cfg.SweepInterval, logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if !awaitDirectory(gctx, deps, logger) {
			return nil
		}
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		logger.Info("Account directory resolved, service is serving")

		if sweepWorker != nil {
			sweepWorker.Start(gctx)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Reconciliation service shutting down gracefully...")

		healthServer.Shutdown()
		if sweepWorker != nil {
			sweepWorker.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown did not complete", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

// awaitDirectory blocks until every fixed account resolves. It reports false
// if ctx ends first.
func awaitDirectory(ctx context.Context, deps *Deps, logger *zap.Logger) bool {
	ticker := time.NewTicker(readinessRetryInterval)
	defer ticker.Stop()

	for {
		_, err := deps.Directory.ResolveAll(ctx)
		if err == nil {
			return true
		}
		logger.Warn("ledger accounts not resolvable yet, retrying",
			zap.Duration("retry_in", readinessRetryInterval),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
