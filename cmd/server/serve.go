package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"beatstore-media-service/config"
	"beatstore-media-service/internal/auth"
	"beatstore-media-service/internal/dbmanager"
	"beatstore-media-service/internal/interfaces"
	"beatstore-media-service/internal/logger"
	"beatstore-media-service/internal/repository"
	"beatstore-media-service/internal/service"
	"beatstore-media-service/internal/tracing"
	grpcserver "beatstore-media-service/internal/transport/grpc"
	"beatstore-media-service/internal/transport/http/api"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC delivery servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

// openCatalog выбирает источник покупок по конфигурации
func openCatalog(cfg *config.Config) (interfaces.PurchaseRepository, error) {
	if cfg.Catalog.Driver == "grpc" {
		return dbmanager.NewGRPCCatalogClient(cfg)
	}
	return repository.NewPurchaseRepository(cfg)
}

func runServer(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем логгер
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx = logger.CtxWWithLogger(ctx, log)

	log.Info(ctx, "Starting beatstore media service...",
		zap.String("storageRoot", cfg.Storage.Root),
		zap.String("catalog", cfg.Catalog.Driver))

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		log.Error(ctx, "Failed to set up tracing", zap.Error(err))
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn(flushCtx, "Failed to flush traces", zap.Error(err))
		}
	}()

	// Инициализируем репозитории
	purchases, err := openCatalog(cfg)
	if err != nil {
		log.Error(ctx, "Failed to open purchase catalog", zap.Error(err))
		return err
	}
	defer purchases.Close()

	storageRepo, err := repository.NewStorageRepository(cfg)
	if err != nil {
		log.Error(ctx, "Failed to create storage repository", zap.Error(err))
		return err
	}

	// Инициализируем сервисы
	deliveryService, err := service.NewDeliveryService(purchases, storageRepo, cfg)
	if err != nil {
		log.Error(ctx, "Failed to create delivery service", zap.Error(err))
		return err
	}

	validator, err := auth.NewTokenValidator(cfg)
	if err != nil {
		log.Error(ctx, "Failed to create token validator", zap.Error(err))
		return err
	}

	// HTTP
	handler := api.NewHandler(deliveryService, cfg.Storage.CopyBufferSize, cfg.Server.ChunkWriteTimeout)
	router := api.SetupRoutes(handler, log, validator)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      otelhttp.NewHandler(router, "media-http"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Grpc.Host, cfg.Grpc.Port))
	if err != nil {
		log.Error(ctx, "Failed to create gRPC listener", zap.Error(err))
		return err
	}
	defer grpcListener.Close()

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(grpcserver.LoggerInterceptor(log)),
	)
	grpcserver.RegisterDeliveryServer(grpcServer, grpcserver.NewDeliveryServer(deliveryService))

	errCh := make(chan error, 2)

	go func() {
		log.Info(ctx, "Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		log.Info(ctx, "Starting gRPC server", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Error(ctx, "Server failed", zap.Error(runErr))
	}

	log.Info(context.Background(), "Shutting down servers...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	grpcServer.GracefulStop()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info(context.Background(), "Servers exited")
	return runErr
}
