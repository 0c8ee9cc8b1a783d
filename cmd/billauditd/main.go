package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/bill-audit/internal/app"
	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/server"
	"github.com/joseph-ayodele/bill-audit/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	stack, err := app.Build(ctx, cfg, reg, logger)
	if err != nil {
		logger.Error("failed to build audit stack", "error", err)
		os.Exit(1)
	}
	stack.Audit.StartJanitor(ctx, time.Minute)

	httpApp, err := server.NewHTTP(stack.Audit, server.HTTPConfig{
		MaxUploadMB: cfg.Server.MaxUploadMB,
		Registry:    reg,
		Health:      stack.Health,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to build http server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := httpApp.Listen(cfg.Server.HTTPAddr); err != nil {
			errCh <- err
		}
	}()

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("grpc listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcServer = server.NewGRPCServer(stack.Audit, logger)
		go func() {
			logger.Info("grpc serving", "addr", cfg.Server.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpApp.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	stack.Shutdown(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", "error", err)
	}
	logger.Info("stopped")
}
