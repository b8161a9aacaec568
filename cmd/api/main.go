package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/amirhossein-jamali/credit-ledger/internal/app"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	timeprovider "github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/time"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	if cfg.Environment == config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger := logger.NewZapLoggerWithOptions(logger.Options{
		Production: cfg.Environment == config.Production,
		Level:      cfg.Logger.Level,
		Output:     cfg.Logger.Output,
		CallerInfo: cfg.Logger.CallerInfo,
		Service:    "credit-ledger-api",
	})
	tp := timeprovider.NewRealTimeProvider()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, appLogger, tp)
	if err != nil {
		appLogger.Error("Failed to start credit ledger", map[string]any{"error": err.Error()})
		_ = appLogger.Flush()
		os.Exit(1)
	}
	container.StartBackground(ctx)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           container.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting server", map[string]any{
			"addr": server.Addr,
			"env":  cfg.Environment,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down server...", nil)
	case err := <-serverErr:
		appLogger.Error("Server failed", map[string]any{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", map[string]any{"error": err.Error()})
	}
	if err := container.Close(); err != nil {
		appLogger.Error("Failed to release resources", map[string]any{"error": err.Error()})
	}

	appLogger.Info("Server exited gracefully", nil)
	_ = appLogger.Flush()
}
