package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/compras/backend-go/internal/api"
	"github.com/andresuchdata/compras/backend-go/internal/cache"
	"github.com/andresuchdata/compras/backend-go/internal/config"
	"github.com/andresuchdata/compras/backend-go/internal/drive"
	"github.com/andresuchdata/compras/backend-go/internal/service"
	"github.com/andresuchdata/compras/backend-go/internal/storage"
	"github.com/andresuchdata/compras/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Reject bad analysis defaults at startup rather than on every request
	if _, err := cfg.Analysis.Params(time.Now()); err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid analysis configuration")
	}

	resultCache, err := cache.NewResultCache(context.Background(), cfg.Cache)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize cache")
	}

	// Initialize services
	analysisService := service.NewAnalysisService(cfg.Columns, resultCache, cfg.App.MaxConcurrentRuns)
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewMinioClient(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
		}
		analysisService.WithStorage(store, cfg.Storage.ReportPrefix)
	}

	services := &api.Services{Analysis: analysisService, Defaults: cfg.Analysis}
	credentials, err := cfg.Drive.DriveCredentials()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to read Drive credentials")
	}
	if credentials != "" {
		driveService, err := drive.NewService(context.Background(), credentials)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize Drive")
		}
		services.Drive = driveService
	}

	// Initialize HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(services, cfg.Server),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// Analyses in flight get up to 30 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
