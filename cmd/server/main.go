package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Brownie44l1/pneumonia-api/internal/config"
	"github.com/Brownie44l1/pneumonia-api/internal/flow"
	"github.com/Brownie44l1/pneumonia-api/internal/handlers"
	"github.com/Brownie44l1/pneumonia-api/internal/logging"
	"github.com/Brownie44l1/pneumonia-api/internal/model"
	"github.com/Brownie44l1/pneumonia-api/internal/reference"
	"github.com/Brownie44l1/pneumonia-api/internal/router"
	"github.com/Brownie44l1/pneumonia-api/internal/upload"
)

func main() {
	// If running from cmd/server, resolve relative paths from the project root
	if wd, err := os.Getwd(); err == nil && filepath.Base(wd) == "server" {
		if err := os.Chdir(filepath.Join(wd, "../..")); err != nil {
			log.Fatalf("Failed to change to project root: %v", err)
		}
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Infof("Loading model from: %s", cfg.ModelPath)

	modelServer, err := model.NewServer(model.Options{
		ModelPath:     cfg.ModelPath,
		MetadataPath:  cfg.MetadataPath,
		SharedLibPath: cfg.ORTLibPath,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize model server: %v", err)
	}
	defer modelServer.Close()

	store, err := upload.NewStore(cfg.UploadDir, cfg.MaxUploadSize)
	if err != nil {
		logger.Fatalf("Failed to initialize upload store: %v", err)
	}
	sampler := reference.NewSampler(cfg.NormalDir, cfg.PneumoniaDir, nil)

	handler := handlers.NewHandler(flow.New(modelServer, sampler, store, logger), modelServer, logger)

	engine, err := router.Build(router.Options{
		Handler:            handler,
		Logger:             logger,
		Mode:               cfg.GinMode,
		MaxMultipartMemory: cfg.MaxUploadSize,
	})
	if err != nil {
		logger.Fatalf("Failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Infof("Server starting on port %d", cfg.Port)
	logger.Infof("Model input shape: %v, classes: %v", modelServer.Metadata.InputShape, modelServer.Metadata.Classes)
	logger.Infof("Reference images: normal=%s pneumonia=%s", cfg.NormalDir, cfg.PneumoniaDir)
	logger.Info("Endpoints:")
	logger.Info("  GET  /                    - Upload page")
	logger.Info("  POST /                    - Upload form, HTML result")
	logger.Info("  POST /api/predict         - Upload, JSON result")
	logger.Info("  POST /api/predict/tensor  - Raw (1,128,128,3) array prediction")
	logger.Info("  GET  /health              - Health check")
	logger.Infof("Upload test: curl -X POST -F \"image=@xray.jpeg\" http://localhost:%d/api/predict", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown: %v", err)
	}
}
