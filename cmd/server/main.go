// Server loads the serving model and exposes the prediction API
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/api"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/metadatastore"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/queue"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.NewArtifactStore(cfg.Data.ArtifactDir)
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}
	modelPath := cfg.Serving.ModelPath
	if modelPath == "" {
		modelPath = store.Path(storage.KindModels, storage.ServingModel)
	}
	transformerPath := cfg.Serving.TransformerPath
	if transformerPath == "" {
		transformerPath = store.Path(storage.KindModels, storage.Transformer)
	}

	predictor, err := mlmodel.LoadPredictor(modelPath, transformerPath)
	if err != nil {
		logger.Fatal("Failed to load model artifacts",
			zap.String("model_path", modelPath),
			zap.String("transformer_path", transformerPath),
			zap.Error(err))
	}
	logger.Info("Model loaded",
		zap.String("model", string(predictor.Algorithm())),
		zap.String("run_id", predictor.RunID()),
		zap.Int("features", len(predictor.FeatureColumns())))

	var opts api.Options
	if cfg.DatabasePath != "" {
		registry, err := metadatastore.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			logger.Fatal("Failed to open metadata store", zap.Error(err))
		}
		defer registry.Close()
		opts.Registry = registry
	}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		jobs, err := queue.NewJobQueue(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, continuing without job queue and event publishing", zap.Error(err))
		} else {
			defer jobs.Close()
			opts.Jobs = jobs
			opts.Publisher = queue.NewPublisher(jobs.Client())
		}
	}

	server, err := api.NewServer(predictor, opts, logger)
	if err != nil {
		logger.Fatal("Failed to create API server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + cfg.Port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("API server stopped", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
