// Preprocess cleans the raw capture, encodes and scales it, and writes the
// train/test partitions plus the serving transformer
package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/preprocess"
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

	store, err := storage.NewArtifactStore(cfg.Data.ArtifactDir)
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	result, err := preprocess.NewPipeline(store, preprocess.OptionsFromConfig(cfg), logger).Run()
	if err != nil {
		logger.Fatal("Preprocessing failed", zap.Error(err))
	}

	logger.Info("Preprocessing complete",
		zap.Int("raw_rows", result.RawRows),
		zap.Int("clean_rows", result.CleanRows),
		zap.Int("train_rows", result.TrainRows),
		zap.Int("test_rows", result.TestRows),
		zap.Strings("classes", result.Classes),
		zap.String("artifact_dir", store.BasePath()))
}
