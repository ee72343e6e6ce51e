// Explore prints a quick look at the raw capture and the engineered
// features ranked by variance
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/features"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
)

const sampleRows = 5

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

	frame, err := dataset.LoadCSV(cfg.Data.RawDataPath, cfg.Data.LabelColumn)
	if err != nil {
		logger.Fatal("Failed to load dataset", zap.String("path", cfg.Data.RawDataPath), zap.Error(err))
	}
	logger.Info("Dataset loaded", zap.Int("rows", frame.NumRows()), zap.Int("columns", frame.NumCols()))

	fmt.Fprintf(os.Stdout, "First %d rows:\n", sampleRows)
	if err := dataset.SampleHead(frame, sampleRows).WriteCSV(os.Stdout); err != nil {
		logger.Fatal("Failed to print sample", zap.Error(err))
	}

	engineered := features.AddRateFeatures(frame, features.DefaultRateColumns)
	engineered.Drop(cfg.Data.LabelColumn)
	engineered = features.OneHotEncode(engineered, cfg.Explore.OneHotColumns)

	fmt.Fprintf(os.Stdout, "\nTop %d features by variance:\n", cfg.Explore.TopK)
	variances := map[string]float64{}
	for _, v := range features.Variances(engineered) {
		variances[v.Name] = v.Variance
	}
	for i, name := range features.SelectTopKByVariance(engineered, cfg.Explore.TopK) {
		fmt.Fprintf(os.Stdout, "%3d. %-40s %.6g\n", i+1, name, variances[name])
	}
}
