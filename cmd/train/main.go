// Train runs the hyperparameter search for every model, promotes the best
// one to the serving bundle, and optionally keeps retraining on a schedule
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/guptarohit/asciigraph"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/metadatastore"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/scheduler"
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

	var registry metadatastore.MetadataStore
	if cfg.DatabasePath != "" {
		sqlite, err := metadatastore.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			logger.Fatal("Failed to open metadata store", zap.Error(err))
		}
		defer sqlite.Close()
		registry = sqlite
	}

	service := mlmodel.NewService(cfg, store, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := service.Train(ctx, models.RunTriggerCLI)
	if err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}
	printSearchCharts(result)

	if cfg.TrainSchedule == "" {
		return
	}

	sched := scheduler.NewService(func(ctx context.Context) error {
		_, err := service.Train(ctx, models.RunTriggerSchedule)
		return err
	}, logger)
	if err := sched.AddJob("retrain", cfg.TrainSchedule); err != nil {
		logger.Fatal("Invalid training schedule", zap.String("schedule", cfg.TrainSchedule), zap.Error(err))
	}
	sched.Start()
	logger.Info("Scheduled retraining enabled", zap.String("schedule", cfg.TrainSchedule))

	<-ctx.Done()
	logger.Info("Shutting down scheduler...")
	sched.Stop()
}

// printSearchCharts draws the cross-validated score of every sampled
// candidate, in sampling order
func printSearchCharts(result *mlmodel.TrainResult) {
	for _, modelType := range []models.ModelType{models.ModelTypeRandomForest, models.ModelTypeXGBoost} {
		outcome, ok := result.Outcomes[modelType]
		if !ok {
			continue
		}
		scores := make([]float64, len(outcome.Search.Results))
		for i, r := range outcome.Search.Results {
			scores[i] = r.MeanScore
		}
		if len(scores) == 0 {
			continue
		}
		fmt.Fprintln(os.Stdout, asciigraph.Plot(scores,
			asciigraph.Height(8),
			asciigraph.Caption(fmt.Sprintf("%s CV f1_macro per candidate (best %.4f, test f1_macro %.4f)",
				modelType, outcome.Search.BestScore, outcome.Metrics.F1Macro))))
		fmt.Fprintln(os.Stdout)
	}
	fmt.Fprintf(os.Stdout, "Serving model: %s (run %s)\n", result.Run.BestModel, result.Run.ID)
}
