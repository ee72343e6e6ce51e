package mlmodel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/evaluation"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/metadatastore"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel/training"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/preprocess"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

// Service trains the candidate models from the persisted partitions,
// promotes the best one to the serving bundle and records the run
type Service struct {
	artifacts *storage.ArtifactStore
	registry  metadatastore.MetadataStore
	factory   *training.TrainerFactory
	logger    *zap.Logger

	// training is CPU bound and rewrites shared artifacts
	mu sync.Mutex
}

// TrainResult is the outcome of one Train call
type TrainResult struct {
	Run      *models.TrainingRun
	Outcomes map[models.ModelType]*training.Outcome
}

// NewService creates a training service. registry may be nil, in which case
// runs are only logged.
func NewService(cfg *config.Config, artifacts *storage.ArtifactStore, registry metadatastore.MetadataStore, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	return &Service{
		artifacts: artifacts,
		registry:  registry,
		factory:   training.NewTrainerFactory(cfg.Search, cfg.Preprocess.RandomSeed, logger),
		logger:    logger,
	}
}

// Train runs the full training flow. The returned run is also recorded when
// training fails.
func (s *Service) Train(ctx context.Context, trigger models.RunTrigger) (*TrainResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &models.TrainingRun{
		ID:        uuid.New().String(),
		Status:    models.RunStatusRunning,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
		ReportDir: s.artifacts.Dir(storage.KindReports),
	}
	logger := s.logger.With(zap.String("run_id", run.ID), zap.String("trigger", string(trigger)))
	s.record(run, logger)
	logger.Info("Training run started")

	outcomes, err := s.train(ctx, run, logger)
	run.Finish(err)
	s.record(run, logger)
	if err != nil {
		logger.Error("Training run failed", zap.Error(err))
		return &TrainResult{Run: run}, err
	}

	logger.Info("Training run completed",
		zap.String("best_model", string(run.BestModel)),
		zap.Float64("f1_macro", run.Metrics[run.BestModel].F1Macro))
	return &TrainResult{Run: run, Outcomes: outcomes}, nil
}

func (s *Service) train(ctx context.Context, run *models.TrainingRun, logger *zap.Logger) (map[models.ModelType]*training.Outcome, error) {
	parts, err := preprocess.LoadPartitions(s.artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to load partitions: %w", err)
	}
	run.FeatureCount = len(parts.XTrain.Columns)
	run.TrainSamples = len(parts.YTrain)
	run.TestSamples = len(parts.YTest)

	outcomes, err := s.factory.TrainAndSaveAll(ctx, training.Dataset{
		XTrain: parts.XTrain.Rows,
		XTest:  parts.XTest.Rows,
		YTrain: parts.YTrain,
		YTest:  parts.YTest,
	}, s.artifacts.Dir(storage.KindModels))
	if err != nil {
		return nil, err
	}

	run.Metrics = make(map[models.ModelType]*models.PerformanceMetrics, len(outcomes))
	var best models.ModelType
	for _, modelType := range s.factory.Types() {
		outcome := outcomes[modelType]
		run.Metrics[modelType] = outcome.Metrics
		if best == "" || outcome.Metrics.F1Macro > outcomes[best].Metrics.F1Macro {
			best = modelType
		}
	}
	winner := outcomes[best]
	run.BestModel = best
	run.BestParams = winner.Search.BestParams
	run.Classes = winner.Estimator.Classes()

	bundlePath := s.artifacts.Path(storage.KindModels, storage.ServingModel)
	if err := SaveBundle(bundlePath, &ModelBundle{
		Model:          winner.Estimator,
		Algorithm:      best,
		FeatureColumns: parts.XTrain.Columns,
		Classes:        winner.Estimator.Classes(),
		Metrics:        winner.Metrics,
		RunID:          run.ID,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("failed to save serving bundle: %w", err)
	}
	run.ModelArtifactPath = bundlePath
	logger.Info("Serving bundle written", zap.String("model", string(best)), zap.String("path", bundlePath))

	if err := s.writeReports(winner.Estimator, parts, logger); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// writeReports writes the classification report and confusion matrix for
// the held-out set, plus a best-effort ROC plot
func (s *Service) writeReports(model training.Classifier, parts *preprocess.Partitions, logger *zap.Logger) error {
	pred, err := model.Predict(parts.XTest.Rows)
	if err != nil {
		return fmt.Errorf("failed to predict held-out set: %w", err)
	}

	report, err := evaluation.ClassificationReport(parts.YTest, pred)
	if err != nil {
		return err
	}
	if err := evaluation.SaveClassificationReport(report, s.artifacts.Path(storage.KindReports, storage.ClassReport)); err != nil {
		return err
	}

	labels := evaluation.Labels(parts.YTest, pred)
	cmPath := s.artifacts.Path(storage.KindReports, storage.ConfusionMatrixPNG)
	if err := evaluation.PlotConfusionMatrix(parts.YTest, pred, labels, cmPath, "Confusion Matrix"); err != nil {
		return err
	}

	rocPath := s.artifacts.Path(storage.KindReports, storage.ROCCurvePNG)
	evaluation.RenderROC(model, parts.XTest.Rows, parts.YTest, rocPath, "ROC Curve", logger)
	return nil
}

func (s *Service) record(run *models.TrainingRun, logger *zap.Logger) {
	if s.registry == nil {
		return
	}
	if err := s.registry.SaveRun(run); err != nil {
		logger.Warn("Failed to record training run", zap.Error(err))
	}
}
