package training

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/evaluation"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

// Trainer couples an algorithm with its search space
type Trainer struct {
	Type         models.ModelType
	ArtifactName string
	Grid         ParamGrid
	Factory      Factory
}

// TrainerFactory creates trainers for different model types
type TrainerFactory struct {
	trainers   map[models.ModelType]*Trainer
	order      []models.ModelType
	folds      int
	iterations int
	seed       int64
	logger     *zap.Logger
}

// NewTrainerFactory registers the forest and booster trainers with the
// configured grids. seed drives both the search sampling and the models.
func NewTrainerFactory(cfg config.SearchConfig, seed int64, logger *zap.Logger) *TrainerFactory {
	factory := &TrainerFactory{
		trainers:   make(map[models.ModelType]*Trainer),
		folds:      cfg.CVFolds,
		iterations: cfg.Iterations,
		seed:       seed,
		logger:     logging.OrNop(logger),
	}

	factory.register(&Trainer{
		Type:         models.ModelTypeRandomForest,
		ArtifactName: "random_forest_best",
		Grid:         RandomForestGrid(cfg.RandomForest),
		Factory:      randomForestFactory(seed),
	})
	factory.register(&Trainer{
		Type:         models.ModelTypeXGBoost,
		ArtifactName: "xgboost_best",
		Grid:         XGBoostGrid(cfg.XGBoost),
		Factory:      gradientBoostingFactory(seed),
	})

	return factory
}

func (f *TrainerFactory) register(t *Trainer) {
	f.trainers[t.Type] = t
	f.order = append(f.order, t.Type)
}

// GetTrainer returns the appropriate trainer for a model type
func (f *TrainerFactory) GetTrainer(modelType models.ModelType) (*Trainer, error) {
	trainer, ok := f.trainers[modelType]
	if !ok {
		return nil, fmt.Errorf("no trainer available for model type: %s", modelType)
	}
	return trainer, nil
}

// Types lists the registered model types in training order
func (f *TrainerFactory) Types() []models.ModelType {
	return append([]models.ModelType(nil), f.order...)
}

// Search runs the randomized hyperparameter search for one model type
func (f *TrainerFactory) Search(ctx context.Context, modelType models.ModelType, X [][]float64, y []string) (*SearchResult, error) {
	trainer, err := f.GetTrainer(modelType)
	if err != nil {
		return nil, err
	}
	search := &RandomizedSearch{
		Grid:    trainer.Grid,
		NIter:   f.iterations,
		Folds:   f.folds,
		Seed:    f.seed,
		Factory: trainer.Factory,
		Logger:  f.logger.With(zap.String("model", string(modelType))),
	}
	return search.Fit(ctx, X, y)
}

// RandomForestGrid converts the configured grid; max depth 0 is unlimited
func RandomForestGrid(grid config.RandomForestGrid) ParamGrid {
	return ParamGrid{
		{Name: "n_estimators", Values: intValues(grid.NEstimators)},
		{Name: "max_depth", Values: intValues(grid.MaxDepth)},
		{Name: "min_samples_split", Values: intValues(grid.MinSamplesSplit)},
		{Name: "class_weight", Values: stringValues(grid.ClassWeight)},
	}
}

// XGBoostGrid converts the configured boosting grid
func XGBoostGrid(grid config.XGBoostGrid) ParamGrid {
	return ParamGrid{
		{Name: "n_estimators", Values: intValues(grid.NEstimators)},
		{Name: "max_depth", Values: intValues(grid.MaxDepth)},
		{Name: "learning_rate", Values: floatValues(grid.LearningRate)},
		{Name: "subsample", Values: floatValues(grid.Subsample)},
		{Name: "colsample_bytree", Values: floatValues(grid.ColsampleByTree)},
	}
}

func randomForestFactory(seed int64) Factory {
	return func(p Params) (Classifier, error) {
		m := NewRandomForestClassifier(seed)
		var err error
		if m.NEstimators, err = p.Int("n_estimators", m.NEstimators); err != nil {
			return nil, err
		}
		if m.MaxDepth, err = p.Int("max_depth", m.MaxDepth); err != nil {
			return nil, err
		}
		if m.MinSamplesSplit, err = p.Int("min_samples_split", m.MinSamplesSplit); err != nil {
			return nil, err
		}
		if m.ClassWeight, err = p.String("class_weight", m.ClassWeight); err != nil {
			return nil, err
		}
		return m, nil
	}
}

func gradientBoostingFactory(seed int64) Factory {
	return func(p Params) (Classifier, error) {
		m := NewGradientBoostingClassifier(seed)
		var err error
		if m.NEstimators, err = p.Int("n_estimators", m.NEstimators); err != nil {
			return nil, err
		}
		if m.MaxDepth, err = p.Int("max_depth", m.MaxDepth); err != nil {
			return nil, err
		}
		if m.LearningRate, err = p.Float("learning_rate", m.LearningRate); err != nil {
			return nil, err
		}
		if m.Subsample, err = p.Float("subsample", m.Subsample); err != nil {
			return nil, err
		}
		if m.ColsampleByTree, err = p.Float("colsample_bytree", m.ColsampleByTree); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// TrainRandomForest searches the forest grid and returns the refit best estimator
func TrainRandomForest(ctx context.Context, X [][]float64, y []string, cfg config.SearchConfig, seed int64, logger *zap.Logger) (*SearchResult, error) {
	return NewTrainerFactory(cfg, seed, logger).Search(ctx, models.ModelTypeRandomForest, X, y)
}

// TrainXGBoost searches the boosting grid and returns the refit best estimator
func TrainXGBoost(ctx context.Context, X [][]float64, y []string, cfg config.SearchConfig, seed int64, logger *zap.Logger) (*SearchResult, error) {
	return NewTrainerFactory(cfg, seed, logger).Search(ctx, models.ModelTypeXGBoost, X, y)
}

// modelArtifact wraps a classifier so gob records its concrete type
type modelArtifact struct {
	Model Classifier
}

// SaveModel gob-encodes a fitted classifier
func SaveModel(path string, model Classifier) error {
	return storage.SaveGob(path, &modelArtifact{Model: model})
}

// LoadModel reads a classifier written by SaveModel
func LoadModel(path string) (Classifier, error) {
	var artifact modelArtifact
	if err := storage.LoadGob(path, &artifact); err != nil {
		return nil, err
	}
	if artifact.Model == nil {
		return nil, fmt.Errorf("model artifact %s is empty", path)
	}
	return artifact.Model, nil
}

// EvaluateAndSave scores model on the held-out set and writes <name>.gob and
// <name>_metrics.json into outDir
func EvaluateAndSave(model Classifier, X [][]float64, y []string, outDir, name string) (*models.PerformanceMetrics, error) {
	pred, err := model.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("failed to predict held-out set: %w", err)
	}
	report, err := evaluation.ClassificationReport(y, pred)
	if err != nil {
		return nil, fmt.Errorf("failed to score %s: %w", name, err)
	}
	metrics := &models.PerformanceMetrics{
		Accuracy: report.Accuracy,
		F1Macro:  report.MacroAvg.F1Score,
	}

	if err := SaveModel(filepath.Join(outDir, name+".gob"), model); err != nil {
		return nil, err
	}
	if err := storage.SaveJSON(filepath.Join(outDir, name+"_metrics.json"), metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// Dataset holds the train and held-out partitions
type Dataset struct {
	XTrain [][]float64
	XTest  [][]float64
	YTrain []string
	YTest  []string
}

// Outcome is the result of training one algorithm
type Outcome struct {
	Estimator    Classifier
	Search       *SearchResult
	Metrics      *models.PerformanceMetrics
	ArtifactPath string
	Duration     time.Duration
}

// TrainAndSaveAll trains every registered algorithm in order, evaluating and
// saving each. The first failure aborts the run.
func (f *TrainerFactory) TrainAndSaveAll(ctx context.Context, data Dataset, outDir string) (map[models.ModelType]*Outcome, error) {
	if len(data.XTest) == 0 {
		return nil, fmt.Errorf("held-out set is empty")
	}
	outcomes := make(map[models.ModelType]*Outcome, len(f.order))
	for _, modelType := range f.order {
		trainer := f.trainers[modelType]
		start := time.Now()

		result, err := f.Search(ctx, modelType, data.XTrain, data.YTrain)
		if err != nil {
			return nil, fmt.Errorf("failed to train %s: %w", modelType, err)
		}
		metrics, err := EvaluateAndSave(result.BestEstimator, data.XTest, data.YTest, outDir, trainer.ArtifactName)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s: %w", modelType, err)
		}

		outcomes[modelType] = &Outcome{
			Estimator:    result.BestEstimator,
			Search:       result,
			Metrics:      metrics,
			ArtifactPath: filepath.Join(outDir, trainer.ArtifactName+".gob"),
			Duration:     time.Since(start),
		}
		f.logger.Info("Model trained",
			zap.String("model", string(modelType)),
			zap.Float64("accuracy", metrics.Accuracy),
			zap.Float64("f1_macro", metrics.F1Macro),
			zap.Duration("duration", outcomes[modelType].Duration))
	}
	return outcomes, nil
}

// TrainAndSaveAll trains the forest and the booster with the configured
// search and saves random_forest_best and xgboost_best into outDir
func TrainAndSaveAll(ctx context.Context, data Dataset, outDir string, cfg config.SearchConfig, seed int64, logger *zap.Logger) (map[models.ModelType]*Outcome, error) {
	return NewTrainerFactory(cfg, seed, logger).TrainAndSaveAll(ctx, data, outDir)
}
