package preprocess

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/dataset"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

// Scaler fit modes
const (
	ScalerFitFull  = "full"
	ScalerFitTrain = "train"
)

// Options controls a preprocessing run
type Options struct {
	RawDataPath string
	LabelColumn string
	TestSize    float64
	Seed        int64
	ScalerFit   string
}

// OptionsFromConfig extracts preprocessing options from the application config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RawDataPath: cfg.Data.RawDataPath,
		LabelColumn: cfg.Data.LabelColumn,
		TestSize:    cfg.Preprocess.TestSize,
		Seed:        cfg.Preprocess.RandomSeed,
		ScalerFit:   cfg.Preprocess.ScalerFit,
	}
}

// Matrix is a persisted feature partition
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Partitions are the four persisted train/test artifacts
type Partitions struct {
	XTrain Matrix
	XTest  Matrix
	YTrain []string
	YTest  []string
}

// Result summarizes a preprocessing run
type Result struct {
	RawRows        int
	CleanRows      int
	FeatureColumns []string
	Classes        []string
	TrainRows      int
	TestRows       int
}

// Pipeline runs the full preprocessing flow and persists its artifacts
type Pipeline struct {
	store  *storage.ArtifactStore
	opts   Options
	logger *zap.Logger
}

// NewPipeline creates a preprocessing pipeline writing into store
func NewPipeline(store *storage.ArtifactStore, opts Options, logger *zap.Logger) *Pipeline {
	if opts.TestSize == 0 {
		opts.TestSize = 0.2
	}
	if opts.ScalerFit == "" {
		opts.ScalerFit = ScalerFitFull
	}
	return &Pipeline{store: store, opts: opts, logger: logging.OrNop(logger)}
}

// Run executes load → clean → encode → persist encoders and cleaned data →
// scale → persist scaler → split → persist partitions and the transformer
func (p *Pipeline) Run() (*Result, error) {
	raw, err := dataset.LoadCSV(p.opts.RawDataPath, p.opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	label := p.opts.LabelColumn
	if label == "" {
		label = dataset.DefaultLabelColumn
	}
	p.logger.Info("Loaded raw dataset",
		zap.String("path", p.opts.RawDataPath),
		zap.Int("rows", raw.NumRows()),
		zap.Int("columns", raw.NumCols()))

	clean := Clean(raw)
	p.logger.Info("Cleaned dataset", zap.Int("rows", clean.NumRows()))

	encoders, err := EncodeCategorical(clean, label)
	if err != nil {
		return nil, err
	}
	if err := storage.SaveJSON(p.store.Path(storage.KindModels, storage.LabelEncoders), encoders); err != nil {
		return nil, err
	}
	if err := clean.SaveCSV(p.store.Path(storage.KindClean, storage.CleanedDataset)); err != nil {
		return nil, err
	}

	labelCol, _ := clean.Column(label)
	y := make([]string, clean.NumRows())
	for i := range y {
		y[i] = labelCol.Cell(i)
	}

	features := make([]string, 0, clean.NumCols()-1)
	for _, name := range clean.Names() {
		if name != label {
			features = append(features, name)
		}
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("dataset has no feature columns besides %q", label)
	}
	X, err := clean.Matrix(features)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := SplitIndices(len(X), p.opts.TestSize, p.opts.Seed)
	if err != nil {
		return nil, err
	}

	var scaler *StandardScaler
	switch p.opts.ScalerFit {
	case ScalerFitFull:
		p.logger.Warn("Fitting scaler on the full feature set before the split; test statistics leak into training")
		scaler, err = FitStandardScaler(X)
	case ScalerFitTrain:
		trainX, _ := take(X, y, trainIdx)
		scaler, err = FitStandardScaler(trainX)
	default:
		return nil, fmt.Errorf("unknown scaler fit mode %q", p.opts.ScalerFit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	if err := storage.SaveJSON(p.store.Path(storage.KindModels, storage.Scaler), scaler); err != nil {
		return nil, err
	}

	scaled, err := scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	parts := &Partitions{
		XTrain: Matrix{Columns: features},
		XTest:  Matrix{Columns: features},
	}
	parts.XTrain.Rows, parts.YTrain = take(scaled, y, trainIdx)
	parts.XTest.Rows, parts.YTest = take(scaled, y, testIdx)
	if err := SavePartitions(p.store, parts); err != nil {
		return nil, err
	}

	transformer := &Transformer{
		LabelColumn:    label,
		FeatureColumns: features,
		Encoders:       encoders,
		Scaler:         scaler,
	}
	if err := transformer.Save(p.store.Path(storage.KindModels, storage.Transformer)); err != nil {
		return nil, err
	}

	result := &Result{
		RawRows:        raw.NumRows(),
		CleanRows:      clean.NumRows(),
		FeatureColumns: features,
		Classes:        FitLabelEncoder(y).Classes,
		TrainRows:      len(parts.YTrain),
		TestRows:       len(parts.YTest),
	}
	p.logger.Info("Preprocessing complete",
		zap.Int("train_rows", result.TrainRows),
		zap.Int("test_rows", result.TestRows),
		zap.Strings("features", features),
		zap.String("artifacts", p.store.BasePath()))
	return result, nil
}

// SavePartitions writes the four partition artifacts
func SavePartitions(store *storage.ArtifactStore, parts *Partitions) error {
	items := []struct {
		name string
		v    interface{}
	}{
		{storage.XTrain, parts.XTrain},
		{storage.XTest, parts.XTest},
		{storage.YTrain, parts.YTrain},
		{storage.YTest, parts.YTest},
	}
	for _, it := range items {
		if err := storage.SaveGob(store.Path(storage.KindProcessed, it.name), it.v); err != nil {
			return err
		}
	}
	return nil
}

// LoadPartitions reads the four partition artifacts
func LoadPartitions(store *storage.ArtifactStore) (*Partitions, error) {
	parts := &Partitions{}
	items := []struct {
		name string
		v    interface{}
	}{
		{storage.XTrain, &parts.XTrain},
		{storage.XTest, &parts.XTest},
		{storage.YTrain, &parts.YTrain},
		{storage.YTest, &parts.YTest},
	}
	for _, it := range items {
		if err := storage.LoadGob(store.Path(storage.KindProcessed, it.name), it.v); err != nil {
			return nil, err
		}
	}
	if len(parts.XTrain.Rows) != len(parts.YTrain) || len(parts.XTest.Rows) != len(parts.YTest) {
		return nil, fmt.Errorf("partition sizes do not match their labels")
	}
	return parts, nil
}
