package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment       string `yaml:"environment" validate:"required"`
	LogLevel          string `yaml:"log_level" validate:"oneof=debug info warn error"`
	Port              string `yaml:"port" validate:"required,numeric"`
	RedisURL          string `yaml:"redis_url"`
	DatabasePath      string `yaml:"database_path"`
	TrainSchedule     string `yaml:"train_schedule"`
	WorkerConcurrency int    `yaml:"worker_concurrency" validate:"gte=1"`

	Data       DataConfig       `yaml:"data"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Search     SearchConfig     `yaml:"search"`
	Serving    ServingConfig    `yaml:"serving"`
	Explore    ExploreConfig    `yaml:"explore"`
}

// RawDataFile is the capture read from <data_dir>/raw when no explicit path is given
const RawDataFile = "west_network_logs.csv"

// DataConfig locates the raw input and the artifact tree
type DataConfig struct {
	DataDir     string `yaml:"data_dir"`
	RawDataPath string `yaml:"raw_data_path" validate:"required"`
	ArtifactDir string `yaml:"artifact_dir" validate:"required"`
	LabelColumn string `yaml:"label_column" validate:"required"`
}

// PreprocessConfig controls splitting and scaling
type PreprocessConfig struct {
	TestSize   float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	RandomSeed int64   `yaml:"random_seed"`
	// ScalerFit is "full" (fit before the split) or "train" (fit on the train partition).
	ScalerFit string `yaml:"scaler_fit" validate:"oneof=full train"`
}

// SearchConfig holds the randomized search budget and grids
type SearchConfig struct {
	CVFolds      int              `yaml:"cv_folds" validate:"gte=2"`
	Iterations   int              `yaml:"iterations" validate:"gte=1"`
	RandomForest RandomForestGrid `yaml:"random_forest"`
	XGBoost      XGBoostGrid      `yaml:"xgboost"`
}

// RandomForestGrid lists candidate forest hyperparameters. A max depth of 0
// means unlimited and an empty class weight means unweighted.
type RandomForestGrid struct {
	NEstimators     []int    `yaml:"n_estimators" validate:"min=1,dive,gte=1"`
	MaxDepth        []int    `yaml:"max_depth" validate:"min=1,dive,gte=0"`
	MinSamplesSplit []int    `yaml:"min_samples_split" validate:"min=1,dive,gte=2"`
	ClassWeight     []string `yaml:"class_weight" validate:"min=1"`
}

// XGBoostGrid lists candidate boosting hyperparameters
type XGBoostGrid struct {
	NEstimators     []int     `yaml:"n_estimators" validate:"min=1,dive,gte=1"`
	MaxDepth        []int     `yaml:"max_depth" validate:"min=1,dive,gte=1"`
	LearningRate    []float64 `yaml:"learning_rate" validate:"min=1,dive,gt=0"`
	Subsample       []float64 `yaml:"subsample" validate:"min=1,dive,gt=0,lte=1"`
	ColsampleByTree []float64 `yaml:"colsample_bytree" validate:"min=1,dive,gt=0,lte=1"`
}

// ServingConfig locates the artifacts loaded by the API at startup.
// Empty paths resolve inside the artifact directory.
type ServingConfig struct {
	ModelPath       string `yaml:"model_path"`
	TransformerPath string `yaml:"transformer_path"`
}

// ExploreConfig drives the ad-hoc feature engineering report
type ExploreConfig struct {
	OneHotColumns []string `yaml:"one_hot_columns"`
	TopK          int      `yaml:"top_k" validate:"gte=1"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Environment:       "development",
		LogLevel:          "info",
		Port:              "8080",
		WorkerConcurrency: 1,
		Data: DataConfig{
			DataDir:     "data",
			RawDataPath: filepath.Join("data", "raw", RawDataFile),
			ArtifactDir: "outputs",
			LabelColumn: "label",
		},
		Preprocess: PreprocessConfig{
			TestSize:   0.2,
			RandomSeed: 42,
			ScalerFit:  "full",
		},
		Search: SearchConfig{
			CVFolds:    3,
			Iterations: 10,
			RandomForest: RandomForestGrid{
				NEstimators:     []int{100, 200, 300},
				MaxDepth:        []int{10, 20, 0},
				MinSamplesSplit: []int{2, 5, 10},
				ClassWeight:     []string{"", "balanced"},
			},
			XGBoost: XGBoostGrid{
				NEstimators:     []int{200, 300, 500},
				MaxDepth:        []int{6, 8, 10},
				LearningRate:    []float64{0.01, 0.1, 0.2},
				Subsample:       []float64{0.7, 0.8, 1.0},
				ColsampleByTree: []float64{0.6, 0.8, 1.0},
			},
		},
		Explore: ExploreConfig{
			OneHotColumns: []string{"protocol"},
			TopK:          50,
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named
// by CONFIG_FILE, and environment variables, in that order of precedence.
func LoadConfig() (*Config, error) {
	config := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.mergeFile(path); err != nil {
			return nil, err
		}
	}

	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.Port = getEnv("PORT", config.Port)
	config.RedisURL = getEnv("REDIS_URL", config.RedisURL)
	config.DatabasePath = getEnv("DATABASE_PATH", config.DatabasePath)
	config.TrainSchedule = getEnv("TRAIN_SCHEDULE", config.TrainSchedule)
	config.WorkerConcurrency = getEnvAsInt("WORKER_CONCURRENCY", config.WorkerConcurrency)

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.DataDir = dataDir
		config.Data.RawDataPath = filepath.Join(dataDir, "raw", RawDataFile)
	}
	config.Data.RawDataPath = getEnv("RAW_DATA_PATH", config.Data.RawDataPath)
	config.Data.ArtifactDir = getEnv("ARTIFACT_DIR", config.Data.ArtifactDir)
	config.Data.LabelColumn = getEnv("LABEL_COLUMN", config.Data.LabelColumn)

	config.Preprocess.TestSize = getEnvAsFloat("TEST_SIZE", config.Preprocess.TestSize)
	config.Preprocess.RandomSeed = int64(getEnvAsInt("RANDOM_SEED", int(config.Preprocess.RandomSeed)))
	config.Preprocess.ScalerFit = getEnv("SCALER_FIT", config.Preprocess.ScalerFit)

	config.Search.CVFolds = getEnvAsInt("CV_FOLDS", config.Search.CVFolds)
	config.Search.Iterations = getEnvAsInt("SEARCH_ITERATIONS", config.Search.Iterations)

	config.Serving.ModelPath = getEnv("MODEL_PATH", config.Serving.ModelPath)
	config.Serving.TransformerPath = getEnv("TRANSFORMER_PATH", config.Serving.TransformerPath)

	config.Explore.OneHotColumns = getEnvAsSlice("ONE_HOT_COLUMNS", config.Explore.OneHotColumns)
	config.Explore.TopK = getEnvAsInt("TOP_K", config.Explore.TopK)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks field constraints and the rules the struct tags cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for _, w := range c.Search.RandomForest.ClassWeight {
		if w != "" && w != "balanced" {
			return fmt.Errorf("invalid configuration: unsupported class_weight %q", w)
		}
	}

	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma separated variable, dropping blanks
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
