package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests configuration loading from the environment
func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("LABEL_COLUMN", "threat_type")
	t.Setenv("TEST_SIZE", "0.25")
	t.Setenv("SCALER_FIT", "train")
	t.Setenv("ONE_HOT_COLUMNS", "protocol, service,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected environment 'test', got '%s'", cfg.Environment)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}
	if cfg.Data.LabelColumn != "threat_type" {
		t.Errorf("Expected label column 'threat_type', got '%s'", cfg.Data.LabelColumn)
	}
	if cfg.Preprocess.TestSize != 0.25 {
		t.Errorf("Expected test size 0.25, got %v", cfg.Preprocess.TestSize)
	}
	if cfg.Preprocess.ScalerFit != "train" {
		t.Errorf("Expected scaler fit 'train', got '%s'", cfg.Preprocess.ScalerFit)
	}
	if len(cfg.Explore.OneHotColumns) != 2 || cfg.Explore.OneHotColumns[1] != "service" {
		t.Errorf("Unexpected one-hot columns %v", cfg.Explore.OneHotColumns)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port '8080', got '%s'", cfg.Port)
	}
	if cfg.Data.LabelColumn != "label" {
		t.Errorf("Expected default label column 'label', got '%s'", cfg.Data.LabelColumn)
	}
	if cfg.Preprocess.RandomSeed != 42 {
		t.Errorf("Expected default seed 42, got %d", cfg.Preprocess.RandomSeed)
	}
	if cfg.Preprocess.ScalerFit != "full" {
		t.Errorf("Expected default scaler fit 'full', got '%s'", cfg.Preprocess.ScalerFit)
	}
	if cfg.Search.CVFolds != 3 || cfg.Search.Iterations != 10 {
		t.Errorf("Expected cv=3 n_iter=10, got cv=%d n_iter=%d", cfg.Search.CVFolds, cfg.Search.Iterations)
	}
	if len(cfg.Search.RandomForest.NEstimators) != 3 {
		t.Errorf("Expected 3 forest sizes, got %v", cfg.Search.RandomForest.NEstimators)
	}
}

// TestLoadConfigFile tests the YAML overlay and env precedence over it
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "7070"
data:
  label_column: threat_label
search:
  iterations: 2
  random_forest:
    n_estimators: [5]
    max_depth: [3]
    min_samples_split: [2]
    class_weight: [balanced]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "6060")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != "6060" {
		t.Errorf("Expected env port to win, got '%s'", cfg.Port)
	}
	if cfg.Data.LabelColumn != "threat_label" {
		t.Errorf("Expected file label column, got '%s'", cfg.Data.LabelColumn)
	}
	if cfg.Search.Iterations != 2 {
		t.Errorf("Expected 2 iterations, got %d", cfg.Search.Iterations)
	}
	if got := cfg.Search.RandomForest.NEstimators; len(got) != 1 || got[0] != 5 {
		t.Errorf("Expected n_estimators [5], got %v", got)
	}
	if got := cfg.Search.XGBoost.NEstimators; len(got) != 3 {
		t.Errorf("Expected default xgboost grid to survive, got %v", got)
	}
}

// TestLoadConfigInvalid tests validation failures
func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"scaler fit", "SCALER_FIT", "sometimes"},
		{"test size", "TEST_SIZE", "1.5"},
		{"folds", "CV_FOLDS", "1"},
		{"log level", "LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfigDataDir(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/captures")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if want := filepath.Join("/srv/captures", "raw", RawDataFile); cfg.Data.RawDataPath != want {
		t.Errorf("Expected raw data path %s, got %s", want, cfg.Data.RawDataPath)
	}

	t.Setenv("RAW_DATA_PATH", "/tmp/other.csv")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Data.RawDataPath != "/tmp/other.csv" {
		t.Errorf("Expected explicit raw data path to win, got %s", cfg.Data.RawDataPath)
	}
}

func TestValidateClassWeight(t *testing.T) {
	cfg := Default()
	cfg.Search.RandomForest.ClassWeight = []string{"balanced_subsample"}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected unsupported class weight to fail validation")
	}
}
