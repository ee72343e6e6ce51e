package mlmodel

import (
	"fmt"
	"time"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel/training"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

// ModelBundle is the serving artifact: a fitted classifier plus the feature
// columns it was trained on
type ModelBundle struct {
	Model          training.Classifier
	Algorithm      models.ModelType
	FeatureColumns []string
	Classes        []string
	Metrics        *models.PerformanceMetrics
	RunID          string
	CreatedAt      time.Time
}

// SaveBundle gob-encodes the bundle to path
func SaveBundle(path string, bundle *ModelBundle) error {
	if bundle.Model == nil {
		return fmt.Errorf("bundle has no model")
	}
	return storage.SaveGob(path, bundle)
}

// LoadBundle reads a bundle written by SaveBundle
func LoadBundle(path string) (*ModelBundle, error) {
	var bundle ModelBundle
	if err := storage.LoadGob(path, &bundle); err != nil {
		return nil, err
	}
	if bundle.Model == nil {
		return nil, fmt.Errorf("model bundle %s has no model", path)
	}
	if len(bundle.FeatureColumns) == 0 {
		return nil, fmt.Errorf("model bundle %s has no feature columns", path)
	}
	return &bundle, nil
}
