package metadatastore

import (
	"errors"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// MetadataStore persists the registry of training runs.
// Model weights live in the artifact tree, not here.
type MetadataStore interface {
	SaveRun(run *models.TrainingRun) error
	GetRun(id string) (*models.TrainingRun, error)
	// ListRuns returns every run, newest first
	ListRuns() ([]*models.TrainingRun, error)
	// LatestRun returns the most recent completed run
	LatestRun() (*models.TrainingRun, error)
	DeleteRun(id string) error
	Close() error
}
