package models

import (
	"fmt"
	"time"
)

// ModelType represents the algorithm behind a trained classifier
type ModelType string

const (
	ModelTypeRandomForest ModelType = "random_forest"
	ModelTypeXGBoost      ModelType = "xgboost"
)

// RunStatus represents the current status of a training run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunTrigger records what started a training run
type RunTrigger string

const (
	RunTriggerCLI      RunTrigger = "cli"
	RunTriggerSchedule RunTrigger = "schedule"
	RunTriggerQueue    RunTrigger = "queue"
)

// PerformanceMetrics holds held-out scores for one model
type PerformanceMetrics struct {
	Accuracy float64 `json:"accuracy"`
	F1Macro  float64 `json:"f1_macro"`
}

// TrainingRun is the registry record of one training execution
type TrainingRun struct {
	ID                string                            `json:"id"`
	Status            RunStatus                         `json:"status"`
	Trigger           RunTrigger                        `json:"trigger"`
	BestModel         ModelType                         `json:"best_model,omitempty"`
	BestParams        map[string]interface{}            `json:"best_params,omitempty"`
	Metrics           map[ModelType]*PerformanceMetrics `json:"metrics,omitempty"`
	Classes           []string                          `json:"classes,omitempty"`
	FeatureCount      int                               `json:"feature_count"`
	TrainSamples      int                               `json:"train_samples"`
	TestSamples       int                               `json:"test_samples"`
	ModelArtifactPath string                            `json:"model_artifact_path,omitempty"`
	ReportDir         string                            `json:"report_dir,omitempty"`
	ErrorMessage      string                            `json:"error_message,omitempty"`
	StartedAt         time.Time                         `json:"started_at"`
	CompletedAt       *time.Time                        `json:"completed_at,omitempty"`
}

// Validate checks if the TrainingRun can be persisted
func (r *TrainingRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch r.Status {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed:
	default:
		return fmt.Errorf("invalid run status: %q", r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	return nil
}

// Finish stamps the run as completed, or failed when err is non-nil
func (r *TrainingRun) Finish(err error) {
	now := time.Now().UTC()
	r.CompletedAt = &now
	if err != nil {
		r.Status = RunStatusFailed
		r.ErrorMessage = err.Error()
		return
	}
	r.Status = RunStatusCompleted
}
