package models

import "time"

// JobStatus represents the current status of a queued retraining job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// TrainJobRequest represents a request to retrain the models
type TrainJobRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TrainJob is a retraining request waiting on the queue
type TrainJob struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TrainJobResult represents the outcome of a processed retraining job
type TrainJobResult struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	RunID        string    `json:"run_id,omitempty"`
	WorkerID     string    `json:"worker_id,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}
