package models

import "time"

// PredictionEvent describes one prediction served by the API
type PredictionEvent struct {
	ID         string    `json:"id"`
	ThreatType string    `json:"threat_type"`
	Confidence float64   `json:"confidence"`
	Model      ModelType `json:"model"`
	LatencyMS  float64   `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
