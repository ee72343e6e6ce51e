package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/metadatastore"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/queue"
)

const publishTimeout = 2 * time.Second

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "AI Threat Detection API is running"})
}

// handlePredict classifies one flat JSON record
func (s *Server) handlePredict(c *gin.Context) {
	var record map[string]interface{}
	if err := c.ShouldBindJSON(&record); err != nil {
		s.metrics.failures.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	start := time.Now()
	prediction, err := s.predictor.Predict(record)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.failures.WithLabelValues("transform").Inc()
		s.logger.Warn("Prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	model := s.predictor.Algorithm()
	s.metrics.predictions.WithLabelValues(prediction.Label, string(model)).Inc()
	s.metrics.latency.Observe(elapsed.Seconds())

	event := &models.PredictionEvent{
		ID:         uuid.New().String(),
		ThreatType: prediction.Label,
		Confidence: prediction.Confidence,
		Model:      model,
		LatencyMS:  float64(elapsed.Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	}
	s.hub.Broadcast(event)
	s.publish(c.Request.Context(), event)

	c.JSON(http.StatusOK, gin.H{"Threat_Type": prediction.Label})
}

// publish forwards the event to Redis. Failures never fail the request.
func (s *Server) publish(ctx context.Context, event *models.PredictionEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishPrediction(ctx, event); err != nil {
		s.logger.Warn("Failed to publish prediction", zap.String("id", event.ID), zap.Error(err))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleReady reports not ready when a configured queue is unreachable
func (s *Server) handleReady(c *gin.Context) {
	if s.jobs != nil {
		if err := s.jobs.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleListModels(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry not configured"})
		return
	}
	runs, err := s.registry.ListRuns()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"serving": gin.H{
			"run_id":          s.predictor.RunID(),
			"model":           s.predictor.Algorithm(),
			"classes":         s.predictor.Classes(),
			"feature_columns": s.predictor.FeatureColumns(),
		},
		"runs": runs,
	})
}

func (s *Server) handleGetModel(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry not configured"})
		return
	}
	run, err := s.registry.GetRun(c.Param("id"))
	if errors.Is(err, metadatastore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "training run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// handleSubmitTraining enqueues a retraining job for the worker
func (s *Server) handleSubmitTraining(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue not configured"})
		return
	}

	var req models.TrainJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
			return
		}
	}

	job, err := s.jobs.EnqueueTraining(c.Request.Context(), &req)
	if err != nil {
		s.logger.Error("Failed to enqueue training job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("Training job queued", zap.String("job_id", job.ID), zap.String("reason", job.Reason))
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleGetTraining(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue not configured"})
		return
	}
	result, err := s.jobs.GetResult(c.Request.Context(), c.Param("id"))
	if errors.Is(err, queue.ErrResultNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job result not available"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
