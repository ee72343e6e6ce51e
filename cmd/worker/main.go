// Worker consumes retraining jobs from the Redis queue and records their
// results for the API
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/config"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/logging"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/metadatastore"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/mlmodel"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/queue"
	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/storage"
)

const dequeueTimeout = 5 * time.Second

// Worker represents a retraining job worker
type Worker struct {
	id          string
	jobs        *queue.JobQueue
	service     *mlmodel.Service
	concurrency int
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(jobs *queue.JobQueue, service *mlmodel.Service, concurrency int, logger *zap.Logger) *Worker {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("worker-%s-%d", hostname, os.Getpid())
	return &Worker{
		id:          id,
		jobs:        jobs,
		service:     service,
		concurrency: concurrency,
		logger:      logger.With(zap.String("worker_id", id)),
	}
}

// Start pulls jobs until ctx is cancelled, then waits for running jobs
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker starting", zap.Int("concurrency", w.concurrency))
	sem := make(chan struct{}, w.concurrency)
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down...")
			return
		case sem <- struct{}{}:
		}

		job, err := w.jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			<-sem
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			w.logger.Error("Error popping from queue", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			<-sem
			continue
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-sem }()
			w.processJob(ctx, job)
		}()
	}
}

// processJob retrains and stores the job result
func (w *Worker) processJob(ctx context.Context, job *models.TrainJob) {
	logger := w.logger.With(zap.String("job_id", job.ID))
	logger.Info("Processing training job", zap.String("reason", job.Reason))

	result := &models.TrainJobResult{
		JobID:    job.ID,
		Status:   models.JobStatusCompleted,
		WorkerID: w.id,
	}
	outcome, err := w.service.Train(ctx, models.RunTriggerQueue)
	if outcome != nil {
		result.RunID = outcome.Run.ID
	}
	if err != nil {
		result.Status = models.JobStatusFailed
		result.ErrorMessage = err.Error()
	}
	result.CompletedAt = time.Now().UTC()

	// store the result even when shutdown interrupted the run
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.jobs.SetResult(storeCtx, result); err != nil {
		logger.Error("Failed to store result", zap.Error(err))
		return
	}

	if result.Status == models.JobStatusCompleted {
		logger.Info("Job completed successfully", zap.String("run_id", result.RunID))
	} else {
		logger.Error("Job failed", zap.String("error", result.ErrorMessage))
	}
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.RedisURL == "" {
		logger.Fatal("REDIS_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, err := queue.NewJobQueue(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer jobs.Close()

	store, err := storage.NewArtifactStore(cfg.Data.ArtifactDir)
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}

	var registry metadatastore.MetadataStore
	if cfg.DatabasePath != "" {
		sqlite, err := metadatastore.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			logger.Fatal("Failed to open metadata store", zap.Error(err))
		}
		defer sqlite.Close()
		registry = sqlite
	}

	worker := NewWorker(jobs, mlmodel.NewService(cfg, store, registry, logger), cfg.WorkerConcurrency, logger)
	worker.Start(ctx)
	logger.Info("Worker stopped")
}
