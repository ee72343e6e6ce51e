package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

const (
	defaultQueueName  = "sentinel:jobs:train"
	defaultResultName = "sentinel:results"
	notificationName  = "sentinel:notifications:job"
	resultTTL         = time.Hour
)

// ErrResultNotFound is returned when a job has no stored result yet
var ErrResultNotFound = errors.New("job result not found")

// JobQueue distributes retraining jobs to workers via Redis
type JobQueue struct {
	redis      *redis.Client
	queueName  string
	resultName string
}

// NewClient connects to Redis. Bare host:port addresses are accepted.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewJobQueue connects to Redis and creates a job queue
func NewJobQueue(ctx context.Context, redisURL string) (*JobQueue, error) {
	client, err := NewClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return NewJobQueueFromClient(client), nil
}

// NewJobQueueFromClient creates a job queue on an existing connection
func NewJobQueueFromClient(client *redis.Client) *JobQueue {
	return &JobQueue{
		redis:      client,
		queueName:  defaultQueueName,
		resultName: defaultResultName,
	}
}

// Client returns the underlying Redis connection
func (q *JobQueue) Client() *redis.Client {
	return q.redis
}

// EnqueueTraining pushes a retraining job onto the queue
func (q *JobQueue) EnqueueTraining(ctx context.Context, req *models.TrainJobRequest) (*models.TrainJob, error) {
	job := &models.TrainJob{
		ID:          uuid.New().String(),
		Status:      models.JobStatusQueued,
		SubmittedAt: time.Now().UTC(),
	}
	if req != nil {
		job.Reason = req.Reason
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.redis.RPush(ctx, q.queueName, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job, nil
}

// Dequeue blocks up to timeout for the next job. It returns nil, nil when the
// timeout expires with the queue empty.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.TrainJob, error) {
	result, err := q.redis.BLPop(ctx, timeout, q.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var job models.TrainJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to parse job message: %w", err)
	}
	return &job, nil
}

// SetResult stores a job result for an hour and notifies subscribers
func (q *JobQueue) SetResult(ctx context.Context, result *models.TrainJobResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := fmt.Sprintf("%s:%s", q.resultName, result.JobID)
	if err := q.redis.Set(ctx, key, data, resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	channel := fmt.Sprintf("%s:%s", notificationName, result.JobID)
	if err := q.redis.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// GetResult returns the stored result of a job
func (q *JobQueue) GetResult(ctx context.Context, jobID string) (*models.TrainJobResult, error) {
	key := fmt.Sprintf("%s:%s", q.resultName, jobID)
	data, err := q.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get job result: %w", err)
	}

	var result models.TrainJobResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Length returns the number of waiting jobs
func (q *JobQueue) Length(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, q.queueName).Result()
}

// Ping checks the Redis connection
func (q *JobQueue) Ping(ctx context.Context) error {
	return q.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (q *JobQueue) Close() error {
	return q.redis.Close()
}
