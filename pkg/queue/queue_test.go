package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

func newTestQueue(t *testing.T) (*JobQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewJobQueue(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, mr
}

func TestEnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueTraining(ctx, &models.TrainJobRequest{Reason: "drift"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "drift", got.Reason)

	length, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestDequeueOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := q.EnqueueTraining(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		job, err := q.Dequeue(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, id, job.ID)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	job, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeueMalformed(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Push(defaultQueueName, "not json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background(), time.Second)
	assert.Error(t, err)
}

func TestResults(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	_, err := q.GetResult(ctx, "job-1")
	assert.ErrorIs(t, err, ErrResultNotFound)

	sub := q.Client().Subscribe(ctx, fmt.Sprintf("%s:%s", notificationName, "job-1"))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	result := &models.TrainJobResult{
		JobID:       "job-1",
		Status:      models.JobStatusCompleted,
		RunID:       "run-9",
		WorkerID:    "worker-test-1",
		CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, q.SetResult(ctx, result))

	got, err := q.GetResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "run-9", got.RunID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "run-9")
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}

	mr.FastForward(2 * time.Hour)
	_, err = q.GetResult(ctx, "job-1")
	assert.ErrorIs(t, err, ErrResultNotFound, "results expire")
}

func TestNewJobQueueUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewJobQueue(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}

func TestPublisher(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	pub := NewPublisher(q.Client())
	pub.maxRecent = 3

	events, err := pub.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.PublishPrediction(ctx, &models.PredictionEvent{
			ID:         fmt.Sprintf("p-%d", i),
			ThreatType: "DDoS",
			Model:      models.ModelTypeRandomForest,
			Timestamp:  time.Now().UTC(),
		}))
	}

	events, err = pub.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "p-4", events[0].ID)
	assert.Equal(t, "p-2", events[2].ID)

	events, err = pub.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
