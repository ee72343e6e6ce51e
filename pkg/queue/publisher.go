package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

const (
	// PredictionChannel carries every served prediction
	PredictionChannel = "sentinel:predictions"
	recentKey         = "sentinel:predictions:recent"
	defaultMaxRecent  = 100
)

// Publisher fans predictions out over Redis pub/sub and keeps a bounded
// list of the most recent ones
type Publisher struct {
	redis     *redis.Client
	maxRecent int64
}

// NewPublisher creates a prediction publisher on an existing connection
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{redis: client, maxRecent: defaultMaxRecent}
}

// PublishPrediction broadcasts the event and records it as recent
func (p *Publisher) PublishPrediction(ctx context.Context, event *models.PredictionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	pipe := p.redis.TxPipeline()
	pipe.Publish(ctx, PredictionChannel, data)
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, p.maxRecent-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish prediction: %w", err)
	}
	return nil
}

// Recent returns up to n recent predictions, newest first
func (p *Publisher) Recent(ctx context.Context, n int64) ([]*models.PredictionEvent, error) {
	if n <= 0 {
		return []*models.PredictionEvent{}, nil
	}
	items, err := p.redis.LRange(ctx, recentKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent predictions: %w", err)
	}

	events := make([]*models.PredictionEvent, 0, len(items))
	for _, item := range items {
		var event models.PredictionEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}
