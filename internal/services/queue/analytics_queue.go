package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
)

// AnalyticsQueueKey is the Redis list analytics events are queued on.
const AnalyticsQueueKey = "analytics-events"

// AnalyticsQueue is a FIFO of analytics events shared by the API and workers.
type AnalyticsQueue struct {
	client *Client
}

func NewAnalyticsQueue(client *Client) *AnalyticsQueue {
	return &AnalyticsQueue{client: client}
}

// Enqueue appends an event to the queue
func (q *AnalyticsQueue) Enqueue(ctx context.Context, ev *queuePkg.AnalyticsEvent) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize analytics event: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, AnalyticsQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue analytics event: %w", err)
	}
	return nil
}

// Dequeue removes and returns the next event. Returns nil if the queue is empty.
func (q *AnalyticsQueue) Dequeue(ctx context.Context) (*queuePkg.AnalyticsEvent, error) {
	result, err := q.client.rdb.LPop(ctx, AnalyticsQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue analytics event: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for an event. It returns nil, nil when
// the timeout elapses or ctx is cancelled.
func (q *AnalyticsQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queuePkg.AnalyticsEvent, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, AnalyticsQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue analytics event: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

// Depth returns the number of queued events
func (q *AnalyticsQueue) Depth(ctx context.Context) (int, error) {
	n, err := q.client.rdb.LLen(ctx, AnalyticsQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get analytics queue depth: %w", err)
	}
	return int(n), nil
}

func parse(raw string) (*queuePkg.AnalyticsEvent, error) {
	ev, err := queuePkg.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse analytics event: %w", err)
	}
	return ev, nil
}
