package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
	// Processed event ids are remembered this long so a re-queued event is
	// counted once.
	seenTTL = 24 * time.Hour
)

// Worker drains the analytics queue and aggregates per-game counters.
type Worker struct {
	id          string
	queue       *queue.AnalyticsQueue
	aggregator  *Aggregator
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(q *queue.AnalyticsQueue, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       q,
		aggregator:  NewAggregator(redisClient),
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.id
}

// Start processes events until Stop is called
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if _, err := w.processNext(); err != nil {
				w.log.Error("Error processing analytics event", "error", err, "worker_id", w.id)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNext pulls the next event and aggregates it. It reports whether an
// event was handled.
func (w *Worker) processNext() (bool, error) {
	ev, err := w.queue.BlockingDequeue(w.ctx, workerTimeout)
	if err != nil {
		return false, fmt.Errorf("failed to dequeue analytics event: %w", err)
	}
	if ev == nil {
		// Queue is empty or timeout occurred
		return false, nil
	}
	return true, w.process(ev)
}

func (w *Worker) process(ev *queuePkg.AnalyticsEvent) error {
	first, err := w.markSeen(ev.EventID)
	if err != nil {
		return fmt.Errorf("failed to record event id: %w", err)
	}
	if !first {
		w.log.Debug("Skipping duplicate analytics event", "worker_id", w.id, "event_id", ev.EventID)
		return nil
	}

	if err := w.aggregator.Add(w.ctx, ev); err != nil {
		return fmt.Errorf("failed to aggregate %s: %w", ev.Type, err)
	}

	w.log.Debug("Aggregated analytics event",
		"worker_id", w.id,
		"event_type", ev.Type,
		"game_id", ev.GameID,
		"session_id", ev.SessionID,
	)
	return nil
}

// markSeen returns true the first time an event id is seen.
func (w *Worker) markSeen(eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	return w.redisClient.SetNX(w.ctx, "analytics:seen:"+eventID, w.id, seenTTL).Result()
}
