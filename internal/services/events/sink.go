package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-engine/internal/services/queue"
	"github.com/jwebster45206/scene-engine/pkg/analytics"
	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
)

const deliveryTimeout = 2 * time.Second

// Sink is the analytics collaborator used by the API. TrackEvent never
// blocks: events go into a bounded buffer and a background goroutine
// publishes them for SSE and queues them for the analytics worker. When the
// buffer is full the event is dropped.
type Sink struct {
	broadcaster *Broadcaster
	queue       *queue.AnalyticsQueue
	logger      *slog.Logger
	clock       func() time.Time

	events  chan *queuePkg.AnalyticsEvent
	dropped atomic.Int64

	closeOnce sync.Once
	mu        sync.RWMutex // guards closed against concurrent sends
	closed    bool
	done      chan struct{}
}

var _ analytics.Tracker = (*Sink)(nil)

// NewSink starts the delivery goroutine. Either broadcaster or q may be nil.
func NewSink(b *Broadcaster, q *queue.AnalyticsQueue, buffer int, logger *slog.Logger) *Sink {
	if buffer < 1 {
		buffer = 1
	}
	s := &Sink{
		broadcaster: b,
		queue:       q,
		logger:      logger,
		clock:       time.Now,
		events:      make(chan *queuePkg.AnalyticsEvent, buffer),
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) TrackEvent(eventType string, data map[string]any) {
	ev := queuePkg.NewAnalyticsEvent(eventType, data, s.clock())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.events <- ev:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("Analytics buffer full, event dropped", "event_type", eventType, "dropped_total", n)
	}
}

// Dropped returns how many events were discarded.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be delivered
// or for ctx to expire.
func (s *Sink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for ev := range s.events {
		s.deliver(ev)
	}
}

func (s *Sink) deliver(ev *queuePkg.AnalyticsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if s.broadcaster != nil && ev.SessionID != uuid.Nil {
		err := s.broadcaster.Publish(ctx, ev.SessionID, Event{
			Type:      ev.Type,
			SessionID: ev.SessionID.String(),
			GameID:    ev.GameID,
			Data:      ev.Data,
			At:        ev.RecordedAt,
		})
		if err != nil {
			s.logger.Debug("Analytics publish failed", "event_type", ev.Type, "error", err)
		}
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, ev); err != nil {
			s.logger.Warn("Analytics enqueue failed", "event_type", ev.Type, "error", err)
		}
	}
}
