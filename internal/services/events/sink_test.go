package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func TestBroadcaster_Publish(t *testing.T) {
	rdb, _ := setupRedis(t)
	ctx := context.Background()
	sid := uuid.New()

	sub := rdb.Subscribe(ctx, Channel(sid))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(rdb, quietLogger)
	require.NoError(t, b.Publish(ctx, sid, Event{Type: "scene_entered", SessionID: sid.String(), GameID: "g"}))

	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "scene_entered", ev.Type)
		assert.Equal(t, "g", ev.GameID)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for published event")
	}
}

func TestSink_DeliversToQueueAndChannel(t *testing.T) {
	rdb, _ := setupRedis(t)
	ctx := context.Background()
	sid := uuid.New()

	sub := rdb.Subscribe(ctx, Channel(sid))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	q := queue.NewAnalyticsQueue(queue.NewClientFromRedis(rdb, quietLogger))
	sink := NewSink(NewBroadcaster(rdb, quietLogger), q, 8, quietLogger)

	sink.TrackEvent("session_started", map[string]any{"game_id": "g", "session_id": sid.String()})
	sink.TrackEvent("render_fallback", map[string]any{"scene_id": "broken"})

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, sink.Close(closeCtx))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "session_started")
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for SSE event")
	}

	// Events after Close are dropped, never block.
	sink.TrackEvent("late", nil)
	assert.Equal(t, int64(1), sink.Dropped())
}

func TestSink_DropsWhenFull(t *testing.T) {
	// No delivery goroutine, so the buffer fills and drops.
	sink := &Sink{
		logger: quietLogger,
		clock:  time.Now,
		events: make(chan *queuePkg.AnalyticsEvent, 1),
		done:   make(chan struct{}),
	}

	sink.TrackEvent("a", nil)
	sink.TrackEvent("b", nil)
	sink.TrackEvent("c", nil)
	assert.Equal(t, int64(2), sink.Dropped())
}
