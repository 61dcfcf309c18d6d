package worker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-engine/pkg/analytics"
	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
)

// Counters for events without a game id are kept under this game.
const unknownGame = "_unknown"

// CountsKey is the hash of event-type counters for a game.
func CountsKey(gameID string) string {
	return "analytics:counts:" + gameID
}

// ScoresKey is the hash of completed-session score totals for a game.
func ScoresKey(gameID string) string {
	return "analytics:scores:" + gameID
}

// Aggregator folds analytics events into Redis hashes.
type Aggregator struct {
	rdb *redis.Client
}

func NewAggregator(rdb *redis.Client) *Aggregator {
	return &Aggregator{rdb: rdb}
}

// Add counts the event and, for completed sessions, adds its score.
func (a *Aggregator) Add(ctx context.Context, ev *queuePkg.AnalyticsEvent) error {
	gameID := ev.GameID
	if gameID == "" {
		gameID = unknownGame
	}

	pipe := a.rdb.TxPipeline()
	pipe.HIncrBy(ctx, CountsKey(gameID), ev.Type, 1)

	if ev.Type == analytics.EventSessionCompleted {
		pipe.HIncrBy(ctx, ScoresKey(gameID), "sessions", 1)
		pipe.HIncrBy(ctx, ScoresKey(gameID), "score", intField(ev.Data, "score"))
		pipe.HIncrBy(ctx, ScoresKey(gameID), "total_score", intField(ev.Data, "total_score"))
		pipe.HIncrBy(ctx, ScoresKey(gameID), "time_spent_ms", intField(ev.Data, "time_spent_ms"))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}
	return nil
}

// Counts returns the event-type counters for a game.
func (a *Aggregator) Counts(ctx context.Context, gameID string) (map[string]int64, error) {
	raw, err := a.rdb.HGetAll(ctx, CountsKey(gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s is not a number: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// intField reads a numeric value that went through JSON, so it may be a
// float64.
func intField(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
