package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-engine/internal/config"
	"github.com/jwebster45206/scene-engine/internal/logger"
	"github.com/jwebster45206/scene-engine/internal/services/queue"
	"github.com/jwebster45206/scene-engine/pkg/analytics"
	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
)

// Enqueues the analytics trail of one made-up session so the worker has
// something to aggregate:
//
//	test-enqueue [game-id]
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	client, err := queue.NewClient(cfg.RedisURL, logger.Setup(cfg))
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()
	q := queue.NewAnalyticsQueue(client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println("Connected to Redis successfully!")

	gameID := "fire-safety"
	if len(os.Args) > 1 {
		gameID = os.Args[1]
	}
	sessionID := uuid.New().String()
	base := func(extra map[string]any) map[string]any {
		data := map[string]any{"game_id": gameID, "session_id": sessionID}
		for k, v := range extra {
			data[k] = v
		}
		return data
	}

	trail := []struct {
		eventType string
		data      map[string]any
	}{
		{analytics.EventSessionStarted, base(nil)},
		{analytics.EventSceneEntered, base(map[string]any{"scene_id": "intro", "scene_type": "dialogue"})},
		{analytics.EventSceneCompleted, base(map[string]any{"scene_id": "intro", "score": 0, "time_spent_ms": 4200})},
		{analytics.EventSceneEntered, base(map[string]any{"scene_id": "exit-quiz", "scene_type": "quiz"})},
		{analytics.EventQuizSubmitted, base(map[string]any{"scene_id": "exit-quiz", "attempt": 1, "correct": true})},
		{analytics.EventSceneCompleted, base(map[string]any{"scene_id": "exit-quiz", "score": 10, "time_spent_ms": 8100})},
		{analytics.EventSessionCompleted, base(map[string]any{"score": 10, "total_score": 10, "time_spent_ms": 12300, "scenes_completed": 2})},
	}

	start := time.Now()
	for i, e := range trail {
		ev := queuePkg.NewAnalyticsEvent(e.eventType, e.data, start.Add(time.Duration(i)*time.Second))
		if err := q.Enqueue(ctx, ev); err != nil {
			log.Fatal("Failed to enqueue event:", err)
		}
		fmt.Printf("Enqueued %s (%s)\n", ev.Type, ev.EventID)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}

	fmt.Printf("\nQueue depth: %d events for session %s\n", depth, sessionID)
	fmt.Println("Now start the worker to aggregate them:")
	fmt.Println("   Run: go run cmd/worker/main.go")
}
