package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/jwebster45206/scene-engine/pkg/state"
	"github.com/jwebster45206/scene-engine/pkg/storage"
)

const quizJSON = `{
	"gameId": "fire-safety",
	"metadata": {"title": "Fire Safety", "duration": 5},
	"scenes": [
		{"id": "q1", "type": "quiz", "question": "Exit?", "options": [
			{"id": "a", "text": "Elevator"},
			{"id": "b", "text": "Stairs", "isCorrect": true}
		], "navigation": {"next": "end"}},
		{"id": "end", "type": "summary"}
	]
}`

const resourceYAML = `
gameId: handbook
metadata:
  title: Handbook
scenes:
  - id: read
    type: resource
    body: Read the handbook.
`

func setupTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	dataDir := t.TempDir()
	games := filepath.Join(dataDir, "games")
	if err := os.MkdirAll(games, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"fire-safety.json": quizJSON,
		"handbook.yaml":    resourceYAML,
		"broken.json":      `{"gameId": "broken", "scenes": []}`,
		"notes.txt":        "not a manifest",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(games, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rs, err := NewRedisStorage("redis://"+mr.Addr(), dataDir, time.Minute, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() {
		rs.Close()
		mr.Close()
	})
	return rs, mr
}

func TestRedisStorage_Ping(t *testing.T) {
	rs, mr := setupTestStorage(t)
	ctx := context.Background()

	if err := rs.Ping(ctx); err != nil {
		t.Fatalf("Unexpected ping error: %v", err)
	}
	mr.Close()
	if err := rs.Ping(ctx); err == nil {
		t.Error("Expected ping error after redis shut down")
	}
}

func TestRedisStorage_SessionRoundTrip(t *testing.T) {
	rs, mr := setupTestStorage(t)
	ctx := context.Background()

	s := state.NewSessionState("fire-safety", time.Now())
	s.CurrentSceneID = "q1"
	s.Score = 10
	s.ScenesCompleted = append(s.ScenesCompleted, "intro")
	s.AttemptsPerScene["q1"] = 2

	if err := rs.SaveSession(ctx, s); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	if ttl := mr.TTL("session:" + s.ID.String()); ttl != time.Minute {
		t.Errorf("Expected 1m TTL, got %v", ttl)
	}

	loaded, err := rs.LoadSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected session, got nil")
	}
	if loaded.Score != 10 || loaded.CurrentSceneID != "q1" || loaded.Attempts("q1") != 2 {
		t.Errorf("Loaded session differs: %+v", loaded)
	}

	if err := rs.DeleteSession(ctx, s.ID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	loaded, err = rs.LoadSession(ctx, s.ID)
	if err != nil || loaded != nil {
		t.Errorf("Expected nil, nil after delete; got %v, %v", loaded, err)
	}
}

func TestRedisStorage_SessionExpires(t *testing.T) {
	rs, mr := setupTestStorage(t)
	ctx := context.Background()

	s := state.NewSessionState("fire-safety", time.Now())
	if err := rs.SaveSession(ctx, s); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Minute)

	loaded, err := rs.LoadSession(ctx, s.ID)
	if err != nil || loaded != nil {
		t.Errorf("Expected expired session, got %v, %v", loaded, err)
	}
}

func TestRedisStorage_LoadUnknownSession(t *testing.T) {
	rs, _ := setupTestStorage(t)
	loaded, err := rs.LoadSession(context.Background(), uuid.New())
	if err != nil || loaded != nil {
		t.Errorf("Expected nil, nil; got %v, %v", loaded, err)
	}
}

func TestRedisStorage_ListManifests(t *testing.T) {
	rs, _ := setupTestStorage(t)

	games, err := rs.ListManifests(context.Background())
	if err != nil {
		t.Fatalf("Failed to list manifests: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("Expected 2 valid manifests, got %v", games)
	}
	if games["Fire Safety"] != "fire-safety.json" {
		t.Errorf("Expected Fire Safety -> fire-safety.json, got %v", games)
	}
	if games["Handbook"] != "handbook.yaml" {
		t.Errorf("Expected Handbook -> handbook.yaml, got %v", games)
	}
}

func TestRedisStorage_ListManifests_TopLevelOnly(t *testing.T) {
	rs, _ := setupTestStorage(t)
	ctx := context.Background()

	nested := filepath.Join(rs.gamesDir(), "archive")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	old := `{"gameId": "old-drill", "metadata": {"title": "Old Drill"}, "scenes": [{"id": "end", "type": "summary"}]}`
	if err := os.WriteFile(filepath.Join(nested, "old-drill.json"), []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	games, err := rs.ListManifests(ctx)
	if err != nil {
		t.Fatalf("Failed to list manifests: %v", err)
	}
	if _, ok := games["Old Drill"]; ok {
		t.Errorf("Expected nested manifest to be left out, got %v", games)
	}
	for title, file := range games {
		if _, err := rs.GetManifest(ctx, file); err != nil {
			t.Errorf("Listed game %q (%s) does not load: %v", title, file, err)
		}
	}
}

func TestRedisStorage_GetManifest(t *testing.T) {
	rs, _ := setupTestStorage(t)
	ctx := context.Background()

	m, err := rs.GetManifest(ctx, "handbook.yaml")
	if err != nil {
		t.Fatalf("Failed to get manifest: %v", err)
	}
	if m.GameID != "handbook" || len(m.Scenes) != 1 {
		t.Errorf("Unexpected manifest: %+v", m)
	}

	for _, name := range []string{"missing.json", "../secrets.json", ""} {
		if _, err := rs.GetManifest(ctx, name); !errors.Is(err, storage.ErrManifestNotFound) {
			t.Errorf("Expected ErrManifestNotFound for %q, got %v", name, err)
		}
	}
}

func TestRedisStorage_MissingGamesDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rs, err := NewRedisStorage("localhost:0", t.TempDir(), 0, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Close()

	games, err := rs.ListManifests(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(games) != 0 {
		t.Errorf("Expected empty catalogue, got %v", games)
	}
}
