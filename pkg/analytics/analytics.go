package analytics

import (
	"log/slog"
	"sync"
)

// Event types emitted by the scene engine.
const (
	EventSessionStarted     = "session_started"
	EventSceneEntered       = "scene_entered"
	EventSceneCompleted     = "scene_completed"
	EventSceneRetried       = "scene_retried"
	EventSessionCompleted   = "session_completed"
	EventSessionFailed      = "session_failed"
	EventQuizSubmitted      = "quiz_submitted"
	EventDialogueChoice     = "dialogue_choice"
	EventAchievementAwarded = "achievement_awarded"
	EventRenderFallback     = "render_fallback"
)

// Tracker is the analytics collaborator. Calls are fire-and-forget: the
// engine never waits on delivery and never inspects a result.
type Tracker interface {
	TrackEvent(eventType string, data map[string]any)
}

// TrackerFunc adapts a plain function to Tracker.
type TrackerFunc func(eventType string, data map[string]any)

func (f TrackerFunc) TrackEvent(eventType string, data map[string]any) {
	f(eventType, data)
}

// Nop discards every event.
type Nop struct{}

func (Nop) TrackEvent(string, map[string]any) {}

// Safe wraps t so that a nil tracker is a no-op and a panicking tracker
// cannot interrupt the caller.
func Safe(t Tracker, logger *slog.Logger) Tracker {
	if t == nil {
		return Nop{}
	}
	if _, ok := t.(safeTracker); ok {
		return t
	}
	if logger == nil {
		logger = slog.Default()
	}
	return safeTracker{next: t, logger: logger}
}

type safeTracker struct {
	next   Tracker
	logger *slog.Logger
}

func (s safeTracker) TrackEvent(eventType string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Analytics tracker panicked, event dropped", "event_type", eventType, "panic", r)
		}
	}()
	s.next.TrackEvent(eventType, data)
}

// Event is a tracked event as seen by a Recorder.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Recorder keeps every event in memory. Used by tests and the console player.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) TrackEvent(eventType string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Type: eventType, Data: data})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Count returns how many events of eventType were recorded.
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
