package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalyticsEvent is one tracked event as it travels through the analytics
// queue to the worker.
type AnalyticsEvent struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	GameID    string         `json:"game_id,omitempty"`
	SessionID uuid.UUID      `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// NewAnalyticsEvent builds a queue message from a tracker call. The game and
// session ids are lifted out of data when present.
func NewAnalyticsEvent(eventType string, data map[string]any, at time.Time) *AnalyticsEvent {
	ev := &AnalyticsEvent{
		EventID:    uuid.New().String(),
		Type:       eventType,
		Data:       data,
		RecordedAt: at,
	}
	if v, ok := data["game_id"].(string); ok {
		ev.GameID = v
	}
	if v, ok := data["session_id"].(string); ok {
		if id, err := uuid.Parse(v); err == nil {
			ev.SessionID = id
		}
	}
	return ev
}

// MarshalJSON writes a nil session id as an empty string.
func (e *AnalyticsEvent) MarshalJSON() ([]byte, error) {
	type Alias AnalyticsEvent
	sid := ""
	if e.SessionID != uuid.Nil {
		sid = e.SessionID.String()
	}
	return json.Marshal(&struct {
		SessionID string `json:"session_id,omitempty"`
		*Alias
	}{
		SessionID: sid,
		Alias:     (*Alias)(e),
	})
}

func (e *AnalyticsEvent) UnmarshalJSON(data []byte) error {
	type Alias AnalyticsEvent
	aux := &struct {
		SessionID string `json:"session_id"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.SessionID == "" {
		e.SessionID = uuid.Nil
		return nil
	}

	id, err := uuid.Parse(aux.SessionID)
	if err != nil {
		return err
	}
	e.SessionID = id
	return nil
}

// ToJSON converts the event to JSON bytes for Redis
func (e *AnalyticsEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON bytes
func FromJSON(data []byte) (*AnalyticsEvent, error) {
	var ev AnalyticsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
