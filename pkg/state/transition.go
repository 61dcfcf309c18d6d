package state

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSessionEnded  = errors.New("session has already ended")
	ErrSceneMismatch = errors.New("event does not belong to the active scene")
	ErrNegativeScore = errors.New("score cannot decrease")
)

// EventKind names a session transition.
type EventKind string

const (
	SceneEntered     EventKind = "scene_entered"
	SceneCompleted   EventKind = "scene_completed"
	SceneRetried     EventKind = "scene_retried"
	SessionCompleted EventKind = "session_completed"
	SessionFailed    EventKind = "session_failed"
)

// Event is the input to Apply.
type Event struct {
	Kind        EventKind
	SceneID     string
	Score       int  // Points earned, never negative
	MaxScore    int  // Points that were available
	Attempted   bool // Counts toward AttemptsPerScene and SceneAttempts
	Graded      int  // Questions graded by this completion
	Correct     int  // Of which answered correctly
	Answers     []string
	TimeSpentMs int64
	Reason      string
	At          time.Time
}

// Apply returns the state that results from applying e to s. s is not
// modified. Score only ever grows: an event carrying a negative score is
// rejected.
func Apply(s *SessionState, e Event) (*SessionState, error) {
	if s == nil {
		return nil, errors.New("session state is nil")
	}
	if s.IsEnded() {
		return nil, fmt.Errorf("%w: %s", ErrSessionEnded, s.Status)
	}
	if e.Score < 0 || e.MaxScore < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeScore, e.Score)
	}

	next := s.Clone()
	next.UpdatedAt = e.At

	switch e.Kind {
	case SceneEntered:
		if e.SceneID == "" {
			return nil, errors.New("scene entered without a scene id")
		}
		next.CurrentSceneID = e.SceneID
		next.SceneEnteredAt = e.At
		next.SceneAttempts = 0

	case SceneRetried:
		if e.SceneID != s.CurrentSceneID {
			return nil, fmt.Errorf("%w: %q is not %q", ErrSceneMismatch, e.SceneID, s.CurrentSceneID)
		}
		next.AttemptsPerScene[e.SceneID]++
		next.SceneAttempts++
		next.TimeSpentMs += max(e.TimeSpentMs, 0)
		if e.Answers != nil {
			next.Answers[e.SceneID] = append([]string(nil), e.Answers...)
		}
		next.SceneEnteredAt = e.At

	case SceneCompleted:
		if e.SceneID != s.CurrentSceneID {
			return nil, fmt.Errorf("%w: %q is not %q", ErrSceneMismatch, e.SceneID, s.CurrentSceneID)
		}
		if e.Attempted {
			next.AttemptsPerScene[e.SceneID]++
			next.SceneAttempts++
		}
		next.Score += e.Score
		next.MaxScore += e.MaxScore
		next.TimeSpentMs += max(e.TimeSpentMs, 0)
		next.QuestionsAnswered += e.Graded
		next.CorrectAnswers += e.Correct
		if e.Answers != nil {
			next.Answers[e.SceneID] = append([]string(nil), e.Answers...)
		}
		next.ScenesCompleted = append(next.ScenesCompleted, e.SceneID)

	case SessionCompleted:
		next.Status = StatusCompleted
		if e.SceneID != "" {
			next.CurrentSceneID = e.SceneID
		}

	case SessionFailed:
		next.Status = StatusFailed
		next.FailureReason = e.Reason

	default:
		return nil, fmt.Errorf("unknown session event %q", e.Kind)
	}

	return next, nil
}
