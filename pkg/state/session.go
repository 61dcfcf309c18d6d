package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/achievement"
)

// Status is the lifecycle stage of a session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// SessionState is one learner's run through a manifest. Only the controller
// mutates it, and only through Apply.
type SessionState struct {
	ID                uuid.UUID           `json:"id"`
	GameID            string              `json:"gameId"`
	ManifestFile      string              `json:"manifestFile,omitempty"` // Catalogue file the session was started from
	Status            Status              `json:"status"`
	CurrentSceneID    string              `json:"currentSceneId"`
	Score             int                 `json:"score"`
	MaxScore          int                 `json:"maxScore"`
	TimeSpentMs       int64               `json:"timeSpentMs"`
	ScenesCompleted   []string            `json:"scenesCompleted"`
	AttemptsPerScene  map[string]int      `json:"attemptsPerScene"`  // Across all visits
	SceneAttempts     int                 `json:"sceneAttempts"`     // On the current visit to CurrentSceneID
	Answers           map[string][]string `json:"answers,omitempty"` // Last submitted answers per scene
	CorrectAnswers    int                 `json:"correctAnswers"`
	QuestionsAnswered int                 `json:"questionsAnswered"`
	FailureReason     string              `json:"failureReason,omitempty"`
	StartedAt         time.Time           `json:"startedAt"`
	SceneEnteredAt    time.Time           `json:"sceneEnteredAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// NewSessionState creates a session positioned before its first scene.
func NewSessionState(gameID string, at time.Time) *SessionState {
	return &SessionState{
		ID:               uuid.New(),
		GameID:           gameID,
		Status:           StatusInProgress,
		ScenesCompleted:  make([]string, 0),
		AttemptsPerScene: make(map[string]int),
		Answers:          make(map[string][]string),
		StartedAt:        at,
		UpdatedAt:        at,
	}
}

// IsEnded reports whether the session has completed or failed.
func (s *SessionState) IsEnded() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Attempts returns the attempts recorded for a scene across every visit. The
// retry policy uses SceneAttempts, which restarts when a scene is entered.
func (s *SessionState) Attempts(sceneID string) int {
	return s.AttemptsPerScene[sceneID]
}

// ScorePercent is score over max score, or 0 when nothing was graded.
func (s *SessionState) ScorePercent() float64 {
	if s.MaxScore <= 0 {
		return 0
	}
	return float64(s.Score) * 100 / float64(s.MaxScore)
}

// Metrics snapshots the session for the achievement evaluator.
func (s *SessionState) Metrics(totalSections int, expected time.Duration, at time.Time) achievement.Metrics {
	return achievement.Metrics{
		Score:             s.Score,
		MaxScore:          s.MaxScore,
		ScorePercent:      s.ScorePercent(),
		TimeSpent:         time.Duration(s.TimeSpentMs) * time.Millisecond,
		ExpectedDuration:  expected,
		CorrectAnswers:    s.CorrectAnswers,
		QuestionsAnswered: s.QuestionsAnswered,
		SectionsCompleted: len(uniqueScenes(s.ScenesCompleted)),
		TotalSections:     totalSections,
		EvaluatedAt:       at,
	}
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	c := *s
	c.ScenesCompleted = append(make([]string, 0, len(s.ScenesCompleted)), s.ScenesCompleted...)
	c.AttemptsPerScene = make(map[string]int, len(s.AttemptsPerScene))
	for k, v := range s.AttemptsPerScene {
		c.AttemptsPerScene[k] = v
	}
	c.Answers = make(map[string][]string, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = append([]string(nil), v...)
	}
	return &c
}

func uniqueScenes(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// GameResults is handed to the host exactly once, when a session completes.
type GameResults struct {
	GameID          string               `json:"gameId"`
	SessionID       uuid.UUID            `json:"sessionId"`
	Score           int                  `json:"score"`
	TotalScore      int                  `json:"totalScore"`
	Percentage      float64              `json:"percentage"`
	TimeSpent       int64                `json:"timeSpent"` // Milliseconds
	ScenesCompleted []string             `json:"scenesCompleted"`
	Achievements    []achievement.Record `json:"achievements,omitempty"`
	CompletedAt     time.Time            `json:"completedAt"`
}
