package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-engine/pkg/playhost"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

// RestartSessionAction starts a fresh session on the suite's game in place of
// reporting scene results.
const RestartSessionAction = "RESTART_SESSION"

// TestSuite is one scripted playthrough, or a sequence of other case files.
type TestSuite struct {
	Name  string     `json:"name"`
	Game  string     `json:"game,omitempty"`  // Catalogue file, e.g. "fire-safety.json"
	Steps []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty"` // Used for sequences (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep reports the active scene's results and checks the outcome.
// Use action: "RESTART_SESSION" to start over with a new session.
type TestStep struct {
	Name         string             `json:"name,omitempty"`
	Action       string             `json:"action,omitempty"`
	Results      state.SceneResults `json:"results"`
	Expectations Expectations       `json:"expect"`
}

// Expectations defines what to check after a step executes. Unset fields are
// not checked.
type Expectations struct {
	HTTPStatus *int `json:"http_status,omitempty"` // Defaults to 200

	// NextStep
	Step         *string `json:"step,omitempty"` // enter, retry or complete
	NextScene    *string `json:"next_scene,omitempty"`
	AttemptsLeft *int    `json:"attempts_left,omitempty"`
	QuizCorrect  *bool   `json:"quiz_correct,omitempty"`
	// Server-graded assessment outcome
	AssessmentPassed *bool `json:"assessment_passed,omitempty"`

	// SessionState
	Status          *string  `json:"status,omitempty"`
	CurrentScene    *string  `json:"current_scene,omitempty"`
	Score           *int     `json:"score,omitempty"`
	MaxScore        *int     `json:"max_score,omitempty"`
	ScenesCompleted []string `json:"scenes_completed,omitempty"` // Exact order

	// Achievement ids that must be earned after the step
	Achievements []string `json:"achievements,omitempty"`

	// Event types that must arrive on the session's event stream
	Events []string `json:"events,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName  string
	StepName  string
	Success   bool
	Error     error
	Duration  time.Duration
	IsRestart bool

	// What the API answered; Step and SceneID are empty when it refused.
	HTTPStatus int
	Step       playhost.StepKind
	SceneID    string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Session  uuid.UUID // Session in play when the suite ended

	// Read back once the steps have run; nil or empty if that failed.
	Final        *state.SessionState
	Achievements []string
}
