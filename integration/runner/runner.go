package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes scripted playthroughs against a running scene-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	GameOverride      string // If set, overrides the game for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// play is the session a suite is currently driving.
type play struct {
	game    string
	session uuid.UUID
	stream  *EventStream
}

func (p *play) close() {
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	p := &play{game: suite.Game}
	if r.GameOverride != "" {
		p.game = r.GameOverride
	}
	defer p.close()

	if err := r.startPlay(ctx, p); err != nil {
		result.Error = fmt.Errorf("failed to start session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = p.session

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, p, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)
		result.Session = p.session

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	r.readOutcome(ctx, p, &result)
	result.Duration = time.Since(start)
	return result, result.Error
}

// readOutcome records where the suite left its session. A failed read is
// logged and leaves the outcome empty; it does not fail the suite.
func (r *Runner) readOutcome(ctx context.Context, p *play, result *TestRunResult) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	s, err := GetSession(ctx, r.Client, r.BaseURL, p.session)
	if err != nil {
		r.Logger("    could not read final session: %v", err)
		return
	}
	result.Final = s

	earned, err := r.earned(ctx, p)
	if err != nil {
		r.Logger("    could not read achievements: %v", err)
		return
	}
	result.Achievements = earned
}

func (r *Runner) earned(ctx context.Context, p *play) ([]string, error) {
	records, err := GetAchievements(ctx, r.Client, r.BaseURL, p.session)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// startPlay starts a session on the game and subscribes to its events.
func (r *Runner) startPlay(ctx context.Context, p *play) error {
	p.close()
	resp, err := StartSession(ctx, r.Client, r.BaseURL, p.game)
	if err != nil {
		return err
	}
	p.session = resp.Session.ID

	stream, err := OpenEventStream(ctx, r.BaseURL, p.session)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}
	p.stream = stream
	return nil
}

// runStep executes a single step and checks its expectations
func (r *Runner) runStep(ctx context.Context, p *play, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if step.Action == RestartSessionAction {
		result.IsRestart = true
		if err := r.startPlay(ctx, p); err != nil {
			result.Error = fmt.Errorf("failed to restart session: %w", err)
		} else {
			result.Error = r.checkSession(ctx, p, step.Expectations)
		}
		result.Success = result.Error == nil
		result.Duration = time.Since(start)
		return result
	}
	if step.Action != "" {
		result.Error = fmt.Errorf("unknown action %q", step.Action)
		result.Duration = time.Since(start)
		return result
	}

	mark := p.stream.Mark()
	resp, err := CompleteScene(ctx, r.Client, r.BaseURL, p.session, step.Results)
	var apiErr *APIError
	switch {
	case resp != nil:
		result.HTTPStatus = http.StatusOK
		result.Step = resp.Kind
		result.SceneID = resp.SceneID
	case errors.As(err, &apiErr):
		result.HTTPStatus = apiErr.Status
	}
	if err := checkStatus(step.Expectations, err); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if resp != nil {
		err = checkStep(step.Expectations, resp)
	}
	if err == nil {
		err = r.checkSession(ctx, p, step.Expectations)
	}
	if err == nil && len(step.Expectations.Events) > 0 {
		err = p.stream.WaitFor(ctx, mark, step.Expectations.Events)
	}

	result.Error = err
	result.Success = err == nil
	result.Duration = time.Since(start)
	return result
}

// checkStatus compares the API's answer with the expected HTTP status.
func checkStatus(exp Expectations, err error) error {
	want := http.StatusOK
	if exp.HTTPStatus != nil {
		want = *exp.HTTPStatus
	}

	var apiErr *APIError
	switch {
	case err == nil && want == http.StatusOK:
		return nil
	case err == nil:
		return fmt.Errorf("expected status %d, got 200", want)
	case errors.As(err, &apiErr) && apiErr.Status == want:
		return nil
	default:
		return fmt.Errorf("complete failed: %w", err)
	}
}

func checkStep(exp Expectations, resp *handlers.CompleteResponse) error {
	if exp.Step != nil && string(resp.Kind) != *exp.Step {
		return fmt.Errorf("expected step %s, got %s", *exp.Step, resp.Kind)
	}
	if exp.NextScene != nil && resp.SceneID != *exp.NextScene {
		return fmt.Errorf("expected next scene %s, got %s", *exp.NextScene, resp.SceneID)
	}
	if exp.AttemptsLeft != nil && resp.AttemptsLeft != *exp.AttemptsLeft {
		return fmt.Errorf("expected %d attempts left, got %d", *exp.AttemptsLeft, resp.AttemptsLeft)
	}
	if exp.QuizCorrect != nil {
		if resp.Quiz == nil {
			return fmt.Errorf("expected a graded quiz, got none")
		}
		if resp.Quiz.Correct != *exp.QuizCorrect {
			return fmt.Errorf("expected quiz correct to be %t, got %t", *exp.QuizCorrect, resp.Quiz.Correct)
		}
	}
	if exp.AssessmentPassed != nil {
		if resp.Assessment == nil {
			return fmt.Errorf("expected a graded assessment, got none")
		}
		if resp.Assessment.Passed != *exp.AssessmentPassed {
			return fmt.Errorf("expected assessment passed to be %t, got %t (%.0f%%)",
				*exp.AssessmentPassed, resp.Assessment.Passed, resp.Assessment.Percentage)
		}
	}
	return nil
}

// checkSession re-reads the stored session so expectations see what was
// persisted, not just what the handler answered.
func (r *Runner) checkSession(ctx context.Context, p *play, exp Expectations) error {
	if exp.Status != nil || exp.CurrentScene != nil || exp.Score != nil || exp.MaxScore != nil || len(exp.ScenesCompleted) > 0 {
		s, err := GetSession(ctx, r.Client, r.BaseURL, p.session)
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		if err := checkState(exp, s); err != nil {
			return err
		}
	}

	if len(exp.Achievements) > 0 {
		earned, err := r.earned(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to get achievements: %w", err)
		}
		for _, id := range exp.Achievements {
			if !slices.Contains(earned, id) {
				return fmt.Errorf("expected achievement %s, earned %v", id, earned)
			}
		}
	}
	return nil
}

func checkState(exp Expectations, s *state.SessionState) error {
	if exp.Status != nil && string(s.Status) != *exp.Status {
		return fmt.Errorf("expected status %s, got %s", *exp.Status, s.Status)
	}
	if exp.CurrentScene != nil && s.CurrentSceneID != *exp.CurrentScene {
		return fmt.Errorf("expected current scene %s, got %s", *exp.CurrentScene, s.CurrentSceneID)
	}
	if exp.Score != nil && s.Score != *exp.Score {
		return fmt.Errorf("expected score %d, got %d", *exp.Score, s.Score)
	}
	if exp.MaxScore != nil && s.MaxScore != *exp.MaxScore {
		return fmt.Errorf("expected max score %d, got %d", *exp.MaxScore, s.MaxScore)
	}
	if len(exp.ScenesCompleted) > 0 && !slices.Equal(s.ScenesCompleted, exp.ScenesCompleted) {
		return fmt.Errorf("expected scenes completed %v, got %v", exp.ScenesCompleted, s.ScenesCompleted)
	}
	return nil
}
