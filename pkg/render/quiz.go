package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/quiz"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

var (
	ErrSubmitted   = errors.New("quiz already submitted")
	ErrNoSelection = errors.New("select at least one option")
)

// Quiz collects a selection, grades it for display on Submit, and reports
// completion after the feedback pause. The controller decides whether the
// attempt is retried; Reset re-arms the renderer for that.
type Quiz struct {
	base
	selected  []string
	submitted bool
	result    quiz.Result
	attempt   int
	cancel    func()
}

// NewQuiz creates a quiz renderer for the first attempt.
func NewQuiz(scene *manifest.Scene, cfg Config) *Quiz {
	return &Quiz{base: newBase(scene, cfg), attempt: 1}
}

// Toggle selects or deselects an option. In single-select mode selecting an
// option replaces the previous selection.
func (q *Quiz) Toggle(optionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitted {
		return ErrSubmitted
	}
	if _, ok := q.scene.Option(optionID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOption, optionID)
	}

	for i, id := range q.selected {
		if id == optionID {
			q.selected = append(q.selected[:i], q.selected[i+1:]...)
			return nil
		}
	}
	if q.scene.AllowMultiple {
		q.selected = append(q.selected, optionID)
	} else {
		q.selected = []string{optionID}
	}
	return nil
}

// Selected returns the current selection in the order it was made.
func (q *Quiz) Selected() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.selected...)
}

// CanSubmit reports whether Submit would be accepted.
func (q *Quiz) CanSubmit() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.submitted && len(q.selected) > 0
}

// Submitted reports whether the renderer is locked.
func (q *Quiz) Submitted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

// Attempt is the 1-based attempt number of this visit.
func (q *Quiz) Attempt() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.attempt
}

// Submit locks the selection and returns the per-option feedback. Completion
// is reported when the feedback pause elapses or Continue is called.
func (q *Quiz) Submit() (quiz.Result, error) {
	q.mu.Lock()
	if q.submitted {
		q.mu.Unlock()
		return quiz.Result{}, ErrSubmitted
	}
	if len(q.selected) == 0 {
		q.mu.Unlock()
		return quiz.Result{}, ErrNoSelection
	}
	q.submitted = true
	q.result = quiz.Grade(q.scene, q.selected)
	res := q.result

	delay := q.feedbackDelay()
	if delay > 0 {
		q.cancel = q.cfg.Scope.After(delay, func() { q.finish() })
		q.mu.Unlock()
		return res, nil
	}
	q.mu.Unlock()
	q.finish()
	return res, nil
}

// Result returns the graded result of the last submission.
func (q *Quiz) Result() (quiz.Result, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result, q.submitted
}

// Continue skips the rest of the feedback pause.
func (q *Quiz) Continue() error {
	q.mu.Lock()
	if !q.submitted {
		q.mu.Unlock()
		return ErrNotReady
	}
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.mu.Unlock()
	q.finish()
	return nil
}

// Reset unlocks the renderer for another attempt at the same scene.
func (q *Quiz) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.selected = nil
	q.submitted = false
	q.result = quiz.Result{}
	q.done = false
	q.attempt++
}

func (q *Quiz) finish() {
	q.mu.Lock()
	if !q.markDone() {
		q.mu.Unlock()
		return
	}
	res := state.SceneResults{
		Answers:  append([]string(nil), q.result.Selected...),
		Attempts: q.attempt,
		Correct:  state.BoolPtr(q.result.Correct),
	}
	q.mu.Unlock()
	q.emit(res)
}

func (q *Quiz) feedbackDelay() time.Duration {
	if q.scene.FeedbackDelayMs > 0 {
		return time.Duration(q.scene.FeedbackDelayMs) * time.Millisecond
	}
	if q.cfg.FeedbackDelay != 0 {
		return q.cfg.FeedbackDelay
	}
	return DefaultFeedbackDelay
}
