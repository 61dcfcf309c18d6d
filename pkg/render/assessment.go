package render

import (
	"fmt"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/quiz"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

// Assessment collects one answer per question and scores the scene by
// category when the learner finishes.
type Assessment struct {
	base
	answers map[string]string // question id -> option id
}

func NewAssessment(scene *manifest.Scene, cfg Config) *Assessment {
	return &Assessment{base: newBase(scene, cfg), answers: make(map[string]string)}
}

// Answer records the option chosen for a question, replacing any earlier one.
func (a *Assessment) Answer(questionID, optionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return ErrCompleted
	}
	q, ok := a.question(questionID)
	if !ok {
		return fmt.Errorf("assessment %q has no question %q", a.scene.ID, questionID)
	}
	for _, o := range q.Options {
		if o.ID == optionID {
			a.answers[questionID] = optionID
			return nil
		}
	}
	return fmt.Errorf("%w: %q on question %q", ErrUnknownOption, optionID, questionID)
}

// Answered returns the option chosen for a question.
func (a *Assessment) Answered(questionID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.answers[questionID]
	return id, ok
}

// Remaining counts the unanswered questions.
func (a *Assessment) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.scene.Categories {
		for _, q := range c.Questions {
			if _, ok := a.answers[q.ID]; !ok {
				n++
			}
		}
	}
	return n
}

// Finish scores the answers and completes the scene. Every question must be
// answered.
func (a *Assessment) Finish() (state.SceneResults, error) {
	a.mu.Lock()
	if a.done {
		a.mu.Unlock()
		return state.SceneResults{}, ErrCompleted
	}
	res, missing := a.score()
	if missing > 0 {
		a.mu.Unlock()
		return state.SceneResults{}, fmt.Errorf("%w: %d questions unanswered", ErrNotReady, missing)
	}
	if !a.markDone() {
		a.mu.Unlock()
		return state.SceneResults{}, ErrCompleted
	}
	a.mu.Unlock()

	a.emit(res)
	res.SceneID = a.scene.ID
	return res, nil
}

// score builds the results. Called with mu held.
func (a *Assessment) score() (state.SceneResults, int) {
	g := quiz.GradeAssessment(a.scene, a.answers)
	return state.SceneResults{
		Score:         state.IntPtr(g.Score),
		MaxScore:      g.MaxScore,
		Percentage:    g.Percentage,
		Passed:        state.BoolPtr(g.Passed),
		QuestionCount: g.Answered + g.Unanswered,
		Breakdown:     g.Breakdown,
		Answers:       g.Answers,
		NextScene:     g.Next,
	}, g.Unanswered
}

func (a *Assessment) question(id string) (manifest.AssessmentQuestion, bool) {
	for _, c := range a.scene.Categories {
		for _, q := range c.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	return manifest.AssessmentQuestion{}, false
}
