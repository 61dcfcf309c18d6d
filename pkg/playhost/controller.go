package playhost

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/achievement"
	"github.com/jwebster45206/scene-engine/pkg/analytics"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/quiz"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrChoiceRequired  = errors.New("scene must be finished with one of its choices")
	ErrSessionEnded    = state.ErrSessionEnded
	ErrSceneMismatch   = state.ErrSceneMismatch
)

// StepKind tells the host what to present next.
type StepKind string

const (
	StepEnter    StepKind = "enter"    // Present SceneID
	StepRetry    StepKind = "retry"    // Present SceneID again, reset for a new attempt
	StepComplete StepKind = "complete" // Session is over; Results is set
)

// NextStep is the controller's answer to a scene completion.
type NextStep struct {
	Kind         StepKind               `json:"kind"`
	SceneID      string                 `json:"sceneId,omitempty"` // Summary scene id on completion, if any
	Attempt      int                    `json:"attempt,omitempty"`
	AttemptsLeft int                    `json:"attemptsLeft,omitempty"`
	Quiz         *quiz.Result           `json:"quiz,omitempty"`
	Assessment   *quiz.AssessmentResult `json:"assessment,omitempty"`
	Results      *state.GameResults     `json:"results,omitempty"`
}

// Controller drives one play session through a manifest. It owns the
// SessionState exclusively; renderers report back through OnSceneComplete.
type Controller struct {
	mu sync.Mutex

	manifest  *manifest.GameManifest
	session   *state.SessionState
	evaluator *achievement.Evaluator
	results   *state.GameResults

	tracker    analytics.Tracker
	logger     *slog.Logger
	clock      func() time.Time
	scope      *TimerScope
	extraRules []achievement.Rule
	onComplete func(state.GameResults)

	subscribers map[int]func(*state.SessionState)
	nextSub     int

	// deferred notifications, run after mu is released
	pending []func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithTracker sets the analytics collaborator. A nil tracker is a no-op.
func WithTracker(t analytics.Tracker) Option {
	return func(c *Controller) { c.tracker = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithScheduler sets the scheduler behind the scene timer scope.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scope = NewTimerScope(s) }
}

// WithRules appends rules to the default and manifest-declared achievements.
func WithRules(rules ...achievement.Rule) Option {
	return func(c *Controller) { c.extraRules = append(c.extraRules, rules...) }
}

// WithOnComplete registers the host callback invoked once per completed session.
func WithOnComplete(fn func(state.GameResults)) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// New creates a controller with no active session.
func New(opts ...Option) *Controller {
	c := &Controller{
		clock:       time.Now,
		subscribers: make(map[int]func(*state.SessionState)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.tracker = analytics.Safe(c.tracker, c.logger)
	if c.scope == nil {
		c.scope = NewTimerScope(RealScheduler{})
	}
	return c
}

// Start begins a session at the manifest's start scene.
func (c *Controller) Start(m *manifest.GameManifest) (*state.SessionState, error) {
	if err := manifest.Validate(m); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.reset(m)
	c.session = state.NewSessionState(m.GameID, c.clock())
	c.emit(analytics.EventSessionStarted, map[string]any{
		"game_id":    m.GameID,
		"session_id": c.session.ID.String(),
	})
	_, err := c.enter(m.StartSceneID())
	snapshot := c.session.Clone()
	c.mu.Unlock()

	c.flush()
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Resume continues a session that was persisted by the host.
func (c *Controller) Resume(m *manifest.GameManifest, s *state.SessionState) error {
	if err := manifest.Validate(m); err != nil {
		return err
	}
	if s == nil {
		return ErrNoActiveSession
	}
	if s.GameID != m.GameID {
		return fmt.Errorf("session belongs to game %q, not %q", s.GameID, m.GameID)
	}
	if !s.IsEnded() && !m.HasScene(s.CurrentSceneID) {
		return &manifest.ReferenceError{SceneID: s.CurrentSceneID, Field: "currentSceneId", Target: s.CurrentSceneID}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(m)
	c.session = s.Clone()
	if s.Status == state.StatusCompleted {
		res := c.buildResults()
		c.results = &res
	}
	return nil
}

func (c *Controller) reset(m *manifest.GameManifest) {
	c.scope.CancelAll()
	c.manifest = m
	c.results = nil
	rules := append(achievement.DefaultRules(), m.AchievementRules()...)
	c.evaluator = achievement.NewEvaluator(append(rules, c.extraRules...)...)
}

// OnSceneComplete consumes the active renderer's results and decides what
// comes next. Resolution order: restart, results.nextScene,
// navigation.next, then (with linearFallback) manifest order, then
// completion. Assessments branch on onPass/onFail before navigation.next.
// A target that names no scene fails the session with a
// *manifest.ReferenceError.
func (c *Controller) OnSceneComplete(r state.SceneResults) (NextStep, error) {
	c.mu.Lock()
	step, err := c.handle(r)
	c.mu.Unlock()
	c.flush()
	return step, err
}

func (c *Controller) handle(r state.SceneResults) (NextStep, error) {
	if c.session == nil {
		return NextStep{}, ErrNoActiveSession
	}
	if c.session.IsEnded() {
		return NextStep{}, fmt.Errorf("%w: %s", ErrSessionEnded, c.session.Status)
	}

	scene, ok := c.manifest.Scene(c.session.CurrentSceneID)
	if !ok {
		return NextStep{}, c.fail(&manifest.ReferenceError{
			SceneID: c.session.CurrentSceneID, Field: "currentSceneId", Target: c.session.CurrentSceneID,
		})
	}
	if r.SceneID != "" && r.SceneID != scene.ID {
		return NextStep{}, fmt.Errorf("%w: results for %q while %q is active", ErrSceneMismatch, r.SceneID, scene.ID)
	}

	if !r.Restart {
		if err := checkChoice(scene, r); err != nil {
			return NextStep{}, err
		}
	}

	elapsed := c.elapsed(r)
	c.scope.CancelAll()

	if r.Restart {
		if err := c.apply(state.Event{Kind: state.SceneRetried, SceneID: scene.ID, Answers: r.Answers, TimeSpentMs: elapsed}); err != nil {
			return NextStep{}, err
		}
		attempts := c.session.SceneAttempts
		c.emit(analytics.EventSceneRetried, c.sceneData(scene, map[string]any{"attempt": attempts, "reason": "restart"}))
		return NextStep{Kind: StepRetry, SceneID: scene.ID, Attempt: attempts}, nil
	}

	ev := state.Event{Kind: state.SceneCompleted, SceneID: scene.ID, TimeSpentMs: elapsed, Answers: r.Answers}
	var (
		graded   *quiz.Result
		assessed *quiz.AssessmentResult
	)

	switch scene.Type {
	case manifest.SceneQuiz:
		g := quiz.Grade(scene, r.Answers)
		graded = &g
		attempt := c.session.SceneAttempts + 1
		c.emit(analytics.EventQuizSubmitted, c.sceneData(scene, map[string]any{
			"attempt": attempt,
			"correct": g.Correct,
			"answers": g.Selected,
		}))

		if !g.Correct && attempt < scene.Attempts() {
			if err := c.apply(state.Event{Kind: state.SceneRetried, SceneID: scene.ID, Answers: g.Selected, TimeSpentMs: elapsed}); err != nil {
				return NextStep{}, err
			}
			c.emit(analytics.EventSceneRetried, c.sceneData(scene, map[string]any{"attempt": attempt, "reason": "incorrect"}))
			return NextStep{
				Kind:         StepRetry,
				SceneID:      scene.ID,
				Attempt:      attempt,
				AttemptsLeft: scene.Attempts() - attempt,
				Quiz:         graded,
			}, nil
		}

		ev.Attempted = true
		ev.Score = g.Awarded
		ev.MaxScore = g.Possible
		ev.Graded = 1
		if g.Correct {
			ev.Correct = 1
		}
		ev.Answers = g.Selected

	case manifest.SceneDialogue:
		if r.ChoiceID == "" {
			break
		}
		choice, _ := scene.Choice(r.ChoiceID) // checked by checkChoice
		ev.Score = max(choice.Points, 0)
		for _, ch := range scene.Choices {
			ev.MaxScore = max(ev.MaxScore, ch.Points)
		}
		if r.NextScene == "" {
			r.NextScene = choice.NextScene
		}
		c.emit(analytics.EventDialogueChoice, c.sceneData(scene, map[string]any{"choice_id": choice.ID}))

	case manifest.SceneAssessment:
		// graded here from the answers; reported score, pass and branch are ignored
		a := quiz.GradeAssessment(scene, quiz.ParseAnswers(r.Answers))
		assessed = &a
		ev.Score = a.Score
		ev.MaxScore = a.MaxScore
		ev.Graded, ev.Correct = a.Answered, a.Best
		ev.Answers = a.Answers
		r.NextScene = a.Next

	default:
		if r.Score != nil {
			c.logger.Debug("Ignoring score reported for an ungraded scene", "scene_id", scene.ID, "type", scene.Type)
		}
	}

	if err := c.apply(ev); err != nil {
		return NextStep{}, err
	}
	c.emit(analytics.EventSceneCompleted, c.sceneData(scene, map[string]any{
		"score":         ev.Score,
		"time_spent_ms": elapsed,
		"total_score":   c.session.Score,
	}))

	target, field := c.resolve(scene, r)
	if target == "" {
		step := c.complete("")
		step.Quiz, step.Assessment = graded, assessed
		return step, nil
	}
	if !c.manifest.HasScene(target) {
		return NextStep{}, c.fail(&manifest.ReferenceError{SceneID: scene.ID, Field: field, Target: target})
	}

	step, err := c.enter(target)
	step.Quiz, step.Assessment = graded, assessed
	return step, err
}

// checkChoice rejects dialogue results that skip or invent a choice.
func checkChoice(scene *manifest.Scene, r state.SceneResults) error {
	if scene.Type != manifest.SceneDialogue {
		return nil
	}
	if r.ChoiceID == "" {
		if len(scene.Choices) > 0 {
			return fmt.Errorf("%w: dialogue scene %q", ErrChoiceRequired, scene.ID)
		}
		return nil
	}
	if _, ok := scene.Choice(r.ChoiceID); !ok {
		return fmt.Errorf("dialogue scene %q has no choice %q", scene.ID, r.ChoiceID)
	}
	return nil
}

// resolve picks the next scene id and names where it came from.
func (c *Controller) resolve(scene *manifest.Scene, r state.SceneResults) (string, string) {
	if r.NextScene != "" {
		if scene.Type == manifest.SceneAssessment {
			return r.NextScene, "onPass/onFail"
		}
		return r.NextScene, "results.nextScene"
	}
	if scene.Navigation.Next != "" {
		return scene.Navigation.Next, "navigation.next"
	}
	if c.manifest.LinearFallback {
		if next, ok := c.manifest.NextInOrder(scene.ID); ok {
			return next, "linearFallback"
		}
	}
	return "", ""
}

// enter activates sceneID. Entering a summary scene completes the session.
func (c *Controller) enter(sceneID string) (NextStep, error) {
	scene, ok := c.manifest.Scene(sceneID)
	if !ok {
		return NextStep{}, c.fail(&manifest.ReferenceError{SceneID: c.session.CurrentSceneID, Field: "enter", Target: sceneID})
	}

	c.scope.CancelAll()
	if err := c.apply(state.Event{Kind: state.SceneEntered, SceneID: scene.ID}); err != nil {
		return NextStep{}, err
	}
	c.emit(analytics.EventSceneEntered, c.sceneData(scene, nil))
	c.logger.Debug("Scene entered", "session_id", c.session.ID, "scene_id", scene.ID, "type", scene.Type)

	if scene.IsTerminal() {
		return c.complete(scene.ID), nil
	}
	return NextStep{Kind: StepEnter, SceneID: scene.ID}, nil
}

func (c *Controller) complete(summaryID string) NextStep {
	if err := c.apply(state.Event{Kind: state.SessionCompleted, SceneID: summaryID}); err != nil {
		// apply only fails on an ended session, which handle rules out
		c.logger.Error("Failed to complete session", "session_id", c.session.ID, "error", err)
	}

	res := c.buildResults()
	c.results = &res

	for _, a := range res.Achievements {
		c.emit(analytics.EventAchievementAwarded, map[string]any{
			"game_id":        res.GameID,
			"session_id":     res.SessionID.String(),
			"achievement_id": a.ID,
		})
	}
	c.emit(analytics.EventSessionCompleted, map[string]any{
		"game_id":          res.GameID,
		"session_id":       res.SessionID.String(),
		"score":            res.Score,
		"total_score":      res.TotalScore,
		"time_spent_ms":    res.TimeSpent,
		"scenes_completed": len(res.ScenesCompleted),
	})
	c.logger.Info("Session completed",
		"session_id", res.SessionID,
		"game_id", res.GameID,
		"score", res.Score,
		"total_score", res.TotalScore)

	if c.onComplete != nil {
		cb := c.onComplete
		c.pending = append(c.pending, func() { cb(res) })
	}
	return NextStep{Kind: StepComplete, SceneID: summaryID, Results: &res}
}

func (c *Controller) fail(cause error) error {
	if err := c.apply(state.Event{Kind: state.SessionFailed, Reason: cause.Error()}); err != nil {
		c.logger.Error("Failed to mark session failed", "error", err)
	}
	c.scope.CancelAll()
	c.emit(analytics.EventSessionFailed, map[string]any{
		"game_id":    c.session.GameID,
		"session_id": c.session.ID.String(),
		"reason":     cause.Error(),
	})
	c.logger.Warn("Session failed", "session_id", c.session.ID, "error", cause)
	return cause
}

func (c *Controller) buildResults() state.GameResults {
	now := c.clock()
	s := c.session
	return state.GameResults{
		GameID:          s.GameID,
		SessionID:       s.ID,
		Score:           s.Score,
		TotalScore:      s.MaxScore,
		Percentage:      s.ScorePercent(),
		TimeSpent:       s.TimeSpentMs,
		ScenesCompleted: append([]string(nil), s.ScenesCompleted...),
		Achievements:    c.evaluator.Evaluate(c.metrics(now)),
		CompletedAt:     now,
	}
}

func (c *Controller) metrics(at time.Time) achievement.Metrics {
	expected := time.Duration(c.manifest.Metadata.Duration) * time.Minute
	return c.session.Metrics(c.manifest.Sections(), expected, at)
}

func (c *Controller) apply(e state.Event) error {
	if e.At.IsZero() {
		e.At = c.clock()
	}
	next, err := state.Apply(c.session, e)
	if err != nil {
		return err
	}
	c.session = next
	snapshot := next.Clone()
	for _, fn := range c.subscribers {
		fn := fn
		c.pending = append(c.pending, func() { fn(snapshot) })
	}
	return nil
}

func (c *Controller) elapsed(r state.SceneResults) int64 {
	if r.TimeSpentMs > 0 {
		return r.TimeSpentMs
	}
	if c.session.SceneEnteredAt.IsZero() {
		return 0
	}
	d := c.clock().Sub(c.session.SceneEnteredAt)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

func (c *Controller) sceneData(scene *manifest.Scene, extra map[string]any) map[string]any {
	data := map[string]any{
		"game_id":    c.session.GameID,
		"session_id": c.session.ID.String(),
		"scene_id":   scene.ID,
		"scene_type": string(scene.Type),
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func (c *Controller) emit(eventType string, data map[string]any) {
	t := c.tracker
	c.pending = append(c.pending, func() { t.TrackEvent(eventType, data) })
}

func (c *Controller) flush() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Abort fails the active session, e.g. after a renderer reported a RenderError
// and the host chose not to continue.
func (c *Controller) Abort(reason string) error {
	c.mu.Lock()
	var err error
	switch {
	case c.session == nil:
		err = ErrNoActiveSession
	case c.session.IsEnded():
		err = fmt.Errorf("%w: %s", ErrSessionEnded, c.session.Status)
	default:
		c.fail(errors.New(reason))
	}
	c.mu.Unlock()
	c.flush()
	return err
}

// State returns a copy of the session state.
func (c *Controller) State() *state.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// Manifest returns the manifest of the active session.
func (c *Controller) Manifest() *manifest.GameManifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manifest
}

// CurrentScene returns the active scene.
func (c *Controller) CurrentScene() (*manifest.Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, false
	}
	return c.manifest.Scene(c.session.CurrentSceneID)
}

// Results returns the game results once the session has completed.
func (c *Controller) Results() (state.GameResults, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		return state.GameResults{}, false
	}
	return *c.results, true
}

// Achievements evaluates the rule table against the session as it stands.
func (c *Controller) Achievements() []achievement.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.evaluator.Evaluate(c.metrics(c.clock()))
}

// Scope is the timer scope of the active scene. It is cancelled whenever
// the controller leaves a scene and closed by Dispose.
func (c *Controller) Scope() *TimerScope {
	return c.scope
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller) Subscribe(fn func(*state.SessionState)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Dispose cancels pending timers and drops subscribers. The controller
// cannot schedule timers afterwards.
func (c *Controller) Dispose() {
	c.scope.Close()
	c.mu.Lock()
	c.subscribers = make(map[int]func(*state.SessionState))
	c.mu.Unlock()
}
