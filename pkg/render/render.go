// Package render holds the headless scene renderers. A renderer owns the
// learner's in-progress interaction with one scene visit and reports back
// through a single OnComplete call; it never touches the session state.
package render

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/analytics"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/playhost"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

var (
	ErrCompleted     = errors.New("scene already completed")
	ErrUnknownOption = errors.New("unknown option")
	ErrNotReady      = errors.New("scene is not ready to complete")
)

// DefaultFeedbackDelay is the pause after a quiz submission before the
// renderer reports completion.
const DefaultFeedbackDelay = 1500 * time.Millisecond

// Renderer is the common surface of every scene renderer.
type Renderer interface {
	Scene() *manifest.Scene
	Done() bool
	// Dispose stops pending timers. A disposed renderer never calls OnComplete.
	Dispose()
}

// Config carries the collaborators a renderer needs.
type Config struct {
	OnComplete    func(state.SceneResults)
	Tracker       analytics.Tracker
	Scope         *playhost.TimerScope
	Logger        *slog.Logger
	FeedbackDelay time.Duration // Zero uses the scene's feedbackDelayMs or DefaultFeedbackDelay

	// summary only
	Language string
	Results  *state.GameResults
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.Tracker = analytics.Safe(c.Tracker, c.Logger)
	if c.Scope == nil {
		c.Scope = playhost.NewTimerScope(playhost.RealScheduler{})
	}
	return c
}

// New returns the renderer for the scene's type. When the scene cannot be
// presented it returns a *Fallback together with the *manifest.RenderError.
func New(scene *manifest.Scene, cfg Config) (Renderer, error) {
	cfg = cfg.withDefaults()
	if err := manifest.CheckRenderable(scene); err != nil {
		return NewFallback(scene, err, cfg), err
	}

	switch scene.Type {
	case manifest.SceneDialogue:
		return NewDialogue(scene, cfg), nil
	case manifest.SceneQuiz:
		return NewQuiz(scene, cfg), nil
	case manifest.SceneAssessment:
		return NewAssessment(scene, cfg), nil
	case manifest.SceneResource:
		return NewResource(scene, cfg), nil
	case manifest.SceneSummary:
		return NewSummary(scene, cfg), nil
	}

	err := &manifest.RenderError{SceneID: scene.ID, Type: scene.Type, Reason: "no renderer for scene type"}
	return NewFallback(scene, err, cfg), err
}

// base carries the exactly-once completion guard shared by all renderers.
type base struct {
	mu       sync.Mutex
	scene    *manifest.Scene
	cfg      Config
	done     bool
	disposed bool
}

func newBase(scene *manifest.Scene, cfg Config) base {
	return base{scene: scene, cfg: cfg.withDefaults()}
}

func (b *base) Scene() *manifest.Scene { return b.scene }

func (b *base) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *base) Dispose() {
	b.mu.Lock()
	b.disposed = true
	b.mu.Unlock()
	b.cfg.Scope.CancelAll()
}

// markDone must be called with mu held. It reports whether the caller won
// the right to call OnComplete.
func (b *base) markDone() bool {
	if b.done || b.disposed {
		return false
	}
	b.done = true
	return true
}

// emit calls OnComplete. It must be called without mu held, after a
// successful markDone.
func (b *base) emit(r state.SceneResults) {
	r.SceneID = b.scene.ID
	if b.cfg.OnComplete != nil {
		b.cfg.OnComplete(r)
	}
}
