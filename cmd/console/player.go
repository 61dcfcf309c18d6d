package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/analytics"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/playhost"
	"github.com/jwebster45206/scene-engine/pkg/render"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

const maxEventLog = 12

// Player runs one manifest locally. Renderers report completion through a
// channel so a callback fired inside a key handler or a timer never re-enters
// the UI loop; the UI drains Completions and hands each result to Complete.
type Player struct {
	manifest      *manifest.GameManifest
	ctrl          *playhost.Controller
	logger        *slog.Logger
	feedbackDelay time.Duration

	renderer    render.Renderer
	renderErr   error
	completions chan state.SceneResults

	lastStep playhost.NextStep
	results  *state.GameResults
	finished bool

	mu     sync.Mutex
	events []string
}

func NewPlayer(m *manifest.GameManifest, feedbackDelay time.Duration, logger *slog.Logger, opts ...playhost.Option) *Player {
	p := &Player{
		manifest:      m,
		logger:        logger,
		feedbackDelay: feedbackDelay,
		completions:   make(chan state.SceneResults, 4),
	}
	base := []playhost.Option{
		playhost.WithLogger(logger),
		playhost.WithTracker(analytics.TrackerFunc(p.track)),
	}
	p.ctrl = playhost.New(append(base, opts...)...)
	return p
}

// Start begins a fresh session on the manifest, discarding any previous one.
func (p *Player) Start() error {
	p.disposeRenderer()
	p.results = nil
	p.finished = false
	p.lastStep = playhost.NextStep{}

	s, err := p.ctrl.Start(p.manifest)
	if err != nil {
		return err
	}
	p.mount(s.CurrentSceneID)
	return nil
}

// Completions delivers renderer results in the order they were reported.
func (p *Player) Completions() <-chan state.SceneResults {
	return p.completions
}

// Complete hands a renderer's results to the controller and mounts whatever
// comes next.
func (p *Player) Complete(r state.SceneResults) error {
	if p.results != nil {
		// Only the summary reports after the session ends: the learner dismissed it.
		p.finished = true
		p.disposeRenderer()
		return nil
	}

	step, err := p.ctrl.OnSceneComplete(r)
	if err != nil {
		if s := p.ctrl.State(); s != nil && s.IsEnded() {
			p.disposeRenderer()
			p.finished = true
		}
		return err
	}
	p.lastStep = step

	switch step.Kind {
	case playhost.StepRetry:
		if q, ok := p.renderer.(*render.Quiz); ok {
			q.Reset()
		} else {
			p.mount(step.SceneID)
		}
	case playhost.StepEnter:
		p.mount(step.SceneID)
	case playhost.StepComplete:
		p.results = step.Results
		if step.SceneID != "" {
			p.mount(step.SceneID)
		} else {
			p.disposeRenderer()
			p.finished = true
		}
	}
	return nil
}

// Abort fails the session, e.g. after the learner gives up on a scene that
// cannot be shown.
func (p *Player) Abort(reason string) error {
	p.disposeRenderer()
	p.finished = true
	return p.ctrl.Abort(reason)
}

func (p *Player) mount(sceneID string) {
	p.disposeRenderer()
	scene, ok := p.manifest.Scene(sceneID)
	if !ok {
		p.renderErr = fmt.Errorf("scene %q not found", sceneID)
		return
	}
	p.renderer, p.renderErr = render.New(scene, render.Config{
		OnComplete:    p.enqueue,
		Tracker:       analytics.TrackerFunc(p.track),
		Scope:         p.ctrl.Scope(),
		Logger:        p.logger,
		FeedbackDelay: p.feedbackDelay,
		Language:      p.manifest.Metadata.Language,
		Results:       p.results,
	})
}

func (p *Player) disposeRenderer() {
	if p.renderer != nil {
		p.renderer.Dispose()
	}
	p.renderer = nil
	p.renderErr = nil
}

func (p *Player) enqueue(r state.SceneResults) {
	select {
	case p.completions <- r:
	default:
		// A renderer reports once per visit, so a full buffer means the UI stopped draining.
		p.logger.Error("Dropping scene completion", "scene_id", r.SceneID)
	}
}

func (p *Player) track(eventType string, data map[string]any) {
	line := eventType
	if id, ok := data["scene_id"].(string); ok && id != "" {
		line += " " + id
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, line)
	if len(p.events) > maxEventLog {
		p.events = p.events[len(p.events)-maxEventLog:]
	}
}

// Events returns the most recent analytics events, oldest first.
func (p *Player) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *Player) Renderer() render.Renderer   { return p.renderer }
func (p *Player) RenderErr() error            { return p.renderErr }
func (p *Player) State() *state.SessionState  { return p.ctrl.State() }
func (p *Player) LastStep() playhost.NextStep { return p.lastStep }
func (p *Player) Finished() bool              { return p.finished }

// Results returns the game results once the session has completed.
func (p *Player) Results() (*state.GameResults, bool) {
	return p.results, p.results != nil
}

// ResultsJSON is what the console copies to the clipboard.
func (p *Player) ResultsJSON() ([]byte, error) {
	if p.results == nil {
		return nil, errors.New("the game has not finished yet")
	}
	return json.MarshalIndent(p.results, "", "  ")
}

// Close stops every pending timer.
func (p *Player) Close() {
	p.disposeRenderer()
	p.ctrl.Dispose()
}
