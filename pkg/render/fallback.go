package render

import (
	"github.com/jwebster45206/scene-engine/pkg/analytics"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
)

// FallbackMessage is shown in place of a scene that cannot be presented.
const FallbackMessage = "This part of the game could not be shown. You can restart the game or leave it here."

// Fallback stands in for a scene whose data is malformed. It never reports
// completion, so no scoring is skipped; the host decides whether to abort.
type Fallback struct {
	base
	err error
}

func NewFallback(scene *manifest.Scene, err error, cfg Config) *Fallback {
	f := &Fallback{base: newBase(scene, cfg), err: err}
	f.cfg.Logger.Warn("Scene cannot be rendered", "scene_id", scene.ID, "type", scene.Type, "error", err)
	f.cfg.Tracker.TrackEvent(analytics.EventRenderFallback, map[string]any{
		"scene_id":   scene.ID,
		"scene_type": string(scene.Type),
		"reason":     err.Error(),
	})
	return f
}

// Message is the learner-facing text.
func (f *Fallback) Message() string { return FallbackMessage }

// Err is the underlying *manifest.RenderError.
func (f *Fallback) Err() error { return f.err }
