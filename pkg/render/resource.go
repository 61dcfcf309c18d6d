package render

import (
	"fmt"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

// Resource shows static reference content. It completes when the learner
// acknowledges it and never branches.
type Resource struct {
	base
	viewed []string
}

func NewResource(scene *manifest.Scene, cfg Config) *Resource {
	return &Resource{base: newBase(scene, cfg)}
}

// Open marks the i-th resource as viewed.
func (r *Resource) Open(i int) (manifest.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.scene.Resources) {
		return manifest.Resource{}, fmt.Errorf("scene %q has no resource %d", r.scene.ID, i)
	}
	res := r.scene.Resources[i]
	for _, t := range r.viewed {
		if t == res.Title {
			return res, nil
		}
	}
	r.viewed = append(r.viewed, res.Title)
	return res, nil
}

// Acknowledge completes the scene.
func (r *Resource) Acknowledge() error {
	r.mu.Lock()
	if !r.markDone() {
		r.mu.Unlock()
		return ErrCompleted
	}
	viewed := append([]string(nil), r.viewed...)
	r.mu.Unlock()

	r.emit(state.SceneResults{Viewed: viewed})
	return nil
}
