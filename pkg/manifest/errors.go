package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidManifest marks a malformed or empty manifest. Fatal to session start.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrDanglingReference marks a navigation target that does not exist.
	ErrDanglingReference = errors.New("dangling scene reference")
	// ErrRender marks scene data that is malformed for its declared type.
	ErrRender = errors.New("scene cannot be rendered")
)

// ManifestError lists every structural problem found in a manifest.
type ManifestError struct {
	GameID   string
	Problems []string
}

func (e *ManifestError) Error() string {
	if e.GameID == "" {
		return fmt.Sprintf("invalid manifest: %s", strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("invalid manifest %q: %s", e.GameID, strings.Join(e.Problems, "; "))
}

func (e *ManifestError) Unwrap() error { return ErrInvalidManifest }

// ReferenceError names the scene, field and missing target of a dangling reference.
type ReferenceError struct {
	SceneID string
	Field   string // e.g. "navigation.next", "choices[1].nextScene", "results.nextScene"
	Target  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("scene %q %s points to unknown scene %q", e.SceneID, e.Field, e.Target)
}

func (e *ReferenceError) Unwrap() error { return ErrDanglingReference }

// RenderError describes why a scene cannot be presented.
type RenderError struct {
	SceneID string
	Type    SceneType
	Reason  string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s scene %q: %s", e.Type, e.SceneID, e.Reason)
}

func (e *RenderError) Unwrap() error { return ErrRender }
