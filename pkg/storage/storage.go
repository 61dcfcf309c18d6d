package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

// ErrManifestNotFound is returned when a catalogue file does not exist.
var ErrManifestNotFound = errors.New("manifest not found")

// Storage combines session persistence (Redis) with the manifest catalogue
// (filesystem).
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Session operations. LoadSession returns nil, nil for an unknown id.
	SaveSession(ctx context.Context, s *state.SessionState) error
	LoadSession(ctx context.Context, id uuid.UUID) (*state.SessionState, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// Manifest catalogue. ListManifests maps game title to file name.
	ListManifests(ctx context.Context) (map[string]string, error)
	GetManifest(ctx context.Context, filename string) (*manifest.GameManifest, error)
}
