package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

// MockStorage is an in-memory Storage for tests.
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*state.SessionState
	manifests map[string]*manifest.GameManifest
	pingError error
}

var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions:  make(map[uuid.UUID]*state.SessionState),
		manifests: make(map[string]*manifest.GameManifest),
	}
}

// SetPingError configures the mock to fail on ping with the given error.
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// AddManifest registers a manifest under a catalogue file name.
func (m *MockStorage) AddManifest(filename string, gm *manifest.GameManifest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[filename] = gm
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveSession(ctx context.Context, s *state.SessionState) error {
	if s == nil {
		return errors.New("session cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*state.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStorage) ListManifests(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.manifests))
	for file, gm := range m.manifests {
		title := gm.Metadata.Title
		if title == "" {
			title = gm.GameID
		}
		out[title] = file
	}
	return out, nil
}

func (m *MockStorage) GetManifest(ctx context.Context, filename string) (*manifest.GameManifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gm, ok := m.manifests[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, filename)
	}
	return gm, nil
}
