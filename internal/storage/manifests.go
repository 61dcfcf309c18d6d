package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/storage"
)

func (r *RedisStorage) gamesDir() string {
	return filepath.Join(r.dataDir, "games")
}

// ListManifests maps each game's title to its file name. Only files directly
// in the games directory are listed, matching what GetManifest can load.
// Files that fail to load are logged and skipped.
func (r *RedisStorage) ListManifests(ctx context.Context) (map[string]string, error) {
	games := make(map[string]string)

	entries, err := os.ReadDir(r.gamesDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return games, nil
		}
		r.logger.Error("Failed to read games directory", "error", err)
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !manifest.IsManifestFile(name) {
			continue
		}

		path := filepath.Join(r.gamesDir(), name)
		m, err := manifest.LoadFile(path)
		if err != nil {
			r.logger.Warn("Skipping invalid manifest", "path", path, "error", err)
			continue
		}

		title := m.Metadata.Title
		if title == "" {
			title = m.GameID
		}
		games[title] = name
	}
	return games, nil
}

// GetManifest loads one catalogue file. The name must not escape the games
// directory.
func (r *RedisStorage) GetManifest(ctx context.Context, filename string) (*manifest.GameManifest, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.HasPrefix(filename, ".") {
		return nil, fmt.Errorf("%w: %q", storage.ErrManifestNotFound, filename)
	}

	path := filepath.Join(r.gamesDir(), filename)
	m, err := manifest.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrManifestNotFound, filename)
		}
		return nil, err
	}
	return m, nil
}
