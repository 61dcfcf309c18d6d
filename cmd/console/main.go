package main

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/scene-engine/internal/config"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
)

// The console plays a manifest locally, without the API or Redis:
//
//	console [game.json]
//
// With no argument it offers the games under DATA_DIR/games.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to debug.log when DEBUG is set.
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("DEBUG") != "" {
		f, err := tea.LogToFile("debug.log", "console")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open debug.log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	} else {
		path, err = chooseGame(filepath.Join(cfg.DataDir, "games"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	m, err := manifest.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load game: %v\n", err)
		os.Exit(1)
	}
	for _, ref := range manifest.References(m) {
		log.Warn("Manifest has a dangling reference", "error", ref)
	}

	player := NewPlayer(m, cfg.FeedbackDelay, log)
	defer player.Close()
	if err := player.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start game: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(player),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// chooseGame lists the manifests in dir and asks for one by number.
func chooseGame(dir string) (string, error) {
	names, games, err := listGames(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list games: %w", err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no games found in %s", dir)
	}

	fmt.Println("Available Games:")
	for i, name := range names {
		fmt.Printf("  %d - %s (%s)\n", i+1, name, filepath.Base(games[name]))
	}
	fmt.Print("\nSelect a game by number: ")

	var choice int
	if _, err := fmt.Scanf("%d", &choice); err != nil || choice < 1 || choice > len(names) {
		return "", fmt.Errorf("invalid selection")
	}
	return games[names[choice-1]], nil
}

// listGames maps each loadable manifest's title to its path, with the titles
// sorted.
func listGames(dir string) ([]string, map[string]string, error) {
	games := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !manifest.IsManifestFile(path) {
			return nil
		}
		m, err := manifest.LoadFile(path)
		if err != nil {
			return nil
		}
		title := m.Metadata.Title
		if title == "" {
			title = m.GameID
		}
		games[title] = path
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(games))
	for name := range games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, games, nil
}
