package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/storage"
)

// GamesHandler serves the manifest catalogue.
// Routes:
// GET /v1/games        - Map of game title to file name
// GET /v1/games/{file} - One normalized manifest
type GamesHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewGamesHandler(storage storage.Storage, logger *slog.Logger) *GamesHandler {
	return &GamesHandler{
		storage: storage,
		logger:  logger,
	}
}

func (h *GamesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filename := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/games"), "/")
	if filename == "" {
		h.handleList(w, r)
		return
	}
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid game file name")
		return
	}
	h.handleGet(w, r, filename)
}

func (h *GamesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	games, err := h.storage.ListManifests(r.Context())
	if err != nil {
		h.logger.Error("Failed to list games", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list games")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, games)
}

func (h *GamesHandler) handleGet(w http.ResponseWriter, r *http.Request, filename string) {
	m, err := h.storage.GetManifest(r.Context(), filename)
	switch {
	case errors.Is(err, storage.ErrManifestNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Game not found")
		return
	case errors.Is(err, manifest.ErrInvalidManifest):
		h.logger.Warn("Invalid manifest in catalogue", "file", filename, "error", err)
		writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to get game", "error", err, "file", filename)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to retrieve game")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, m)
}
