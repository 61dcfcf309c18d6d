package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/logger"
	"github.com/jwebster45206/scene-engine/pkg/achievement"
	"github.com/jwebster45206/scene-engine/pkg/analytics"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/playhost"
	"github.com/jwebster45206/scene-engine/pkg/state"
	"github.com/jwebster45206/scene-engine/pkg/storage"
)

type StartSessionRequest struct {
	Game string `json:"game"` // Catalogue file name, e.g. "fire-safety.json"
}

type SessionResponse struct {
	Session *state.SessionState `json:"session"`
	Scene   *manifest.Scene     `json:"scene,omitempty"` // Active scene; nil once the session has ended
}

// CompleteResponse is the controller's NextStep plus the state it left behind.
type CompleteResponse struct {
	playhost.NextStep
	Session *state.SessionState `json:"session"`
	Scene   *manifest.Scene     `json:"scene,omitempty"`
}

type AchievementsResponse struct {
	SessionID    uuid.UUID            `json:"sessionId"`
	Achievements []achievement.Record `json:"achievements"`
}

// SessionsHandler runs play sessions over HTTP. The API holds no session in
// memory: each request loads the state, resumes a controller on it and
// saves what the controller leaves behind.
// Routes:
// POST   /v1/sessions                   - Start a session on a catalogue game
// GET    /v1/sessions/{id}              - Read session state
// DELETE /v1/sessions/{id}              - Delete session
// POST   /v1/sessions/{id}/complete     - Report SceneResults for the active scene
// GET    /v1/sessions/{id}/achievements - Evaluate achievements as they stand
type SessionsHandler struct {
	storage storage.Storage
	tracker analytics.Tracker
	logger  *slog.Logger
}

// NewSessionsHandler creates the handler. A nil tracker discards events.
func NewSessionsHandler(storage storage.Storage, tracker analytics.Tracker, logger *slog.Logger) *SessionsHandler {
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	return &SessionsHandler{
		storage: storage,
		tracker: tracker,
		logger:  logger,
	}
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.handleStart(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	action := ""
	if len(parts) > 1 {
		action = strings.Join(parts[1:], "/")
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.handleGet(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case action == "complete" && r.Method == http.MethodPost:
		h.handleComplete(w, r, id)
	case action == "achievements" && r.Method == http.MethodGet:
		h.handleAchievements(w, r, id)
	case action == "" || action == "complete" || action == "achievements":
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionsHandler) controller(log *slog.Logger) *playhost.Controller {
	return playhost.New(
		playhost.WithTracker(h.tracker),
		playhost.WithLogger(log),
	)
}

func (h *SessionsHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Game) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "game is required")
		return
	}

	ctx := r.Context()
	m, err := h.storage.GetManifest(ctx, req.Game)
	switch {
	case errors.Is(err, storage.ErrManifestNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Game not found")
		return
	case errors.Is(err, manifest.ErrInvalidManifest):
		h.logger.Warn("Refusing to start invalid manifest", "game", req.Game, "error", err)
		writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("Failed to load manifest", "game", req.Game, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game")
		return
	}

	c := h.controller(h.logger)
	defer c.Dispose()

	session, err := c.Start(m)
	if err != nil {
		if errors.Is(err, manifest.ErrInvalidManifest) {
			writeError(w, h.logger, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Error("Failed to start session", "game", req.Game, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to start session")
		return
	}
	session.ManifestFile = req.Game

	if err := h.storage.SaveSession(ctx, session); err != nil {
		h.logger.Error("Failed to save session", "session_id", session.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return
	}

	logger.WithSession(h.logger, session.ID.String(), session.GameID).Info("Session started", "game", req.Game)
	writeJSON(w, h.logger, http.StatusCreated, SessionResponse{
		Session: session,
		Scene:   activeScene(m, session),
	})
}

func (h *SessionsHandler) handleGet(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	session, ok := h.load(w, r, id)
	if !ok {
		return
	}

	resp := SessionResponse{Session: session}
	if !session.IsEnded() {
		if m, err := h.storage.GetManifest(r.Context(), session.ManifestFile); err == nil {
			resp.Scene = activeScene(m, session)
		} else {
			h.logger.Warn("Manifest unavailable for session", "session_id", id, "error", err)
		}
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.storage.DeleteSession(r.Context(), id); err != nil {
		h.logger.Error("Failed to delete session", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	h.logger.Info("Session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) handleComplete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var results state.SceneResults
	if err := json.NewDecoder(r.Body).Decode(&results); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid scene results")
		return
	}

	session, ok := h.load(w, r, id)
	if !ok {
		return
	}
	log := logger.WithSession(h.logger, session.ID.String(), session.GameID)
	if session.IsEnded() {
		writeError(w, h.logger, http.StatusConflict, "Session has already ended")
		return
	}

	ctx := r.Context()
	m, ok := h.manifest(w, r, session)
	if !ok {
		return
	}

	c := h.controller(log)
	defer c.Dispose()

	if err := c.Resume(m, session); err != nil {
		if errors.Is(err, manifest.ErrDanglingReference) {
			writeError(w, h.logger, http.StatusConflict, err.Error())
			return
		}
		log.Error("Failed to resume session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to resume session")
		return
	}

	step, stepErr := c.OnSceneComplete(results)
	after := c.State()

	switch {
	case stepErr == nil:
	case errors.Is(stepErr, manifest.ErrDanglingReference):
		// the controller failed the session; keep that outcome
		if err := h.storage.SaveSession(ctx, after); err != nil {
			log.Error("Failed to save failed session", "error", err)
		}
		writeError(w, h.logger, http.StatusConflict, stepErr.Error())
		return
	case errors.Is(stepErr, playhost.ErrSessionEnded), errors.Is(stepErr, playhost.ErrSceneMismatch):
		writeError(w, h.logger, http.StatusConflict, stepErr.Error())
		return
	case errors.Is(stepErr, playhost.ErrChoiceRequired):
		writeError(w, h.logger, http.StatusBadRequest, "Pick one of the scene's choices to continue")
		return
	default:
		log.Warn("Scene results rejected", "error", stepErr)
		writeError(w, h.logger, http.StatusBadRequest, stepErr.Error())
		return
	}

	if err := h.storage.SaveSession(ctx, after); err != nil {
		log.Error("Failed to save session", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save session")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, CompleteResponse{
		NextStep: step,
		Session:  after,
		Scene:    activeScene(m, after),
	})
}

func (h *SessionsHandler) handleAchievements(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	session, ok := h.load(w, r, id)
	if !ok {
		return
	}
	m, ok := h.manifest(w, r, session)
	if !ok {
		return
	}

	c := h.controller(h.logger)
	defer c.Dispose()
	if err := c.Resume(m, session); err != nil {
		h.logger.Warn("Failed to resume session for achievements", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusConflict, err.Error())
		return
	}

	records := c.Achievements()
	if records == nil {
		records = []achievement.Record{}
	}
	writeJSON(w, h.logger, http.StatusOK, AchievementsResponse{SessionID: id, Achievements: records})
}

// load writes the error response itself and reports whether to continue.
func (h *SessionsHandler) load(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*state.SessionState, bool) {
	session, err := h.storage.LoadSession(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load session", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load session")
		return nil, false
	}
	if session == nil {
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return session, true
}

func (h *SessionsHandler) manifest(w http.ResponseWriter, r *http.Request, session *state.SessionState) (*manifest.GameManifest, bool) {
	m, err := h.storage.GetManifest(r.Context(), session.ManifestFile)
	if err != nil {
		h.logger.Error("Failed to load manifest for session",
			"session_id", session.ID,
			"manifest_file", session.ManifestFile,
			"error", err)
		if errors.Is(err, storage.ErrManifestNotFound) {
			writeError(w, h.logger, http.StatusConflict, "Game for this session is no longer available")
		} else {
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game")
		}
		return nil, false
	}
	return m, true
}

func activeScene(m *manifest.GameManifest, s *state.SessionState) *manifest.Scene {
	if s.IsEnded() {
		return nil
	}
	scene, ok := m.Scene(s.CurrentSceneID)
	if !ok {
		return nil
	}
	return scene
}
