package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-engine/pkg/achievement"
	"github.com/jwebster45206/scene-engine/pkg/analytics"
	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/playhost"
	"github.com/jwebster45206/scene-engine/pkg/state"
	"github.com/jwebster45206/scene-engine/pkg/storage"
)

const fireSafetyJSON = `{
	"gameId": "fire-safety",
	"metadata": {"title": "Fire safety", "duration": 5},
	"scenes": [
		{
			"id": "intro",
			"type": "dialogue",
			"messages": [{"speaker": "Warden", "text": "Let's talk about exits."}],
			"navigation": {"next": "exit-quiz"}
		},
		{
			"id": "exit-quiz",
			"type": "quiz",
			"question": "Which exit do you use during a fire?",
			"options": [
				{"id": "a", "text": "The elevator"},
				{"id": "b", "text": "The stairs", "isCorrect": true}
			],
			"navigation": {"next": "wrap-up"}
		},
		{"id": "wrap-up", "type": "summary", "title": "Well done"}
	]
}`

const danglingJSON = `{
	"gameId": "broken-path",
	"scenes": [
		{
			"id": "intro",
			"type": "dialogue",
			"messages": [{"speaker": "Guide", "text": "Onwards."}],
			"navigation": {"next": "nowhere"}
		}
	]
}`

const crossroadsJSON = `{
	"gameId": "crossroads",
	"scenes": [
		{
			"id": "door",
			"type": "dialogue",
			"messages": [{"speaker": "Guide", "text": "Which way?"}],
			"choices": [{"id": "in", "text": "Go in", "nextScene": "check"}]
		},
		{
			"id": "check",
			"type": "assessment",
			"passThreshold": 60,
			"onPass": "good",
			"onFail": "bad",
			"categories": [{"id": "c1", "title": "Habits", "questions": [
				{"id": "q1", "text": "Breaks?", "options": [{"id": "lo", "text": "Never", "points": 0}, {"id": "hi", "text": "Daily", "points": 5}]}
			]}]
		},
		{"id": "good", "type": "summary"},
		{"id": "bad", "type": "summary"}
	]
}`

func mustManifest(t *testing.T, js string) *manifest.GameManifest {
	t.Helper()
	m, err := manifest.Parse([]byte(js))
	require.NoError(t, err)
	return m
}

type sessionsFixture struct {
	handler *SessionsHandler
	store   *storage.MockStorage
	rec     *analytics.Recorder
}

func newSessionsFixture(t *testing.T) *sessionsFixture {
	t.Helper()
	store := storage.NewMockStorage()
	store.AddManifest("fire-safety.json", mustManifest(t, fireSafetyJSON))
	store.AddManifest("broken-path.json", mustManifest(t, danglingJSON))
	store.AddManifest("empty.json", &manifest.GameManifest{GameID: "empty"})
	store.AddManifest("crossroads.json", mustManifest(t, crossroadsJSON))
	rec := &analytics.Recorder{}
	return &sessionsFixture{
		handler: NewSessionsHandler(store, rec, quietLogger),
		store:   store,
		rec:     rec,
	}
}

func (f *sessionsFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *sessionsFixture) start(t *testing.T, game string) SessionResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/sessions", StartSessionRequest{Game: game})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func (f *sessionsFixture) complete(t *testing.T, id uuid.UUID, r state.SceneResults) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/v1/sessions/"+id.String()+"/complete", r)
}

func TestSessions_Start(t *testing.T) {
	f := newSessionsFixture(t)

	resp := f.start(t, "fire-safety.json")

	require.NotNil(t, resp.Session)
	assert.Equal(t, "fire-safety", resp.Session.GameID)
	assert.Equal(t, "intro", resp.Session.CurrentSceneID)
	assert.Equal(t, state.StatusInProgress, resp.Session.Status)
	require.NotNil(t, resp.Scene)
	assert.Equal(t, manifest.SceneDialogue, resp.Scene.Type)

	saved, err := f.store.LoadSession(context.Background(), resp.Session.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "fire-safety.json", saved.ManifestFile)

	assert.Equal(t, []string{analytics.EventSessionStarted, analytics.EventSceneEntered}, f.rec.Types())
}

func TestSessions_StartErrors(t *testing.T) {
	f := newSessionsFixture(t)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{"missing game", StartSessionRequest{}, http.StatusBadRequest},
		{"unknown game", StartSessionRequest{Game: "nope.json"}, http.StatusNotFound},
		{"invalid manifest", StartSessionRequest{Game: "empty.json"}, http.StatusUnprocessableEntity},
		{"bad body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/sessions", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
			assert.NotEmpty(t, errResp.Error)
		})
	}
}

func TestSessions_Playthrough(t *testing.T) {
	f := newSessionsFixture(t)
	id := f.start(t, "fire-safety.json").Session.ID

	w := f.complete(t, id, state.SceneResults{SceneID: "intro", MessagesSeen: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var step CompleteResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&step))
	assert.Equal(t, playhost.StepEnter, step.Kind)
	assert.Equal(t, "exit-quiz", step.SceneID)
	require.NotNil(t, step.Scene)
	assert.Equal(t, "exit-quiz", step.Scene.ID)

	w = f.complete(t, id, state.SceneResults{SceneID: "exit-quiz", Answers: []string{"b"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	step = CompleteResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&step))
	assert.Equal(t, playhost.StepComplete, step.Kind)
	assert.Equal(t, "wrap-up", step.SceneID)
	require.NotNil(t, step.Results)
	assert.Equal(t, manifest.DefaultQuizPoints, step.Results.Score)
	assert.Equal(t, manifest.DefaultQuizPoints, step.Results.TotalScore)
	assert.Equal(t, []string{"intro", "exit-quiz"}, step.Results.ScenesCompleted)
	assert.Nil(t, step.Scene)

	saved, err := f.store.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, saved.Status)

	// A finished session accepts no more results.
	w = f.complete(t, id, state.SceneResults{SceneID: "wrap-up"})
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, 1, f.rec.Count(analytics.EventSessionCompleted))
}

func TestSessions_DanglingReferenceFailsSession(t *testing.T) {
	f := newSessionsFixture(t)
	id := f.start(t, "broken-path.json").Session.ID

	w := f.complete(t, id, state.SceneResults{SceneID: "intro"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "nowhere")

	saved, err := f.store.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, saved.Status)
	assert.NotEmpty(t, saved.FailureReason)
	assert.Equal(t, 1, f.rec.Count(analytics.EventSessionFailed))
}

func TestSessions_SceneMismatch(t *testing.T) {
	f := newSessionsFixture(t)
	id := f.start(t, "fire-safety.json").Session.ID

	w := f.complete(t, id, state.SceneResults{SceneID: "exit-quiz", Answers: []string{"b"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	saved, err := f.store.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "intro", saved.CurrentSceneID)
	assert.Equal(t, state.StatusInProgress, saved.Status)
}

func TestSessions_QuizRetry(t *testing.T) {
	f := newSessionsFixture(t)
	m := mustManifest(t, fireSafetyJSON)
	m.Scenes[1].MaxAttempts = 2
	f.store.AddManifest("retry.json", m)
	id := f.start(t, "retry.json").Session.ID

	require.Equal(t, http.StatusOK, f.complete(t, id, state.SceneResults{SceneID: "intro"}).Code)

	w := f.complete(t, id, state.SceneResults{SceneID: "exit-quiz", Answers: []string{"a"}})
	require.Equal(t, http.StatusOK, w.Code)
	var step CompleteResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&step))
	assert.Equal(t, playhost.StepRetry, step.Kind)
	assert.Equal(t, 1, step.AttemptsLeft)
	require.NotNil(t, step.Quiz)
	assert.False(t, step.Quiz.Correct)
	assert.Equal(t, 1, step.Session.Attempts("exit-quiz"))
}

func TestSessions_ChoiceRequired(t *testing.T) {
	f := newSessionsFixture(t)
	id := f.start(t, "crossroads.json").Session.ID

	w := f.complete(t, id, state.SceneResults{SceneID: "door", MessagesSeen: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	saved, err := f.store.LoadSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "door", saved.CurrentSceneID)
	assert.Equal(t, state.StatusInProgress, saved.Status)
	assert.Empty(t, saved.ScenesCompleted)

	w = f.complete(t, id, state.SceneResults{SceneID: "door", ChoiceID: "in"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var step CompleteResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&step))
	assert.Equal(t, "check", step.SceneID)
}

func TestSessions_AssessmentGradedFromAnswers(t *testing.T) {
	f := newSessionsFixture(t)
	id := f.start(t, "crossroads.json").Session.ID
	require.Equal(t, http.StatusOK, f.complete(t, id, state.SceneResults{SceneID: "door", ChoiceID: "in"}).Code)

	w := f.complete(t, id, state.SceneResults{
		SceneID:   "check",
		Answers:   []string{"q1:lo"},
		Score:     state.IntPtr(500),
		MaxScore:  500,
		Passed:    state.BoolPtr(true),
		NextScene: "good",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var step CompleteResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&step))
	assert.Equal(t, playhost.StepComplete, step.Kind)
	assert.Equal(t, "bad", step.SceneID)
	require.NotNil(t, step.Assessment)
	assert.False(t, step.Assessment.Passed)
	require.NotNil(t, step.Results)
	assert.Equal(t, 0, step.Results.Score)
	assert.Equal(t, 5, step.Results.TotalScore)
}

func TestSessions_GetAndDelete(t *testing.T) {
	f := newSessionsFixture(t)
	id := f.start(t, "fire-safety.json").Session.ID
	path := "/v1/sessions/" + id.String()

	w := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, id, resp.Session.ID)
	require.NotNil(t, resp.Scene)
	assert.Equal(t, "intro", resp.Scene.ID)

	w = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_Routing(t *testing.T) {
	f := newSessionsFixture(t)
	id := uuid.New().String()

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"bad id", http.MethodGet, "/v1/sessions/not-a-uuid", http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/v1/sessions/" + id, http.StatusNotFound},
		{"unknown session complete", http.MethodPost, "/v1/sessions/" + id + "/complete", http.StatusNotFound},
		{"list not supported", http.MethodGet, "/v1/sessions", http.StatusMethodNotAllowed},
		{"wrong method", http.MethodPut, "/v1/sessions/" + id, http.StatusMethodNotAllowed},
		{"unknown action", http.MethodGet, "/v1/sessions/" + id + "/score", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body any
			if tt.method == http.MethodPost {
				body = state.SceneResults{}
			}
			w := f.do(t, tt.method, tt.path, body)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestSessions_Achievements(t *testing.T) {
	f := newSessionsFixture(t)
	id := f.start(t, "fire-safety.json").Session.ID
	path := "/v1/sessions/" + id.String() + "/achievements"

	w := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp AchievementsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.Achievements)

	require.Equal(t, http.StatusOK, f.complete(t, id, state.SceneResults{SceneID: "intro"}).Code)

	w = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = AchievementsResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	var ids []string
	for _, a := range resp.Achievements {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, achievement.FirstSteps)
}
