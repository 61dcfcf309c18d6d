package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyJSON = `{
	"gameId": " legacy ",
	"scenes": [
		{
			"id": "intro",
			"type": "Dialogue",
			"messages": [{"character": "Guide", "message": "Hello", "delayMs": 500}],
			"choices": [{"label": "Go on", "next_scene": "q1"}],
			"next": "q1"
		},
		{
			"id": "q1",
			"type": "quiz",
			"question": "Pick one",
			"max_attempts": 3,
			"multiple": true,
			"options": [
				{"option_id": "a", "option_text": "First", "is_correct": true},
				{"label": "Second", "correct": true},
				{"id": "c", "text": "Third"}
			]
		},
		{"id": "done", "type": "summary"}
	]
}`

func TestParse_NormalizesLegacyFields(t *testing.T) {
	m, err := Parse([]byte(legacyJSON))
	require.NoError(t, err)

	assert.Equal(t, "legacy", m.GameID)
	intro, ok := m.Scene("intro")
	require.True(t, ok)
	assert.Equal(t, SceneDialogue, intro.Type)
	assert.Equal(t, "q1", intro.Navigation.Next)
	assert.Equal(t, Message{Speaker: "Guide", Text: "Hello", DelayMs: 500}, intro.Messages[0])
	assert.Equal(t, Choice{ID: "choice-1", Text: "Go on", NextScene: "q1"}, intro.Choices[0])

	q, ok := m.Scene("q1")
	require.True(t, ok)
	assert.Equal(t, 3, q.MaxAttempts)
	assert.True(t, q.AllowMultiple)
	assert.Equal(t, []string{"a", "option-2"}, q.CorrectOptionIDs())
	assert.Equal(t, "Second", q.Options[1].Text)
}

func TestParse_Defaults(t *testing.T) {
	m, err := Parse([]byte(`{
		"gameId": "g",
		"scenes": [
			{"id": "q", "type": "quiz", "question": "?", "options": [{"text": "x", "isCorrect": true}]},
			{"id": "a", "type": "assessment", "categories": [{"title": "Habits", "questions": [{"text": "?", "options": [{"text": "x"}]}]}]}
		]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "q", m.StartSceneID())
	assert.Equal(t, DefaultMaxAttempts, m.Scenes[0].MaxAttempts)
	assert.Equal(t, "category-1", m.Scenes[1].Categories[0].ID)
	assert.Equal(t, "category-1-q1", m.Scenes[1].Categories[0].Questions[0].ID)
	assert.Equal(t, 2, m.Sections())
	assert.Equal(t, 2, m.Questions())

	next, ok := m.NextInOrder("q")
	assert.True(t, ok)
	assert.Equal(t, "a", next)
	_, ok = m.NextInOrder("a")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		problem string
	}{
		{"malformed", `{"gameId": `, "malformed JSON"},
		{"no game id", `{"scenes": [{"id": "a", "type": "summary"}]}`, "gameId is required"},
		{"no scenes", `{"gameId": "g", "scenes": []}`, "declares no scenes"},
		{"scene without id", `{"gameId": "g", "scenes": [{"type": "summary"}]}`, "scene 0 has no id"},
		{"duplicate id", `{"gameId": "g", "scenes": [{"id": "a", "type": "summary"}, {"id": "a", "type": "summary"}]}`, `"a" is declared more than once`},
		{"unknown type", `{"gameId": "g", "scenes": [{"id": "a", "type": "video"}]}`, `unknown type "video"`},
		{"summary with next", `{"gameId": "g", "scenes": [{"id": "a", "type": "summary", "navigation": {"next": "b"}}]}`, "cannot declare navigation.next"},
		{"missing start", `{"gameId": "g", "startScene": "nope", "scenes": [{"id": "a", "type": "summary"}]}`, `start scene "nope" does not exist`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidManifest)

			var me *ManifestError
			require.True(t, errors.As(err, &me))
			assert.Contains(t, me.Error(), tt.problem)
		})
	}
}

func TestParseYAML_MatchesJSON(t *testing.T) {
	yml := `
gameId: legacy
scenes:
  - id: intro
    type: dialogue
    messages:
      - {speaker: Guide, text: Hello}
    navigation: {next: done}
  - id: done
    type: summary
`
	m, err := ParseYAML([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "legacy", m.GameID)
	assert.Equal(t, "done", m.Scenes[0].Navigation.Next)
	assert.Equal(t, "Hello", m.Scenes[0].Messages[0].Text)

	_, err = ParseYAML([]byte("gameId: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "legacy.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(legacyJSON), 0o644))
	yamlPath := filepath.Join(dir, "short.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("gameId: short\nscenes:\n  - {id: end, type: summary}\n"), 0o644))

	m, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "legacy", m.GameID)

	m, err = LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "short", m.GameID)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.True(t, IsManifestFile("a/b.JSON"))
	assert.True(t, IsManifestFile("b.yaml"))
	assert.False(t, IsManifestFile("notes.txt"))
}

func TestReferences(t *testing.T) {
	m, err := Parse([]byte(`{
		"gameId": "g",
		"scenes": [
			{"id": "intro", "type": "dialogue", "messages": [{"text": "hi"}],
			 "choices": [{"id": "ok", "nextScene": "check"}, {"id": "bad", "nextScene": "ghost"}],
			 "navigation": {"next": "nowhere"}},
			{"id": "check", "type": "assessment", "onPass": "end", "onFail": "retry-room",
			 "categories": [{"id": "c", "questions": [{"id": "q", "options": [{"id": "o"}]}]}]},
			{"id": "end", "type": "summary"}
		]
	}`))
	require.NoError(t, err)

	refs := References(m)
	require.Len(t, refs, 3)
	assert.Equal(t, ReferenceError{SceneID: "intro", Field: "navigation.next", Target: "nowhere"}, *refs[0])
	assert.Equal(t, ReferenceError{SceneID: "intro", Field: "choices[1].nextScene", Target: "ghost"}, *refs[1])
	assert.Equal(t, "onFail", refs[2].Field)
	assert.ErrorIs(t, refs[0], ErrDanglingReference)
}

func TestCheckRenderable(t *testing.T) {
	opts := []Option{{ID: "a", IsCorrect: true}}
	question := []Category{{ID: "c", Questions: []AssessmentQuestion{{ID: "q", Options: opts}}}}

	tests := []struct {
		name  string
		scene Scene
		ok    bool
	}{
		{"dialogue", Scene{Type: SceneDialogue, Messages: []Message{{Text: "hi"}}}, true},
		{"dialogue choices only", Scene{Type: SceneDialogue, Choices: []Choice{{ID: "x"}}}, true},
		{"empty dialogue", Scene{Type: SceneDialogue}, false},
		{"quiz", Scene{Type: SceneQuiz, Options: opts}, true},
		{"quiz without options", Scene{Type: SceneQuiz}, false},
		{"quiz without correct option", Scene{Type: SceneQuiz, Options: []Option{{ID: "a"}}}, false},
		{"assessment", Scene{Type: SceneAssessment, Categories: question, PassThreshold: 50}, true},
		{"assessment without categories", Scene{Type: SceneAssessment}, false},
		{"empty category", Scene{Type: SceneAssessment, Categories: []Category{{ID: "c"}}}, false},
		{"question without options", Scene{Type: SceneAssessment, Categories: []Category{{ID: "c", Questions: []AssessmentQuestion{{ID: "q"}}}}}, false},
		{"threshold out of range", Scene{Type: SceneAssessment, Categories: question, PassThreshold: 120}, false},
		{"resource", Scene{Type: SceneResource}, true},
		{"summary", Scene{Type: SceneSummary}, true},
		{"unknown", Scene{Type: "video"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.scene.ID = "s"
			err := CheckRenderable(&tt.scene)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var re *RenderError
			require.True(t, errors.As(err, &re))
			assert.ErrorIs(t, err, ErrRender)
			assert.Equal(t, "s", re.SceneID)
		})
	}
}
