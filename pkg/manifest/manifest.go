package manifest

import (
	"github.com/jwebster45206/scene-engine/pkg/achievement"
)

// SceneType discriminates the payload carried by a Scene.
type SceneType string

const (
	SceneDialogue   SceneType = "dialogue"
	SceneQuiz       SceneType = "quiz"
	SceneAssessment SceneType = "assessment"
	SceneResource   SceneType = "resource"
	SceneSummary    SceneType = "summary"
)

// Valid reports whether t is one of the known scene types.
func (t SceneType) Valid() bool {
	switch t {
	case SceneDialogue, SceneQuiz, SceneAssessment, SceneResource, SceneSummary:
		return true
	}
	return false
}

const (
	// DefaultMaxAttempts applies to quiz scenes that do not declare maxAttempts.
	DefaultMaxAttempts = 1
	// DefaultQuizPoints is awarded for a correct quiz answer when neither the
	// scene nor its correct options declare points.
	DefaultQuizPoints = 10
)

// GameManifest describes an entire game. It is immutable once loaded.
type GameManifest struct {
	GameID         string             `json:"gameId"`
	Metadata       Metadata           `json:"metadata"`
	StartScene     string             `json:"startScene,omitempty"`     // Defaults to the first scene
	LinearFallback bool               `json:"linearFallback,omitempty"` // Advance in manifest order when no target resolves
	Achievements   []achievement.Rule `json:"achievements,omitempty"`   // Game-wide achievement rules
	Scenes         []Scene            `json:"scenes"`

	index map[string]int
}

// Metadata is descriptive information shown to the learner.
type Metadata struct {
	Title      string   `json:"title"`
	Duration   int      `json:"duration,omitempty"` // Expected duration in minutes
	Objectives []string `json:"objectives,omitempty"`
	Language   string   `json:"language,omitempty"` // BCP 47 tag, e.g. "sv" or "en"
}

// Navigation holds the explicit successor of a scene.
type Navigation struct {
	Next string `json:"next,omitempty"`
}

// Scene is one discrete unit of learner-facing content. Only the fields that
// belong to its Type are populated.
type Scene struct {
	ID         string     `json:"id"`
	Type       SceneType  `json:"type"`
	Title      string     `json:"title,omitempty"`
	Navigation Navigation `json:"navigation,omitempty"`

	// dialogue
	Messages []Message `json:"messages,omitempty"`
	Choices  []Choice  `json:"choices,omitempty"`

	// quiz
	Question        string   `json:"question,omitempty"`
	Options         []Option `json:"options,omitempty"`
	MaxAttempts     int      `json:"maxAttempts,omitempty"`
	AllowMultiple   bool     `json:"allowMultiple,omitempty"`
	Points          int      `json:"points,omitempty"`
	FeedbackDelayMs int      `json:"feedbackDelayMs,omitempty"`

	// assessment
	PassThreshold float64            `json:"passThreshold,omitempty"` // Percentage, 0-100
	Categories    []Category         `json:"categories,omitempty"`
	OnPass        string             `json:"onPass,omitempty"`
	OnFail        string             `json:"onFail,omitempty"`
	Achievements  []achievement.Rule `json:"achievements,omitempty"`

	// resource
	Body      string     `json:"body,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
}

// Message is one line of a dialogue scene.
type Message struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	DelayMs int    `json:"delay,omitempty"` // Auto-advance after this many milliseconds
}

// Choice is a branching option offered after the last dialogue message.
type Choice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	NextScene string `json:"nextScene,omitempty"`
	Points    int    `json:"points,omitempty"`
}

// Option is a selectable quiz or assessment answer.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
	Feedback  string `json:"feedback,omitempty"`
	Points    int    `json:"points,omitempty"`
}

// Category groups assessment questions for the result breakdown.
type Category struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Questions []AssessmentQuestion `json:"questions"`
}

// AssessmentQuestion is a single-select question whose options carry points.
type AssessmentQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Resource is static reference content.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Body  string `json:"body,omitempty"`
}

// Scene returns the scene with the given id.
func (m *GameManifest) Scene(id string) (*Scene, bool) {
	if m == nil {
		return nil, false
	}
	if m.index == nil {
		m.buildIndex()
	}
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return &m.Scenes[i], true
}

// HasScene reports whether id names a scene in the manifest.
func (m *GameManifest) HasScene(id string) bool {
	_, ok := m.Scene(id)
	return ok
}

// StartSceneID returns the declared start scene or, if none, the first scene.
func (m *GameManifest) StartSceneID() string {
	if m.StartScene != "" {
		return m.StartScene
	}
	if len(m.Scenes) == 0 {
		return ""
	}
	return m.Scenes[0].ID
}

// NextInOrder returns the scene that follows id in manifest order.
func (m *GameManifest) NextInOrder(id string) (string, bool) {
	if m.index == nil {
		m.buildIndex()
	}
	i, ok := m.index[id]
	if !ok || i+1 >= len(m.Scenes) {
		return "", false
	}
	return m.Scenes[i+1].ID, true
}

// Sections counts the scenes a learner completes on the way to a summary.
func (m *GameManifest) Sections() int {
	n := 0
	for _, s := range m.Scenes {
		if s.Type != SceneSummary {
			n++
		}
	}
	return n
}

// Questions counts the graded questions in the manifest.
func (m *GameManifest) Questions() int {
	n := 0
	for _, s := range m.Scenes {
		switch s.Type {
		case SceneQuiz:
			n++
		case SceneAssessment:
			for _, c := range s.Categories {
				n += len(c.Questions)
			}
		}
	}
	return n
}

// AchievementRules returns the game-wide rules followed by every rule an
// assessment scene declares, in manifest order.
func (m *GameManifest) AchievementRules() []achievement.Rule {
	rules := make([]achievement.Rule, 0, len(m.Achievements))
	rules = append(rules, m.Achievements...)
	for _, s := range m.Scenes {
		if s.Type == SceneAssessment {
			rules = append(rules, s.Achievements...)
		}
	}
	return rules
}

func (m *GameManifest) buildIndex() {
	m.index = make(map[string]int, len(m.Scenes))
	for i, s := range m.Scenes {
		if _, dup := m.index[s.ID]; !dup {
			m.index[s.ID] = i
		}
	}
}

// CorrectOptionIDs returns the ids of the options marked correct.
func (s *Scene) CorrectOptionIDs() []string {
	var ids []string
	for _, o := range s.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Option returns the option with the given id.
func (s *Scene) Option(id string) (Option, bool) {
	for _, o := range s.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Choice returns the dialogue choice with the given id.
func (s *Scene) Choice(id string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Attempts returns the effective attempt limit for a quiz scene.
func (s *Scene) Attempts() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

// IsTerminal reports whether reaching the scene ends the session.
func (s *Scene) IsTerminal() bool {
	return s.Type == SceneSummary
}
