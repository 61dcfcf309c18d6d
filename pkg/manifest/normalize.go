package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Historical manifests spell several fields differently. The UnmarshalJSON
// methods below are the only place those spellings are read; everything after
// decoding sees the canonical fields.

func (o *Option) UnmarshalJSON(data []byte) error {
	type Alias Option
	aux := struct {
		*Alias
		OptionID   string `json:"option_id"`
		OptionText string `json:"option_text"`
		Label      string `json:"label"`
		IsCorrect  *bool  `json:"is_correct"`
		Correct    *bool  `json:"correct"`
	}{Alias: (*Alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.ID = firstNonEmpty(o.ID, aux.OptionID)
	o.Text = firstNonEmpty(o.Text, aux.OptionText, aux.Label)
	if !o.IsCorrect {
		o.IsCorrect = truthy(aux.IsCorrect) || truthy(aux.Correct)
	}
	return nil
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type Alias Message
	aux := struct {
		*Alias
		Character string `json:"character"`
		Name      string `json:"name"`
		Message   string `json:"message"`
		Content   string `json:"content"`
		Delay     *int   `json:"delayMs"`
	}{Alias: (*Alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Speaker = firstNonEmpty(m.Speaker, aux.Character, aux.Name)
	m.Text = firstNonEmpty(m.Text, aux.Message, aux.Content)
	if m.DelayMs == 0 && aux.Delay != nil {
		m.DelayMs = *aux.Delay
	}
	return nil
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	type Alias Choice
	aux := struct {
		*Alias
		NextSceneSnake string `json:"next_scene"`
		Next           string `json:"next"`
		Label          string `json:"label"`
	}{Alias: (*Alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.NextScene = firstNonEmpty(c.NextScene, aux.NextSceneSnake, aux.Next)
	c.Text = firstNonEmpty(c.Text, aux.Label)
	return nil
}

func (s *Scene) UnmarshalJSON(data []byte) error {
	type Alias Scene
	aux := struct {
		*Alias
		MaxAttempts   *int    `json:"max_attempts"`
		AllowMultiple *bool   `json:"allow_multiple"`
		Multiple      *bool   `json:"multiple"`
		Next          string  `json:"next"`
		PassThreshold float64 `json:"pass_threshold"`
	}{Alias: (*Alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s.MaxAttempts == 0 && aux.MaxAttempts != nil {
		s.MaxAttempts = *aux.MaxAttempts
	}
	if !s.AllowMultiple {
		s.AllowMultiple = truthy(aux.AllowMultiple) || truthy(aux.Multiple)
	}
	s.Navigation.Next = firstNonEmpty(s.Navigation.Next, aux.Next)
	if s.PassThreshold == 0 {
		s.PassThreshold = aux.PassThreshold
	}
	return nil
}

// Normalize fills defaults, trims identifiers and indexes the scenes. It is
// run once, at load time, and returns a *ManifestError when the manifest is
// structurally unusable.
func Normalize(m *GameManifest) error {
	if m == nil {
		return &ManifestError{Problems: []string{"manifest is empty"}}
	}

	m.GameID = strings.TrimSpace(m.GameID)
	m.StartScene = strings.TrimSpace(m.StartScene)
	for i := range m.Scenes {
		normalizeScene(&m.Scenes[i])
	}
	m.buildIndex()

	return Validate(m)
}

func normalizeScene(s *Scene) {
	s.ID = strings.TrimSpace(s.ID)
	s.Type = SceneType(strings.ToLower(strings.TrimSpace(string(s.Type))))
	s.Navigation.Next = strings.TrimSpace(s.Navigation.Next)

	for i := range s.Choices {
		if s.Choices[i].ID == "" {
			s.Choices[i].ID = fmt.Sprintf("choice-%d", i+1)
		}
		s.Choices[i].NextScene = strings.TrimSpace(s.Choices[i].NextScene)
	}
	normalizeOptions(s.Options)

	if s.Type == SceneQuiz && s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}

	for ci := range s.Categories {
		c := &s.Categories[ci]
		if c.ID == "" {
			c.ID = fmt.Sprintf("category-%d", ci+1)
		}
		for qi := range c.Questions {
			q := &c.Questions[qi]
			if q.ID == "" {
				q.ID = fmt.Sprintf("%s-q%d", c.ID, qi+1)
			}
			normalizeOptions(q.Options)
		}
	}
}

func normalizeOptions(opts []Option) {
	for i := range opts {
		if opts[i].ID == "" {
			opts[i].ID = fmt.Sprintf("option-%d", i+1)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truthy(b *bool) bool {
	return b != nil && *b
}
