package manifest

import (
	"fmt"
)

// Validate checks the structural rules a manifest must satisfy before a
// session can start on it. Missing navigation targets are not structural:
// they surface as ErrDanglingReference when a learner reaches them.
func Validate(m *GameManifest) error {
	if m == nil {
		return &ManifestError{Problems: []string{"manifest is empty"}}
	}

	var problems []string
	if m.GameID == "" {
		problems = append(problems, "gameId is required")
	}
	if len(m.Scenes) == 0 {
		problems = append(problems, "manifest declares no scenes")
	}

	seen := make(map[string]bool, len(m.Scenes))
	for i, s := range m.Scenes {
		if s.ID == "" {
			problems = append(problems, fmt.Sprintf("scene %d has no id", i))
			continue
		}
		if seen[s.ID] {
			problems = append(problems, fmt.Sprintf("scene id %q is declared more than once", s.ID))
		}
		seen[s.ID] = true

		if !s.Type.Valid() {
			problems = append(problems, fmt.Sprintf("scene %q has unknown type %q", s.ID, s.Type))
		}
		if s.Type == SceneSummary && s.Navigation.Next != "" {
			problems = append(problems, fmt.Sprintf("summary scene %q cannot declare navigation.next", s.ID))
		}
	}

	if len(m.Scenes) > 0 {
		if start := m.StartSceneID(); !seen[start] {
			problems = append(problems, fmt.Sprintf("start scene %q does not exist", start))
		}
	}

	if len(problems) > 0 {
		return &ManifestError{GameID: m.GameID, Problems: problems}
	}
	return nil
}

// References returns every navigation target in the manifest that does not
// name a scene. It never fails a load; the validate command and hosts that
// want early warnings use it.
func References(m *GameManifest) []*ReferenceError {
	var dangling []*ReferenceError
	check := func(sceneID, field, target string) {
		if target != "" && !m.HasScene(target) {
			dangling = append(dangling, &ReferenceError{SceneID: sceneID, Field: field, Target: target})
		}
	}

	for _, s := range m.Scenes {
		check(s.ID, "navigation.next", s.Navigation.Next)
		for i, c := range s.Choices {
			check(s.ID, fmt.Sprintf("choices[%d].nextScene", i), c.NextScene)
		}
		check(s.ID, "onPass", s.OnPass)
		check(s.ID, "onFail", s.OnFail)
	}
	return dangling
}

// CheckRenderable reports a *RenderError when a scene's data cannot be
// presented for its declared type.
func CheckRenderable(s *Scene) error {
	fail := func(reason string) error {
		return &RenderError{SceneID: s.ID, Type: s.Type, Reason: reason}
	}

	switch s.Type {
	case SceneDialogue:
		if len(s.Messages) == 0 && len(s.Choices) == 0 {
			return fail("dialogue has no messages")
		}
	case SceneQuiz:
		if len(s.Options) == 0 {
			return fail("quiz has no options")
		}
		if len(s.CorrectOptionIDs()) == 0 {
			return fail("quiz has no correct option")
		}
	case SceneAssessment:
		if len(s.Categories) == 0 {
			return fail("assessment has no categories")
		}
		for _, c := range s.Categories {
			if len(c.Questions) == 0 {
				return fail(fmt.Sprintf("category %q has no questions", c.ID))
			}
			for _, q := range c.Questions {
				if len(q.Options) == 0 {
					return fail(fmt.Sprintf("question %q has no options", q.ID))
				}
			}
		}
		if s.PassThreshold < 0 || s.PassThreshold > 100 {
			return fail("passThreshold must be between 0 and 100")
		}
	case SceneResource, SceneSummary:
		return nil
	default:
		return fail("unknown scene type")
	}
	return nil
}
