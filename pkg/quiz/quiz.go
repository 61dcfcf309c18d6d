package quiz

import (
	"github.com/jwebster45206/scene-engine/pkg/manifest"
)

// Result is the outcome of grading one submission.
type Result struct {
	Correct  bool            `json:"correct"`
	Awarded  int             `json:"awarded"`  // Points earned by this submission
	Possible int             `json:"possible"` // Points a correct submission earns
	Selected []string        `json:"selected"`
	Feedback []OptionVerdict `json:"feedback"`
}

// OptionVerdict is the per-option correctness shown after submission.
type OptionVerdict struct {
	OptionID string `json:"optionId"`
	Selected bool   `json:"selected"`
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback,omitempty"`
}

// IsCorrect grades a selection against a quiz scene.
//
// Single-select: correct when the selected option is correct. Multi-select:
// correct only when the selected set equals the correct set exactly. Unknown
// option ids count as wrong selections.
func IsCorrect(scene *manifest.Scene, selected []string) bool {
	sel := dedupe(selected)
	if len(sel) == 0 {
		return false
	}

	correct := make(map[string]bool)
	for _, id := range scene.CorrectOptionIDs() {
		correct[id] = true
	}

	if !scene.AllowMultiple {
		if len(sel) != 1 {
			return false
		}
		return correct[sel[0]]
	}

	if len(sel) != len(correct) {
		return false
	}
	for _, id := range sel {
		if !correct[id] {
			return false
		}
	}
	return true
}

// Possible returns the points a correct answer to the scene is worth.
func Possible(scene *manifest.Scene) int {
	if scene.Points > 0 {
		return scene.Points
	}
	sum := 0
	for _, o := range scene.Options {
		if o.IsCorrect && o.Points > 0 {
			sum += o.Points
		}
	}
	if sum > 0 {
		return sum
	}
	return manifest.DefaultQuizPoints
}

// Grade grades a selection and builds the per-option feedback. There is no
// partial credit: an incorrect submission earns nothing.
func Grade(scene *manifest.Scene, selected []string) Result {
	sel := dedupe(selected)
	chosen := make(map[string]bool, len(sel))
	for _, id := range sel {
		chosen[id] = true
	}

	res := Result{
		Correct:  IsCorrect(scene, sel),
		Possible: Possible(scene),
		Selected: sel,
		Feedback: make([]OptionVerdict, 0, len(scene.Options)),
	}
	if res.Correct {
		res.Awarded = res.Possible
	}

	for _, o := range scene.Options {
		res.Feedback = append(res.Feedback, OptionVerdict{
			OptionID: o.ID,
			Selected: chosen[o.ID],
			Correct:  o.IsCorrect,
			Feedback: o.Feedback,
		})
	}
	return res
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
