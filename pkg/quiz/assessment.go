package quiz

import (
	"strings"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
	"github.com/jwebster45206/scene-engine/pkg/state"
)

// AssessmentResult is the outcome of grading an assessment scene.
type AssessmentResult struct {
	Score      int                    `json:"score"`
	MaxScore   int                    `json:"maxScore"`
	Percentage float64                `json:"percentage"`
	Passed     bool                   `json:"passed"`
	Next       string                 `json:"next,omitempty"` // OnPass or OnFail target
	Answered   int                    `json:"answered"`
	Best       int                    `json:"best"` // Answers that carried the question's top points
	Unanswered int                    `json:"unanswered"`
	Answers    []string               `json:"answers"` // "question:option" in manifest order
	Breakdown  []state.CategoryResult `json:"breakdown"`
}

// ParseAnswers splits "question:option" entries into a map. Malformed
// entries are skipped and a later entry for a question replaces an earlier one.
func ParseAnswers(answers []string) map[string]string {
	chosen := make(map[string]string, len(answers))
	for _, a := range answers {
		q, o, ok := strings.Cut(a, ":")
		if ok && q != "" && o != "" {
			chosen[q] = o
		}
	}
	return chosen
}

// GradeAssessment scores chosen (question id -> option id) from the scene's
// option points. An option that does not belong to its question counts as
// no answer. Negative option points score as zero.
func GradeAssessment(scene *manifest.Scene, chosen map[string]string) AssessmentResult {
	res := AssessmentResult{
		Answers:   make([]string, 0, len(chosen)),
		Breakdown: make([]state.CategoryResult, 0, len(scene.Categories)),
	}

	for _, c := range scene.Categories {
		cr := state.CategoryResult{CategoryID: c.ID, Title: c.Title}
		for _, q := range c.Questions {
			top := 0
			for _, o := range q.Options {
				top = max(top, o.Points)
			}
			cr.MaxScore += top

			picked, ok := pick(q, chosen[q.ID])
			if !ok {
				res.Unanswered++
				continue
			}
			res.Answered++
			res.Answers = append(res.Answers, q.ID+":"+picked.ID)
			if picked.Points >= top {
				res.Best++
			}
			cr.Score += max(picked.Points, 0)
		}
		cr.Percentage = Percent(cr.Score, cr.MaxScore)
		res.Score += cr.Score
		res.MaxScore += cr.MaxScore
		res.Breakdown = append(res.Breakdown, cr)
	}

	res.Percentage = Percent(res.Score, res.MaxScore)
	res.Passed = res.Percentage >= scene.PassThreshold
	res.Next = scene.OnFail
	if res.Passed {
		res.Next = scene.OnPass
	}
	return res
}

func pick(q manifest.AssessmentQuestion, optionID string) (manifest.Option, bool) {
	if optionID == "" {
		return manifest.Option{}, false
	}
	for _, o := range q.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return manifest.Option{}, false
}

// Percent is score over possible as a percentage, or 0 when nothing was possible.
func Percent(score, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return float64(score) * 100 / float64(possible)
}
