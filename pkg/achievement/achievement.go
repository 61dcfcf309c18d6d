package achievement

import (
	"time"
)

// Metrics is the read-only snapshot of a session the rules are evaluated against.
type Metrics struct {
	Score             int           `json:"score"`
	MaxScore          int           `json:"maxScore"`
	ScorePercent      float64       `json:"scorePercent"`
	TimeSpent         time.Duration `json:"timeSpent"`
	ExpectedDuration  time.Duration `json:"expectedDuration,omitempty"`
	CorrectAnswers    int           `json:"correctAnswers"`
	QuestionsAnswered int           `json:"questionsAnswered"`
	SectionsCompleted int           `json:"sectionsCompleted"`
	TotalSections     int           `json:"totalSections"`
	EvaluatedAt       time.Time     `json:"evaluatedAt"` // Stamped on every awarded record
}

// CorrectRatio is correct answers over questions answered, or 0 with no answers.
func (m Metrics) CorrectRatio() float64 {
	if m.QuestionsAnswered == 0 {
		return 0
	}
	return float64(m.CorrectAnswers) / float64(m.QuestionsAnswered)
}

// Criteria lists the conditions a rule requires. Every non-nil condition must
// hold; a rule with no conditions never triggers.
type Criteria struct {
	MinScorePercent        *float64 `json:"minScorePercent,omitempty"`
	MinCorrectRatio        *float64 `json:"minCorrectRatio,omitempty"`
	MinQuestionsAnswered   *int     `json:"minQuestionsAnswered,omitempty"`
	MinSectionsCompleted   *int     `json:"minSectionsCompleted,omitempty"`
	AllSectionsCompleted   *bool    `json:"allSectionsCompleted,omitempty"`
	MaxTimeSeconds         *int     `json:"maxTimeSeconds,omitempty"`
	WithinExpectedDuration *bool    `json:"withinExpectedDuration,omitempty"`
}

// IsEmpty reports whether no condition is set.
func (c Criteria) IsEmpty() bool {
	return c.MinScorePercent == nil &&
		c.MinCorrectRatio == nil &&
		c.MinQuestionsAnswered == nil &&
		c.MinSectionsCompleted == nil &&
		c.AllSectionsCompleted == nil &&
		c.MaxTimeSeconds == nil &&
		c.WithinExpectedDuration == nil
}

// Rule is a named achievement and the criteria that award it.
type Rule struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Criteria    Criteria `json:"criteria"`
}

// Record is an awarded achievement.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Criteria    Criteria  `json:"criteria"`
	AwardedAt   time.Time `json:"awardedAt"`
}

// Met reports whether every condition of c holds for m.
func (c Criteria) Met(m Metrics) bool {
	if c.IsEmpty() {
		return false
	}

	if c.MinScorePercent != nil && m.ScorePercent < *c.MinScorePercent {
		return false
	}
	if c.MinCorrectRatio != nil && m.CorrectRatio() < *c.MinCorrectRatio {
		return false
	}
	if c.MinQuestionsAnswered != nil && m.QuestionsAnswered < *c.MinQuestionsAnswered {
		return false
	}
	if c.MinSectionsCompleted != nil && m.SectionsCompleted < *c.MinSectionsCompleted {
		return false
	}
	if c.AllSectionsCompleted != nil {
		all := m.TotalSections > 0 && m.SectionsCompleted >= m.TotalSections
		if all != *c.AllSectionsCompleted {
			return false
		}
	}
	if c.MaxTimeSeconds != nil && m.TimeSpent > time.Duration(*c.MaxTimeSeconds)*time.Second {
		return false
	}
	if c.WithinExpectedDuration != nil {
		within := m.ExpectedDuration > 0 && m.TimeSpent <= m.ExpectedDuration
		if within != *c.WithinExpectedDuration {
			return false
		}
	}

	return true
}

// Evaluator applies a fixed rule table to session metrics.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator builds an evaluator over the given rules. Later rules with an
// id already seen are ignored.
func NewEvaluator(rules ...Rule) *Evaluator {
	seen := make(map[string]bool, len(rules))
	e := &Evaluator{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		e.rules = append(e.rules, r)
	}
	return e
}

// Rules returns a copy of the evaluator's rule table.
func (e *Evaluator) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns a record for every rule whose criteria hold, in rule order.
// It depends on nothing but m, so identical metrics yield identical records.
func (e *Evaluator) Evaluate(m Metrics) []Record {
	var awarded []Record
	for _, r := range e.rules {
		if !r.Criteria.Met(m) {
			continue
		}
		awarded = append(awarded, Record{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Criteria:    r.Criteria,
			AwardedAt:   m.EvaluatedAt,
		})
	}
	return awarded
}

// Evaluate is shorthand for NewEvaluator(rules...).Evaluate(m).
func Evaluate(m Metrics, rules []Rule) []Record {
	return NewEvaluator(rules...).Evaluate(m)
}
