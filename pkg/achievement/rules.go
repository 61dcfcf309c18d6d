package achievement

// Default rule ids.
const (
	FirstSteps    = "first-steps"
	Completionist = "completionist"
	HighAchiever  = "high-achiever"
	PerfectScore  = "perfect-score"
	SharpEye      = "sharp-eye"
	QuickLearner  = "quick-learner"
)

// DefaultRules is the rule table every game starts from. Manifests append
// their own rules after these.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          FirstSteps,
			Title:       "First Steps",
			Description: "Completed the first section",
			Criteria:    Criteria{MinSectionsCompleted: intPtr(1)},
		},
		{
			ID:          Completionist,
			Title:       "Completionist",
			Description: "Completed every section",
			Criteria:    Criteria{AllSectionsCompleted: boolPtr(true)},
		},
		{
			ID:          HighAchiever,
			Title:       "High Achiever",
			Description: "Scored at least 80%",
			Criteria:    Criteria{MinScorePercent: floatPtr(80), MinQuestionsAnswered: intPtr(1)},
		},
		{
			ID:          PerfectScore,
			Title:       "Perfect Score",
			Description: "Scored 100%",
			Criteria:    Criteria{MinScorePercent: floatPtr(100), MinQuestionsAnswered: intPtr(1)},
		},
		{
			ID:          SharpEye,
			Title:       "Sharp Eye",
			Description: "Answered at least 90% of questions correctly",
			Criteria:    Criteria{MinCorrectRatio: floatPtr(0.9), MinQuestionsAnswered: intPtr(3)},
		},
		{
			ID:          QuickLearner,
			Title:       "Quick Learner",
			Description: "Finished within the expected duration",
			Criteria:    Criteria{AllSectionsCompleted: boolPtr(true), WithinExpectedDuration: boolPtr(true)},
		},
	}
}

func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }
func floatPtr(v float64) *float64 { return &v }
