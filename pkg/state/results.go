package state

// SceneResults is what a scene renderer emits when the learner finishes a
// scene. Which fields are set depends on the scene type.
type SceneResults struct {
	SceneID     string `json:"sceneId,omitempty"`   // Checked against the active scene when set
	NextScene   string `json:"nextScene,omitempty"` // Scene-local branch target
	Score       *int   `json:"score,omitempty"`
	Restart     bool   `json:"restart,omitempty"`
	TimeSpentMs int64  `json:"timeSpentMs,omitempty"`

	// quiz
	Answers  []string `json:"answers,omitempty"`
	Attempts int      `json:"attempts,omitempty"`
	Correct  *bool    `json:"correct,omitempty"` // Renderer's verdict; the controller regrades

	// dialogue
	MessagesSeen int    `json:"messagesSeen,omitempty"`
	ChoiceID     string `json:"choiceId,omitempty"`

	// assessment
	Passed        *bool            `json:"passed,omitempty"`
	Percentage    float64          `json:"percentage,omitempty"`
	MaxScore      int              `json:"maxScore,omitempty"`
	QuestionCount int              `json:"questionCount,omitempty"`
	Breakdown     []CategoryResult `json:"breakdown,omitempty"`

	// resource
	Viewed []string `json:"viewed,omitempty"`
}

// CategoryResult is one row of an assessment breakdown.
type CategoryResult struct {
	CategoryID string  `json:"categoryId"`
	Title      string  `json:"title"`
	Score      int     `json:"score"`
	MaxScore   int     `json:"maxScore"`
	Percentage float64 `json:"percentage"`
}

// ScoreValue returns the reported score, or 0 when none was reported.
func (r SceneResults) ScoreValue() int {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// IntPtr is a convenience for building results literals.
func IntPtr(v int) *int { return &v }

// BoolPtr is a convenience for building results literals.
func BoolPtr(v bool) *bool { return &v }
