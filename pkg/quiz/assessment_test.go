package quiz

import (
	"reflect"
	"testing"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
)

func habitsScene() *manifest.Scene {
	return &manifest.Scene{
		ID:            "habits",
		Type:          manifest.SceneAssessment,
		PassThreshold: 60,
		OnPass:        "well-done",
		OnFail:        "tips",
		Categories: []manifest.Category{
			{ID: "breaks", Title: "Breaks", Questions: []manifest.AssessmentQuestion{
				{ID: "lunch", Options: []manifest.Option{{ID: "never", Points: 0}, {ID: "daily", Points: 4}}},
				{ID: "screens", Options: []manifest.Option{{ID: "rarely", Points: 0}, {ID: "hourly", Points: 3}}},
			}},
			{ID: "boundaries", Title: "Boundaries", Questions: []manifest.AssessmentQuestion{
				{ID: "evenings", Options: []manifest.Option{{ID: "always", Points: 0}, {ID: "no", Points: 3}}},
			}},
		},
	}
}

func TestParseAnswers(t *testing.T) {
	got := ParseAnswers([]string{"lunch:never", "malformed", ":x", "q:", "lunch:daily", "screens:hourly"})
	want := map[string]string{"lunch": "daily", "screens": "hourly"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestGradeAssessment(t *testing.T) {
	tests := []struct {
		name           string
		answers        []string
		wantScore      int
		wantPassed     bool
		wantNext       string
		wantAnswered   int
		wantBest       int
		wantUnanswered int
	}{
		{
			name:         "all top answers pass",
			answers:      []string{"lunch:daily", "screens:hourly", "evenings:no"},
			wantScore:    10,
			wantPassed:   true,
			wantNext:     "well-done",
			wantAnswered: 3,
			wantBest:     3,
		},
		{
			name:         "low answers fail",
			answers:      []string{"lunch:never", "screens:rarely", "evenings:no"},
			wantScore:    3,
			wantNext:     "tips",
			wantAnswered: 3,
			wantBest:     1,
		},
		{
			name:           "unknown options count as unanswered",
			answers:        []string{"lunch:daily", "screens:sometimes", "ghost:daily"},
			wantScore:      4,
			wantNext:       "tips",
			wantAnswered:   1,
			wantBest:       1,
			wantUnanswered: 2,
		},
		{
			name:           "no answers",
			wantNext:       "tips",
			wantUnanswered: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := GradeAssessment(habitsScene(), ParseAnswers(tt.answers))

			if res.Score != tt.wantScore {
				t.Errorf("Expected score %d, got %d", tt.wantScore, res.Score)
			}
			if res.MaxScore != 10 {
				t.Errorf("Expected max score 10, got %d", res.MaxScore)
			}
			if res.Passed != tt.wantPassed {
				t.Errorf("Expected passed %v, got %v", tt.wantPassed, res.Passed)
			}
			if res.Next != tt.wantNext {
				t.Errorf("Expected next %q, got %q", tt.wantNext, res.Next)
			}
			if res.Answered != tt.wantAnswered || res.Best != tt.wantBest || res.Unanswered != tt.wantUnanswered {
				t.Errorf("Expected answered/best/unanswered %d/%d/%d, got %d/%d/%d",
					tt.wantAnswered, tt.wantBest, tt.wantUnanswered, res.Answered, res.Best, res.Unanswered)
			}
			if len(res.Answers) != res.Answered {
				t.Errorf("Expected %d normalized answers, got %v", res.Answered, res.Answers)
			}
		})
	}
}

func TestGradeAssessment_Breakdown(t *testing.T) {
	res := GradeAssessment(habitsScene(), ParseAnswers([]string{"lunch:daily", "screens:rarely", "evenings:no"}))

	if len(res.Breakdown) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(res.Breakdown))
	}
	breaks := res.Breakdown[0]
	if breaks.CategoryID != "breaks" || breaks.Score != 4 || breaks.MaxScore != 7 {
		t.Errorf("Unexpected breaks row: %+v", breaks)
	}
	if res.Breakdown[1].Percentage != 100 {
		t.Errorf("Expected boundaries at 100%%, got %v", res.Breakdown[1].Percentage)
	}
	if res.Percentage != 70 || !res.Passed {
		t.Errorf("Expected 70%% and a pass, got %v passed=%v", res.Percentage, res.Passed)
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(3, 0); got != 0 {
		t.Errorf("Expected 0 with nothing possible, got %v", got)
	}
	if got := Percent(1, 4); got != 25 {
		t.Errorf("Expected 25, got %v", got)
	}
}
