package quiz

import (
	"testing"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
)

func multiScene() *manifest.Scene {
	return &manifest.Scene{
		ID:            "gdpr-basics",
		Type:          manifest.SceneQuiz,
		AllowMultiple: true,
		Options: []manifest.Option{
			{ID: "a", Text: "Name", IsCorrect: true},
			{ID: "b", Text: "Personnummer", IsCorrect: true},
			{ID: "c", Text: "Weather report"},
		},
	}
}

func singleScene() *manifest.Scene {
	return &manifest.Scene{
		ID:   "phishing",
		Type: manifest.SceneQuiz,
		Options: []manifest.Option{
			{ID: "a", Text: "Report it", IsCorrect: true, Feedback: "Right"},
			{ID: "b", Text: "Click the link", Feedback: "Never"},
			{ID: "c", Text: "Forward to IT", IsCorrect: true},
		},
	}
}

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name     string
		scene    *manifest.Scene
		selected []string
		expected bool
	}{
		{"single: correct option", singleScene(), []string{"a"}, true},
		{"single: other correct option", singleScene(), []string{"c"}, true},
		{"single: wrong option", singleScene(), []string{"b"}, false},
		{"single: nothing selected", singleScene(), nil, false},
		{"single: two selected", singleScene(), []string{"a", "c"}, false},
		{"single: unknown id", singleScene(), []string{"z"}, false},
		{"multi: exact set", multiScene(), []string{"b", "a"}, true},
		{"multi: exact set with duplicate", multiScene(), []string{"a", "b", "a"}, true},
		{"multi: subset", multiScene(), []string{"a"}, false},
		{"multi: superset", multiScene(), []string{"a", "b", "c"}, false},
		{"multi: same size wrong member", multiScene(), []string{"a", "c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCorrect(tt.scene, tt.selected); got != tt.expected {
				t.Errorf("IsCorrect(%v) = %v, expected %v", tt.selected, got, tt.expected)
			}
		})
	}
}

func TestPossible(t *testing.T) {
	s := singleScene()
	if got := Possible(s); got != manifest.DefaultQuizPoints {
		t.Errorf("Expected default points %d, got %d", manifest.DefaultQuizPoints, got)
	}

	s.Options[0].Points = 3
	s.Options[2].Points = 2
	s.Options[1].Points = 50
	if got := Possible(s); got != 5 {
		t.Errorf("Expected sum of correct option points 5, got %d", got)
	}

	s.Points = 20
	if got := Possible(s); got != 20 {
		t.Errorf("Expected scene points 20, got %d", got)
	}
}

func TestGrade(t *testing.T) {
	res := Grade(singleScene(), []string{"b"})
	if res.Correct {
		t.Fatal("Expected incorrect result")
	}
	if res.Awarded != 0 {
		t.Errorf("Expected no points for an incorrect answer, got %d", res.Awarded)
	}
	if len(res.Feedback) != 3 {
		t.Fatalf("Expected feedback for 3 options, got %d", len(res.Feedback))
	}
	if !res.Feedback[1].Selected || res.Feedback[1].Correct || res.Feedback[1].Feedback != "Never" {
		t.Errorf("Unexpected verdict for option b: %+v", res.Feedback[1])
	}

	res = Grade(multiScene(), []string{"a"})
	if res.Correct || res.Awarded != 0 {
		t.Errorf("Expected no partial credit, got %+v", res)
	}

	res = Grade(multiScene(), []string{"a", "b"})
	if !res.Correct || res.Awarded != res.Possible {
		t.Errorf("Expected full credit, got %+v", res)
	}
}
