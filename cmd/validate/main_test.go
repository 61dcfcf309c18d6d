package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validManifest = `{
	"gameId": "fire-safety",
	"metadata": {"title": "Fire safety"},
	"scenes": [
		{"id": "intro", "type": "dialogue", "messages": [{"speaker": "Warden", "text": "Hello"}], "navigation": {"next": "exit_quiz"}},
		{"id": "exit_quiz", "type": "quiz", "question": "Which exit?", "options": [
			{"id": "a", "text": "Elevator"},
			{"id": "b", "text": "Stairs", "isCorrect": true}
		], "navigation": {"next": "done"}},
		{"id": "done", "type": "summary"}
	]
}`

func TestValidateData(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		yaml       bool
		wantErrors []string
	}{
		{name: "valid", data: validManifest},
		{
			name:       "unknown top-level field",
			data:       strings.Replace(validManifest, `"gameId"`, `"extra": 1, "gameId"`, 1),
			wantErrors: []string{"strict decoding failed"},
		},
		{
			name:       "bad scene id",
			data:       strings.Replace(validManifest, `"id": "intro"`, `"id": "Intro Scene"`, 1),
			wantErrors: []string{"scene ID 'Intro Scene'"},
		},
		{
			name:       "dangling reference",
			data:       strings.Replace(validManifest, `"next": "done"`, `"next": "finale"`, 1),
			wantErrors: []string{`points to unknown scene "finale"`},
		},
		{
			name:       "unrenderable quiz",
			data:       strings.Replace(validManifest, `"isCorrect": true`, `"isCorrect": false`, 1),
			wantErrors: []string{"quiz has no correct option"},
		},
		{
			name:       "duplicate ids",
			data:       strings.Replace(validManifest, `"id": "done"`, `"id": "intro"`, 1),
			wantErrors: []string{"declared more than once"},
		},
		{
			name:       "invalid json",
			data:       `{"gameId": `,
			wantErrors: []string{"invalid JSON"},
		},
		{
			name: "valid yaml",
			yaml: true,
			data: `
gameId: yaml-game
scenes:
  - id: only
    type: resource
    resources:
      - title: Handbook
`,
		},
		{
			name:       "yaml unknown field",
			yaml:       true,
			data:       "gameId: g\nsurprise: true\nscenes:\n  - id: only\n    type: resource\n",
			wantErrors: []string{"strict decoding failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &ManifestValidator{}
			v.validateData([]byte(tt.data), tt.yaml)

			if len(tt.wantErrors) == 0 && len(v.errors) > 0 {
				t.Fatalf("Expected no errors, got:\n%s", strings.Join(v.errors, "\n"))
			}
			all := strings.Join(v.errors, "\n")
			for _, want := range tt.wantErrors {
				if !strings.Contains(all, want) {
					t.Errorf("Expected an error containing %q, got:\n%s", want, all)
				}
			}
		})
	}
}

func TestValidateFile_Filename(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "fire-safety.json")
	if err := os.WriteFile(good, []byte(validManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := (&ManifestValidator{}).validateFile(good); err != nil {
		t.Errorf("Expected valid file, got %v", err)
	}

	bad := filepath.Join(dir, "FireSafety.json")
	if err := os.WriteFile(bad, []byte(validManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := (&ManifestValidator{}).validateFile(bad); err == nil {
		t.Error("Expected filename error")
	}

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte(validManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := (&ManifestValidator{}).validateFile(txt); err == nil {
		t.Error("Expected extension error")
	}
}

func TestIsValidID(t *testing.T) {
	for _, id := range []string{"intro", "exit-quiz", "exit_quiz", "q1", "a"} {
		if !isValidID(id) {
			t.Errorf("Expected %q to be valid", id)
		}
	}
	for _, id := range []string{"Intro", "exit quiz", "-lead", "trail-", "double--dash", ""} {
		if isValidID(id) {
			t.Errorf("Expected %q to be invalid", id)
		}
	}
}
