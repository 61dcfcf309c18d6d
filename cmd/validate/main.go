package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/scene-engine/pkg/manifest"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <game.json|game.yaml>...\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &ManifestValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

type ManifestValidator struct {
	errors []string
}

func (v *ManifestValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !manifest.IsManifestFile(baseName) {
		return fmt.Errorf("manifest file must have a .json, .yaml or .yml extension: %s", baseName)
	}
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !isValidID(nameWithoutExt) {
		return fmt.Errorf("manifest filename '%s' must be lowercase kebab-case or snake_case (e.g., fire-safety.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil
	v.validateData(data, manifest.IsYAML(baseName))

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateData collects every problem it can find instead of stopping at the
// first one.
func (v *ManifestValidator) validateData(data []byte, isYAML bool) {
	if isYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			v.addError(fmt.Sprintf("invalid YAML: %v", err))
			return
		}
		js, err := json.Marshal(doc)
		if err != nil {
			v.addError(fmt.Sprintf("YAML document is not representable as JSON: %v", err))
			return
		}
		data = js
	}

	if !json.Valid(data) {
		v.addError("file contains invalid JSON")
		return
	}

	// Strict decoding rejects unknown top-level and metadata fields. Scene
	// level legacy spellings are still accepted by the normal decoder.
	var strict manifest.GameManifest
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&strict); err != nil {
		v.addError(fmt.Sprintf("strict decoding failed: %v", err))
	}

	m, err := manifest.Parse(data)
	if err != nil {
		var me *manifest.ManifestError
		if errors.As(err, &me) {
			for _, p := range me.Problems {
				v.addError(p)
			}
		} else {
			v.addError(err.Error())
		}
		if m == nil {
			return
		}
	}

	v.validateManifest(m)
}

func (v *ManifestValidator) validateManifest(m *manifest.GameManifest) {
	v.validateIDFormat("gameId", m.GameID)
	v.validateIDFormat("startScene", m.StartScene)

	for _, rule := range m.Achievements {
		v.validateIDFormat("achievement ID", rule.ID)
	}

	for i := range m.Scenes {
		v.validateScene(&m.Scenes[i])
	}

	for _, ref := range manifest.References(m) {
		v.addError(ref.Error())
	}
}

func (v *ManifestValidator) validateScene(s *manifest.Scene) {
	v.validateIDFormat("scene ID", s.ID)

	if err := manifest.CheckRenderable(s); err != nil {
		v.addError(err.Error())
	}

	for _, c := range s.Choices {
		v.validateIDFormat(fmt.Sprintf("choice ID in scene %s", s.ID), c.ID)
	}
	for _, o := range s.Options {
		v.validateIDFormat(fmt.Sprintf("option ID in scene %s", s.ID), o.ID)
	}
	for _, c := range s.Categories {
		v.validateIDFormat(fmt.Sprintf("category ID in scene %s", s.ID), c.ID)
		for _, q := range c.Questions {
			v.validateIDFormat(fmt.Sprintf("question ID in scene %s", s.ID), q.ID)
		}
	}
	for _, rule := range s.Achievements {
		v.validateIDFormat(fmt.Sprintf("achievement ID in scene %s", s.ID), rule.ID)
	}

	if s.Type == manifest.SceneQuiz && !s.AllowMultiple && len(s.CorrectOptionIDs()) > 1 {
		v.addError(fmt.Sprintf("quiz scene %s marks several options correct but does not allow multiple answers", s.ID))
	}
	if s.FeedbackDelayMs < 0 {
		v.addError(fmt.Sprintf("scene %s has a negative feedbackDelayMs", s.ID))
	}
}

func (v *ManifestValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase kebab-case or snake_case", fieldName, id))
	}
}

func (v *ManifestValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z0-9]+([-_][a-z0-9]+)*$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
