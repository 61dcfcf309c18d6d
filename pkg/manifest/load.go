package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON manifest and normalizes it.
func Parse(data []byte) (*GameManifest, error) {
	var m GameManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Problems: []string{fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if err := Normalize(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseYAML decodes a YAML manifest. The document is converted to JSON first
// so both formats pass through the same normalization.
func ParseYAML(data []byte) (*GameManifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ManifestError{Problems: []string{fmt.Sprintf("malformed YAML: %v", err)}}
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, &ManifestError{Problems: []string{fmt.Sprintf("YAML document is not representable as JSON: %v", err)}}
	}
	return Parse(js)
}

// LoadFile reads a manifest from disk, choosing the decoder by extension.
func LoadFile(path string) (*GameManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m *GameManifest
	if IsYAML(path) {
		m, err = ParseYAML(data)
	} else {
		m, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// IsManifestFile reports whether path has an extension LoadFile understands.
func IsManifestFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json") || IsYAML(path)
}

// IsYAML reports whether path has a YAML extension.
func IsYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
