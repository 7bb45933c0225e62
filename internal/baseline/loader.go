package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a baseline file.
type Document struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Segments Table  `json:"segments" yaml:"segments"`
}

// LoadFile reads a YAML or JSON baseline and validates it.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline %s: %w", path, err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported baseline format %q (want .yaml, .yml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse baseline %s: %w", path, err)
	}

	if err := doc.Segments.Validate(); err != nil {
		return nil, fmt.Errorf("invalid baseline %s: %w", path, err)
	}
	return &doc, nil
}

// SaveFile writes the document as YAML, via a temp file and rename.
func SaveFile(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode baseline: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write baseline: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename baseline file: %w", err)
	}
	return nil
}
