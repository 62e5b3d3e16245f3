// Package project holds the inputs of one analysis run: the project
// configuration supplied by the project-management side and the raw
// transcript documents supplied by document storage.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes the research project an analysis run belongs to.
// It is immutable input to one run.
type Config struct {
	StakeholderType string `yaml:"stakeholder_type" json:"stakeholder_type"`
	Country         string `yaml:"country" json:"country"`
	TherapyArea     string `yaml:"therapy_area" json:"therapy_area"`
	ResearchGoal    string `yaml:"research_goal" json:"research_goal"`

	// GuideContext is the discussion guide, either free text or JSON
	// matching the guide structure shape. Empty means "no guide".
	GuideContext string `yaml:"guide_context,omitempty" json:"guide_context,omitempty"`

	Hypothesis   string            `yaml:"hypothesis,omitempty" json:"hypothesis,omitempty"`
	Dictionary   map[string]string `yaml:"dictionary,omitempty" json:"dictionary,omitempty"`
	GuidedThemes []string          `yaml:"guided_themes,omitempty" json:"guided_themes,omitempty"`

	// OutputLanguage is an ISO 639-1 code for summary and theme fields.
	// Empty means English.
	OutputLanguage string `yaml:"output_language,omitempty" json:"output_language,omitempty"`
}

// IsBlank reports whether none of the identifying project fields are set.
func (c Config) IsBlank() bool {
	return strings.TrimSpace(c.StakeholderType) == "" &&
		strings.TrimSpace(c.Country) == "" &&
		strings.TrimSpace(c.TherapyArea) == "" &&
		strings.TrimSpace(c.ResearchGoal) == ""
}

// Document is one raw transcript.
type Document struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// IsBlank reports whether the document has no usable text.
func (d Document) IsBlank() bool {
	return strings.TrimSpace(d.Content) == ""
}

// LoadConfig reads a project configuration from a YAML or JSON file.
// The format is chosen by extension; anything other than .json is parsed as YAML.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided project file
	if err != nil {
		return Config{}, fmt.Errorf("failed to read project file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid project file %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid project file %s: %w", path, err)
	}
	return cfg, nil
}
