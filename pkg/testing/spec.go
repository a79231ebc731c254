// Package testing implements rulemorph's scenario-based rule testing: a
// scenario feeds canned input records (and an optional context object)
// through a validated rule file and asserts on the resulting output
// records, warnings, and errors. Adapted from the teacher's
// pkg/kernel/testing scenario harness, which replays runbooks against
// canned evidence and asserts on outcome/captures/visited-steps — here the
// "replay" is a transform run and the assertions are about emitted
// records instead of runbook state.
package testing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExpectSpec declares what a scenario run should produce. All fields are
// optional; omitted fields are not asserted.
type ExpectSpec struct {
	// Records is the expected finalized output — the whole JSON value
	// (array, or wrapped object) that pipeline.Batch would return.
	Records any `yaml:"records,omitempty" json:"records,omitempty"`
	// Warnings lists expected warning codes, order-insensitive.
	Warnings []string `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	// Error, when set, expects the run to fail with a runtime error whose
	// Code equals this value.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// ScenarioSpec is one `testdata/scenarios/<rule-name>/*.yaml` fixture.
type ScenarioSpec struct {
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Input       []map[string]any `yaml:"input" json:"input"`
	Context     map[string]any   `yaml:"context,omitempty" json:"context,omitempty"`
	Expect      ExpectSpec       `yaml:"expect" json:"expect"`
}

// LoadScenario reads and parses one scenario fixture file.
func LoadScenario(path string) (*ScenarioSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testing: read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a ScenarioSpec from raw YAML bytes.
func ParseScenario(data []byte) (*ScenarioSpec, error) {
	var s ScenarioSpec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testing: parse scenario: %w", err)
	}
	return &s, nil
}
