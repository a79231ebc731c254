package testing

import (
	"os"
	"path/filepath"
	"testing"
)

const wellFormedRule = `
version: 1
input:
  format: csv
  csv:
    has_header: true
    delimiter: ","
mappings:
  - target: id
    source: id
    value_type: int
  - target: name
    source: name
`

func writeRule(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "person.yaml")
	if err := os.WriteFile(path, []byte(wellFormedRule), 0o644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
	return path
}

func writeScenario(t *testing.T, ruleDir, name, yamlBody string) {
	t.Helper()
	dir := filepath.Join(ruleDir, "testdata", "scenarios", "person")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir scenarios: %v", err)
	}
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
}

func TestDiscoverScenariosNoneFound(t *testing.T) {
	dir := t.TempDir()
	rulePath := writeRule(t, dir)

	scenarios, err := DiscoverScenarios(rulePath)
	if err != nil {
		t.Fatalf("DiscoverScenarios: %v", err)
	}
	if len(scenarios) != 0 {
		t.Fatalf("expected no scenarios, got %v", scenarios)
	}
}

func TestRunAllPassingScenario(t *testing.T) {
	dir := t.TempDir()
	rulePath := writeRule(t, dir)
	writeScenario(t, dir, "basic", `
description: one record maps through
input:
  - id: "1"
    name: Ada
expect:
  records:
    - id: 1
      name: Ada
`)

	r := &Runner{}
	out, err := r.RunAll(rulePath)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if out.Summary.Total != 1 || out.Summary.Passed != 1 {
		t.Fatalf("unexpected summary: %+v", out.Summary)
	}
	if out.Scenarios[0].Status != "passed" {
		t.Fatalf("expected passed status, got %+v", out.Scenarios[0])
	}
}

func TestRunAllFailingScenario(t *testing.T) {
	dir := t.TempDir()
	rulePath := writeRule(t, dir)
	writeScenario(t, dir, "mismatch", `
description: expects the wrong name
input:
  - id: "1"
    name: Ada
expect:
  records:
    - id: 1
      name: Grace
`)

	r := &Runner{}
	out, err := r.RunAll(rulePath)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if out.Summary.Failed != 1 {
		t.Fatalf("expected 1 failed scenario, got %+v", out.Summary)
	}
}

func TestRunAllInvalidRuleFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatalf("write rule: %v", err)
	}

	r := &Runner{}
	if _, err := r.RunAll(path); err == nil {
		t.Fatal("expected an error for a rule file with no input/mappings")
	}
}

func TestRunAllFailFastStopsAfterFirstNonPass(t *testing.T) {
	dir := t.TempDir()
	rulePath := writeRule(t, dir)
	writeScenario(t, dir, "a_fails", `
input:
  - id: "1"
    name: Ada
expect:
  records:
    - id: 1
      name: WrongName
`)
	writeScenario(t, dir, "b_passes", `
input:
  - id: "2"
    name: Grace
expect:
  records:
    - id: 2
      name: Grace
`)

	r := &Runner{FailFast: true}
	out, err := r.RunAll(rulePath)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if out.Summary.Total != 1 {
		t.Fatalf("expected fail-fast to stop after 1 scenario, got %+v", out.Summary)
	}
}
