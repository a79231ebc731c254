package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pipeline"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/validate"
)

// Runner discovers and executes scenario tests for a rule file.
type Runner struct {
	FailFast bool
}

// ScenarioInfo describes one discovered scenario fixture file.
type ScenarioInfo struct {
	Name string // file base name, without extension
	Path string
}

// DiscoverScenarios finds scenario fixtures for a rule file by convention:
// {rule-dir}/testdata/scenarios/{rule-name}/*.yaml, siblings of the rule
// file itself (the rule-name is the rule's filename without extension).
func DiscoverScenarios(rulePath string) ([]ScenarioInfo, error) {
	dir := filepath.Dir(rulePath)
	base := strings.TrimSuffix(filepath.Base(rulePath), filepath.Ext(rulePath))
	scenDir := filepath.Join(dir, "testdata", "scenarios", base)

	entries, err := os.ReadDir(scenDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("testing: read scenarios dir: %w", err)
	}

	var out []ScenarioInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		out = append(out, ScenarioInfo{
			Name: strings.TrimSuffix(e.Name(), ext),
			Path: filepath.Join(scenDir, e.Name()),
		})
	}
	return out, nil
}

// RunAll validates rulePath, discovers its scenarios, and runs each one.
func (r *Runner) RunAll(rulePath string) (*TestOutput, error) {
	rf, result, err := validate.ValidateFile(rulePath)
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, fmt.Errorf("testing: rule %s failed validation: %s", rulePath, result.Errors[0].Error())
	}

	scenarios, err := DiscoverScenarios(rulePath)
	if err != nil {
		return nil, err
	}

	out := &TestOutput{Rule: filepath.Base(rulePath)}
	for _, si := range scenarios {
		res := r.runScenario(rf, si)
		out.Scenarios = append(out.Scenarios, res)
		out.Summary.Total++
		switch res.Status {
		case "passed":
			out.Summary.Passed++
		case "failed":
			out.Summary.Failed++
		case "error":
			out.Summary.Errors++
		}
		if r.FailFast && res.Status != "passed" {
			break
		}
	}
	return out, nil
}

func (r *Runner) runScenario(rf *schema.RuleFile, si ScenarioInfo) TestResult {
	start := time.Now()

	scen, err := LoadScenario(si.Path)
	if err != nil {
		return TestResult{
			RuleName: rf.SourcePath, ScenarioName: si.Name, Status: "error",
			DurationMs: time.Since(start).Milliseconds(), Error: err.Error(),
		}
	}

	actual, warnings, runErr := pipeline.Batch(rf, scen.Input, scen.Context, nil)
	warningCodes := make([]string, len(warnings))
	for i, w := range warnings {
		warningCodes[i] = w.Code
	}

	assertions := Evaluate(scen, actual, warningCodes, runErr)
	status := "passed"
	if HasFailures(assertions) {
		status = "failed"
	}
	if runErr != nil && scen.Expect.Error == "" {
		status = "error"
	}

	return TestResult{
		RuleName:     rf.SourcePath,
		ScenarioName: si.Name,
		Status:       status,
		DurationMs:   time.Since(start).Milliseconds(),
		Assertions:   assertions,
	}
}
