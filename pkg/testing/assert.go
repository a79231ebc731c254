package testing

import (
	"fmt"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/finalize"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/transform"
)

// Evaluate runs a scenario's assertions against what actually happened:
// the finalized output (nil when runErr is a hard error), the warnings
// collected across all records, and any run error.
func Evaluate(spec *ScenarioSpec, actual any, warnings []string, runErr error) []AssertionResult {
	var results []AssertionResult

	if spec.Expect.Error != "" {
		results = append(results, evalExpectedError(spec.Expect.Error, runErr))
		return results // a run that was expected to fail has nothing else to check
	}

	if runErr != nil {
		results = append(results, AssertionResult{
			Type:     "unexpected_error",
			Expected: "no error",
			Actual:   runErr.Error(),
			Passed:   false,
			Message:  fmt.Sprintf("run failed unexpectedly: %s", runErr),
		})
		return results
	}

	if spec.Expect.Records != nil {
		results = append(results, evalRecords(spec.Expect.Records, actual))
	}

	for _, code := range spec.Expect.Warnings {
		results = append(results, evalWarning(code, warnings))
	}

	return results
}

// HasFailures reports whether any assertion in results failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func evalExpectedError(code string, runErr error) AssertionResult {
	actual := errorCode(runErr)
	return AssertionResult{
		Type:     "expected_error",
		Expected: code,
		Actual:   actual,
		Passed:   runErr != nil && actual == code,
		Message:  fmt.Sprintf("expected error %q, got %q", code, actual),
	}
}

// errorCode extracts the §6 runtime error code from a transform/finalize
// error, or the bare error text when it isn't one of those.
func errorCode(err error) string {
	switch e := err.(type) {
	case *transform.Error:
		return e.Code
	case *finalize.Error:
		return e.Code
	case nil:
		return ""
	default:
		return e.Error()
	}
}

func evalRecords(expected, actual any) AssertionResult {
	passed := equalJSON(expected, actual)
	return AssertionResult{
		Type:     "expected_records",
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", actual),
		Passed:   passed,
		Message:  "finalized output",
	}
}

func evalWarning(code string, warnings []string) AssertionResult {
	found := false
	for _, w := range warnings {
		if w == code {
			found = true
			break
		}
	}
	return AssertionResult{
		Type:     "expected_warning",
		Key:      code,
		Expected: "present",
		Actual:   presentOrAbsent(found),
		Passed:   found,
		Message:  fmt.Sprintf("warning %q: %s", code, presentOrAbsent(found)),
	}
}

func presentOrAbsent(b bool) string {
	if b {
		return "present"
	}
	return "absent"
}

// equalJSON compares two JSON-shaped values for equality, treating numeric
// types loosely (int/int64/float64 compare by value) since YAML-decoded
// expectations and evaluator-produced actuals don't share a Go numeric
// type even when they represent the same JSON number.
func equalJSON(a, b any) bool {
	af, aok := jsonNumber(a)
	bf, bok := jsonNumber(b)
	if aok && bok {
		return af == bf
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, vv := range av {
			bvv, ok := bv[k]
			if !ok || !equalJSON(vv, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func jsonNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
