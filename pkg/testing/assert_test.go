package testing

import (
	"testing"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/transform"
)

func TestEvaluateExpectedRecordsMatch(t *testing.T) {
	spec := &ScenarioSpec{
		Expect: ExpectSpec{Records: []any{map[string]any{"id": 1}}},
	}
	results := Evaluate(spec, []any{map[string]any{"id": 1}}, nil, nil)
	if len(results) != 1 || !results[0].Passed {
		t.Fatalf("expected a passing records assertion, got %#v", results)
	}
}

func TestEvaluateExpectedRecordsMismatch(t *testing.T) {
	spec := &ScenarioSpec{
		Expect: ExpectSpec{Records: []any{map[string]any{"id": 1}}},
	}
	results := Evaluate(spec, []any{map[string]any{"id": 2}}, nil, nil)
	if len(results) != 1 || results[0].Passed {
		t.Fatalf("expected a failing records assertion, got %#v", results)
	}
}

func TestEvaluateExpectedWarningPresent(t *testing.T) {
	spec := &ScenarioSpec{Expect: ExpectSpec{Warnings: []string{"TypeCastFailed"}}}
	results := Evaluate(spec, []any{}, []string{"TypeCastFailed"}, nil)
	if len(results) != 1 || HasFailures(results) {
		t.Fatalf("expected warning assertion to pass, got %#v", results)
	}
}

func TestEvaluateExpectedWarningAbsentFails(t *testing.T) {
	spec := &ScenarioSpec{Expect: ExpectSpec{Warnings: []string{"TypeCastFailed"}}}
	results := Evaluate(spec, []any{}, nil, nil)
	if !HasFailures(results) {
		t.Fatal("expected warning assertion to fail when warning never fired")
	}
}

func TestEvaluateExpectedErrorButRunSucceededFails(t *testing.T) {
	spec := &ScenarioSpec{Expect: ExpectSpec{Error: "MissingRequired"}}
	results := Evaluate(spec, nil, nil, nil)
	if len(results) != 1 || results[0].Passed {
		t.Fatalf("expected error assertion to fail when run did not error, got %#v", results)
	}
}

func TestEvaluateExpectedErrorMatches(t *testing.T) {
	spec := &ScenarioSpec{Expect: ExpectSpec{Error: "MissingRequired"}}
	err := &transform.Error{Code: "MissingRequired", Message: "required mapping produced no value"}

	results := Evaluate(spec, nil, nil, err)
	if len(results) != 1 || !results[0].Passed {
		t.Fatalf("expected error assertion to pass, got %#v", results)
	}
}

func TestEvaluateUnexpectedErrorFails(t *testing.T) {
	spec := &ScenarioSpec{Expect: ExpectSpec{Records: []any{}}}
	err := &transform.Error{Code: "ExprError", Message: "boom"}

	results := Evaluate(spec, nil, nil, err)
	if len(results) != 1 || results[0].Passed {
		t.Fatalf("expected an unexpected_error failure, got %#v", results)
	}
}

func TestEqualJSONLooseNumericComparison(t *testing.T) {
	if !equalJSON(int64(3), float64(3)) {
		t.Error("expected int64(3) == float64(3)")
	}
	if !equalJSON(map[string]any{"a": 1}, map[string]any{"a": int64(1)}) {
		t.Error("expected loosely-numeric map comparison to match")
	}
	if equalJSON(map[string]any{"a": 1}, map[string]any{"a": 2}) {
		t.Error("expected mismatched maps to differ")
	}
}
