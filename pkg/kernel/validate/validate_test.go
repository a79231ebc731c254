package validate

import "testing"

func codes(res Result) []string {
	out := make([]string, len(res.Errors))
	for i, e := range res.Errors {
		out[i] = e.Code
	}
	return out
}

func containsCode(res Result, code string) bool {
	for _, c := range codes(res) {
		if c == code {
			return true
		}
	}
	return false
}

func TestValidateBytesAcceptsWellFormedRule(t *testing.T) {
	src := []byte(`
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
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
}

func TestValidateBytesStructuralShortCircuitsDomain(t *testing.T) {
	src := []byte(`
version: 1
input:
  format: csv
  csv: {has_header: true, delimiter: ","}
bogus_key: true
mappings:
  - target: id
    source: id
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "UnknownKey") {
		t.Fatalf("expected UnknownKey, got %v", codes(res))
	}
}

func TestValidateBytesRejectsInvalidVersion(t *testing.T) {
	src := []byte(`
version: 3
input: {format: json}
mappings:
  - target: id
    source: id
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "InvalidVersion") {
		t.Fatalf("expected InvalidVersion, got %v", codes(res))
	}
}

func TestValidateBytesRejectsMissingCsvColumns(t *testing.T) {
	src := []byte(`
version: 1
input:
  format: csv
  csv: {has_header: false, delimiter: ","}
mappings:
  - target: id
    source: id
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "MissingCsvColumns") {
		t.Fatalf("expected MissingCsvColumns, got %v", codes(res))
	}
}

func TestValidateBytesRejectsDuplicateTarget(t *testing.T) {
	src := []byte(`
version: 1
input: {format: json}
mappings:
  - target: id
    source: id
  - target: id
    source: other_id
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "DuplicateTarget") {
		t.Fatalf("expected DuplicateTarget, got %v", codes(res))
	}
}

func TestValidateBytesRejectsForwardOutReference(t *testing.T) {
	src := []byte(`
version: 2
input: {format: json}
mappings:
  - target: a
    expr: {op: coalesce, args: ["@out.b"]}
  - target: b
    value: 1
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "ForwardOutReference") {
		t.Fatalf("expected ForwardOutReference, got %v", codes(res))
	}
}

func TestValidateBytesRejectsCyclicDependency(t *testing.T) {
	src := []byte(`
version: 2
input: {format: json}
mappings:
  - target: a
    expr: {op: coalesce, args: ["@out.b"]}
  - target: b
    expr: {op: get, args: ["@out.a"]}
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "CyclicDependency") {
		t.Fatalf("expected CyclicDependency, got %v", codes(res))
	}
}

func TestValidateBytesRejectsUnknownOp(t *testing.T) {
	src := []byte(`
version: 1
input: {format: json}
mappings:
  - target: x
    expr: {op: frobnicate, args: ["@input.x"]}
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "UnknownOp") {
		t.Fatalf("expected UnknownOp, got %v", codes(res))
	}
}

func TestValidateBytesRejectsItemRefOutsideScope(t *testing.T) {
	src := []byte(`
version: 1
input: {format: json}
mappings:
  - target: x
    expr: "@item.value"
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "InvalidItemRef") {
		t.Fatalf("expected InvalidItemRef, got %v", codes(res))
	}
}

func TestValidateBytesRejectsNonBooleanWhen(t *testing.T) {
	src := []byte(`
version: 1
input: {format: json}
mappings:
  - target: x
    source: x
    when: {op: +, args: [1, 2]}
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "InvalidWhenType") {
		t.Fatalf("expected InvalidWhenType, got %v", codes(res))
	}
}

func TestValidateBytesRejectsStepsOnV1(t *testing.T) {
	src := []byte(`
version: 1
input: {format: json}
steps:
  - mappings:
      - target: x
        source: x
`)
	_, res, err := ValidateBytes(src, "")
	if err != nil {
		t.Fatalf("ValidateBytes error: %v", err)
	}
	if !containsCode(res, "InvalidStep") {
		t.Fatalf("expected InvalidStep, got %v", codes(res))
	}
}
