package pipeline

import (
	"testing"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

func mapping(target, source string) schema.Mapping {
	toks, err := pathlang.Parse(target)
	if err != nil {
		panic(err)
	}
	return schema.Mapping{Target: target, TargetPath: toks, Source: source}
}

func TestBatchHappyPath(t *testing.T) {
	rf := &schema.RuleFile{
		Version:  1,
		Mappings: []schema.Mapping{mapping("name", "input.name")},
	}
	records := []map[string]any{{"name": "Ada"}, {"name": "Grace"}}

	out, warnings, err := Batch(rf, records, nil, nil)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	arr, ok := out.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected 2 output records, got %#v", out)
	}
}

func TestBatchAbortsOnFirstError(t *testing.T) {
	m := mapping("age", "input.age")
	m.ValueType = "int"
	m.Required = true
	rf := &schema.RuleFile{Version: 1, Mappings: []schema.Mapping{m}}
	records := []map[string]any{{"age": int64(1)}, {"age": "oops"}, {"age": int64(3)}}

	_, _, err := Batch(rf, records, nil, nil)
	if err == nil {
		t.Fatal("expected an error from the second record")
	}
}

func TestStreamIsolatesPerRecordErrors(t *testing.T) {
	m := mapping("age", "input.age")
	m.ValueType = "int"
	m.Required = true
	rf := &schema.RuleFile{Version: 1, Mappings: []schema.Mapping{m}}
	records := []map[string]any{{"age": int64(1)}, {"age": "oops"}, {"age": int64(3)}}

	var outcomes []RecordOutcome
	Stream(rf, records, nil, nil, func(o RecordOutcome) {
		outcomes = append(outcomes, o)
	})

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Errorf("expected records 0 and 2 to succeed")
	}
	if outcomes[1].Err == nil {
		t.Error("expected record 1 to fail")
	}
	if outcomes[0].Output["age"] != int64(1) {
		t.Errorf("record 0 output = %v", outcomes[0].Output)
	}
}

func TestBatchSkippedRecordWhenExcludedFromOutput(t *testing.T) {
	toks, _ := pathlang.Parse("active")
	rf := &schema.RuleFile{
		Version:    1,
		RecordWhen: &schema.RefExpr{Namespace: schema.NsInput, Path: "active", Tokens: toks},
		Mappings:   []schema.Mapping{mapping("id", "input.id")},
	}
	records := []map[string]any{
		{"active": true, "id": int64(1)},
		{"active": false, "id": int64(2)},
	}

	out, _, err := Batch(rf, records, nil, nil)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	arr := out.([]any)
	if len(arr) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(arr))
	}
}
