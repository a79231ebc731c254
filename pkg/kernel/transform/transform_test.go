package transform

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

func TestRecordTopLevelMappings(t *testing.T) {
	rf := &schema.RuleFile{
		Version: 1,
		Mappings: []schema.Mapping{
			mapping("name", "input.full_name"),
			mapping("age", "input.age"),
		},
	}
	record := map[string]any{"full_name": "Ada Lovelace", "age": int64(36)}

	res, err := Record(rf, record, nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.Skipped {
		t.Fatal("expected not skipped")
	}
	if res.Output["name"] != "Ada Lovelace" {
		t.Errorf("name = %v", res.Output["name"])
	}
	if res.Output["age"] != int64(36) {
		t.Errorf("age = %v", res.Output["age"])
	}
}

func TestRecordWhenSkipsRecord(t *testing.T) {
	toks, _ := pathlang.Parse("active")
	rf := &schema.RuleFile{
		Version:    1,
		RecordWhen: &schema.RefExpr{Namespace: schema.NsInput, Path: "active", Tokens: toks},
		Mappings:   []schema.Mapping{mapping("x", "input.active")},
	}

	res, err := Record(rf, map[string]any{"active": false}, nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected record to be skipped")
	}
}

func TestRecordMissingRequiredFails(t *testing.T) {
	m := mapping("name", "input.missing_field")
	m.Required = true
	rf := &schema.RuleFile{Version: 1, Mappings: []schema.Mapping{m}}

	_, err := Record(rf, map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	terr, ok := err.(*Error)
	if !ok || terr.Code != "MissingRequired" {
		t.Fatalf("expected MissingRequired, got %v", err)
	}
}

func TestRecordDefaultAppliedWhenMissing(t *testing.T) {
	m := mapping("name", "input.missing_field")
	m.HasDefault = true
	m.Default = "anonymous"
	rf := &schema.RuleFile{Version: 1, Mappings: []schema.Mapping{m}}

	res, err := Record(rf, map[string]any{}, nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.Output["name"] != "anonymous" {
		t.Errorf("name = %v", res.Output["name"])
	}
}

func TestRecordTypeCastFailureWarnsWhenNotRequired(t *testing.T) {
	m := mapping("age", "input.age")
	m.ValueType = "int"
	rf := &schema.RuleFile{Version: 1, Mappings: []schema.Mapping{m}}

	res, err := Record(rf, map[string]any{"age": "not-a-number"}, nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, ok := res.Output["age"]; ok {
		t.Error("expected age to be dropped, not assigned")
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != "TypeCastFailed" {
		t.Fatalf("expected one TypeCastFailed warning, got %v", res.Warnings)
	}
}

func TestRecordTypeCastFailureErrorsWhenRequired(t *testing.T) {
	m := mapping("age", "input.age")
	m.ValueType = "int"
	m.Required = true
	rf := &schema.RuleFile{Version: 1, Mappings: []schema.Mapping{m}}

	_, err := Record(rf, map[string]any{"age": "not-a-number"}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if terr, ok := err.(*Error); !ok || terr.Code != "TypeCastFailed" {
		t.Fatalf("expected TypeCastFailed, got %v", err)
	}
}

func TestRecordAssertFailureAborts(t *testing.T) {
	rf := &schema.RuleFile{
		Version: 2,
		Steps: []schema.Step{
			{
				Asserts: []schema.AssertSpec{
					{When: &schema.LiteralExpr{Value: false}, Code: "must_be_true", Message: "nope"},
				},
			},
		},
	}

	_, err := Record(rf, map[string]any{}, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if terr, ok := err.(*Error); !ok || terr.Code != "AssertionFailed" {
		t.Fatalf("expected AssertionFailed, got %v", err)
	}
}

func TestRecordWhenMappingConditionSkipsEntry(t *testing.T) {
	m := mapping("name", "input.full_name")
	m.When = &schema.LiteralExpr{Value: false}
	rf := &schema.RuleFile{Version: 1, Mappings: []schema.Mapping{m}}

	res, err := Record(rf, map[string]any{"full_name": "Ada"}, nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, ok := res.Output["name"]; ok {
		t.Error("expected name to be absent since when=false")
	}
}

func TestRecordMapDropsMissingElements(t *testing.T) {
	m := mapping("values", "")
	m.Source = ""
	m.Expr = &schema.OpExpr{
		Op: "map",
		Args: []schema.Expr{
			&schema.RefExpr{Namespace: schema.NsInput, Path: "items", Tokens: mustTokens("items")},
			&schema.ChainExpr{Chain: []schema.Expr{
				&schema.RefExpr{Namespace: schema.NsItem},
				&schema.OpExpr{Op: "get", Args: []schema.Expr{&schema.LiteralExpr{Value: "value"}}},
			}},
		},
	}
	rf := &schema.RuleFile{Version: 2, Mappings: []schema.Mapping{m}}
	record := map[string]any{"items": []any{
		map[string]any{"value": int64(1)},
		map[string]any{"other": int64(2)},
		map[string]any{"value": int64(3)},
	}}

	res, err := Record(rf, record, nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, ok := res.Output["values"].([]any)
	if !ok {
		t.Fatalf("expected an array, got %#v", res.Output["values"])
	}
	want := []any{int64(1), int64(3)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected missing elements dropped, want %v got %v", want, got)
	}
}

func mustTokens(path string) []pathlang.Token {
	toks, err := pathlang.Parse(path)
	if err != nil {
		panic(err)
	}
	return toks
}

func TestCastValue(t *testing.T) {
	cases := []struct {
		in   any
		typ  string
		want any
		ok   bool
	}{
		{"42", "int", int64(42), true},
		{int64(7), "string", "7", true},
		{"3.5", "float", 3.5, true},
		{"not-a-bool", "bool", nil, false},
		{true, "bool", true, true},
	}
	for _, c := range cases {
		got, ok := castValue(c.in, c.typ)
		if ok != c.ok {
			t.Errorf("castValue(%v, %q) ok = %v, want %v", c.in, c.typ, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("castValue(%v, %q) = %v, want %v", c.in, c.typ, got, c.want)
		}
	}
}
