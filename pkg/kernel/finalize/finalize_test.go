package finalize

import (
	"testing"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

func records(vals ...map[string]any) []map[string]any { return vals }

func TestApplyNilFinalizeReturnsArray(t *testing.T) {
	recs := records(map[string]any{"a": 1}, map[string]any{"a": 2})
	out, err := Apply(nil, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	arr, ok := out.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("got %#v", out)
	}
}

func TestApplyFilter(t *testing.T) {
	recs := records(
		map[string]any{"keep": true, "id": int64(1)},
		map[string]any{"keep": false, "id": int64(2)},
		map[string]any{"keep": true, "id": int64(3)},
	)
	toks := mustTokens("keep")
	fz := &schema.Finalize{Filter: &schema.RefExpr{Namespace: schema.NsItem, Path: "keep", Tokens: toks}}

	out, err := Apply(fz, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	arr := out.([]any)
	if len(arr) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(arr))
	}
}

func TestApplySortAscWithMissingLast(t *testing.T) {
	recs := records(
		map[string]any{"id": "c"},
		map[string]any{},
		map[string]any{"id": "a"},
	)
	fz := &schema.Finalize{Sort: &schema.SortSpec{By: "id", Order: "asc"}}

	out, err := Apply(fz, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	arr := out.([]any)
	first := arr[0].(map[string]any)
	second := arr[1].(map[string]any)
	third := arr[2].(map[string]any)
	if first["id"] != "a" || second["id"] != "c" {
		t.Fatalf("unexpected sort order: %v", arr)
	}
	if _, ok := third["id"]; ok {
		t.Fatalf("expected missing-key record last, got %v", arr)
	}
}

func TestApplyOffsetLimit(t *testing.T) {
	recs := records(
		map[string]any{"id": int64(1)},
		map[string]any{"id": int64(2)},
		map[string]any{"id": int64(3)},
		map[string]any{"id": int64(4)},
	)
	off, lim := 1, 2
	fz := &schema.Finalize{Offset: &off, Limit: &lim}

	out, err := Apply(fz, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	arr := out.([]any)
	if len(arr) != 2 {
		t.Fatalf("expected 2 records, got %d", len(arr))
	}
	if arr[0].(map[string]any)["id"] != int64(2) {
		t.Fatalf("expected first record id=2, got %v", arr[0])
	}
}

func TestApplyWrapBareOutRef(t *testing.T) {
	recs := records(map[string]any{"id": int64(1)})
	fz := &schema.Finalize{Wrap: &schema.RefExpr{Namespace: schema.NsOut}}

	out, err := Apply(fz, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	arr, ok := out.([]any)
	if !ok || len(arr) != 1 {
		t.Fatalf("got %#v", out)
	}
}

func TestApplyWrapObjectTemplateSubstitutesOutMarker(t *testing.T) {
	recs := records(map[string]any{"id": int64(1)})
	template := map[string]any{"data": "@out", "version": float64(1)}
	fz := &schema.Finalize{Wrap: &schema.LiteralExpr{Value: template}}

	out, err := Apply(fz, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	obj, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %#v", out)
	}
	data, ok := obj["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("expected substituted data array, got %v", obj["data"])
	}
	if obj["version"] != float64(1) {
		t.Fatalf("unrelated field should be untouched, got %v", obj["version"])
	}
}

func mustTokens(path string) []pathlang.Token {
	toks, err := pathlang.Parse(path)
	if err != nil {
		panic(err)
	}
	return toks
}
