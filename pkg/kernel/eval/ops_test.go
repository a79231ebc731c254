package eval

import (
	"testing"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

func inputRef(path string) *schema.RefExpr {
	toks, err := pathlang.Parse(path)
	if err != nil {
		panic(err)
	}
	return &schema.RefExpr{Namespace: schema.NsInput, Path: path, Tokens: toks}
}

func TestOpMatchIsRegexNotSubstring(t *testing.T) {
	ctx := New(map[string]any{"code": "A123"}, nil, nil)
	expr := &schema.OpExpr{Op: "~=", Args: []schema.Expr{inputRef("code"), &schema.LiteralExpr{Value: "^A\\d+$"}}}

	v, err := Eval(ctx, expr)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool() {
		t.Fatal("expected ^A\\d+$ to match A123")
	}

	ctx2 := New(map[string]any{"code": "xxA123"}, nil, nil)
	v2, err := Eval(ctx2, expr)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v2.Bool() {
		t.Fatal("expected anchored pattern not to match as a substring")
	}
}

func TestOpReplaceRespectsLimit(t *testing.T) {
	ctx := New(map[string]any{"s": "a-b-a-b-a"}, nil, nil)
	expr := &schema.OpExpr{Op: "replace", Args: []schema.Expr{
		inputRef("s"), &schema.LiteralExpr{Value: "a"}, &schema.LiteralExpr{Value: "X"}, &schema.LiteralExpr{Value: 1},
	}}
	v, err := Eval(ctx, expr)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Data() != "X-b-a-b-a" {
		t.Fatalf("expected only first occurrence replaced, got %v", v.Data())
	}
}

func TestOpDateFormatUsesInputFormatAndTimezone(t *testing.T) {
	ctx := New(map[string]any{"d": "2024-01-15"}, nil, nil)
	expr := &schema.OpExpr{Op: "date_format", Args: []schema.Expr{
		inputRef("d"),
		&schema.LiteralExpr{Value: "YYYY/MM/DD"},
		&schema.LiteralExpr{Value: "YYYY-MM-DD"},
	}}
	v, err := Eval(ctx, expr)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Data() != "2024/01/15" {
		t.Fatalf("expected reformatted date, got %v", v.Data())
	}
}

func TestOpToUnixtimeUsesInputFormat(t *testing.T) {
	ctx := New(map[string]any{"d": "2024-01-15 00:00:00"}, nil, nil)
	expr := &schema.OpExpr{Op: "to_unixtime", Args: []schema.Expr{
		inputRef("d"),
		&schema.LiteralExpr{Value: "YYYY-MM-DD HH:mm:ss"},
		&schema.LiteralExpr{Value: "UTC"},
	}}
	v, err := Eval(ctx, expr)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Data() != int64(1705276800) {
		t.Fatalf("expected unix timestamp for 2024-01-15 UTC, got %v", v.Data())
	}
}
