package pathlang

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []Token
	}{
		{"single key", "id", []Token{{Kind: KeyToken, Key: "id"}}},
		{"dotted", "a.b.c", []Token{
			{Kind: KeyToken, Key: "a"},
			{Kind: KeyToken, Key: "b"},
			{Kind: KeyToken, Key: "c"},
		}},
		{"trailing index", "items[0]", []Token{
			{Kind: KeyToken, Key: "items"},
			{Kind: IndexToken, Index: 0},
		}},
		{"chained index", "items[0][1]", []Token{
			{Kind: KeyToken, Key: "items"},
			{Kind: IndexToken, Index: 0},
			{Kind: IndexToken, Index: 1},
		}},
		{"index then key", "items[0].name", []Token{
			{Kind: KeyToken, Key: "items"},
			{Kind: IndexToken, Index: 0},
			{Kind: KeyToken, Key: "name"},
		}},
		{"escaped dot", `a\.b`, []Token{{Kind: KeyToken, Key: "a.b"}}},
		{"escaped bracket", `a\[b\]`, []Token{{Kind: KeyToken, Key: "a[b]"}}},
		{"escaped backslash", `a\\b`, []Token{{Kind: KeyToken, Key: `a\b`}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Parse(c.in)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", c.in, err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", c.in, got, c.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"[0]",
		"a..b",
		"a[",
		"a[x]",
		"a[-1]",
		`a\`,
		`a\q`,
	}
	for _, in := range cases {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error, got none", in)
		}
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("MustParse did not panic on invalid path")
		}
	}()
	MustParse("")
}

func TestGet(t *testing.T) {
	value := map[string]any{
		"items": []any{
			map[string]any{"name": "alice"},
			map[string]any{"name": "bob"},
		},
	}
	got, ok := Get(value, MustParse("items[1].name"))
	if !ok || got != "bob" {
		t.Errorf("Get = (%v, %v), want (\"bob\", true)", got, ok)
	}

	_, ok = Get(value, MustParse("items[5].name"))
	if ok {
		t.Errorf("Get out-of-range index should fail")
	}

	_, ok = Get(value, MustParse("items.name"))
	if ok {
		t.Errorf("Get through array via key should fail")
	}

	_, ok = Get(value, MustParse("missing.field"))
	if ok {
		t.Errorf("Get through missing key should fail")
	}
}

func TestSet(t *testing.T) {
	dst := map[string]any{}
	if err := Set(dst, MustParse("a.b.c"), 42); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, ok := Get(dst, MustParse("a.b.c"))
	if !ok || got != 42 {
		t.Errorf("Set then Get = (%v, %v), want (42, true)", got, ok)
	}
}

func TestSetRejectsIndex(t *testing.T) {
	dst := map[string]any{}
	err := Set(dst, MustParse("a[0]"), 1)
	if err == nil {
		t.Errorf("Set with index token should fail")
	}
}

func TestSetOverwritesNonObjectIntermediate(t *testing.T) {
	dst := map[string]any{"a": "scalar"}
	if err := Set(dst, MustParse("a.b"), 1); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, ok := Get(dst, MustParse("a.b"))
	if !ok || got != 1 {
		t.Errorf("Set over scalar intermediate = (%v, %v), want (1, true)", got, ok)
	}
}

func TestKeys(t *testing.T) {
	toks := []Token{
		{Kind: KeyToken, Key: "a"},
		{Kind: IndexToken, Index: 0},
		{Kind: KeyToken, Key: "b"},
	}
	got := Keys(toks)
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keys = %v, want %v", got, want)
	}
}

func TestHasIndex(t *testing.T) {
	if HasIndex(MustParse("a.b")) {
		t.Errorf("HasIndex(a.b) = true, want false")
	}
	if !HasIndex(MustParse("a[0]")) {
		t.Errorf("HasIndex(a[0]) = false, want true")
	}
}
