package dynval

import "testing"

func TestLoadScalars(t *testing.T) {
	v, err := Load([]byte("hello"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if v.Kind != KindString || v.Str != "hello" {
		t.Errorf("Load(hello) = %+v, want string hello", v)
	}
}

func TestLoadObject(t *testing.T) {
	src := []byte("version: 1\ninput:\n  format: csv\n")
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if v.Kind != KindObject {
		t.Fatalf("Load root Kind = %v, want object", v.Kind)
	}
	version, ok := v.Get("version")
	if !ok || version.Kind != KindInt || version.Int != 1 {
		t.Errorf("version = %+v, want int 1", version)
	}
	input, ok := v.Get("input")
	if !ok || input.Kind != KindObject {
		t.Fatalf("input = %+v, want object", input)
	}
	format, ok := input.Get("format")
	if !ok || format.Kind != KindString || format.Str != "csv" {
		t.Errorf("input.format = %+v, want string csv", format)
	}

	pos, ok := v.KeyPos("version")
	if !ok || pos.Line != 1 {
		t.Errorf("KeyPos(version) = %+v, ok=%v, want line 1", pos, ok)
	}
	pos, ok = v.KeyPos("input")
	if !ok || pos.Line != 2 {
		t.Errorf("KeyPos(input) = %+v, ok=%v, want line 2", pos, ok)
	}
}

func TestLoadArray(t *testing.T) {
	src := []byte("- a\n- b\n- 3\n")
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if v.Kind != KindArray || len(v.Items) != 3 {
		t.Fatalf("Load array = %+v, want 3 items", v)
	}
	if v.Items[0].Str != "a" || v.Items[1].Str != "b" || v.Items[2].Int != 3 {
		t.Errorf("array items = %+v", v.Items)
	}
}

func TestToAnyRoundTrip(t *testing.T) {
	src := []byte("mappings:\n  - target: id\n    source: id\n")
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	any := v.ToAny()
	m, ok := any.(map[string]any)
	if !ok {
		t.Fatalf("ToAny() = %T, want map[string]any", any)
	}
	mappings, ok := m["mappings"].([]any)
	if !ok || len(mappings) != 1 {
		t.Fatalf("mappings = %v, want one-element array", m["mappings"])
	}
	entry, ok := mappings[0].(map[string]any)
	if !ok || entry["target"] != "id" || entry["source"] != "id" {
		t.Errorf("mappings[0] = %v", entry)
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	v, err := Load([]byte(""))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("Load(\"\") = %+v, want null", v)
	}
}

func TestLoadAnchorAlias(t *testing.T) {
	src := []byte("base: &b\n  x: 1\nderived: *b\n")
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	derived, ok := v.Get("derived")
	if !ok || derived.Kind != KindObject {
		t.Fatalf("derived = %+v, want object via alias", derived)
	}
	x, ok := derived.Get("x")
	if !ok || x.Int != 1 {
		t.Errorf("derived.x = %+v, want int 1", x)
	}
}
