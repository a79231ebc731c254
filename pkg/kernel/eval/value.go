// Package eval executes a loaded and validated rule file against one input
// record, producing the mapped output record (or a rejection) through the
// v1 expression language and v2 pipe/step machinery.
package eval

import "fmt"

// Value is the evaluator's three-state result: present-with-data, or
// Missing. Missing is distinct from a present JSON null — it propagates
// through most operators without raising an error, the way a lookup miss or
// an unset optional input field should.
type Value struct {
	missing bool
	data    any
}

// Present wraps v as a non-missing Value.
func Present(v any) Value { return Value{data: v} }

// MissingValue is the canonical absent result.
var MissingValue = Value{missing: true}

func (v Value) IsMissing() bool { return v.missing }

// Data returns the underlying JSON-shaped value. Callers must check
// IsMissing first; Data of a missing Value is nil.
func (v Value) Data() any { return v.data }

// Bool coerces v to a boolean per the evaluator's truthiness rules used by
// `and`/`or`/`not` and boolean-context fields: missing and explicit false
// are false; everything else (including zero, empty string, empty
// collections) is true, matching the closed boolean operator set rather
// than introducing implicit falsy-value rules a reader would have to
// memorize per type.
func (v Value) Bool() bool {
	if v.missing {
		return false
	}
	b, ok := v.data.(bool)
	if ok {
		return b
	}
	return true
}

func (v Value) String() string {
	if v.missing {
		return "<missing>"
	}
	return fmt.Sprintf("%v", v.data)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asArray(v any) ([]any, bool) {
	a, ok := v.([]any)
	return a, ok
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
