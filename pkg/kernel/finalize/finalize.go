// Package finalize implements the post-batch stage (spec §4.5): filter,
// sort, offset/limit, then wrap over the accumulated array of per-record
// outputs.
package finalize

import (
	"fmt"
	"sort"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/eval"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

// Error mirrors the transform package's runtime diagnostic shape, since
// finalize is itself a runtime (not static) stage.
type Error struct {
	Code    string
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Apply runs the finalize stage over records (each already a mapped output
// object) and returns the resulting JSON value: either the (possibly
// filtered/sorted/paginated) array, or the wrap template's object when Wrap
// is set.
func Apply(fz *schema.Finalize, records []map[string]any) (any, error) {
	arr := make([]any, len(records))
	for i, r := range records {
		arr[i] = r
	}
	if fz == nil {
		return arr, nil
	}

	if fz.Filter != nil {
		var kept []any
		for _, item := range arr {
			ctx := eval.ItemScope(item)
			v, err := eval.Eval(ctx, fz.Filter)
			if err != nil {
				return nil, &Error{Code: "ExprError", Message: err.Error(), Path: "$.finalize.filter"}
			}
			if v.Bool() {
				kept = append(kept, item)
			}
		}
		arr = kept
	}

	if fz.Sort != nil {
		if err := sortItems(arr, fz.Sort); err != nil {
			return nil, err
		}
	}

	if fz.Offset != nil {
		off := *fz.Offset
		if off < 0 {
			off = 0
		}
		if off > len(arr) {
			off = len(arr)
		}
		arr = arr[off:]
	}
	if fz.Limit != nil {
		lim := *fz.Limit
		if lim < 0 {
			lim = 0
		}
		if lim < len(arr) {
			arr = arr[:lim]
		}
	}

	if fz.Wrap != nil {
		return applyWrap(fz.Wrap, arr), nil
	}
	return arr, nil
}

// sortItems orders arr ascending/descending by the value at fz.Sort.By
// within each element, stable with respect to input order; elements
// missing the key sort last.
func sortItems(arr []any, s *schema.SortSpec) error {
	toks, err := pathlang.Parse(s.By)
	if err != nil {
		return &Error{Code: "InvalidRef", Message: err.Error(), Path: "$.finalize.sort.by"}
	}
	type keyed struct {
		v       any
		present bool
	}
	keys := make([]keyed, len(arr))
	for i, item := range arr {
		v, ok := pathlang.Get(item, toks)
		keys[i] = keyed{v: v, present: ok}
	}
	desc := s.Order == "desc"
	sort.SliceStable(arr, func(i, j int) bool {
		ki, kj := keys[i], keys[j]
		if ki.present != kj.present {
			// Missing keys sort last regardless of direction.
			return ki.present
		}
		if !ki.present {
			return false
		}
		if desc {
			less, _ := lessThan(kj.v, ki.v)
			return less
		}
		less, _ := lessThan(ki.v, kj.v)
		return less
	})
	return nil
}

func lessThan(a, b any) (bool, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf, true
	}
	as, asok := a.(string)
	bs, bsok := b.(string)
	if asok && bsok {
		return as < bs, true
	}
	ab, abok := a.(bool)
	bb, bbok := b.(bool)
	if abok && bbok {
		return !ab && bb, true
	}
	return false, false
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

// applyWrap builds the wrap object, substituting the bare-@out reference
// (or any "@out" string leaf the loader preserved verbatim inside a
// multi-field object literal — see the loader's buildExprObject, which
// only expr-ifies single-known-op objects) with the finalized array.
func applyWrap(wrap schema.Expr, arr []any) any {
	if ref, ok := wrap.(*schema.RefExpr); ok && ref.Namespace == schema.NsOut {
		return arr
	}
	lit, ok := wrap.(*schema.LiteralExpr)
	if !ok {
		return arr
	}
	return substituteOutMarker(lit.Value, arr)
}

func substituteOutMarker(v any, arr []any) any {
	switch n := v.(type) {
	case string:
		if n == "@out" {
			return arr
		}
		return n
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = substituteOutMarker(val, arr)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, val := range n {
			out[i] = substituteOutMarker(val, arr)
		}
		return out
	default:
		return v
	}
}
