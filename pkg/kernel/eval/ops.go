package eval

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

type opFunc func(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error)

// anyMissing reports whether any of vals is Missing, the default
// propagation rule for every operator except and/or/not/coalesce.
func anyMissing(vals ...Value) bool {
	for _, v := range vals {
		if v.IsMissing() {
			return true
		}
	}
	return false
}

var opTable map[string]opFunc

func init() {
	opTable = map[string]opFunc{
		"concat":    opConcat,
		"to_string": opToString,
		"trim":      opTrim,
		"lowercase": opLowercase,
		"uppercase": opUppercase,
		"replace":   opReplace,
		"split":     opSplit,
		"pad_start": opPadStart,
		"pad_end":   opPadEnd,

		"merge":            opMerge,
		"deep_merge":       opDeepMerge,
		"get":              opGet,
		"pick":             opPick,
		"omit":             opOmit,
		"keys":             opKeys,
		"values":           opValues,
		"entries":          opEntries,
		"from_entries":     opFromEntries,
		"object_flatten":   opObjectFlatten,
		"object_unflatten": opObjectUnflatten,

		"map":         opMap,
		"filter":      opFilter,
		"flat_map":    opFlatMap,
		"flatten":     opFlatten,
		"take":        opTake,
		"drop":        opDrop,
		"slice":       opSlice,
		"chunk":       opChunk,
		"zip":         opZip,
		"zip_with":    opZipWith,
		"unzip":       opUnzip,
		"group_by":    opGroupBy,
		"key_by":      opKeyBy,
		"partition":   opPartition,
		"unique":      opUnique,
		"distinct_by": opDistinctBy,
		"sort_by":     opSortBy,
		"find":        opFind,
		"find_index":  opFindIndex,
		"index_of":    opIndexOf,
		"contains":    opContains,
		"len":         opLen,
		"sum":         opSum,
		"avg":         opAvg,
		"min":         opMin,
		"max":         opMax,
		"reduce":      opReduce,
		"fold":        opFold,

		"lookup":       opLookup,
		"lookup_first": opLookupFirst,

		"+":       opAdd,
		"-":       opSub,
		"*":       opMul,
		"/":       opDiv,
		"round":   opRound,
		"to_base": opToBase,

		"date_format": opDateFormat,
		"to_unixtime": opToUnixtime,

		"and":      opAnd,
		"or":       opOr,
		"not":      opNot,
		"coalesce": opCoalesce,
		"==":       opEq,
		"!=":       opNeq,
		"<":        opLt,
		"<=":       opLte,
		">":        opGt,
		">=":       opGte,
		"~=":       opMatch,
	}
}

func literalString(ctx *Ctx, e schema.Expr) (string, bool) {
	v, err := Eval(ctx, e)
	if err != nil || v.IsMissing() {
		return "", false
	}
	s, ok := asString(v.Data())
	return s, ok
}

// --- strings ---

func opConcat(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	var b strings.Builder
	if implicit != nil {
		if implicit.IsMissing() {
			return MissingValue, nil
		}
		b.WriteString(fmt.Sprintf("%v", implicit.Data()))
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if v.IsMissing() {
			return MissingValue, nil
		}
		b.WriteString(fmt.Sprintf("%v", v.Data()))
	}
	return Present(b.String()), nil
}

func opToString(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	return Present(fmt.Sprintf("%v", v.Data())), nil
}

func stringUnary(name string, f func(string) string) opFunc {
	return func(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
		v, _, err := subject(ctx, implicit, args)
		if err != nil || v.IsMissing() {
			return MissingValue, err
		}
		s, ok := asString(v.Data())
		if !ok {
			return MissingValue, fmt.Errorf("eval: %s requires a string", name)
		}
		return Present(f(s)), nil
	}
}

var opTrim = stringUnary("trim", strings.TrimSpace)
var opLowercase = stringUnary("lowercase", strings.ToLower)
var opUppercase = stringUnary("uppercase", strings.ToUpper)

func opReplace(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) < 2 {
		return MissingValue, err
	}
	old, _ := literalString(ctx, rest[0])
	newS, _ := literalString(ctx, rest[1])
	s, ok := asString(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: replace requires a string subject")
	}
	if len(rest) > 2 {
		limit, ok := intArg(ctx, rest[2])
		if ok {
			return Present(strings.Replace(s, old, newS, limit)), nil
		}
	}
	return Present(strings.ReplaceAll(s, old, newS)), nil
}

func opSplit(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	s, ok := asString(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: split requires a string subject")
	}
	sep := ","
	if len(rest) > 0 {
		if got, ok := literalString(ctx, rest[0]); ok {
			sep = got
		}
	}
	parts := strings.Split(s, sep)
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return Present(out), nil
}

func padOp(name string, pad func(s, fill string, width int) string) opFunc {
	return func(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
		v, rest, err := subject(ctx, implicit, args)
		if err != nil || v.IsMissing() || len(rest) == 0 {
			return MissingValue, err
		}
		s, ok := asString(v.Data())
		if !ok {
			return MissingValue, fmt.Errorf("eval: %s requires a string subject", name)
		}
		widthV, err := Eval(ctx, rest[0])
		if err != nil || widthV.IsMissing() {
			return MissingValue, err
		}
		widthF, _ := asFloat(widthV.Data())
		fill := " "
		if len(rest) > 1 {
			if got, ok := literalString(ctx, rest[1]); ok && got != "" {
				fill = got
			}
		}
		return Present(pad(s, fill, int(widthF))), nil
	}
}

var opPadStart = padOp("pad_start", func(s, fill string, width int) string {
	for len(s) < width {
		s = fill + s
	}
	return s
})

var opPadEnd = padOp("pad_end", func(s, fill string, width int) string {
	for len(s) < width {
		s = s + fill
	}
	return s
})

// --- objects ---

func opMerge(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	out := map[string]any{}
	merge := func(v Value) error {
		if v.IsMissing() {
			return nil
		}
		m, ok := asObject(v.Data())
		if !ok {
			return fmt.Errorf("eval: merge requires object operands")
		}
		for k, val := range m {
			out[k] = val
		}
		return nil
	}
	if implicit != nil {
		if err := merge(*implicit); err != nil {
			return MissingValue, err
		}
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if err := merge(v); err != nil {
			return MissingValue, err
		}
	}
	return Present(out), nil
}

func deepMergeInto(dst map[string]any, src map[string]any) {
	for k, v := range src {
		if sm, ok := asObject(v); ok {
			if dm, ok := asObject(dst[k]); ok {
				merged := map[string]any{}
				for kk, vv := range dm {
					merged[kk] = vv
				}
				deepMergeInto(merged, sm)
				dst[k] = merged
				continue
			}
		}
		dst[k] = v
	}
}

func opDeepMerge(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	out := map[string]any{}
	apply := func(v Value) error {
		if v.IsMissing() {
			return nil
		}
		m, ok := asObject(v.Data())
		if !ok {
			return fmt.Errorf("eval: deep_merge requires object operands")
		}
		deepMergeInto(out, m)
		return nil
	}
	if implicit != nil {
		if err := apply(*implicit); err != nil {
			return MissingValue, err
		}
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if err := apply(v); err != nil {
			return MissingValue, err
		}
	}
	return Present(out), nil
}

func opGet(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	p, ok := literalString(ctx, rest[0])
	if !ok {
		return MissingValue, fmt.Errorf("eval: get requires a literal path")
	}
	toks, perr := pathlang.Parse(p)
	if perr != nil {
		return MissingValue, nil
	}
	return lookupAny(v.Data(), toks), nil
}

func literalPathList(ctx *Ctx, e schema.Expr) ([]string, bool) {
	lit, ok := e.(*schema.LiteralExpr)
	if !ok {
		return nil, false
	}
	switch val := lit.Value.(type) {
	case string:
		return []string{val}, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func opPick(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	m, ok := asObject(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: pick requires an object subject")
	}
	paths, ok := literalPathList(ctx, rest[0])
	if !ok {
		return MissingValue, fmt.Errorf("eval: pick requires a literal path or path list")
	}
	out := map[string]any{}
	for _, p := range paths {
		toks, perr := pathlang.Parse(p)
		if perr != nil {
			continue
		}
		if val, ok := pathlang.Get(m, toks); ok {
			_ = pathlang.Set(out, toks, val)
		}
	}
	return Present(out), nil
}

func opOmit(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	m, ok := asObject(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: omit requires an object subject")
	}
	paths, ok := literalPathList(ctx, rest[0])
	if !ok {
		return MissingValue, fmt.Errorf("eval: omit requires a literal path or path list")
	}
	drop := map[string]bool{}
	for _, p := range paths {
		drop[p] = true
	}
	out := map[string]any{}
	for k, val := range m {
		if !drop[k] {
			out[k] = val
		}
	}
	return Present(out), nil
}

func opKeys(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	m, ok := asObject(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: keys requires an object")
	}
	out := make([]any, 0, len(m))
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		out = append(out, k)
	}
	return Present(out), nil
}

func opValues(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	m, ok := asObject(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: values requires an object")
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]any, 0, len(m))
	for _, k := range names {
		out = append(out, m[k])
	}
	return Present(out), nil
}

func opEntries(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	m, ok := asObject(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: entries requires an object")
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]any, 0, len(m))
	for _, k := range names {
		out = append(out, map[string]any{"key": k, "value": m[k]})
	}
	return Present(out), nil
}

func opFromEntries(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: from_entries requires an array")
	}
	out := map[string]any{}
	for _, item := range arr {
		m, ok := asObject(item)
		if !ok {
			continue
		}
		k, ok := asString(m["key"])
		if !ok {
			continue
		}
		out[k] = m["value"]
	}
	return Present(out), nil
}

func flattenInto(prefix string, v any, out map[string]any) {
	m, ok := asObject(v)
	if !ok {
		out[prefix] = v
		return
	}
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flattenInto(key, val, out)
	}
}

func opObjectFlatten(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	m, ok := asObject(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: object_flatten requires an object")
	}
	out := map[string]any{}
	flattenInto("", m, out)
	return Present(out), nil
}

func opObjectUnflatten(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	m, ok := asObject(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: object_unflatten requires an object")
	}
	out := map[string]any{}
	for k, val := range m {
		toks, err := pathlang.Parse(k)
		if err != nil {
			out[k] = val
			continue
		}
		_ = pathlang.Set(out, toks, val)
	}
	return Present(out), nil
}

// --- arrays ---

func opMap(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: map requires an array subject")
	}
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		r, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if r.IsMissing() {
			continue // missing elements are dropped, not nulled
		}
		out = append(out, r.Data())
	}
	return Present(out), nil
}

func opFilter(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: filter requires an array subject")
	}
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		r, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if r.Bool() {
			out = append(out, item)
		}
	}
	return Present(out), nil
}

func opFlatMap(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: flat_map requires an array subject")
	}
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		r, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if r.IsMissing() {
			continue
		}
		if sub, ok := asArray(r.Data()); ok {
			out = append(out, sub...)
		} else {
			out = append(out, r.Data())
		}
	}
	return Present(out), nil
}

func opFlatten(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: flatten requires an array")
	}
	depth := 1
	if len(rest) > 0 {
		if dv, err := Eval(ctx, rest[0]); err == nil && !dv.IsMissing() {
			if f, ok := asFloat(dv.Data()); ok {
				depth = int(f)
			}
		}
	}
	var flat func(items []any, d int) []any
	flat = func(items []any, d int) []any {
		out := make([]any, 0, len(items))
		for _, item := range items {
			if sub, ok := asArray(item); ok && d > 0 {
				out = append(out, flat(sub, d-1)...)
			} else {
				out = append(out, item)
			}
		}
		return out
	}
	return Present(flat(arr, depth)), nil
}

func intArg(ctx *Ctx, e schema.Expr) (int, bool) {
	v, err := Eval(ctx, e)
	if err != nil || v.IsMissing() {
		return 0, false
	}
	f, ok := asFloat(v.Data())
	if !ok {
		return 0, false
	}
	return int(f), true
}

func opTake(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: take requires an array")
	}
	n, _ := intArg(ctx, rest[0])
	if n < 0 {
		n = 0
	}
	if n > len(arr) {
		n = len(arr)
	}
	out := make([]any, n)
	copy(out, arr[:n])
	return Present(out), nil
}

func opDrop(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: drop requires an array")
	}
	n, _ := intArg(ctx, rest[0])
	if n < 0 {
		n = 0
	}
	if n > len(arr) {
		n = len(arr)
	}
	out := make([]any, len(arr)-n)
	copy(out, arr[n:])
	return Present(out), nil
}

func opSlice(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: slice requires an array")
	}
	start, _ := intArg(ctx, rest[0])
	end := len(arr)
	if len(rest) > 1 {
		if e, ok := intArg(ctx, rest[1]); ok {
			end = e
		}
	}
	if start < 0 {
		start = 0
	}
	if end > len(arr) {
		end = len(arr)
	}
	if start > end {
		start = end
	}
	out := make([]any, end-start)
	copy(out, arr[start:end])
	return Present(out), nil
}

func opChunk(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: chunk requires an array")
	}
	size, _ := intArg(ctx, rest[0])
	if size <= 0 {
		return MissingValue, fmt.Errorf("eval: chunk size must be positive")
	}
	var out []any
	for i := 0; i < len(arr); i += size {
		end := i + size
		if end > len(arr) {
			end = len(arr)
		}
		out = append(out, append([]any{}, arr[i:end]...))
	}
	return Present(out), nil
}

func opZip(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	var lists [][]any
	add := func(v Value) error {
		if v.IsMissing() {
			return nil
		}
		a, ok := asArray(v.Data())
		if !ok {
			return fmt.Errorf("eval: zip requires array operands")
		}
		lists = append(lists, a)
		return nil
	}
	if implicit != nil {
		if err := add(*implicit); err != nil {
			return MissingValue, err
		}
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if err := add(v); err != nil {
			return MissingValue, err
		}
	}
	if len(lists) == 0 {
		return Present([]any{}), nil
	}
	n := len(lists[0])
	for _, l := range lists {
		if len(l) < n {
			n = len(l)
		}
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		tuple := make([]any, len(lists))
		for j, l := range lists {
			tuple[j] = l[i]
		}
		out[i] = tuple
	}
	return Present(out), nil
}

func opZipWith(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) < 2 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: zip_with requires an array subject")
	}
	otherV, err := Eval(ctx, rest[0])
	if err != nil || otherV.IsMissing() {
		return MissingValue, err
	}
	other, ok := asArray(otherV.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: zip_with requires an array operand")
	}
	n := len(arr)
	if len(other) < n {
		n = len(other)
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		itemCtx := ctx.withItem(Present([]any{arr[i], other[i]}), i)
		r, err := Eval(itemCtx, rest[1])
		if err != nil {
			return MissingValue, err
		}
		out = append(out, r.Data())
	}
	return Present(out), nil
}

func opUnzip(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: unzip requires an array")
	}
	if len(arr) == 0 {
		return Present([]any{}), nil
	}
	first, ok := asArray(arr[0])
	if !ok {
		return MissingValue, fmt.Errorf("eval: unzip requires an array of tuples")
	}
	cols := make([][]any, len(first))
	for _, row := range arr {
		tuple, ok := asArray(row)
		if !ok {
			continue
		}
		for i := range cols {
			if i < len(tuple) {
				cols[i] = append(cols[i], tuple[i])
			}
		}
	}
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return Present(out), nil
}

func opGroupBy(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: group_by requires an array subject")
	}
	out := map[string]any{}
	order := []string{}
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		kv, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		key := fmt.Sprintf("%v", kv.Data())
		if _, ok := out[key]; !ok {
			order = append(order, key)
			out[key] = []any{}
		}
		out[key] = append(out[key].([]any), item)
	}
	_ = order
	return Present(out), nil
}

func opKeyBy(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: key_by requires an array subject")
	}
	out := map[string]any{}
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		kv, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		out[fmt.Sprintf("%v", kv.Data())] = item
	}
	return Present(out), nil
}

func opPartition(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: partition requires an array subject")
	}
	var yes, no []any
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		r, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if r.Bool() {
			yes = append(yes, item)
		} else {
			no = append(no, item)
		}
	}
	return Present([]any{yes, no}), nil
}

func opUnique(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: unique requires an array")
	}
	seen := map[string]bool{}
	out := make([]any, 0, len(arr))
	for _, item := range arr {
		k := fmt.Sprintf("%v", item)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return Present(out), nil
}

func opDistinctBy(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: distinct_by requires an array subject")
	}
	seen := map[string]bool{}
	out := make([]any, 0, len(arr))
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		kv, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		k := fmt.Sprintf("%v", kv.Data())
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return Present(out), nil
}

func opSortBy(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: sort_by requires an array subject")
	}
	desc := false
	if len(rest) > 1 {
		if got, ok := literalString(ctx, rest[1]); ok && got == "desc" {
			desc = true
		}
	}
	type pair struct {
		item any
		key  Value
	}
	pairs := make([]pair, len(arr))
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		kv, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		pairs[i] = pair{item: item, key: kv}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		less := compareValues(pairs[i].key, pairs[j].key) < 0
		if desc {
			return !less && compareValues(pairs[i].key, pairs[j].key) != 0
		}
		return less
	})
	out := make([]any, len(pairs))
	for i, p := range pairs {
		out[i] = p.item
	}
	return Present(out), nil
}

func opFind(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: find requires an array subject")
	}
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		r, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if r.Bool() {
			return Present(item), nil
		}
	}
	return MissingValue, nil
}

func opFindIndex(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: find_index requires an array subject")
	}
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		r, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if r.Bool() {
			return Present(int64(i)), nil
		}
	}
	return Present(int64(-1)), nil
}

func opIndexOf(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: index_of requires an array subject")
	}
	target, err := Eval(ctx, rest[0])
	if err != nil {
		return MissingValue, err
	}
	for i, item := range arr {
		if compareValues(Present(item), target) == 0 {
			return Present(int64(i)), nil
		}
	}
	return Present(int64(-1)), nil
}

func opContains(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	target, err := Eval(ctx, rest[0])
	if err != nil {
		return MissingValue, err
	}
	if s, ok := asString(v.Data()); ok {
		if ts, ok := asString(target.Data()); ok {
			return Present(strings.Contains(s, ts)), nil
		}
	}
	if arr, ok := asArray(v.Data()); ok {
		for _, item := range arr {
			if compareValues(Present(item), target) == 0 {
				return Present(true), nil
			}
		}
		return Present(false), nil
	}
	return Present(false), nil
}

func opLen(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	switch d := v.Data().(type) {
	case []any:
		return Present(int64(len(d))), nil
	case map[string]any:
		return Present(int64(len(d))), nil
	case string:
		return Present(int64(len(d))), nil
	default:
		return MissingValue, fmt.Errorf("eval: len requires an array, object, or string")
	}
}

func numericList(v Value) ([]float64, bool) {
	arr, ok := asArray(v.Data())
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(arr))
	for _, item := range arr {
		f, ok := asFloat(item)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func opSum(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	nums, ok := numericList(v)
	if !ok {
		return MissingValue, fmt.Errorf("eval: sum requires a numeric array")
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return Present(total), nil
}

func opAvg(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	nums, ok := numericList(v)
	if !ok || len(nums) == 0 {
		return MissingValue, nil
	}
	var total float64
	for _, n := range nums {
		total += n
	}
	return Present(total / float64(len(nums))), nil
}

func opMin(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	nums, err := numericOperands(ctx, implicit, args)
	if err != nil || len(nums) == 0 {
		return MissingValue, err
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n < m {
			m = n
		}
	}
	return Present(m), nil
}

func opMax(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	nums, err := numericOperands(ctx, implicit, args)
	if err != nil || len(nums) == 0 {
		return MissingValue, err
	}
	m := nums[0]
	for _, n := range nums[1:] {
		if n > m {
			m = n
		}
	}
	return Present(m), nil
}

// numericOperands flattens either a single array operand or a variadic list
// of scalar operands into one float64 slice, for min/max.
func numericOperands(ctx *Ctx, implicit *Value, args []schema.Expr) ([]float64, error) {
	var vals []Value
	if implicit != nil {
		vals = append(vals, *implicit)
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if len(vals) == 1 {
		if nums, ok := numericList(vals[0]); ok {
			return nums, nil
		}
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v.IsMissing() {
			continue
		}
		f, ok := asFloat(v.Data())
		if !ok {
			return nil, fmt.Errorf("eval: min/max requires numeric operands")
		}
		out = append(out, f)
	}
	return out, nil
}

func opReduce(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) < 2 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: reduce requires an array subject")
	}
	acc, err := Eval(ctx, rest[1])
	if err != nil {
		return MissingValue, err
	}
	for i, item := range arr {
		stepCtx := ctx.withItem(Present(item), i).withAcc(acc)
		acc, err = Eval(stepCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
	}
	return acc, nil
}

func opFold(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	return opReduce(ctx, implicit, args)
}

// --- lookup ---

func opLookup(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) < 2 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: lookup requires an array subject")
	}
	keyPath, ok := literalString(ctx, rest[0])
	if !ok {
		return MissingValue, fmt.Errorf("eval: lookup requires a literal key path")
	}
	toks, perr := pathlang.Parse(keyPath)
	if perr != nil {
		return MissingValue, nil
	}
	match, err := Eval(ctx, rest[1])
	if err != nil {
		return MissingValue, err
	}
	var outPath []pathlang.Token
	if len(rest) > 2 {
		if p, ok := literalString(ctx, rest[2]); ok {
			outPath, _ = pathlang.Parse(p)
		}
	}
	for _, item := range arr {
		keyVal, ok := pathlang.Get(item, toks)
		if !ok {
			continue
		}
		if compareValues(Present(keyVal), match) == 0 {
			if outPath == nil {
				return Present(item), nil
			}
			return lookupAny(item, outPath), nil
		}
	}
	return MissingValue, nil
}

func opLookupFirst(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	arr, ok := asArray(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: lookup_first requires an array subject")
	}
	var outPath []pathlang.Token
	if len(rest) > 1 {
		if p, ok := literalString(ctx, rest[1]); ok {
			outPath, _ = pathlang.Parse(p)
		}
	}
	for i, item := range arr {
		itemCtx := ctx.withItem(Present(item), i)
		r, err := Eval(itemCtx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if r.Bool() {
			if outPath == nil {
				return Present(item), nil
			}
			return lookupAny(item, outPath), nil
		}
	}
	return MissingValue, nil
}

// --- numbers ---

func opAdd(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	var sum float64
	add := func(v Value) (bool, error) {
		if v.IsMissing() {
			return true, nil
		}
		f, ok := asFloat(v.Data())
		if !ok {
			return false, fmt.Errorf("eval: + requires numeric operands")
		}
		sum += f
		return false, nil
	}
	if implicit != nil {
		if missing, err := add(*implicit); err != nil {
			return MissingValue, err
		} else if missing {
			return MissingValue, nil
		}
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if missing, err := add(v); err != nil {
			return MissingValue, err
		} else if missing {
			return MissingValue, nil
		}
	}
	return Present(sum), nil
}

func opSub(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	var vals []Value
	if implicit != nil {
		vals = append(vals, *implicit)
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		vals = append(vals, v)
	}
	if anyMissing(vals...) || len(vals) == 0 {
		if len(vals) == 0 {
			return MissingValue, fmt.Errorf("eval: - requires at least one operand")
		}
		return MissingValue, nil
	}
	first, ok := asFloat(vals[0].Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: - requires numeric operands")
	}
	if len(vals) == 1 {
		return Present(-first), nil
	}
	result := first
	for _, v := range vals[1:] {
		f, ok := asFloat(v.Data())
		if !ok {
			return MissingValue, fmt.Errorf("eval: - requires numeric operands")
		}
		result -= f
	}
	return Present(result), nil
}

func opMul(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	product := 1.0
	mul := func(v Value) (bool, error) {
		if v.IsMissing() {
			return true, nil
		}
		f, ok := asFloat(v.Data())
		if !ok {
			return false, fmt.Errorf("eval: * requires numeric operands")
		}
		product *= f
		return false, nil
	}
	if implicit != nil {
		if missing, err := mul(*implicit); err != nil {
			return MissingValue, err
		} else if missing {
			return MissingValue, nil
		}
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if missing, err := mul(v); err != nil {
			return MissingValue, err
		} else if missing {
			return MissingValue, nil
		}
	}
	return Present(product), nil
}

func opDiv(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	divV, err := Eval(ctx, rest[0])
	if err != nil || divV.IsMissing() {
		return MissingValue, err
	}
	a, ok1 := asFloat(v.Data())
	b, ok2 := asFloat(divV.Data())
	if !ok1 || !ok2 {
		return MissingValue, fmt.Errorf("eval: / requires numeric operands")
	}
	if b == 0 {
		return MissingValue, fmt.Errorf("eval: division by zero")
	}
	return Present(a / b), nil
}

func opRound(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	f, ok := asFloat(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: round requires a numeric subject")
	}
	places := 0
	if len(rest) > 0 {
		if p, ok := intArg(ctx, rest[0]); ok {
			places = p
		}
	}
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	rounded := float64(int64(f*mult+sign(f)*0.5)) / mult
	return Present(rounded), nil
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

func opToBase(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	f, ok := asFloat(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: to_base requires a numeric subject")
	}
	base, _ := intArg(ctx, rest[0])
	if base < 2 || base > 36 {
		return MissingValue, fmt.Errorf("eval: to_base requires a base between 2 and 36")
	}
	return Present(strconv.FormatInt(int64(f), base)), nil
}

// --- dates ---

func opDateFormat(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	s, ok := asString(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: date_format requires a string subject")
	}
	outputFormat, ok := literalString(ctx, rest[0])
	if !ok {
		outputFormat = time.RFC3339
	}
	var inputFormat, timezone string
	if len(rest) > 1 {
		inputFormat, _ = literalString(ctx, rest[1])
	}
	if len(rest) > 2 {
		timezone, _ = literalString(ctx, rest[2])
	}
	t, terr := parseTimeInput(s, inputFormat, timezone)
	if terr != nil {
		return MissingValue, nil
	}
	return Present(t.Format(goLayout(outputFormat))), nil
}

// goLayout accepts either a Go reference-time layout directly or a small set
// of strftime-style tokens, since rule authors are more likely to know the
// latter.
func goLayout(layout string) string {
	repl := strings.NewReplacer(
		"YYYY", "2006", "MM", "01", "DD", "02",
		"HH", "15", "mm", "04", "ss", "05",
	)
	return repl.Replace(layout)
}

// parseTimeInput parses s using inputFormat (an empty inputFormat means
// RFC3339), applying timezone via ParseInLocation when the layout itself
// carries no zone offset.
func parseTimeInput(s, inputFormat, timezone string) (time.Time, error) {
	layout := time.RFC3339
	if inputFormat != "" {
		layout = goLayout(inputFormat)
	}
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("eval: unknown timezone %q: %w", timezone, err)
		}
		return time.ParseInLocation(layout, s, loc)
	}
	return time.Parse(layout, s)
}

func opToUnixtime(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return MissingValue, err
	}
	s, ok := asString(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: to_unixtime requires a string subject")
	}
	var inputFormat, timezone string
	if len(rest) > 0 {
		inputFormat, _ = literalString(ctx, rest[0])
	}
	if len(rest) > 1 {
		timezone, _ = literalString(ctx, rest[1])
	}
	t, terr := parseTimeInput(s, inputFormat, timezone)
	if terr != nil {
		return MissingValue, nil
	}
	return Present(t.Unix()), nil
}

// --- logic ---

func opAnd(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	sawMissing := false
	check := func(v Value) bool {
		// reports whether and() should short-circuit to false
		if v.IsMissing() {
			sawMissing = true
			return false
		}
		return !v.Bool()
	}
	if implicit != nil && check(*implicit) {
		return Present(false), nil
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if check(v) {
			return Present(false), nil
		}
	}
	if sawMissing {
		return MissingValue, nil
	}
	return Present(true), nil
}

func opOr(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	sawMissing := false
	check := func(v Value) *Value {
		if v.IsMissing() {
			sawMissing = true
			return nil
		}
		if v.Bool() {
			r := Present(true)
			return &r
		}
		return nil
	}
	if implicit != nil {
		if r := check(*implicit); r != nil {
			return *r, nil
		}
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if r := check(v); r != nil {
			return *r, nil
		}
	}
	if sawMissing {
		return MissingValue, nil
	}
	return Present(false), nil
}

func opNot(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, _, err := subject(ctx, implicit, args)
	if err != nil {
		return MissingValue, err
	}
	if v.IsMissing() {
		return MissingValue, nil
	}
	return Present(!v.Bool()), nil
}

func opCoalesce(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	if implicit != nil && !implicit.IsMissing() {
		return *implicit, nil
	}
	for _, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return MissingValue, err
		}
		if !v.IsMissing() {
			return v, nil
		}
	}
	return MissingValue, nil
}

func comparisonOp(name string, cmp func(int) bool) opFunc {
	return func(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
		v, rest, err := subject(ctx, implicit, args)
		if err != nil || len(rest) == 0 {
			return MissingValue, err
		}
		other, err := Eval(ctx, rest[0])
		if err != nil {
			return MissingValue, err
		}
		if v.IsMissing() || other.IsMissing() {
			return MissingValue, nil
		}
		return Present(cmp(compareValues(v, other))), nil
	}
}

var opLt = comparisonOp("<", func(c int) bool { return c < 0 })
var opLte = comparisonOp("<=", func(c int) bool { return c <= 0 })
var opGt = comparisonOp(">", func(c int) bool { return c > 0 })
var opGte = comparisonOp(">=", func(c int) bool { return c >= 0 })

func opEq(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || len(rest) == 0 {
		return MissingValue, err
	}
	other, err := Eval(ctx, rest[0])
	if err != nil {
		return MissingValue, err
	}
	if v.IsMissing() || other.IsMissing() {
		return MissingValue, nil
	}
	return Present(compareValues(v, other) == 0), nil
}

func opNeq(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, err := opEq(ctx, implicit, args)
	if err != nil || v.IsMissing() {
		return v, err
	}
	return Present(!v.Bool()), nil
}

func opMatch(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, error) {
	v, rest, err := subject(ctx, implicit, args)
	if err != nil || v.IsMissing() || len(rest) == 0 {
		return MissingValue, err
	}
	s, ok := asString(v.Data())
	if !ok {
		return MissingValue, fmt.Errorf("eval: ~= requires a string subject")
	}
	pattern, ok := literalString(ctx, rest[0])
	if !ok {
		return MissingValue, fmt.Errorf("eval: ~= requires a literal pattern")
	}
	matched, err := regexp.MatchString(pattern, s)
	if err != nil {
		return MissingValue, fmt.Errorf("eval: ~= invalid regex %q: %w", pattern, err)
	}
	return Present(matched), nil
}

// compareValues orders two JSON-shaped scalars. Numbers compare
// numerically, strings lexically; mismatched kinds fall back to string
// comparison so sort_by/min/max never panic on heterogeneous input.
func compareValues(a, b Value) int {
	af, aok := asFloat(a.Data())
	bf, bok := asFloat(b.Data())
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprintf("%v", a.Data())
	bs := fmt.Sprintf("%v", b.Data())
	return strings.Compare(as, bs)
}
