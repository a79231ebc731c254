// Package transform executes a validated rule file against one record at a
// time, implementing the evaluator's core protocol from spec §4.4: the
// record_when gate, the per-mapping source/value/expr resolution with
// default/required/value_type handling, and the v2 step forms (nested
// mappings, record_when, asserts, branch). Callers must validate a rule
// file (see pkg/kernel/validate) before calling Record — this package does
// not re-check structural or referential integrity.
package transform

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/eval"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

// Warning is a non-fatal runtime occurrence: a type cast that failed on a
// mapping that isn't required and has no default, so the assignment was
// dropped instead of aborting the record.
type Warning struct {
	Code    string
	Message string
	Path    string
}

// Error is a runtime (transform-phase) diagnostic, distinct from the static
// *schema.RuleError taxonomy. Code is one of the §6 "transform errors":
// InvalidInput, InvalidRecordsPath, InvalidRef, InvalidTarget,
// MissingRequired, TypeCastFailed, ExprError, AssertionFailed.
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

func newErr(code, path string, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Path: path}
}

// Result is the outcome of running one record through a rule file.
type Result struct {
	// Output is nil exactly when the record was rejected by a record_when
	// gate; Skipped reports whether that rejection happened (vs. an
	// empty-but-present output object).
	Output   map[string]any
	Skipped  bool
	Warnings []Warning
}

// RuleLoader resolves and loads a sub-rule referenced by a branch step,
// relative to the parent rule's directory. Exported so hosts (tests, the
// CLI) can substitute an in-memory loader; fsRuleLoader is the default,
// filesystem-backed implementation.
type RuleLoader interface {
	Load(baseDir, ref string) (*schema.RuleFile, error)
}

// Record runs rf against one decoded input record. context is the rule's
// external sidecar object (NsContext); it may be nil.
func Record(rf *schema.RuleFile, record map[string]any, context map[string]any) (Result, error) {
	return RecordWith(rf, record, context, fsRuleLoader{})
}

// RecordWith is Record with an explicit sub-rule loader, used by branch
// steps and exposed for tests that stub out the filesystem.
func RecordWith(rf *schema.RuleFile, record map[string]any, context map[string]any, loader RuleLoader) (Result, error) {
	out := map[string]any{}
	ctx := eval.New(record, context, out)

	if rf.RecordWhen != nil {
		v, err := eval.Eval(ctx, rf.RecordWhen)
		if err != nil {
			return Result{}, newErr("ExprError", "$.record_when", err)
		}
		if !v.Bool() {
			return Result{Skipped: true}, nil
		}
	}

	var warnings []Warning
	if len(rf.Mappings) > 0 {
		w, err := runMappings(ctx, rf.Mappings, "$.mappings")
		warnings = append(warnings, w...)
		if err != nil {
			return Result{}, err
		}
	}

	for i, step := range rf.Steps {
		stepPath := fmt.Sprintf("$.steps[%d]", i)
		switch {
		case len(step.Mappings) > 0:
			w, err := runMappings(ctx, step.Mappings, stepPath+".mappings")
			warnings = append(warnings, w...)
			if err != nil {
				return Result{}, err
			}
		case step.RecordWhen != nil:
			v, err := eval.Eval(ctx, step.RecordWhen)
			if err != nil {
				return Result{}, newErr("ExprError", stepPath+".record_when", err)
			}
			if !v.Bool() {
				return Result{Skipped: true, Warnings: warnings}, nil
			}
		case step.Asserts != nil:
			if err := runAsserts(ctx, step.Asserts, stepPath+".asserts"); err != nil {
				return Result{}, err
			}
		case step.Branch != nil:
			res, halt, err := runBranch(rf, ctx, step.Branch, stepPath+".branch", loader)
			warnings = append(warnings, res.Warnings...)
			if err != nil {
				return Result{}, err
			}
			if halt {
				return Result{Output: res.Output, Skipped: res.Skipped, Warnings: warnings}, nil
			}
			if res.Output != nil {
				out = res.Output
				ctx = eval.New(record, context, out)
			}
		}
	}

	return Result{Output: out, Warnings: warnings}, nil
}

// runMappings applies §4.4 step 2 over one mapping list in document order,
// writing into ctx.Out. The mapping list may be the rule's top-level
// mappings or one step's nested mappings — both write into the same
// growing `out` object, per spec §3's "steps flatten into one ordered
// list" model.
func runMappings(ctx *eval.Ctx, mappings []schema.Mapping, basePath string) ([]Warning, error) {
	var warnings []Warning
	for i, m := range mappings {
		path := fmt.Sprintf("%s[%d]", basePath, i)
		if m.When != nil {
			wv, err := eval.Eval(ctx, m.When)
			if err != nil {
				return warnings, newErr("ExprError", path+".when", err)
			}
			if !wv.Bool() {
				continue
			}
		}

		val, err := resolveMappingValue(ctx, m, path)
		if err != nil {
			return warnings, err
		}

		if val.IsMissing() {
			if m.HasDefault {
				val = eval.Present(m.Default)
			} else if m.Required {
				return warnings, &Error{Code: "MissingRequired", Message: "required mapping produced no value", Path: m.Target}
			} else {
				continue
			}
		}

		data := val.Data()
		if m.ValueType != "" {
			cast, ok := castValue(data, m.ValueType)
			if !ok {
				if m.Required || m.HasDefault {
					return warnings, &Error{Code: "TypeCastFailed", Message: fmt.Sprintf("cannot cast value to %s", m.ValueType), Path: m.Target}
				}
				warnings = append(warnings, Warning{Code: "TypeCastFailed", Message: fmt.Sprintf("cannot cast value to %s, dropping assignment", m.ValueType), Path: m.Target})
				continue
			}
			data = cast
		}

		if f, ok := data.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return warnings, &Error{Code: "InvalidInput", Message: "value is not a finite number (NaN/Inf)", Path: m.Target}
		}

		if err := assign(ctx.Out, m, data); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

func assign(out map[string]any, m schema.Mapping, data any) error {
	toks := m.TargetPath
	if len(toks) == 0 {
		parsed, err := pathlang.Parse(m.Target)
		if err != nil {
			return &Error{Code: "InvalidTarget", Message: err.Error(), Path: m.Target}
		}
		toks = parsed
	}
	if err := pathlang.Set(out, toks, data); err != nil {
		return &Error{Code: "InvalidTarget", Message: err.Error(), Path: m.Target}
	}
	return nil
}

func resolveMappingValue(ctx *eval.Ctx, m schema.Mapping, path string) (eval.Value, error) {
	switch {
	case m.Source != "":
		return resolveSource(ctx, m.Source), nil
	case m.HasValue:
		return eval.Present(m.Value), nil
	case m.Expr != nil:
		v, err := eval.Eval(ctx, m.Expr)
		if err != nil {
			return eval.MissingValue, newErr("ExprError", path+".expr", err)
		}
		return v, nil
	default:
		return eval.MissingValue, nil
	}
}

// resolveSource mirrors the validator's checkSource disambiguation exactly:
// a recognized "input"/"context"/"out" prefix selects that namespace, any
// other leading segment (or no dot at all) means the whole string is a bare
// path under the implicit input namespace.
func resolveSource(ctx *eval.Ctx, source string) eval.Value {
	ns, rest, hasNs := strings.Cut(source, ".")
	p := source
	namespace := schema.NsInput
	if hasNs {
		switch schema.RefNamespace(ns) {
		case schema.NsInput, schema.NsContext, schema.NsOut:
			namespace = schema.RefNamespace(ns)
			p = rest
		}
	}
	toks, err := pathlang.Parse(p)
	if err != nil {
		return eval.MissingValue
	}
	ref := &schema.RefExpr{Namespace: namespace, Path: p, Tokens: toks}
	v, _ := eval.Eval(ctx, ref)
	return v
}

// castValue implements §4.4's value_type coercion table.
func castValue(v any, typ string) (any, bool) {
	switch typ {
	case "string":
		switch n := v.(type) {
		case string:
			return n, true
		case bool, int, int64, float64:
			return fmt.Sprintf("%v", n), true
		default:
			return nil, false
		}
	case "int":
		switch n := v.(type) {
		case int64:
			return n, true
		case int:
			return int64(n), true
		case float64:
			if n == float64(int64(n)) {
				return int64(n), true
			}
			return nil, false
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, false
			}
			return i, true
		default:
			return nil, false
		}
	case "float":
		switch n := v.(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case int:
			return float64(n), true
		case string:
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, false
			}
			return f, true
		default:
			return nil, false
		}
	case "bool":
		b, ok := v.(bool)
		return b, ok
	default:
		return v, true
	}
}

func runAsserts(ctx *eval.Ctx, asserts []schema.AssertSpec, basePath string) error {
	for i, a := range asserts {
		path := fmt.Sprintf("%s[%d]", basePath, i)
		v, err := eval.Eval(ctx, a.When)
		if err != nil {
			return newErr("ExprError", path+".when", err)
		}
		if !v.Bool() {
			msg := a.Message
			if msg == "" {
				msg = "assertion failed"
			}
			return &Error{Code: "AssertionFailed", Message: msg, Path: path}
		}
	}
	return nil
}

// runBranch executes a branch step. When when evaluates true, Then is
// loaded and run with the current out as its @context; return=true makes
// the sub-rule's output the final output and halts the parent (halt=true).
// Otherwise the sub-rule's output replaces the parent's in-progress out.
func runBranch(rf *schema.RuleFile, ctx *eval.Ctx, b *schema.BranchSpec, path string, loader RuleLoader) (Result, bool, error) {
	cond, err := eval.Eval(ctx, b.When)
	if err != nil {
		return Result{}, false, newErr("ExprError", path+".when", err)
	}

	ref := b.Then
	if !cond.Bool() {
		ref = b.Else
	}
	if ref == "" {
		return Result{Output: ctx.Out}, false, nil
	}

	baseDir := filepath.Dir(rf.SourcePath)
	sub, err := loader.Load(baseDir, ref)
	if err != nil {
		return Result{}, false, &Error{Code: "InvalidRef", Message: err.Error(), Path: path}
	}

	res, err := RecordWith(sub, ctx.Input, ctx.Out, loader)
	if err != nil {
		return Result{}, false, err
	}
	if b.Return {
		return res, true, nil
	}
	return res, false, nil
}

type fsRuleLoader struct{}

// Load resolves ref relative to baseDir and parses it with schema.Load,
// failing on the loader's structural errors. The sub-rule is not run
// through the validator's semantic or domain phases, here or anywhere else:
// `rulemorph validate` checks only the rule file it is given, not its
// branch targets.
func (fsRuleLoader) Load(baseDir, ref string) (*schema.RuleFile, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load sub-rule %s: %w", path, err)
	}
	rf, errs, err := schema.Load(raw, path)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("sub-rule %s has %d structural error(s): %s", path, len(errs), errs[0].Error())
	}
	return rf, nil
}
