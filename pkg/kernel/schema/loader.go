package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/dynval"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
)

// Load parses rule-file source text and builds a RuleFile. It returns the
// best-effort RuleFile it could construct together with any structural
// diagnostics (unknown keys, shape mismatches) found along the way; callers
// must run the validator before evaluating the result even when len(errs)
// is 0, since the loader does not check version ranges, referential
// integrity, operator closure, or acyclicity — that is the validator's job.
//
// Load returns a non-nil error only when the source fails to parse as YAML
// at all, or the document root is not an object.
func Load(raw []byte, sourcePath string) (*RuleFile, []*RuleError, error) {
	root, err := dynval.Load(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("schema: %w", err)
	}
	if root.Kind != dynval.KindObject {
		return nil, nil, fmt.Errorf("schema: rule file root must be a mapping, got %s", root.Kind)
	}
	b := &builder{}
	rf := b.buildRuleFile(root)
	rf.SourcePath = sourcePath
	rf.RawText = string(raw)
	return rf, b.errs, nil
}

type builder struct {
	errs []*RuleError
}

func (b *builder) fail(code, message, path string, pos dynval.Position) {
	var loc *dynval.Position
	if !pos.IsZero() {
		p := pos
		loc = &p
	}
	b.errs = append(b.errs, &RuleError{Code: code, Message: message, Path: path, Location: loc})
}

func (b *builder) unknownKeys(v *dynval.Value, allowed map[string]bool, path string) {
	for _, f := range v.Fields {
		if !allowed[f.Key] {
			pos, _ := v.KeyPos(f.Key)
			b.fail("UnknownKey", fmt.Sprintf("unknown key %q", f.Key), path+"."+f.Key, pos)
		}
	}
}

var ruleFileKeys = map[string]bool{
	"version": true, "input": true, "output": true, "record_when": true,
	"mappings": true, "steps": true, "finalize": true,
}

func (b *builder) buildRuleFile(root *dynval.Value) *RuleFile {
	b.unknownKeys(root, ruleFileKeys, "$")

	rf := &RuleFile{}
	if v, ok := root.Get("version"); ok {
		rf.Version = intOf(v)
	}
	if v, ok := root.Get("input"); ok {
		rf.Input = b.buildInputSpec(v)
	}
	if v, ok := root.Get("output"); ok && v.Kind == dynval.KindString {
		rf.Output = v.Str
	}
	if v, ok := root.Get("record_when"); ok {
		rf.RecordWhen = b.buildExpr(v, "$.record_when")
	}
	if v, ok := root.Get("mappings"); ok {
		rf.Mappings = b.buildMappings(v, "$.mappings")
	}
	if v, ok := root.Get("steps"); ok {
		rf.Steps = b.buildSteps(v, "$.steps")
	}
	if v, ok := root.Get("finalize"); ok {
		rf.Finalize = b.buildFinalize(v, "$.finalize")
	}
	return rf
}

var inputKeys = map[string]bool{"format": true, "csv": true, "json": true}
var csvKeys = map[string]bool{"has_header": true, "delimiter": true, "columns": true}
var csvColumnKeys = map[string]bool{"name": true, "type": true}
var jsonKeys = map[string]bool{"records_path": true}

func (b *builder) buildInputSpec(v *dynval.Value) InputSpec {
	b.unknownKeys(v, inputKeys, "$.input")
	spec := InputSpec{Pos: v.Pos}
	if f, ok := v.Get("format"); ok && f.Kind == dynval.KindString {
		spec.Format = InputFormat(f.Str)
	}
	if c, ok := v.Get("csv"); ok {
		b.unknownKeys(c, csvKeys, "$.input.csv")
		cs := &CSVSpec{HasHeader: true, Delimiter: ","}
		if hh, ok := c.Get("has_header"); ok {
			cs.HasHeader = hh.Bool
		}
		if d, ok := c.Get("delimiter"); ok && d.Kind == dynval.KindString {
			cs.Delimiter = d.Str
		}
		if cols, ok := c.Get("columns"); ok && cols.Kind == dynval.KindArray {
			for _, item := range cols.Items {
				if item.Kind != dynval.KindObject {
					continue
				}
				b.unknownKeys(item, csvColumnKeys, "$.input.csv.columns[]")
				col := CSVColumn{Pos: item.Pos}
				if n, ok := item.Get("name"); ok && n.Kind == dynval.KindString {
					col.Name = n.Str
				}
				if t, ok := item.Get("type"); ok && t.Kind == dynval.KindString {
					col.Type = t.Str
				}
				cs.Columns = append(cs.Columns, col)
			}
		}
		spec.CSV = cs
	}
	if j, ok := v.Get("json"); ok {
		b.unknownKeys(j, jsonKeys, "$.input.json")
		js := &JSONSpec{}
		if rp, ok := j.Get("records_path"); ok && rp.Kind == dynval.KindString {
			js.RecordsPath = rp.Str
		}
		spec.JSON = js
	}
	return spec
}

var mappingKeys = map[string]bool{
	"target": true, "source": true, "value": true, "expr": true, "when": true,
	"value_type": true, "required": true, "default": true,
}

func (b *builder) buildMappings(v *dynval.Value, path string) []Mapping {
	if v.Kind != dynval.KindArray {
		b.fail("InvalidExprShape", "mappings must be a sequence", path, v.Pos)
		return nil
	}
	out := make([]Mapping, 0, len(v.Items))
	for i, item := range v.Items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item.Kind != dynval.KindObject {
			b.fail("InvalidExprShape", "mapping entry must be a mapping", itemPath, item.Pos)
			continue
		}
		out = append(out, b.buildMapping(item, itemPath))
	}
	return out
}

func (b *builder) buildMapping(v *dynval.Value, path string) Mapping {
	b.unknownKeys(v, mappingKeys, path)
	m := Mapping{Pos: v.Pos}
	if t, ok := v.Get("target"); ok && t.Kind == dynval.KindString {
		m.Target = t.Str
		m.TargetPos, _ = v.KeyPos("target")
		if toks, err := pathlang.Parse(t.Str); err == nil {
			m.TargetPath = toks
		} else {
			b.fail("InvalidPath", err.Error(), path+".target", m.TargetPos)
		}
	}
	if s, ok := v.Get("source"); ok && s.Kind == dynval.KindString {
		m.Source = s.Str
	}
	if val, ok := v.Get("value"); ok {
		m.HasValue = true
		m.Value = val.ToAny()
	}
	if e, ok := v.Get("expr"); ok {
		m.Expr = b.buildExpr(e, path+".expr")
	}
	if w, ok := v.Get("when"); ok {
		m.When = b.buildExpr(w, path+".when")
	}
	if vt, ok := v.Get("value_type"); ok && vt.Kind == dynval.KindString {
		m.ValueType = vt.Str
	}
	if r, ok := v.Get("required"); ok {
		m.Required = r.Bool
	}
	if d, ok := v.Get("default"); ok {
		m.HasDefault = true
		m.Default = d.ToAny()
	}
	return m
}

var stepKeys = map[string]bool{
	"name": true, "mappings": true, "record_when": true, "asserts": true, "branch": true,
}
var assertKeys = map[string]bool{"when": true, "code": true, "message": true}
var branchKeys = map[string]bool{"when": true, "then": true, "else": true, "return": true}

func (b *builder) buildSteps(v *dynval.Value, path string) []Step {
	if v.Kind != dynval.KindArray {
		b.fail("InvalidStep", "steps must be a sequence", path, v.Pos)
		return nil
	}
	out := make([]Step, 0, len(v.Items))
	for i, item := range v.Items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if item.Kind != dynval.KindObject {
			b.fail("InvalidStep", "step entry must be a mapping", itemPath, item.Pos)
			continue
		}
		out = append(out, b.buildStep(item, itemPath))
	}
	return out
}

func (b *builder) buildStep(v *dynval.Value, path string) Step {
	b.unknownKeys(v, stepKeys, path)
	st := Step{Pos: v.Pos}
	if n, ok := v.Get("name"); ok && n.Kind == dynval.KindString {
		st.Name = n.Str
	}
	if m, ok := v.Get("mappings"); ok {
		st.Mappings = b.buildMappings(m, path+".mappings")
	}
	if rw, ok := v.Get("record_when"); ok {
		st.RecordWhen = b.buildExpr(rw, path+".record_when")
	}
	if as, ok := v.Get("asserts"); ok {
		st.Asserts = b.buildAsserts(as, path+".asserts")
	}
	if br, ok := v.Get("branch"); ok {
		st.Branch = b.buildBranch(br, path+".branch")
	}
	return st
}

func (b *builder) buildAsserts(v *dynval.Value, path string) []AssertSpec {
	// A single assert object is accepted in addition to a sequence, since
	// the common case is one assertion per step.
	items := []*dynval.Value{v}
	if v.Kind == dynval.KindArray {
		items = v.Items
	}
	out := make([]AssertSpec, 0, len(items))
	for i, item := range items {
		itemPath := path
		if v.Kind == dynval.KindArray {
			itemPath = fmt.Sprintf("%s[%d]", path, i)
		}
		if item.Kind != dynval.KindObject {
			b.fail("InvalidStep", "assert entry must be a mapping", itemPath, item.Pos)
			continue
		}
		b.unknownKeys(item, assertKeys, itemPath)
		a := AssertSpec{Pos: item.Pos}
		if w, ok := item.Get("when"); ok {
			a.When = b.buildExpr(w, itemPath+".when")
		}
		if c, ok := item.Get("code"); ok && c.Kind == dynval.KindString {
			a.Code = c.Str
		}
		if m, ok := item.Get("message"); ok && m.Kind == dynval.KindString {
			a.Message = m.Str
		}
		out = append(out, a)
	}
	return out
}

func (b *builder) buildBranch(v *dynval.Value, path string) *BranchSpec {
	if v.Kind != dynval.KindObject {
		b.fail("InvalidStep", "branch must be a mapping", path, v.Pos)
		return nil
	}
	b.unknownKeys(v, branchKeys, path)
	br := &BranchSpec{}
	if w, ok := v.Get("when"); ok {
		br.When = b.buildExpr(w, path+".when")
	}
	if t, ok := v.Get("then"); ok && t.Kind == dynval.KindString {
		br.Then = t.Str
	}
	if e, ok := v.Get("else"); ok && e.Kind == dynval.KindString {
		br.Else = e.Str
	}
	if r, ok := v.Get("return"); ok {
		br.Return = r.Bool
	}
	return br
}

var finalizeKeys = map[string]bool{
	"filter": true, "sort": true, "limit": true, "offset": true, "wrap": true,
}
var sortKeys = map[string]bool{"by": true, "order": true}

func (b *builder) buildFinalize(v *dynval.Value, path string) *Finalize {
	if v.Kind != dynval.KindObject {
		b.fail("InvalidFinalize", "finalize must be a mapping", path, v.Pos)
		return nil
	}
	b.unknownKeys(v, finalizeKeys, path)
	fz := &Finalize{Pos: v.Pos}
	if f, ok := v.Get("filter"); ok {
		fz.Filter = b.buildExpr(f, path+".filter")
	}
	if s, ok := v.Get("sort"); ok && s.Kind == dynval.KindObject {
		b.unknownKeys(s, sortKeys, path+".sort")
		sort := &SortSpec{Order: "asc", Pos: s.Pos}
		if by, ok := s.Get("by"); ok && by.Kind == dynval.KindString {
			sort.By = by.Str
		}
		if ord, ok := s.Get("order"); ok && ord.Kind == dynval.KindString {
			sort.Order = ord.Str
		}
		fz.Sort = sort
	}
	if l, ok := v.Get("limit"); ok {
		n := intOf(l)
		fz.Limit = &n
	}
	if o, ok := v.Get("offset"); ok {
		n := intOf(o)
		fz.Offset = &n
	}
	if w, ok := v.Get("wrap"); ok {
		fz.Wrap = b.buildExpr(w, path+".wrap")
	}
	return fz
}

// ParseExpr parses a single standalone expression (v1 or v2 shape) from
// raw YAML text, outside the context of a full rule file. Used by the
// REPL to evaluate ad-hoc expressions against a sample record.
func ParseExpr(raw []byte) (Expr, error) {
	v, err := dynval.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	b := &builder{}
	return b.buildExpr(v, "$"), nil
}

// buildExpr dispatches on the dynamic value's shape to produce whichever
// Expr variant it represents. Arrays build v2 pipes (including
// single-element arrays — the loader never unwraps a 1-element sequence
// into its sole member, so a literal pipe `["@ref"]` stays a pipe rather
// than silently degrading to a bare ref).
func (b *builder) buildExpr(v *dynval.Value, path string) Expr {
	switch v.Kind {
	case dynval.KindArray:
		return b.buildPipe(v, path)
	case dynval.KindObject:
		return b.buildExprObject(v, path)
	case dynval.KindString:
		return b.buildExprString(v, path)
	case dynval.KindNull:
		return &LiteralExpr{Value: nil, Pos: v.Pos}
	case dynval.KindBool:
		return &LiteralExpr{Value: v.Bool, Pos: v.Pos}
	case dynval.KindInt:
		return &LiteralExpr{Value: v.Int, Pos: v.Pos}
	case dynval.KindFloat:
		return &LiteralExpr{Value: v.Float, Pos: v.Pos}
	default:
		return &LiteralExpr{Value: nil, Pos: v.Pos}
	}
}

func (b *builder) buildExprObject(v *dynval.Value, path string) Expr {
	if opV, ok := v.Get("op"); ok && len(v.Fields) >= 1 {
		argsV, _ := v.Get("args")
		b.unknownKeys(v, map[string]bool{"op": true, "args": true}, path)
		return &OpExpr{Op: strOf(opV), Args: b.buildExprList(argsV, path+".args"), Pos: v.Pos}
	}
	if chV, ok := v.Get("chain"); ok && len(v.Fields) == 1 {
		return &ChainExpr{Chain: b.buildExprList(chV, path+".chain"), Pos: v.Pos}
	}
	if len(v.Fields) == 1 {
		f := v.Fields[0]
		if _, known := Ops[f.Key]; known {
			return &OpExpr{Op: f.Key, Args: b.buildExprList(f.Value, path+"."+f.Key), Pos: v.Pos}
		}
	}
	// Not a recognized operator shape: treat as a literal JSON object.
	return &LiteralExpr{Value: v.ToAny(), Pos: v.Pos}
}

func (b *builder) buildExprList(v *dynval.Value, path string) []Expr {
	if v == nil {
		return nil
	}
	if v.Kind != dynval.KindArray {
		return []Expr{b.buildExpr(v, path)}
	}
	out := make([]Expr, 0, len(v.Items))
	for i, item := range v.Items {
		out = append(out, b.buildExpr(item, fmt.Sprintf("%s[%d]", path, i)))
	}
	return out
}

func (b *builder) buildExprString(v *dynval.Value, path string) Expr {
	s := v.Str
	switch {
	case s == "$":
		return &RefExpr{Namespace: NsPipe, Pos: v.Pos}
	case strings.HasPrefix(s, "lit:"):
		return &LiteralExpr{Value: strings.TrimPrefix(s, "lit:"), Pos: v.Pos}
	case strings.HasPrefix(s, "@"):
		return b.buildRef(strings.TrimPrefix(s, "@"), v.Pos, path)
	default:
		return &LiteralExpr{Value: s, Pos: v.Pos}
	}
}

func (b *builder) buildRef(rest string, pos dynval.Position, path string) Expr {
	ns, p, _ := strings.Cut(rest, ".")
	ref := &RefExpr{Pos: pos}
	switch RefNamespace(ns) {
	case NsInput, NsContext, NsOut, NsItem, NsAcc:
		ref.Namespace = RefNamespace(ns)
		ref.Path = p
		if p != "" {
			if toks, err := pathlang.Parse(p); err == nil {
				ref.Tokens = toks
			} else {
				b.fail("InvalidPath", err.Error(), path, pos)
			}
		}
	default:
		// Bare local variable name: `@name`.
		ref.Namespace = NsLocal
		ref.Name = ns
		if p != "" {
			ref.Path = p
		}
	}
	return ref
}

// buildPipe builds a v2 pipe from a YAML sequence: the first element is
// Start, remaining elements are Steps. An empty sequence produces a pipe
// with a nil Start and no Steps; the validator flags it as EmptyPipe.
func (b *builder) buildPipe(v *dynval.Value, path string) *PipeExpr {
	pe := &PipeExpr{Pos: v.Pos}
	if len(v.Items) == 0 {
		return pe
	}
	pe.Start = b.buildExpr(v.Items[0], path+"[0]")
	for i, item := range v.Items[1:] {
		stepPath := fmt.Sprintf("%s[%d]", path, i+1)
		pe.Steps = append(pe.Steps, b.buildPipeStep(item, stepPath))
	}
	return pe
}

var letStepKeys = map[string]bool{"let": true}
var ifStepKeys = map[string]bool{"if": true, "cond": true, "then": true, "else": true}
var mapStepKeys = map[string]bool{"map": true}

func (b *builder) buildPipeStep(v *dynval.Value, path string) PipeStep {
	if v.Kind == dynval.KindString || v.Kind == dynval.KindArray {
		// A bare ref/literal/op shorthand used directly as a pipe step.
		e := b.buildExpr(v, path)
		if ref, ok := e.(*RefExpr); ok {
			return PipeStep{StepKind: PipeRef, Ref: ref, Pos: v.Pos}
		}
		if op, ok := e.(*OpExpr); ok {
			return PipeStep{StepKind: PipeOp, Op: op.Op, Args: op.Args, Pos: v.Pos}
		}
		b.fail("InvalidPipeStep", "pipe step has an unrecognized shape", path, v.Pos)
		return PipeStep{StepKind: PipeOp, Op: "", Pos: v.Pos}
	}
	if v.Kind != dynval.KindObject {
		b.fail("InvalidPipeStep", "pipe step must be a mapping, ref, or op", path, v.Pos)
		return PipeStep{Pos: v.Pos}
	}
	if _, ok := v.Get("let"); ok {
		b.unknownKeys(v, letStepKeys, path)
		return b.buildLetStep(v, path)
	}
	if _, ok := v.Get("map"); ok {
		b.unknownKeys(v, mapStepKeys, path)
		mv, _ := v.Get("map")
		return PipeStep{StepKind: PipeMap, MapPipe: b.buildPipe(mv, path+".map"), Pos: v.Pos}
	}
	if _, hasIf := v.Get("if"); hasIf {
		return b.buildIfStep(v, path)
	}
	if _, hasCond := v.Get("cond"); hasCond {
		return b.buildIfStep(v, path)
	}
	if opV, ok := v.Get("op"); ok {
		argsV, _ := v.Get("args")
		b.unknownKeys(v, map[string]bool{"op": true, "args": true}, path)
		return PipeStep{StepKind: PipeOp, Op: strOf(opV), Args: b.buildExprList(argsV, path+".args"), Pos: v.Pos}
	}
	if len(v.Fields) == 1 {
		f := v.Fields[0]
		if _, known := Ops[f.Key]; known {
			return PipeStep{StepKind: PipeOp, Op: f.Key, Args: b.buildExprList(f.Value, path+"."+f.Key), Pos: v.Pos}
		}
	}
	b.fail("InvalidPipeStep", "pipe step object does not match any known step shape", path, v.Pos)
	return PipeStep{Pos: v.Pos}
}

func (b *builder) buildLetStep(v *dynval.Value, path string) PipeStep {
	letV, _ := v.Get("let")
	step := PipeStep{StepKind: PipeLet, Pos: v.Pos}
	if letV == nil || letV.Kind != dynval.KindObject {
		b.fail("InvalidPipeStep", "let must be a mapping of name to expr", path, v.Pos)
		return step
	}
	for _, f := range letV.Fields {
		step.Bindings = append(step.Bindings, LetBinding{
			Name: f.Key,
			Expr: b.buildExpr(f.Value, path+".let."+f.Key),
			Pos:  f.KeyPos,
		})
	}
	return step
}

func (b *builder) buildIfStep(v *dynval.Value, path string) PipeStep {
	b.unknownKeys(v, ifStepKeys, path)
	step := PipeStep{StepKind: PipeIf, Pos: v.Pos}
	condKey := "if"
	if _, ok := v.Get("if"); !ok {
		condKey = "cond"
	}
	if cv, ok := v.Get(condKey); ok {
		step.Cond = b.buildExpr(cv, path+"."+condKey)
	}
	if tv, ok := v.Get("then"); ok {
		step.Then = b.buildPipeOrWrap(tv, path+".then")
	}
	if ev, ok := v.Get("else"); ok {
		step.Else = b.buildPipeOrWrap(ev, path+".else")
	}
	return step
}

// buildPipeOrWrap accepts either a bare pipe array or a single expr for
// then/else and normalizes it to a PipeExpr with that expr as Start.
func (b *builder) buildPipeOrWrap(v *dynval.Value, path string) *PipeExpr {
	if v.Kind == dynval.KindArray {
		return b.buildPipe(v, path)
	}
	return &PipeExpr{Start: b.buildExpr(v, path), Pos: v.Pos}
}

func intOf(v *dynval.Value) int {
	switch v.Kind {
	case dynval.KindInt:
		return int(v.Int)
	case dynval.KindFloat:
		return int(v.Float)
	case dynval.KindString:
		n, _ := strconv.Atoi(v.Str)
		return n
	default:
		return 0
	}
}

func strOf(v *dynval.Value) string {
	if v == nil {
		return ""
	}
	if v.Kind == dynval.KindString {
		return v.Str
	}
	return ""
}
