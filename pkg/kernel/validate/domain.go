package validate

import (
	"fmt"
	"strings"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/dynval"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

// scope threads the validator's notion of "what item/acc refs are legal
// here" through the recursive expr walk as a value, not mutable state, so
// the validator stays reentrant and diagnostics stay unambiguous about
// which call site produced them.
type scope int

const (
	scopeNone scope = iota
	scopeItem
	scopeItemAcc
)

// mappingEntry is one mapping plus the dependency bookkeeping the cycle and
// forward-reference checks need. Top-level mappings and every step's
// mappings are flattened into one ordered list, since at runtime they all
// write into the same growing `out` object in document order.
type mappingEntry struct {
	m        *schema.Mapping
	path     string
	index    int
	keyPath  []string
	hasPath  bool
}

type domainValidator struct {
	rf      *schema.RuleFile
	errs    []*schema.RuleError
	entries []mappingEntry
}

func validateDomain(rf *schema.RuleFile) []*schema.RuleError {
	v := &domainValidator{rf: rf}
	v.checkVersion()
	v.checkInput()
	v.checkStepsMappingsShape()
	v.checkFinalize()
	v.collectEntries()
	v.checkMappingEntries()
	v.checkSteps()
	v.checkDependencies()
	return v.errs
}

func (v *domainValidator) add(code, msg, path string, pos dynval.Position) {
	var loc *dynval.Position
	if !pos.IsZero() {
		p := pos
		loc = &p
	}
	v.errs = append(v.errs, &schema.RuleError{Code: code, Message: msg, Path: path, Location: loc})
}

func (v *domainValidator) checkVersion() {
	if v.rf.Version != 1 && v.rf.Version != 2 {
		v.add("InvalidVersion", fmt.Sprintf("version must be 1 or 2, got %d", v.rf.Version), "$.version", dynval.Position{})
	}
}

func (v *domainValidator) checkInput() {
	in := v.rf.Input
	switch in.Format {
	case schema.InputCSV:
		if in.CSV == nil {
			v.add("MissingCsvSection", "input.format is csv but input.csv is absent", "$.input", in.Pos)
			return
		}
		if len(in.CSV.Delimiter) != 1 {
			v.add("InvalidDelimiterLength", "delimiter must be exactly one character", "$.input.csv.delimiter", in.Pos)
		}
		if !in.CSV.HasHeader && len(in.CSV.Columns) == 0 {
			v.add("MissingCsvColumns", "columns is required when has_header is false", "$.input.csv.columns", in.Pos)
		}
	case schema.InputJSON:
		if in.JSON == nil {
			v.add("MissingJsonSection", "input.format is json but input.json is absent", "$.input", in.Pos)
			return
		}
		if in.JSON.RecordsPath != "" {
			if _, err := pathlang.Parse(in.JSON.RecordsPath); err != nil {
				v.add("InvalidPath", err.Error(), "$.input.json.records_path", in.Pos)
			}
		}
	case "":
		v.add("MissingInputFormat", "input.format is required", "$.input.format", in.Pos)
	default:
		v.add("InvalidInputFormat", fmt.Sprintf("unknown input format %q", in.Format), "$.input.format", in.Pos)
	}
}

func (v *domainValidator) checkStepsMappingsShape() {
	hasSteps := len(v.rf.Steps) > 0
	hasMappingLogic := len(v.rf.Mappings) > 0 || v.rf.RecordWhen != nil

	if hasSteps && v.rf.Version == 1 {
		v.add("InvalidStep", "steps is a v2-only feature", "$.steps", dynval.Position{})
	}
	if hasSteps && hasMappingLogic {
		v.add("StepsMappingExclusive", "steps and mappings/record_when are mutually exclusive", "$", dynval.Position{})
	}
	if !hasSteps && len(v.rf.Mappings) == 0 {
		v.add("MissingMappings", "a rule must declare mappings or steps", "$", dynval.Position{})
	}
	for i, st := range v.rf.Steps {
		path := fmt.Sprintf("$.steps[%d]", i)
		count := 0
		if len(st.Mappings) > 0 {
			count++
		}
		if st.RecordWhen != nil {
			count++
		}
		if len(st.Asserts) > 0 {
			count++
		}
		if st.Branch != nil {
			count++
		}
		if count != 1 {
			v.add("InvalidStep", "a step must carry exactly one of mappings, record_when, asserts, branch", path, st.Pos)
		}
	}
}

func (v *domainValidator) checkFinalize() {
	fz := v.rf.Finalize
	if fz == nil {
		return
	}
	if v.rf.Version == 1 {
		v.add("InvalidFinalize", "finalize is a v2-only feature", "$.finalize", fz.Pos)
	}
	if fz.Sort != nil {
		if fz.Sort.Order != "asc" && fz.Sort.Order != "desc" {
			v.add("InvalidFinalize", fmt.Sprintf("sort.order must be asc or desc, got %q", fz.Sort.Order), "$.finalize.sort.order", fz.Sort.Pos)
		}
		if _, err := pathlang.Parse(fz.Sort.By); err != nil {
			v.add("InvalidPath", err.Error(), "$.finalize.sort.by", fz.Sort.Pos)
		}
	}
	if fz.Filter != nil {
		v.checkExpr(fz.Filter, "$.finalize.filter", scopeItem)
		v.checkBooleanContext(fz.Filter, "$.finalize.filter")
	}
	if fz.Wrap != nil {
		v.checkExpr(fz.Wrap, "$.finalize.wrap", scopeNone)
	}
}

func (v *domainValidator) collectEntries() {
	idx := 0
	appendList := func(mappings []schema.Mapping, base string) {
		for i := range mappings {
			m := &mappings[i]
			path := fmt.Sprintf("%s[%d]", base, i)
			entry := mappingEntry{m: m, path: path, index: idx}
			if m.TargetPath != nil {
				entry.keyPath = pathlang.Keys(m.TargetPath)
				entry.hasPath = true
			}
			v.entries = append(v.entries, entry)
			idx++
		}
	}
	appendList(v.rf.Mappings, "$.mappings")
	for i, st := range v.rf.Steps {
		appendList(st.Mappings, fmt.Sprintf("$.steps[%d].mappings", i))
	}
}

var validTypeNames = map[string]bool{"string": true, "int": true, "float": true, "bool": true}

func (v *domainValidator) checkMappingEntries() {
	seenTargets := map[string]bool{}
	for _, e := range v.entries {
		m := e.m
		if m.Target == "" {
			v.add("MissingTarget", "mapping target is required", e.path+".target", m.Pos)
		} else if m.TargetPath == nil {
			// Parse error already reported by the loader.
		} else {
			if pathlang.HasIndex(m.TargetPath) {
				v.add("InvalidPath", "mapping target must not contain an index", e.path+".target", m.TargetPos)
			}
			key := strings.Join(pathlang.Keys(m.TargetPath), ".")
			if seenTargets[key] {
				v.add("DuplicateTarget", fmt.Sprintf("duplicate mapping target %q", m.Target), e.path+".target", m.TargetPos)
			}
			seenTargets[key] = true
		}

		count := 0
		if m.Source != "" {
			count++
		}
		if m.HasValue {
			count++
		}
		if m.Expr != nil {
			count++
		}
		switch {
		case count == 0:
			v.add("MissingMappingValue", "mapping requires one of source, value, expr", e.path, m.Pos)
		case count > 1:
			v.add("SourceValueExprExclusive", "mapping must declare exactly one of source, value, expr", e.path, m.Pos)
		}

		if m.ValueType != "" && !validTypeNames[m.ValueType] {
			v.add("InvalidTypeName", fmt.Sprintf("unknown value_type %q", m.ValueType), e.path+".value_type", m.Pos)
		}

		if m.Source != "" {
			v.checkSource(m.Source, e.path+".source", m.Pos)
		}
		if m.Expr != nil {
			v.checkExpr(m.Expr, e.path+".expr", scopeNone)
		}
		if m.When != nil {
			v.checkExpr(m.When, e.path+".when", scopeNone)
			v.checkBooleanContext(m.When, e.path+".when")
		}
	}
}

func (v *domainValidator) checkSource(source, path string, pos dynval.Position) {
	ns, rest, hasNs := strings.Cut(source, ".")
	p := source
	if hasNs {
		switch schema.RefNamespace(ns) {
		case schema.NsInput, schema.NsContext, schema.NsOut:
			p = rest
		default:
			// No recognized namespace prefix: treat the whole string as a
			// bare path under the implicit input namespace.
			ns = string(schema.NsInput)
			p = source
			hasNs = false
		}
	} else {
		ns = string(schema.NsInput)
	}
	if _, err := pathlang.Parse(p); err != nil {
		v.add("InvalidPath", err.Error(), path, pos)
		return
	}
	// Whether an out.<p> reference is well-ordered is decided centrally by
	// checkDependencies, which sees both `source` and expression-embedded
	// @out refs and can tell a genuine cycle from a simple forward look.
}

func isPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i, p := range prefix {
		if full[i] != p {
			return false
		}
	}
	return true
}

// checkDependencies builds the out.<p> dependency graph over every mapping
// target (top-level and step-nested, in document order) and reports
// CyclicDependency for every node on a cycle. An edge that survives outside
// any cycle but points at a target defined later is reported as
// ForwardOutReference instead, since lexical order is otherwise the rule:
// mutual forward references are a cycle, not two independent look-aheads.
func (v *domainValidator) checkDependencies() {
	n := len(v.entries)
	deps := make([][]int, n)

	for i, e := range v.entries {
		var refs []string
		if e.m.Source != "" {
			ns, rest, hasNs := strings.Cut(e.m.Source, ".")
			if hasNs && schema.RefNamespace(ns) == schema.NsOut {
				refs = append(refs, rest)
			}
		}
		collectOutRefs(e.m.Expr, &refs)
		collectOutRefs(e.m.When, &refs)
		for _, p := range refs {
			if j := v.resolveEntryIndex(p); j >= 0 && j != i {
				deps[i] = append(deps[i], j)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, n)
	inCycle := make([]bool, n)
	var stack []int
	var visit func(i int)
	visit = func(i int) {
		color[i] = gray
		stack = append(stack, i)
		for _, j := range deps[i] {
			if color[j] == gray {
				for k := len(stack) - 1; k >= 0; k-- {
					inCycle[stack[k]] = true
					if stack[k] == j {
						break
					}
				}
			} else if color[j] == white {
				visit(j)
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
	}
	for i := 0; i < n; i++ {
		if color[i] == white {
			visit(i)
		}
	}

	for i := range v.entries {
		if inCycle[i] {
			v.add("CyclicDependency", fmt.Sprintf("mapping target %q participates in a dependency cycle", v.entries[i].m.Target), v.entries[i].path, v.entries[i].m.Pos)
		}
	}
	for i, js := range deps {
		if inCycle[i] {
			continue
		}
		for _, j := range js {
			if inCycle[j] {
				continue
			}
			if j > i {
				v.add("ForwardOutReference", fmt.Sprintf("reference to out.%s precedes its definition", v.entries[j].m.Target), v.entries[i].path, v.entries[i].m.Pos)
			}
		}
	}
}

func (v *domainValidator) resolveEntryIndex(p string) int {
	toks, err := pathlang.Parse(p)
	if err != nil {
		return -1
	}
	keys := pathlang.Keys(toks)
	best, bestLen := -1, -1
	for i, e := range v.entries {
		if !e.hasPath {
			continue
		}
		if isPrefix(e.keyPath, keys) && len(e.keyPath) > bestLen {
			best, bestLen = i, len(e.keyPath)
		}
	}
	return best
}

func collectOutRefs(e schema.Expr, out *[]string) {
	switch ex := e.(type) {
	case nil:
		return
	case *schema.RefExpr:
		if ex.Namespace == schema.NsOut {
			*out = append(*out, ex.Path)
		}
	case *schema.OpExpr:
		for _, a := range ex.Args {
			collectOutRefs(a, out)
		}
	case *schema.ChainExpr:
		for _, c := range ex.Chain {
			collectOutRefs(c, out)
		}
	case *schema.PipeExpr:
		collectOutRefs(ex.Start, out)
		for _, s := range ex.Steps {
			for _, a := range s.Args {
				collectOutRefs(a, out)
			}
			if s.Ref != nil {
				collectOutRefs(s.Ref, out)
			}
			for _, b := range s.Bindings {
				collectOutRefs(b.Expr, out)
			}
			if s.Cond != nil {
				collectOutRefs(s.Cond, out)
			}
		}
	}
}

func (v *domainValidator) checkSteps() {
	for i, st := range v.rf.Steps {
		path := fmt.Sprintf("$.steps[%d]", i)
		if st.RecordWhen != nil {
			v.checkExpr(st.RecordWhen, path+".record_when", scopeNone)
			v.checkBooleanContext(st.RecordWhen, path+".record_when")
		}
		for j, a := range st.Asserts {
			ap := fmt.Sprintf("%s.asserts[%d]", path, j)
			if a.When != nil {
				v.checkExpr(a.When, ap+".when", scopeNone)
				v.checkBooleanContext(a.When, ap+".when")
			}
		}
		if st.Branch != nil && st.Branch.When != nil {
			v.checkExpr(st.Branch.When, path+".branch.when", scopeNone)
			v.checkBooleanContext(st.Branch.When, path+".branch.when")
		}
	}
}

// checkExpr walks an expression tree enforcing the closed operator set,
// arity, chain shape, lookup/get/pick/omit argument shapes, and item/acc
// scoping.
func (v *domainValidator) checkExpr(e schema.Expr, path string, sc scope) {
	switch ex := e.(type) {
	case nil:
		return
	case *schema.LiteralExpr:
		return
	case *schema.RefExpr:
		v.checkRef(ex, path, sc)
	case *schema.ChainExpr:
		if len(ex.Chain) == 0 {
			v.add("InvalidExprShape", "chain must not be empty", path, ex.Pos)
			return
		}
		v.checkExpr(ex.Chain[0], path+"[0]", sc)
		for i, step := range ex.Chain[1:] {
			op, ok := step.(*schema.OpExpr)
			if !ok {
				v.add("InvalidExprShape", "chain steps after the first must be operators", fmt.Sprintf("%s[%d]", path, i+1), step.Position())
				continue
			}
			v.checkOp(op, fmt.Sprintf("%s[%d]", path, i+1), sc, true)
		}
	case *schema.OpExpr:
		v.checkOp(ex, path, sc, false)
	case *schema.PipeExpr:
		v.checkPipe(ex, path, sc, map[string]bool{})
	default:
		v.add("InvalidExprShape", fmt.Sprintf("unrecognized expression node %T", e), path, e.Position())
	}
}

func (v *domainValidator) checkRef(ref *schema.RefExpr, path string, sc scope) {
	switch ref.Namespace {
	case schema.NsInput, schema.NsContext, schema.NsOut, schema.NsLocal, schema.NsPipe:
		return
	case schema.NsItem:
		if sc != scopeItem && sc != scopeItemAcc {
			v.add("InvalidItemRef", "@item is only valid inside an element-scoped operator", path, ref.Pos)
			return
		}
		if ref.Path != "" && !strings.HasPrefix(ref.Path, "value") && !strings.HasPrefix(ref.Path, "index") {
			v.add("InvalidPath", "@item subpath must begin with value or index", path, ref.Pos)
		}
	case schema.NsAcc:
		if sc != scopeItemAcc {
			v.add("InvalidAccRef", "@acc is only valid inside reduce/fold", path, ref.Pos)
			return
		}
		if ref.Path != "" && !strings.HasPrefix(ref.Path, "value") {
			v.add("InvalidPath", "@acc subpath must begin with value", path, ref.Pos)
		}
	default:
		v.add("InvalidRefNamespace", fmt.Sprintf("unknown reference namespace %q", ref.Namespace), path, ref.Pos)
	}
}

func (v *domainValidator) checkOp(op *schema.OpExpr, path string, sc scope, isChainStep bool) {
	info, known := schema.Ops[op.Op]
	if !known {
		v.add("UnknownOp", fmt.Sprintf("unknown operator %q", op.Op), path, op.Pos)
		return
	}
	n := len(op.Args)
	if n < info.Arity.Min || (info.Arity.Max >= 0 && n > info.Arity.Max) {
		v.add("InvalidArgs", fmt.Sprintf("%s takes between %d and %s args, got %d", op.Op, info.Arity.Min, maxLabel(info.Arity.Max), n), path, op.Pos)
	}

	elementSC := sc
	switch info.Scope {
	case schema.ScopeItem:
		elementSC = scopeItem
	case schema.ScopeItemAcc:
		elementSC = scopeItemAcc
	}

	switch op.Op {
	case "get":
		v.checkLiteralPathArg(op.Args, 0, path, op.Pos)
	case "pick", "omit":
		v.checkPathListArg(op.Args, 0, path, op.Pos, op.Op == "omit")
	case "lookup", "lookup_first":
		v.checkLookupArgs(op, path)
	}

	for i, a := range op.Args {
		argSC := sc
		if i == 0 && info.Scope != schema.ScopeNone {
			argSC = elementSC
		}
		v.checkExpr(a, fmt.Sprintf("%s[%d]", path, i), argSC)
	}
}

func maxLabel(max int) string {
	if max < 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", max)
}

func (v *domainValidator) checkLiteralPathArg(args []schema.Expr, idx int, path string, pos dynval.Position) {
	if idx >= len(args) {
		return
	}
	lit, ok := args[idx].(*schema.LiteralExpr)
	if !ok {
		v.add("InvalidArgs", "path argument must be a literal string", fmt.Sprintf("%s[%d]", path, idx), pos)
		return
	}
	s, ok := lit.Value.(string)
	if !ok {
		v.add("InvalidArgs", "path argument must be a literal string", fmt.Sprintf("%s[%d]", path, idx), pos)
		return
	}
	if _, err := pathlang.Parse(s); err != nil {
		v.add("InvalidPath", err.Error(), fmt.Sprintf("%s[%d]", path, idx), pos)
	}
}

func (v *domainValidator) checkPathListArg(args []schema.Expr, idx int, path string, pos dynval.Position, forbidIndex bool) {
	if idx >= len(args) {
		return
	}
	lit, ok := args[idx].(*schema.LiteralExpr)
	if !ok {
		v.add("InvalidArgs", "path-list argument must be a literal string or array of literal strings", fmt.Sprintf("%s[%d]", path, idx), pos)
		return
	}
	var raw []string
	switch val := lit.Value.(type) {
	case string:
		raw = []string{val}
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				v.add("InvalidArgs", "path-list entries must be strings", fmt.Sprintf("%s[%d]", path, idx), pos)
				return
			}
			raw = append(raw, s)
		}
	default:
		v.add("InvalidArgs", "path-list argument must be a literal string or array of literal strings", fmt.Sprintf("%s[%d]", path, idx), pos)
		return
	}

	var parsed [][]pathlang.Token
	for _, s := range raw {
		toks, err := pathlang.Parse(s)
		if err != nil {
			v.add("InvalidPath", err.Error(), fmt.Sprintf("%s[%d]", path, idx), pos)
			continue
		}
		if forbidIndex && pathlang.HasIndex(toks) {
			v.add("InvalidArgs", "omit does not accept a path ending in an index", fmt.Sprintf("%s[%d]", path, idx), pos)
		}
		parsed = append(parsed, toks)
	}
	for i := 0; i < len(parsed); i++ {
		for j := i + 1; j < len(parsed); j++ {
			ki, kj := pathlang.Keys(parsed[i]), pathlang.Keys(parsed[j])
			if isPrefix(ki, kj) || isPrefix(kj, ki) {
				v.add("InvalidArgs", "path list entries must not overlap", fmt.Sprintf("%s[%d]", path, idx), pos)
				return
			}
		}
	}
}

func (v *domainValidator) checkLookupArgs(op *schema.OpExpr, path string) {
	n := len(op.Args)
	// Direct form: [collection, key_path, match, output_path?]
	// Chain form:  [key_path, match, output_path?]
	keyIdx := 1
	if op.Op == "lookup_first" {
		// lookup_first's chain form is [match, output_path?]; its direct
		// form is [collection, match, output_path?] — it never needs a
		// separate key_path argument, since it matches the whole element.
		return
	}
	if n > 0 {
		if _, isLit := op.Args[0].(*schema.LiteralExpr); isLit && n >= 2 {
			// Could be either form; a literal first arg is ambiguous
			// between "collection given as a literal array" and
			// "key_path given directly" — arity alone can't disambiguate
			// further, so only the explicit key_path checks below apply
			// when there are at least 3 args (the direct form's minimum
			// to be distinguishable).
		}
	}
	if n >= 3 {
		v.checkLiteralPathArg(op.Args, keyIdx, path, op.Pos)
	} else if n >= 1 {
		v.checkLiteralPathArg(op.Args, 0, path, op.Pos)
	}
}

// checkPipe validates a v2 pipe: non-empty, well-shaped steps, and that
// every local variable is defined before use within the same pipe.
func (v *domainValidator) checkPipe(p *schema.PipeExpr, path string, sc scope, locals map[string]bool) {
	if p.Start == nil && len(p.Steps) == 0 {
		v.add("EmptyPipe", "pipe must not be empty", path, p.Pos)
		return
	}
	v.checkExpr(p.Start, path+"[0]", sc)
	defined := map[string]bool{}
	for k := range locals {
		defined[k] = true
	}
	for i, step := range p.Steps {
		stepPath := fmt.Sprintf("%s[%d]", path, i+1)
		switch step.StepKind {
		case schema.PipeOp:
			if step.Op == "" {
				v.add("InvalidPipeStep", "pipe step is not a recognized variant", stepPath, step.Pos)
				break
			}
			v.checkOp(&schema.OpExpr{Op: step.Op, Args: step.Args, Pos: step.Pos}, stepPath, sc, true)
			v.checkLocalRefs(step.Args, stepPath, defined)
		case schema.PipeLet:
			for _, bind := range step.Bindings {
				v.checkExpr(bind.Expr, stepPath+".let."+bind.Name, sc)
				v.checkLocalRefs([]schema.Expr{bind.Expr}, stepPath, defined)
				defined[bind.Name] = true
			}
		case schema.PipeIf:
			if step.Cond != nil {
				v.checkExpr(step.Cond, stepPath+".cond", sc)
				v.checkBooleanContext(step.Cond, stepPath+".cond")
				v.checkLocalRefs([]schema.Expr{step.Cond}, stepPath, defined)
			}
			if step.Then != nil {
				v.checkPipe(step.Then, stepPath+".then", sc, defined)
			}
			if step.Else != nil {
				v.checkPipe(step.Else, stepPath+".else", sc, defined)
			}
		case schema.PipeMap:
			if step.MapPipe != nil {
				v.checkPipe(step.MapPipe, stepPath+".map", scopeItem, defined)
			}
		case schema.PipeRef:
			if step.Ref != nil {
				v.checkRef(step.Ref, stepPath, sc)
				v.checkLocalRefs([]schema.Expr{step.Ref}, stepPath, defined)
			}
		default:
			v.add("InvalidPipeStep", "pipe step is not a recognized variant", stepPath, step.Pos)
		}
	}
}

func (v *domainValidator) checkLocalRefs(exprs []schema.Expr, path string, defined map[string]bool) {
	for _, e := range exprs {
		v.walkLocalRefs(e, path, defined)
	}
}

func (v *domainValidator) walkLocalRefs(e schema.Expr, path string, defined map[string]bool) {
	switch ex := e.(type) {
	case nil:
		return
	case *schema.RefExpr:
		if ex.Namespace == schema.NsLocal && !defined[ex.Name] {
			v.add("UndefinedVariable", fmt.Sprintf("local variable %q referenced before definition", ex.Name), path, ex.Pos)
		}
	case *schema.OpExpr:
		for _, a := range ex.Args {
			v.walkLocalRefs(a, path, defined)
		}
	case *schema.ChainExpr:
		for _, c := range ex.Chain {
			v.walkLocalRefs(c, path, defined)
		}
	case *schema.PipeExpr:
		v.walkLocalRefs(ex.Start, path, defined)
		for _, s := range ex.Steps {
			for _, a := range s.Args {
				v.walkLocalRefs(a, path, defined)
			}
		}
	}
}

// booleanClass is the static classification the validator gives an
// expression when deciding whether it can legally sit in boolean context.
type booleanClass int

const (
	classBool booleanClass = iota
	classMaybe
	classNotBool
)

func (v *domainValidator) checkBooleanContext(e schema.Expr, path string) {
	if classify(e) == classNotBool {
		v.add("InvalidWhenType", "expression cannot evaluate to a boolean", path, e.Position())
	}
}

var arithmeticOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "round": true, "to_base": true,
	"concat": true, "to_string": true, "trim": true, "lowercase": true, "uppercase": true,
	"replace": true, "split": true, "pad_start": true, "pad_end": true,
}

var logicalOrComparisonOps = map[string]bool{
	"and": true, "or": true, "not": true,
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"~=": true, "contains": true,
}

func classify(e schema.Expr) booleanClass {
	switch ex := e.(type) {
	case *schema.LiteralExpr:
		if _, ok := ex.Value.(bool); ok {
			return classBool
		}
		return classNotBool
	case *schema.OpExpr:
		if ex.Op == "coalesce" {
			cls := classBool
			for _, a := range ex.Args {
				c := classify(a)
				if c == classNotBool {
					return classNotBool
				}
				if c == classMaybe {
					cls = classMaybe
				}
			}
			return cls
		}
		if logicalOrComparisonOps[ex.Op] {
			return classBool
		}
		if arithmeticOps[ex.Op] {
			return classNotBool
		}
		return classMaybe
	case *schema.RefExpr, *schema.ChainExpr, *schema.PipeExpr:
		return classMaybe
	default:
		return classMaybe
	}
}
