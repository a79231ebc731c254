package ruletui

import (
	"fmt"
	"strings"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

// mappingList flattens a rule file's top-level and step-nested mappings
// into one ordered slice, paired with the step name they belong to (empty
// for top-level), mirroring the order the domain validator assigns them.
func mappingList(rf *schema.RuleFile) []flatMapping {
	var out []flatMapping
	for _, m := range rf.Mappings {
		out = append(out, flatMapping{m: m})
	}
	for _, s := range rf.Steps {
		for _, m := range s.Mappings {
			out = append(out, flatMapping{m: m, step: s.Name})
		}
	}
	return out
}

type flatMapping struct {
	m    schema.Mapping
	step string
}

// sourceSummary describes where a mapping's value comes from, for display.
func sourceSummary(m schema.Mapping) string {
	switch {
	case m.Source != "":
		return "@" + m.Source
	case m.HasValue:
		return fmt.Sprintf("literal %v", m.Value)
	case m.Expr != nil:
		return exprSummary(m.Expr)
	default:
		return "(empty)"
	}
}

func exprSummary(e schema.Expr) string {
	switch v := e.(type) {
	case *schema.RefExpr:
		if v.Namespace == schema.NsLocal {
			return "@local." + v.Name
		}
		if v.Path == "" {
			return "@" + string(v.Namespace)
		}
		return "@" + string(v.Namespace) + "." + v.Path
	case *schema.OpExpr:
		return v.Op + "(...)"
	case *schema.ChainExpr:
		return "chain(...)"
	case *schema.PipeExpr:
		return "pipe(...)"
	case *schema.LiteralExpr:
		return fmt.Sprintf("%v", v.Value)
	default:
		return "expr"
	}
}

// outRefs walks an expression tree collecting every "out.<path>" reference
// it finds, for the dependency-tree view. Mirrors the shape of what the
// domain validator's own collectOutRefs does, simplified for display —
// this package renders dependency edges, it doesn't enforce acyclicity.
func outRefs(e schema.Expr, into *[]string) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case *schema.RefExpr:
		if v.Namespace == schema.NsOut {
			*into = append(*into, v.Path)
		}
	case *schema.OpExpr:
		for _, a := range v.Args {
			outRefs(a, into)
		}
	case *schema.ChainExpr:
		for _, a := range v.Chain {
			outRefs(a, into)
		}
	case *schema.PipeExpr:
		outRefs(v.Start, into)
		for _, s := range v.Steps {
			for _, a := range s.Args {
				outRefs(a, into)
			}
			for _, b := range s.Bindings {
				outRefs(b.Expr, into)
			}
			outRefs(s.Cond, into)
			if s.Then != nil {
				outRefs(s.Then, into)
			}
			if s.Else != nil {
				outRefs(s.Else, into)
			}
			if s.MapPipe != nil {
				outRefs(s.MapPipe, into)
			}
			if s.Ref != nil {
				outRefs(s.Ref, into)
			}
		}
	}
}

// BuildMappingDoc renders a rule file's mappings as markdown: one section
// per mapping, target and where its value is drawn from, fed to glamour.
func BuildMappingDoc(rf *schema.RuleFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rf.SourcePath)
	fmt.Fprintf(&b, "version %d, %d input mapping(s)\n\n", rf.Version, len(mappingList(rf)))

	for _, fm := range mappingList(rf) {
		m := fm.m
		fmt.Fprintf(&b, "## %s\n\n", m.Target)
		if fm.step != "" {
			fmt.Fprintf(&b, "- step: `%s`\n", fm.step)
		}
		fmt.Fprintf(&b, "- source: `%s`\n", sourceSummary(m))
		if m.ValueType != "" {
			fmt.Fprintf(&b, "- type: `%s`\n", m.ValueType)
		}
		if m.Required {
			b.WriteString("- required\n")
		}
		if m.HasDefault {
			fmt.Fprintf(&b, "- default: `%v`\n", m.Default)
		}
		if m.When != nil {
			fmt.Fprintf(&b, "- when: `%s`\n", exprSummary(m.When))
		}
		b.WriteString("\n")
	}

	if rf.Finalize != nil {
		b.WriteString("## finalize\n\n")
		if rf.Finalize.Filter != nil {
			fmt.Fprintf(&b, "- filter: `%s`\n", exprSummary(rf.Finalize.Filter))
		}
		if rf.Finalize.Sort != nil {
			fmt.Fprintf(&b, "- sort: `%s` (%s)\n", rf.Finalize.Sort.By, rf.Finalize.Sort.Order)
		}
		if rf.Finalize.Limit != nil {
			fmt.Fprintf(&b, "- limit: %d\n", *rf.Finalize.Limit)
		}
		if rf.Finalize.Offset != nil {
			fmt.Fprintf(&b, "- offset: %d\n", *rf.Finalize.Offset)
		}
	}

	return b.String()
}

// BuildDependencyTree renders each mapping target indented under the
// out.<path> targets its expression depends on.
func BuildDependencyTree(rf *schema.RuleFile) string {
	var b strings.Builder
	for _, fm := range mappingList(rf) {
		m := fm.m
		fmt.Fprintf(&b, "%s\n", m.Target)
		var refs []string
		if m.Source != "" {
			ns, rest, hasNs := strings.Cut(m.Source, ".")
			if hasNs && schema.RefNamespace(ns) == schema.NsOut {
				refs = append(refs, rest)
			}
		}
		outRefs(m.Expr, &refs)
		outRefs(m.When, &refs)
		for _, r := range refs {
			fmt.Fprintf(&b, "  └─ out.%s\n", r)
		}
	}
	return b.String()
}
