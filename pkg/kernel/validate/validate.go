// Package validate implements the three-phase rule-file validation
// pipeline: structural (the loader's deny-unknown-keys pass), semantic (a
// JSON-Schema sanity check over the decoded document), and domain (the
// hand-coded rules enforcing referential integrity, scoping, arity, and
// acyclicity). A phase with errors short-circuits the phases after it —
// there is no point running scoping checks against an AST the loader
// couldn't make sense of.
package validate

import (
	"fmt"
	"os"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

// Result is the accumulated outcome of validating one rule file.
type Result struct {
	Errors []*schema.RuleError
}

// OK reports whether the rule file is free of static errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// ValidateFile reads path and validates its contents.
func ValidateFile(path string) (*schema.RuleFile, Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Result{}, fmt.Errorf("validate: reading %s: %w", path, err)
	}
	return ValidateBytes(raw, path)
}

// ValidateBytes runs the full pipeline over raw rule-file source.
func ValidateBytes(raw []byte, sourcePath string) (*schema.RuleFile, Result, error) {
	rf, structuralErrs, err := schema.Load(raw, sourcePath)
	if err != nil {
		return nil, Result{}, err
	}
	if len(structuralErrs) > 0 {
		return rf, Result{Errors: dedup(structuralErrs)}, nil
	}

	semanticErrs := validateSemantic(rf)
	if len(semanticErrs) > 0 {
		return rf, Result{Errors: dedup(semanticErrs)}, nil
	}

	domainErrs := validateDomain(rf)
	return rf, Result{Errors: dedup(domainErrs)}, nil
}

func dedup(errs []*schema.RuleError) []*schema.RuleError {
	seen := map[string]bool{}
	out := make([]*schema.RuleError, 0, len(errs))
	for _, e := range errs {
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}
