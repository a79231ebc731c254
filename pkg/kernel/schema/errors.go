package schema

import (
	"fmt"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/dynval"
)

// RuleError is a single static diagnostic produced by the loader or the
// validator against a rule file. Location is nil when the rule was loaded
// from a value with no source text (e.g. programmatically constructed).
type RuleError struct {
	Code     string
	Message  string
	Path     string
	Location *dynval.Position
}

func (e *RuleError) Error() string {
	if e.Location != nil {
		return fmt.Sprintf("%s: %s (at %s, line %d col %d)", e.Code, e.Message, e.Path, e.Location.Line, e.Location.Column)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Key dedups errors by (code, path) per the validator's emission contract.
func (e *RuleError) Key() string { return e.Code + "\x00" + e.Path }
