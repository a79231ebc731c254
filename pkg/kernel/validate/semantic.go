package validate

import (
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/dynval"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

const ruleFileSchemaURL = "mem://rulemorph/rulefile.json"

var compiledRuleFileSchema *jsonschema.Schema

func ruleFileSchema() (*jsonschema.Schema, error) {
	if compiledRuleFileSchema != nil {
		return compiledRuleFileSchema, nil
	}
	raw, err := schema.GenerateRuleFileJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("semantic: generating schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("semantic: decoding generated schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(ruleFileSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("semantic: registering schema: %w", err)
	}
	sch, err := c.Compile(ruleFileSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("semantic: compiling schema: %w", err)
	}
	compiledRuleFileSchema = sch
	return sch, nil
}

// validateSemantic re-decodes the rule file's raw text and runs it through
// the reflected JSON Schema, catching gross shape problems (wrong types,
// missing required top-level keys) before the domain phase tries to make
// sense of referential/scoping rules over possibly-nonsensical input.
func validateSemantic(rf *schema.RuleFile) []*schema.RuleError {
	sch, err := ruleFileSchema()
	if err != nil {
		return []*schema.RuleError{{Code: "SchemaCompileFailed", Message: err.Error(), Path: "$"}}
	}

	root, err := dynval.Load([]byte(rf.RawText))
	if err != nil {
		return []*schema.RuleError{{Code: "SchemaViolation", Message: err.Error(), Path: "$"}}
	}

	if err := sch.Validate(root.ToAny()); err != nil {
		return flattenSchemaError(err)
	}
	return nil
}

func flattenSchemaError(err error) []*schema.RuleError {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []*schema.RuleError{{Code: "SchemaViolation", Message: err.Error(), Path: "$"}}
	}
	var out []*schema.RuleError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		path := "$"
		for _, seg := range e.InstanceLocation {
			path += "." + seg
		}
		out = append(out, &schema.RuleError{
			Code:    "SchemaViolation",
			Message: e.Error(),
			Path:    path,
		})
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}
