package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// The following Doc types are not used internally; they exist purely to
// give the reflector a concrete shape to describe, since RuleFile's Expr
// fields are an interface the reflector cannot usefully introspect.

type mappingDoc struct {
	Target    string `json:"target"`
	Source    string `json:"source,omitempty"`
	Value     any    `json:"value,omitempty"`
	Expr      any    `json:"expr,omitempty"`
	When      any    `json:"when,omitempty"`
	ValueType string `json:"value_type,omitempty" jsonschema:"enum=string,enum=int,enum=float,enum=bool"`
	Required  bool   `json:"required,omitempty"`
	Default   any    `json:"default,omitempty"`
}

type csvColumnDoc struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type inputDoc struct {
	Format string `json:"format" jsonschema:"enum=csv,enum=json,required"`
	CSV    *struct {
		HasHeader bool           `json:"has_header,omitempty"`
		Delimiter string         `json:"delimiter,omitempty"`
		Columns   []csvColumnDoc `json:"columns,omitempty"`
	} `json:"csv,omitempty"`
	JSON *struct {
		RecordsPath string `json:"records_path,omitempty"`
	} `json:"json,omitempty"`
}

type assertDoc struct {
	When    any    `json:"when"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type branchDoc struct {
	When   any    `json:"when"`
	Then   string `json:"then"`
	Else   string `json:"else,omitempty"`
	Return bool   `json:"return,omitempty"`
}

type stepDoc struct {
	Name       string      `json:"name,omitempty"`
	Mappings   []mappingDoc `json:"mappings,omitempty"`
	RecordWhen any          `json:"record_when,omitempty"`
	Asserts    []assertDoc  `json:"asserts,omitempty"`
	Branch     *branchDoc   `json:"branch,omitempty"`
}

type finalizeDoc struct {
	Filter any `json:"filter,omitempty"`
	Sort   *struct {
		By    string `json:"by"`
		Order string `json:"order,omitempty" jsonschema:"enum=asc,enum=desc"`
	} `json:"sort,omitempty"`
	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`
	Wrap   any  `json:"wrap,omitempty"`
}

// RuleFileDoc is the JSON-Schema-reflectable shape of a rule file, mirroring
// RuleFile field-for-field but with Expr positions erased to `any`.
type RuleFileDoc struct {
	Version    int          `json:"version" jsonschema:"enum=1,enum=2,required"`
	Input      inputDoc     `json:"input"`
	Output     string       `json:"output,omitempty"`
	RecordWhen any          `json:"record_when,omitempty"`
	Mappings   []mappingDoc `json:"mappings,omitempty"`
	Steps      []stepDoc    `json:"steps,omitempty"`
	Finalize   *finalizeDoc `json:"finalize,omitempty"`
}

// GenerateRuleFileJSONSchema produces a JSON Schema Draft 2020-12 document
// describing the rule file format.
func GenerateRuleFileJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&RuleFileDoc{})
	s.ID = "https://github.com/vinhphatfsg/rulemorph/schemas/rulefile-v1.json"
	s.Title = "rulemorph rule file"
	s.Description = "Schema for rulemorph rule-file YAML documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rule file schema: %w", err)
	}
	return data, nil
}
