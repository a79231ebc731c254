// Package schema defines the rule-file AST: the v1/v2 expression languages,
// mappings, steps, and finalize, as built by the loader from a dynamic
// value and consumed by the validator and evaluator.
package schema

import (
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/dynval"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
)

// InputFormat is the record source format named by a rule file.
type InputFormat string

const (
	InputCSV  InputFormat = "csv"
	InputJSON InputFormat = "json"
)

// CSVColumn types a single CSV column for coercion at ingest time.
type CSVColumn struct {
	Name string
	Type string // string|int|float|bool, empty means string
	Pos  dynval.Position
}

// CSVSpec is the `input.csv` section.
type CSVSpec struct {
	HasHeader bool
	Delimiter string
	Columns   []CSVColumn
}

// JSONSpec is the `input.json` section.
type JSONSpec struct {
	RecordsPath string
}

// InputSpec is the rule file's `input` section.
type InputSpec struct {
	Format InputFormat
	CSV    *CSVSpec
	JSON   *JSONSpec
	Pos    dynval.Position
}

// Mapping is one `mappings[i]` entry. Exactly one of Source, Value, Expr is
// populated; Has* flags distinguish "absent" from a present-but-zero-value
// literal.
type Mapping struct {
	Target     string
	TargetPath []pathlang.Token
	TargetPos  dynval.Position

	Source   string
	HasValue bool
	Value    any
	Expr     Expr

	When Expr

	ValueType string
	Required  bool

	HasDefault bool
	Default    any

	Pos dynval.Position
}

// AssertSpec is one entry of an `asserts` step payload.
type AssertSpec struct {
	When    Expr
	Code    string
	Message string
	Pos     dynval.Position
}

// BranchSpec is a `branch` step payload.
type BranchSpec struct {
	When   Expr
	Then   string
	Else   string
	Return bool
}

// Step is one `steps[i]` entry (v2 only). Exactly one of Mappings,
// RecordWhen, Asserts, Branch is populated, mirroring the mutual-exclusion
// rule enforced by the validator.
type Step struct {
	Name string

	Mappings   []Mapping
	RecordWhen Expr
	Asserts    []AssertSpec
	Branch     *BranchSpec

	Pos dynval.Position
}

// SortSpec is `finalize.sort`.
type SortSpec struct {
	By    string
	Order string // asc|desc
	Pos   dynval.Position
}

// Finalize is the rule file's post-batch stage.
type Finalize struct {
	Filter Expr
	Sort   *SortSpec
	Limit  *int
	Offset *int
	Wrap   Expr

	Pos dynval.Position
}

// RuleFile is the root of a loaded rule.
type RuleFile struct {
	Version int
	Input   InputSpec

	// Output holds the rule file's optional `output` value as loaded.
	// Neither transform nor pipeline reads it: each record is emitted as the
	// bare mapped object whatever it says.
	Output string

	RecordWhen Expr
	Mappings   []Mapping
	Steps      []Step
	Finalize   *Finalize

	// SourcePath is the path the rule file was loaded from, as given to the
	// loader (not made absolute), used
	// to resolve branch.then/else sub-rule references relative to it.
	// Empty when the rule was loaded from an in-memory byte slice.
	SourcePath string

	// RawText is the original source text, used as the rule cache key.
	RawText string
}

// ExprKind discriminates the v1 Expr variants for diagnostics and tests.
type ExprKind int

const (
	KindRef ExprKind = iota
	KindOp
	KindChain
	KindLiteral
	KindPipe
)

// Expr is a v1 expression node, or — as KindPipe — a v2 pipe lifted into the
// same interface so mapping/step fields can hold either dialect uniformly.
// Concrete types implement it with a marker method; traversal is done by
// type switch, not virtual dispatch, per the AST's sum-type design.
type Expr interface {
	Kind() ExprKind
	Position() dynval.Position
}

// RefNamespace is the namespace prefix of a v1 Ref or v2 Ref step.
type RefNamespace string

const (
	NsInput   RefNamespace = "input"
	NsContext RefNamespace = "context"
	NsOut     RefNamespace = "out"
	NsItem    RefNamespace = "item"
	NsAcc     RefNamespace = "acc"
	NsLocal   RefNamespace = "local"
	// NsPipe marks the `$` reference to the value flowing through a v2 pipe.
	NsPipe RefNamespace = "pipe"
)

// RefExpr addresses a value by namespace and path. For NsLocal the variable
// is named by Name, and Path/Tokens hold any sub-path after it.
type RefExpr struct {
	Namespace RefNamespace
	Path      string
	Tokens    []pathlang.Token
	Name      string // populated only when Namespace == NsLocal
	Pos       dynval.Position
}

func (e *RefExpr) Kind() ExprKind            { return KindRef }
func (e *RefExpr) Position() dynval.Position { return e.Pos }

// OpExpr applies a named operator to its arguments.
type OpExpr struct {
	Op   string
	Args []Expr
	Pos  dynval.Position
}

func (e *OpExpr) Kind() ExprKind            { return KindOp }
func (e *OpExpr) Position() dynval.Position { return e.Pos }

// ChainExpr evaluates Chain[0], then threads the result through each
// subsequent element (which must be an *OpExpr) as an implicit first arg.
type ChainExpr struct {
	Chain []Expr
	Pos   dynval.Position
}

func (e *ChainExpr) Kind() ExprKind            { return KindChain }
func (e *ChainExpr) Position() dynval.Position { return e.Pos }

// LiteralExpr is a constant JSON value (string, number, bool, null, or a
// nested array/object of the same).
type LiteralExpr struct {
	Value any
	Pos   dynval.Position
}

func (e *LiteralExpr) Kind() ExprKind            { return KindLiteral }
func (e *LiteralExpr) Position() dynval.Position { return e.Pos }

// PipeStepKind discriminates v2 pipe step variants.
type PipeStepKind int

const (
	PipeOp PipeStepKind = iota
	PipeLet
	PipeIf
	PipeMap
	PipeRef
)

// PipeStep is one element of a v2 pipe after Start. StepKind selects which
// of the field groups below is populated.
type PipeStep struct {
	StepKind PipeStepKind
	Pos      dynval.Position

	Op   string // PipeOp
	Args []Expr // PipeOp

	Bindings []LetBinding // PipeLet

	Cond Expr      // PipeIf
	Then *PipeExpr // PipeIf
	Else *PipeExpr // PipeIf, optional

	MapPipe *PipeExpr // PipeMap

	Ref *RefExpr // PipeRef
}

// LetBinding is one `(name, expr)` pair of a Let step.
type LetBinding struct {
	Name string
	Expr Expr
	Pos  dynval.Position
}

// PipeExpr is a v2 expression: `[Start, Step, Step, ...]`.
type PipeExpr struct {
	Start Expr
	Steps []PipeStep
	Pos   dynval.Position
}

func (e *PipeExpr) Kind() ExprKind            { return KindPipe }
func (e *PipeExpr) Position() dynval.Position { return e.Pos }
