// Package dynval loads YAML source into a position-aware dynamic value tree.
// It exists because gopkg.in/yaml.v3's bare `any` decode discards per-node
// source location, and the loader needs line/column on every node to attach
// them to validator diagnostics.
package dynval

import (
	"fmt"
	"sort"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Position is a 1-based source location, zero when the value has none.
type Position struct {
	Line   int
	Column int
}

func (p Position) IsZero() bool { return p.Line == 0 && p.Column == 0 }

// Field is one key/value pair of an object Value, in document order.
type Field struct {
	Key    string
	KeyPos Position
	Value  *Value
}

// Value is one node of the loaded document tree. Exactly the fields matching
// Kind are meaningful.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Items  []*Value
	Fields []Field
	Pos    Position
}

// Load parses YAML source and returns its root value. An empty document
// loads as a KindNull value at the zero position.
func Load(source []byte) (*Value, error) {
	file, err := parser.ParseBytes(source, 0)
	if err != nil {
		return nil, fmt.Errorf("dynval: parse: %w", err)
	}
	if len(file.Docs) == 0 || file.Docs[0].Body == nil {
		return &Value{Kind: KindNull}, nil
	}
	anchors := map[string]*Value{}
	return fromNode(file.Docs[0].Body, anchors)
}

func posOf(n ast.Node) Position {
	tok := n.GetToken()
	if tok == nil {
		return Position{}
	}
	return Position{Line: tok.Position.Line, Column: tok.Position.Column}
}

func fromNode(n ast.Node, anchors map[string]*Value) (*Value, error) {
	if n == nil {
		return &Value{Kind: KindNull}, nil
	}
	switch node := n.(type) {
	case *ast.NullNode:
		return &Value{Kind: KindNull, Pos: posOf(n)}, nil
	case *ast.BoolNode:
		return &Value{Kind: KindBool, Bool: node.Value, Pos: posOf(n)}, nil
	case *ast.IntegerNode:
		return &Value{Kind: KindInt, Int: node.Value, Pos: posOf(n)}, nil
	case *ast.FloatNode:
		return &Value{Kind: KindFloat, Float: node.Value, Pos: posOf(n)}, nil
	case *ast.StringNode:
		return &Value{Kind: KindString, Str: node.Value, Pos: posOf(n)}, nil
	case *ast.LiteralNode:
		return &Value{Kind: KindString, Str: node.Value.Value, Pos: posOf(n)}, nil
	case *ast.MergeKeyNode:
		return &Value{Kind: KindString, Str: "<<", Pos: posOf(n)}, nil
	case *ast.AnchorNode:
		v, err := fromNode(node.Value, anchors)
		if err != nil {
			return nil, err
		}
		if name, ok := node.Name.(*ast.StringNode); ok {
			anchors[name.Value] = v
		}
		return v, nil
	case *ast.AliasNode:
		if name, ok := node.Value.(*ast.StringNode); ok {
			if v, found := anchors[name.Value]; found {
				return v, nil
			}
			return nil, fmt.Errorf("dynval: undefined anchor %q at line %d", name.Value, posOf(n).Line)
		}
		return fromNode(node.Value, anchors)
	case *ast.SequenceNode:
		return sequenceValue(node, node.Values, anchors)
	case *ast.FlowSequenceNode:
		return sequenceValue(node, node.Values, anchors)
	case *ast.MappingValueNode:
		return mappingValue([]*ast.MappingValueNode{node}, node, anchors)
	case *ast.MappingCollectionNode:
		pairs := make([]*ast.MappingValueNode, 0, len(node.Values))
		for _, v := range node.Values {
			mv, ok := v.(*ast.MappingValueNode)
			if !ok {
				return nil, fmt.Errorf("dynval: unexpected mapping entry %T", v)
			}
			pairs = append(pairs, mv)
		}
		return mappingValue(pairs, node, anchors)
	case *ast.FlowMappingNode:
		return mappingValue(node.Values, node, anchors)
	default:
		return nil, fmt.Errorf("dynval: unsupported node type %T", n)
	}
}

func sequenceValue(n ast.Node, children []ast.Node, anchors map[string]*Value) (*Value, error) {
	items := make([]*Value, 0, len(children))
	for _, c := range children {
		v, err := fromNode(c, anchors)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return &Value{Kind: KindArray, Items: items, Pos: posOf(n)}, nil
}

func mappingValue(pairs []*ast.MappingValueNode, n ast.Node, anchors map[string]*Value) (*Value, error) {
	fields := make([]Field, 0, len(pairs))
	for _, p := range pairs {
		keyNode, ok := p.Key.(*ast.StringNode)
		var key string
		var keyPos Position
		if ok {
			key = keyNode.Value
			keyPos = posOf(keyNode)
		} else {
			// Non-string keys (ints, bools) still need a stable string form.
			kv, err := fromNode(p.Key, anchors)
			if err != nil {
				return nil, err
			}
			key = fmt.Sprintf("%v", kv.ToAny())
			keyPos = posOf(p.Key)
		}
		val, err := fromNode(p.Value, anchors)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: key, KeyPos: keyPos, Value: val})
	}
	return &Value{Kind: KindObject, Fields: fields, Pos: posOf(n)}, nil
}

// Get returns the field named key, if this value is an object and has it.
func (v *Value) Get(key string) (*Value, bool) {
	if v == nil || v.Kind != KindObject {
		return nil, false
	}
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the object's field names in document order.
func (v *Value) Keys() []string {
	if v == nil || v.Kind != KindObject {
		return nil
	}
	out := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		out[i] = f.Key
	}
	return out
}

// KeyPos returns the source position of key's own key token, if present.
func (v *Value) KeyPos(key string) (Position, bool) {
	if v == nil || v.Kind != KindObject {
		return Position{}, false
	}
	for _, f := range v.Fields {
		if f.Key == key {
			return f.KeyPos, true
		}
	}
	return Position{}, false
}

// IsNull reports whether v is absent or an explicit YAML null.
func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

// ToAny converts the tree to a generic any value built from
// map[string]any, []any, string, bool, int64, float64, and nil — the same
// shape JSON-decoding to `any` produces, so JSON Schema validators and the
// rest of the loader can work against either origin uniformly.
func (v *Value) ToAny() any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Key] = f.Value.ToAny()
		}
		return out
	default:
		return nil
	}
}

// SortedKeys is a convenience for callers that want deterministic key
// enumeration (e.g. duplicate-key detection) independent of document order.
func (v *Value) SortedKeys() []string {
	keys := v.Keys()
	sort.Strings(keys)
	return keys
}
