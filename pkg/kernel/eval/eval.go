package eval

import (
	"fmt"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pathlang"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
)

// Ctx is the evaluation environment threaded through one expression tree.
// It is cheap to shallow-copy: withItem/withAcc/withPipe return a new Ctx
// sharing Input/Context/Out/Locals with the parent but overriding the
// iteration bindings, so a map/filter/reduce callback never mutates the
// caller's view of @item or @acc.
type Ctx struct {
	Input   map[string]any
	Context map[string]any
	Out     map[string]any
	Locals  map[string]Value

	Item    *Value
	ItemIdx int
	Acc     *Value
	Pipe    *Value

	// ItemDirect selects the finalize-stage item binding: @item.<p> drills
	// straight into the element's fields instead of requiring the
	// @item.value.<p>/@item.index convention that Map iteration uses. See
	// ItemScope.
	ItemDirect bool
}

// New builds the root context for evaluating one record's mappings.
func New(input, context, out map[string]any) *Ctx {
	return &Ctx{Input: input, Context: context, Out: out, Locals: map[string]Value{}}
}

// ItemScope builds a context for evaluating a finalize condition/sort key
// against one accumulated output record: @item alone is the whole element,
// @item.<path> drills directly into its fields (no .value indirection,
// unlike the Map-step item binding).
func ItemScope(item any) *Ctx {
	c := New(nil, nil, nil)
	v := Present(item)
	c.Item = &v
	c.ItemDirect = true
	return c
}

func (c *Ctx) withItem(v Value, idx int) *Ctx {
	cp := *c
	cp.Item = &v
	cp.ItemIdx = idx
	cp.ItemDirect = false
	return &cp
}

func (c *Ctx) withAcc(v Value) *Ctx {
	cp := *c
	cp.Acc = &v
	return &cp
}

func (c *Ctx) withPipe(v Value) *Ctx {
	cp := *c
	cp.Pipe = &v
	return &cp
}

func (c *Ctx) withLocal(name string, v Value) *Ctx {
	cp := *c
	locals := make(map[string]Value, len(c.Locals)+1)
	for k, val := range c.Locals {
		locals[k] = val
	}
	locals[name] = v
	cp.Locals = locals
	return &cp
}

// Eval evaluates e against ctx.
func Eval(ctx *Ctx, e schema.Expr) (Value, error) {
	switch ex := e.(type) {
	case nil:
		return MissingValue, nil
	case *schema.LiteralExpr:
		return Present(ex.Value), nil
	case *schema.RefExpr:
		return evalRef(ctx, ex)
	case *schema.ChainExpr:
		return evalChain(ctx, ex)
	case *schema.OpExpr:
		return evalOp(ctx, ex.Op, nil, ex.Args, ex.Pos)
	case *schema.PipeExpr:
		return evalPipeExpr(ctx, ex)
	default:
		return MissingValue, fmt.Errorf("eval: unsupported expression node %T", e)
	}
}

func evalRef(ctx *Ctx, ref *schema.RefExpr) (Value, error) {
	switch ref.Namespace {
	case schema.NsInput:
		return lookup(ctx.Input, ref.Tokens), nil
	case schema.NsContext:
		return lookup(ctx.Context, ref.Tokens), nil
	case schema.NsOut:
		return lookup(ctx.Out, ref.Tokens), nil
	case schema.NsItem:
		if ctx.Item == nil {
			return MissingValue, nil
		}
		if ctx.ItemDirect {
			return refIntoItemDirect(*ctx.Item, ref.Path), nil
		}
		return refIntoItemOrAcc(*ctx.Item, ctx.ItemIdx, ref.Path, true), nil
	case schema.NsAcc:
		if ctx.Acc == nil {
			return MissingValue, nil
		}
		return refIntoItemOrAcc(*ctx.Acc, 0, ref.Path, false), nil
	case schema.NsLocal:
		v, ok := ctx.Locals[ref.Name]
		if !ok {
			return MissingValue, nil
		}
		if ref.Path == "" {
			return v, nil
		}
		toks, err := pathlang.Parse(ref.Path)
		if err != nil || v.IsMissing() {
			return MissingValue, nil
		}
		return lookupAny(v.Data(), toks), nil
	case schema.NsPipe:
		if ctx.Pipe == nil {
			return MissingValue, nil
		}
		return *ctx.Pipe, nil
	default:
		return MissingValue, fmt.Errorf("eval: unknown reference namespace %q", ref.Namespace)
	}
}

// refIntoItemOrAcc resolves @item/@item.value.<p>/@item.index or
// @acc/@acc.value.<p> against the bound element or accumulator.
func refIntoItemOrAcc(base Value, idx int, path string, allowIndex bool) Value {
	if path == "" {
		return base
	}
	toks, err := pathlang.Parse(path)
	if err != nil || len(toks) == 0 {
		return MissingValue
	}
	head := toks[0]
	if allowIndex && head.Kind == pathlang.KeyToken && head.Key == "index" {
		return Present(int64(idx))
	}
	if head.Kind == pathlang.KeyToken && head.Key == "value" {
		if base.IsMissing() {
			return MissingValue
		}
		return lookupAny(base.Data(), toks[1:])
	}
	return MissingValue
}

// refIntoItemDirect resolves @item/@item.<p> against a finalize-stage
// element: the path drills straight into the element's own fields.
func refIntoItemDirect(base Value, path string) Value {
	if path == "" {
		return base
	}
	toks, err := pathlang.Parse(path)
	if err != nil || base.IsMissing() {
		return MissingValue
	}
	return lookupAny(base.Data(), toks)
}

func lookup(m map[string]any, toks []pathlang.Token) Value {
	if m == nil {
		return MissingValue
	}
	return lookupAny(m, toks)
}

func lookupAny(v any, toks []pathlang.Token) Value {
	if len(toks) == 0 {
		return Present(v)
	}
	out, ok := pathlang.Get(v, toks)
	if !ok {
		return MissingValue
	}
	return Present(out)
}

func evalChain(ctx *Ctx, ch *schema.ChainExpr) (Value, error) {
	if len(ch.Chain) == 0 {
		return MissingValue, fmt.Errorf("eval: empty chain")
	}
	cur, err := Eval(ctx, ch.Chain[0])
	if err != nil {
		return MissingValue, err
	}
	for _, step := range ch.Chain[1:] {
		op, ok := step.(*schema.OpExpr)
		if !ok {
			return MissingValue, fmt.Errorf("eval: chain step %T is not an operator", step)
		}
		cur, err = evalOp(ctx, op.Op, &cur, op.Args, op.Pos)
		if err != nil {
			return MissingValue, err
		}
	}
	return cur, nil
}

func evalPipeExpr(ctx *Ctx, p *schema.PipeExpr) (Value, error) {
	cur, err := Eval(ctx, p.Start)
	if err != nil {
		return MissingValue, err
	}
	for _, step := range p.Steps {
		cur, ctx, err = evalPipeStep(ctx, cur, step)
		if err != nil {
			return MissingValue, err
		}
	}
	return cur, nil
}

func evalPipeStep(ctx *Ctx, cur Value, step schema.PipeStep) (Value, *Ctx, error) {
	pipeCtx := ctx.withPipe(cur)
	switch step.StepKind {
	case schema.PipeOp:
		v, err := evalOp(pipeCtx, step.Op, &cur, step.Args, step.Pos)
		return v, ctx, err
	case schema.PipeLet:
		next := ctx
		for _, bind := range step.Bindings {
			v, err := Eval(next.withPipe(cur), bind.Expr)
			if err != nil {
				return MissingValue, ctx, err
			}
			next = next.withLocal(bind.Name, v)
		}
		return cur, next, nil
	case schema.PipeIf:
		condVal, err := Eval(pipeCtx, step.Cond)
		if err != nil {
			return MissingValue, ctx, err
		}
		if condVal.Bool() {
			if step.Then == nil {
				return cur, ctx, nil
			}
			v, err := evalPipeExpr(pipeCtx, step.Then)
			return v, ctx, err
		}
		if step.Else == nil {
			return cur, ctx, nil
		}
		v, err := evalPipeExpr(pipeCtx, step.Else)
		return v, ctx, err
	case schema.PipeMap:
		arr, ok := asArray(cur.Data())
		if cur.IsMissing() || !ok {
			return MissingValue, ctx, nil
		}
		out := make([]any, 0, len(arr))
		for i, item := range arr {
			itemCtx := ctx.withItem(Present(item), i)
			if step.MapPipe == nil {
				out = append(out, item)
				continue
			}
			v, err := evalPipeExpr(itemCtx, step.MapPipe)
			if err != nil {
				return MissingValue, ctx, err
			}
			if v.IsMissing() {
				continue
			}
			out = append(out, v.Data())
		}
		return Present(out), ctx, nil
	case schema.PipeRef:
		if step.Ref == nil {
			return MissingValue, ctx, nil
		}
		v, err := evalRef(pipeCtx, step.Ref)
		return v, ctx, err
	default:
		return MissingValue, ctx, fmt.Errorf("eval: unrecognized pipe step kind %d", step.StepKind)
	}
}

func evalArgs(ctx *Ctx, args []schema.Expr) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		v, err := Eval(ctx, a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func evalOp(ctx *Ctx, op string, implicit *Value, args []schema.Expr, pos any) (Value, error) {
	fn, ok := opTable[op]
	if !ok {
		return MissingValue, fmt.Errorf("eval: unknown operator %q", op)
	}
	return fn(ctx, implicit, args)
}

// subject resolves the value an operator acts on: the chain/pipe's implicit
// prior value when present, otherwise the first explicit argument — so the
// same operator works both as a chain/pipe step and as a standalone call.
func subject(ctx *Ctx, implicit *Value, args []schema.Expr) (Value, []schema.Expr, error) {
	if implicit != nil {
		return *implicit, args, nil
	}
	if len(args) == 0 {
		return MissingValue, nil, fmt.Errorf("eval: operator requires a subject value")
	}
	v, err := Eval(ctx, args[0])
	if err != nil {
		return MissingValue, nil, err
	}
	return v, args[1:], nil
}
