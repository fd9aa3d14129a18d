// Package treeinterp is a reference tree-walking interpreter over
// internal/exprtree: an independent oracle used only by tests to check
// spec.md §8's universal invariant that a compiled lambda and a directly
// interpreted evaluation of the same tree agree, and a fallback backend
// a caller may select explicitly. internal/compiler.Compile never calls
// into this package and this package never imports internal/compiler —
// the two realize the same tree semantics by entirely separate means, on
// purpose, so a bug shared between them would be a real coincidence
// rather than shared code masking it.
//
// Grounded on the general shape of internal/hir's total per-kind switch
// dispatch (no code reused — internal/hir was cut entirely, see
// DESIGN.md — only the "exhaustive switch over a node-kind tag, one case
// per kind" convention).
package treeinterp

import (
	"fmt"
	"reflect"

	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exception"
	"github.com/lambdatree/lct/internal/exprtree"
)

// cell is the interpreter's own boxed-variable cell, independent of
// internal/compiler's box type: every Variable (parameter, block local,
// or caught-exception binding) gets one, so a closure literal captures
// by reference exactly like the compiled path's Boxed/Hoisted storage
// kinds, without needing this package to replicate the Variable Binder's
// storage-kind classification at all — a tree walker can afford a cell
// per variable uniformly, trading the compiled path's layout precision
// for implementation simplicity.
type cell struct{ value interface{} }

// environment is a chain of variable scopes; a nested lambda's closure
// captures its defining environment by reference, so writes through a
// captured variable are visible to every other binder of the same cell.
type environment struct {
	vars   map[*exprtree.Variable]*cell
	parent *environment
}

func newEnvironment(parent *environment) *environment {
	return &environment{vars: map[*exprtree.Variable]*cell{}, parent: parent}
}

func (e *environment) declare(v *exprtree.Variable, initial interface{}) {
	e.vars[v] = &cell{value: initial}
}

func (e *environment) lookup(v *exprtree.Variable) *cell {
	for env := e; env != nil; env = env.parent {
		if c, ok := env.vars[v]; ok {
			return c
		}
	}

	panic(fmt.Sprintf("treeinterp: reference to undeclared variable %q", v.Name))
}

// closure is the interpreted analogue of a compiled delegate: a lambda
// node paired with the environment it closed over.
type closure struct {
	node *exprtree.Node
	env  *environment
}

// ctrlKind distinguishes ordinary fall-through evaluation from an active
// Goto still searching for its target Label.
type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlGoto
)

// ctrl is returned alongside every eval call's value, threading a
// pending Goto up through the recursive walk until a Block containing
// the target Label (or a Loop owning it as Break/Continue) absorbs it.
// Exceptions use Go's own panic/recover instead of a ctrl variant,
// mirroring internal/ilvm's choice to raise exception.Exception via
// exception.AsGoPanic rather than a third return value.
type ctrl struct {
	kind  ctrlKind
	label *exprtree.Label
	value interface{}
}

// Run interprets tree by binding args positionally to its parameters and
// evaluating its body, recovering a propagating exception.Exception into
// a plain Go error the way internal/ilvm.Machine.Run does.
func Run(tree *exprtree.Lambda, args []interface{}) (result interface{}, err error) {
	if tree == nil || tree.Node == nil || tree.Node.Kind != exprtree.KindLambda {
		return nil, fmt.Errorf("treeinterp: Run requires a non-nil KindLambda tree")
	}

	defer func() {
		if r := recover(); r != nil {
			e := exception.RecoverException(r)
			err = errors.NewStandardError(errors.CategorySystem, "UNCAUGHT_RUNTIME_EXCEPTION",
				e.Message, map[string]interface{}{"exception": e})
		}
	}()

	env := newEnvironment(nil)
	bindParameters(env, tree.Node.Lambda.Parameters, args)

	value, c := eval(tree.Node.Lambda.Body, env)
	if c.kind == ctrlGoto {
		panic(fmt.Sprintf("treeinterp: goto to undeclared label %q escaped the lambda body", c.label.Name))
	}

	return value, nil
}

func bindParameters(env *environment, params []*exprtree.Variable, args []interface{}) {
	for i, p := range params {
		var a interface{}
		if i < len(args) {
			a = args[i]
		}

		env.declare(p, a)
	}
}

// eval evaluates n in env, returning its value (nil for a void-producing
// construct) and a control signal (ctrlNone unless a Goto is actively
// propagating).
func eval(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	switch n.Kind {
	case exprtree.KindConstant:
		return n.Constant.Value, ctrl{}

	case exprtree.KindVariable:
		return env.lookup(n.Variable.Var).value, ctrl{}

	case exprtree.KindAssign:
		v, c := eval(n.Assign.Value, env)
		if c.kind != ctrlNone {
			return nil, c
		}

		assign(n.Assign.Target, v, env)

		return v, ctrl{}

	case exprtree.KindBlock:
		return evalBlock(n, env)

	case exprtree.KindLambda:
		return closure{node: n, env: env}, ctrl{}

	case exprtree.KindInvoke:
		return evalInvoke(n, env)

	case exprtree.KindCall:
		return evalCall(n, env)

	case exprtree.KindNew:
		return evalNew(n, env)

	case exprtree.KindBinary:
		return evalBinary(n, env)

	case exprtree.KindUnary:
		return evalUnary(n, env)

	case exprtree.KindConditional:
		return evalConditional(n, env)

	case exprtree.KindLoop:
		return evalLoop(n, env)

	case exprtree.KindLabel:
		// Reached by ordinary fall-through (not via a matching Goto): there
		// is no value to carry, the same "unsupported, documented" choice
		// internal/compiler/emit.go makes for the same case.
		return nil, ctrl{}

	case exprtree.KindGoto:
		var v interface{}
		if n.Goto.Value != nil {
			var c ctrl
			v, c = eval(n.Goto.Value, env)
			if c.kind != ctrlNone {
				return nil, c
			}
		}

		return nil, ctrl{kind: ctrlGoto, label: n.Goto.Target, value: v}

	case exprtree.KindTry:
		return evalTry(n, env)

	case exprtree.KindSwitch:
		return evalSwitch(n, env)

	case exprtree.KindQuote:
		return reifyQuote(n, env), ctrl{}

	case exprtree.KindRuntimeVariables:
		return reifyRuntimeVariables(n, env), ctrl{}

	default:
		// KindDefault included: reserved by spec.md's node-kind enum but not
		// yet given a payload or a constructor in internal/exprtree, and
		// internal/compiler/emit.go's own switch has no case for it either
		// (falling through to its UnsupportedConstruct default) — so this
		// stays unhandled on both backends rather than one silently
		// succeeding where the other fails.
		panic(fmt.Sprintf("treeinterp: unhandled node kind %d", n.Kind))
	}
}

func assign(target *exprtree.Node, v interface{}, env *environment) {
	if target.Kind != exprtree.KindVariable {
		panic("treeinterp: assignment target must be a variable")
	}

	env.lookup(target.Variable.Var).value = v
}

func evalBlock(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	blockEnv := newEnvironment(env)
	for _, l := range n.Block.Locals {
		blockEnv.declare(l, nil)
	}

	body := n.Block.Body
	var last interface{}

	for i := 0; i < len(body); i++ {
		v, c := eval(body[i], blockEnv)
		if c.kind == ctrlGoto {
			if idx, ok := indexOfLabel(body, c.label); ok {
				i = idx // resolvePatches-equivalent: re-enter the loop at the label's statement index (pre-increment cancels the for-loop's own i++)
				i--

				continue
			}

			return nil, c // not ours: let an enclosing Block/Loop look for it
		}

		last = v
	}

	return last, ctrl{}
}

func indexOfLabel(body []*exprtree.Node, label *exprtree.Label) (int, bool) {
	for i, n := range body {
		if n.Kind == exprtree.KindLabel && n.Label.Target == label {
			return i, true
		}
	}

	return 0, false
}

func evalLoop(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	for {
		v, c := eval(n.Loop.Body, env)

		if c.kind == ctrlNone {
			continue
		}

		switch {
		case n.Loop.BreakLabel != nil && c.label == n.Loop.BreakLabel:
			return c.value, ctrl{}
		case n.Loop.ContinueLabel != nil && c.label == n.Loop.ContinueLabel:
			continue
		default:
			return v, c // propagate to an outer construct
		}
	}
}

func evalConditional(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	t, c := eval(n.Conditional.Test, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	if truthy(t) {
		return eval(n.Conditional.IfTrue, env)
	}

	if n.Conditional.IfFalse != nil {
		return eval(n.Conditional.IfFalse, env)
	}

	return nil, ctrl{}
}

func evalSwitch(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	v, c := eval(n.Switch.Value, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	for _, sc := range n.Switch.Cases {
		for _, t := range sc.Tests {
			tv, tc := eval(t, env)
			if tc.kind != ctrlNone {
				return nil, tc
			}

			if v == tv {
				return eval(sc.Body, env)
			}
		}
	}

	if n.Switch.Default != nil {
		return eval(n.Switch.Default, env)
	}

	return nil, ctrl{}
}

func evalInvoke(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	t, c := eval(n.Invoke.Target, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	args, c := evalArgs(n.Invoke.Arguments, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	switch callee := t.(type) {
	case closure:
		callEnv := newEnvironment(callee.env)
		bindParameters(callEnv, callee.node.Lambda.Parameters, args)

		v, lc := eval(callee.node.Lambda.Body, callEnv)
		if lc.kind == ctrlGoto {
			panic(fmt.Sprintf("treeinterp: goto to undeclared label %q escaped a nested lambda body", lc.label.Name))
		}

		return v, ctrl{}
	case reflect.Value:
		return callReflect(callee, args), ctrl{}
	default:
		panic(fmt.Sprintf("treeinterp: Invoke target is not callable: %T", t))
	}
}

func evalCall(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	args, c := evalArgs(n.Call.Arguments, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	return callReflect(n.Call.Target, args), ctrl{}
}

func evalNew(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	args, c := evalArgs(n.New.Arguments, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	v := reflect.New(n.New.DeclaredType).Elem()
	for i := 0; i < v.NumField() && i < len(args); i++ {
		if args[i] == nil {
			v.Field(i).Set(reflect.Zero(v.Field(i).Type()))
			continue
		}

		v.Field(i).Set(reflect.ValueOf(args[i]))
	}

	return v.Interface(), ctrl{}
}

func evalArgs(nodes []*exprtree.Node, env *environment) ([]interface{}, ctrl) {
	args := make([]interface{}, len(nodes))

	for i, a := range nodes {
		v, c := eval(a, env)
		if c.kind != ctrlNone {
			return nil, c
		}

		args[i] = v
	}

	return args, ctrl{}
}

// callReflect mirrors internal/ilvm.callReflect's nil-argument handling:
// reflect.ValueOf(nil) is invalid for Call, so a literal nil argument is
// passed as the zero value of whatever parameter type fn expects there.
func callReflect(fn reflect.Value, args []interface{}) interface{} {
	t := fn.Type()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			if pt := paramTypeAt(t, i); pt != nil {
				in[i] = reflect.Zero(pt)
				continue
			}
		}

		in[i] = reflect.ValueOf(a)
	}

	out := fn.Call(in)
	if len(out) == 0 {
		return nil
	}

	return out[0].Interface()
}

func paramTypeAt(t reflect.Type, i int) reflect.Type {
	n := t.NumIn()

	if t.IsVariadic() && i >= n-1 {
		return t.In(n - 1).Elem()
	}

	if i < n {
		return t.In(i)
	}

	return nil
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}
