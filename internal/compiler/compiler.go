// Package compiler is the expression-tree compiler's core: Stack
// Spiller, Constant Allocator, Variable Binder, Closure Record Factory,
// Lambda Compiler, Environment & Delegate Builder, Free-Variable Scanner,
// and the Quote facility (spec.md §4), driving internal/ilasm +
// internal/ilvm as the emitter substrate.
package compiler

import (
	"reflect"
	"sync"

	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/ilvm"
)

// ABIVersion is recorded against every closure-record and delegate-type
// cache entry this process creates and checked on lookup (spec.md
// DOMAIN STACK: Masterminds/semver ABI compatibility check in §5's
// process-wide caches).
const ABIVersion = "1.0.0"

// Callable wraps the reflect.Value reflect.MakeFunc produced for a
// compiled Lambda: the idiomatic-Go analogue of
// Expression<TDelegate>.Compile(): TDelegate.
type Callable struct {
	fn reflect.Value
}

// Func returns the callable as a reflect.Value of the lambda's declared
// function type, ready for .Call or for assignment into a typed Go
// variable via reflect.Value.Interface().(SomeFuncType).
func (c Callable) Func() reflect.Value { return c.fn }

// Interface returns the callable as an interface{} holding a genuinely
// typed Go func value.
func (c Callable) Interface() interface{} { return c.fn.Interface() }

// process-wide caches (spec.md §5): closure-record types keyed by arity,
// and delegate (reflect.FuncOf) types keyed by signature. Never
// invalidated except for the ABI-compatibility rejection in environment.go.
var (
	processMu       sync.Mutex
	closureRecords  = map[int]reflect.Type{}
	delegateTypes   = map[string]reflect.Type{}
	cacheABIVersion = map[int]string{} // arity -> ABI version that produced the cached record
)

// Compile realizes tree as a genuinely callable Go function: it runs the
// Free-Variable Scanner and Variable Binder to classify every Variable's
// storage, the Constant Allocator to build the bound-constants pool, the
// Stack Spiller to keep deep trees within a safe recursion depth, the
// Lambda Compiler to emit internal/ilasm bytecode for the lambda and
// every lambda nested within it, and finally the Environment & Delegate
// Builder to wrap the result in a reflect.MakeFunc-produced Callable.
func Compile(tree *exprtree.Lambda) (Callable, *errors.StandardError) {
	if tree == nil || tree.Node == nil {
		return Callable{}, errors.MalformedTree("NIL_LAMBDA", "Compile requires a non-nil lambda tree", nil)
	}

	spilled := spill(tree.Node)

	scopes, err := bindVariables(spilled)
	if err != nil {
		return Callable{}, err
	}

	cc := newCompileContext(scopes)

	cr := compileOnGuardedStack(func() compileResult {
		idx, cerr := cc.compileLambda(spilled)
		return compileResult{idx: idx, err: cerr}
	})

	progIndex, err := cr.idx, cr.err
	if err != nil {
		return Callable{}, err
	}

	machine := &ilvm.Machine{
		Programs:     cc.programs,
		Helpers:      cc.helpers,
		Types:        cc.types,
		NewClosure:   cc.makeClosureRecord,
		MakeDelegate: cc.makeDelegateFor,
	}

	cc.machine = machine

	fn, err := buildEnvironment(cc, progIndex, reflect.Value{})
	if err != nil {
		return Callable{}, err
	}

	return Callable{fn: fn}, nil
}
