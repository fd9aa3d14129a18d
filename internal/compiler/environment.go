package compiler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exception"
	"github.com/lambdatree/lct/internal/exprtree"
)

// delegateTypeForABIVersion records which ABIVersion produced each cached
// delegateTypes entry, the string-keyed counterpart to compiler.go's
// cacheABIVersion map for the closure-record cache.
var delegateTypeForABIVersion = map[string]string{}

// abiConstraint accepts any cached entry stamped with the same major
// version as ABIVersion — the process-wide closure-record and delegate
// caches are safe to reuse across minor/patch releases of this compiler
// but not across a major one, where a closure's field layout or a
// delegate's calling convention could have changed shape.
var abiConstraint = mustConstraint("^" + ABIVersion)

func mustConstraint(expr string) *semver.Constraints {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		panic(err)
	}

	return c
}

func abiCompatible(cached string) bool {
	if cached == "" {
		return false
	}

	v, err := semver.NewVersion(cached)
	if err != nil {
		return false
	}

	return abiConstraint.Check(v)
}

// buildEnvironment is the Environment & Delegate Builder: it produces a
// genuinely typed Go func (via reflect.MakeFunc) for the lambda compiled
// at progIndex, closing over closure (the record of its own captured
// variables, or the zero Value for a lambda that captures nothing).
// Calling the returned func runs cc.machine against the compiled
// bytecode exactly as internal/ilvm's own CallClosure/MakeDelegate path
// does for a nested lambda invoked at runtime.
func buildEnvironment(cc *compileContext, progIndex int, closure reflect.Value) (reflect.Value, *errors.StandardError) {
	node := cc.lambdaNodes[progIndex]
	funcType := delegateFuncType(node)

	fn := reflect.MakeFunc(funcType, func(args []reflect.Value) []reflect.Value {
		callArgs := make([]interface{}, len(args))
		for i, a := range args {
			callArgs[i] = a.Interface()
		}

		result, runErr := cc.machine.Run(progIndex, callArgs, closure)
		if runErr != nil {
			// Re-raise the VM's own exception unchanged, so its Kind and
			// Payload still reach an outer Catch or the host.
			if e, ok := runErr.Context["exception"].(*exception.Exception); ok {
				exception.AsGoPanic(e)
			}

			exception.AsGoPanic(&exception.Exception{Kind: exception.ExceptionPanic, Message: runErr.Error()})
		}

		if funcType.NumOut() == 0 {
			return nil
		}

		out := reflect.New(funcType.Out(0)).Elem()
		if result != nil {
			// A lambda whose own return value is a delegate (its body's
			// last expression is a nested lambda literal) yields a
			// reflect.Value from ilvm's MakeDelegate, not a plain Go
			// value — assign it directly instead of double-wrapping via
			// reflect.ValueOf, which would describe the reflect.Value
			// struct rather than unwrap the function it holds.
			if rv, ok := result.(reflect.Value); ok {
				out.Set(rv)
			} else {
				// internal/ilvm's integer arithmetic yields int64; convert
				// to the declared return type (e.g. int) when it differs.
				v := reflect.ValueOf(result)
				if !v.Type().AssignableTo(out.Type()) && v.Type().ConvertibleTo(out.Type()) {
					v = v.Convert(out.Type())
				}

				out.Set(v)
			}
		}

		return []reflect.Value{out}
	})

	return fn, nil
}

// makeDelegateFor adapts buildEnvironment to ilvm.DelegateMaker's shape,
// letting internal/ilvm build a nested lambda's delegate at the
// MakeDelegate instruction without importing internal/compiler.
func (cc *compileContext) makeDelegateFor(programIndex int, closure reflect.Value) (reflect.Value, error) {
	fn, err := buildEnvironment(cc, programIndex, closure)
	if err != nil {
		return reflect.Value{}, err
	}

	return fn, nil
}

// delegateFuncType returns the cached reflect.Type for node's declared
// signature, building and interning it on first use.
func delegateFuncType(node *exprtree.Node) reflect.Type {
	key := delegateKeyFor(node)

	processMu.Lock()
	defer processMu.Unlock()

	if t, ok := delegateTypes[key]; ok && abiCompatible(delegateTypeForABIVersion[key]) {
		return t
	}

	in := make([]reflect.Type, len(node.Lambda.Parameters))
	for i, p := range node.Lambda.Parameters {
		in[i] = paramType(p.DeclaredType)
	}

	var out []reflect.Type
	if node.Lambda.ReturnType != nil {
		out = []reflect.Type{node.Lambda.ReturnType}
	}

	t := reflect.FuncOf(in, out, false)
	delegateTypes[key] = t
	delegateTypeForABIVersion[key] = ABIVersion

	return t
}

func paramType(t reflect.Type) reflect.Type {
	if t == nil {
		return reflect.TypeOf((*interface{})(nil)).Elem()
	}

	return t
}

func delegateKeyFor(node *exprtree.Node) string {
	parts := make([]string, len(node.Lambda.Parameters))
	for i, p := range node.Lambda.Parameters {
		parts[i] = paramType(p.DeclaredType).String()
	}

	ret := "void"
	if node.Lambda.ReturnType != nil {
		ret = node.Lambda.ReturnType.String()
	}

	return fmt.Sprintf("(%s)->%s", strings.Join(parts, ","), ret)
}
