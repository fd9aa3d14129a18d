package main

import (
	"reflect"

	"github.com/lambdatree/lct/internal/exprtree"
)

var intType = reflect.TypeOf(int(0))

// examples is a small registry of canned expression trees demonstrating
// the compiler's pipeline end to end. There is no source-language parser
// in scope (spec.md §1's non-goals), so -example selects one of these
// Go-constructed trees the same way a unit test would build one, rather
// than reading a source file.
var examples = map[string]func() *exprtree.Lambda{
	"add":     addExample,
	"counter": counterExample,
	"divsafe": divSafeExample,
}

// addExample builds `(a, b int) int => a + b`.
func addExample() *exprtree.Lambda {
	a := exprtree.NewVariable("a", intType, false)
	b := exprtree.NewVariable("b", intType, false)

	body := exprtree.Binary(exprtree.OpAdd, exprtree.VariableRef(a), exprtree.VariableRef(b))

	return exprtree.AsLambda(exprtree.LambdaNode("add", []*exprtree.Variable{a, b}, intType, body))
}

// counterExample builds a closure factory: `() func() int => { n := 0; return () int => ++n }`.
// Every Invoke of the returned inner lambda observes the same captured
// `n`, exercising the Closure Record Factory and StorageHoistedBoxed.
func counterExample() *exprtree.Lambda {
	n := exprtree.NewVariable("n", intType, false)
	innerType := reflect.FuncOf(nil, []reflect.Type{intType}, false)

	inner := exprtree.LambdaNode("increment", nil, intType,
		exprtree.Unary(exprtree.OpPreIncrement, exprtree.VariableRef(n)))

	body := exprtree.Block([]*exprtree.Variable{n},
		exprtree.Assign(exprtree.VariableRef(n), exprtree.Constant(intType, 0)),
		inner,
	)

	return exprtree.AsLambda(exprtree.LambdaNode("makeCounter", nil, innerType, body))
}

// divSafeExample builds `(a, b int) int => try { a / b } catch { -1 }`,
// exercising the Try/Catch region the emitter builds in emit.go's
// emitTry: a division by zero panics inside the VM's integer division and the
// Catch clause recovers it rather than letting it escape.
func divSafeExample() *exprtree.Lambda {
	a := exprtree.NewVariable("a", intType, false)
	b := exprtree.NewVariable("b", intType, false)

	body := exprtree.Binary(exprtree.OpDiv, exprtree.VariableRef(a), exprtree.VariableRef(b))

	tryNode := exprtree.Try(
		body,
		[]*exprtree.CatchClause{
			exprtree.Catch(nil, nil, nil, exprtree.Constant(intType, -1)),
		},
		nil, nil,
	)

	return exprtree.AsLambda(exprtree.LambdaNode("divSafe", []*exprtree.Variable{a, b}, intType, tryNode))
}
