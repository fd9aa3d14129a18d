package compiler

import (
	"reflect"
	"testing"

	"github.com/lambdatree/lct/internal/exprtree"
)

var (
	quotedExpressionType = reflect.TypeOf((*QuotedExpression)(nil))
	runtimeVariablesType = reflect.TypeOf((*RuntimeVariables)(nil))
)

func TestCompileQuoteCapturesSharedBoxedCell(t *testing.T) {
	n := exprtree.NewVariable("n", intType, false)

	body := exprtree.Block([]*exprtree.Variable{n},
		exprtree.Assign(exprtree.VariableRef(n), exprtree.Constant(intType, 41)),
		exprtree.Quote(exprtree.Binary(exprtree.OpAdd, exprtree.VariableRef(n), exprtree.Constant(intType, 1))),
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("quoteN", nil, quotedExpressionType, body))

	callable, err := Compile(tree)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err.Error())
	}

	fn, ok := callable.Interface().(func() *QuotedExpression)
	if !ok {
		t.Fatalf("expected func() *QuotedExpression, got %T", callable.Interface())
	}

	q := fn()

	b, ok := q.Bindings["n"]
	if !ok {
		t.Fatal("expected a binding for the free variable n")
	}

	if boxedGet(b) != 41 {
		t.Fatalf("expected the quoted binding to see n's value 41, got %v", boxedGet(b))
	}
}

func TestCompileRuntimeVariablesRoundTrip(t *testing.T) {
	x := exprtree.NewVariable("x", intType, false)
	y := exprtree.NewVariable("y", intType, false)

	body := exprtree.Block([]*exprtree.Variable{x, y},
		exprtree.Assign(exprtree.VariableRef(x), exprtree.Constant(intType, 1)),
		exprtree.Assign(exprtree.VariableRef(y), exprtree.Constant(intType, 2)),
		exprtree.RuntimeVariables(x, y),
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("vars", nil, runtimeVariablesType, body))

	callable, err := Compile(tree)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err.Error())
	}

	fn := callable.Interface().(func() *RuntimeVariables)
	rv := fn()

	if rv.Count() != 2 {
		t.Fatalf("expected 2 variables, got %d", rv.Count())
	}

	if rv.Get(0) != 1 || rv.Get(1) != 2 {
		t.Fatalf("expected [1, 2], got [%v, %v]", rv.Get(0), rv.Get(1))
	}

	rv.Set(0, 99)
	if rv.Get(0) != 99 {
		t.Fatalf("expected Set(0, 99) to round-trip through Get, got %v", rv.Get(0))
	}
}

// TestCompileRuntimeVariablesAcrossLambdaBoundary exercises the fix for a
// RuntimeVariables node whose listed variable is owned by an *enclosing*
// lambda rather than the one the node sits in directly — the case
// exprtree/build.go's RuntimeVariables constructor takes raw *Variable
// pointers with no scope check, so nothing prevents a caller from building
// this tree. Before the Variable Binder's KindRuntimeVariables case routed
// such a variable through recordCaptureChain, this shape compiled but
// panicked at call time (the inner lambda's closure record never got a
// field for x, so LoadField resolved an empty field name).
func TestCompileRuntimeVariablesAcrossLambdaBoundary(t *testing.T) {
	x := exprtree.NewVariable("x", intType, false)

	inner := exprtree.LambdaNode("capture", nil, runtimeVariablesType, exprtree.RuntimeVariables(x))
	innerType := reflect.FuncOf(nil, []reflect.Type{runtimeVariablesType}, false)

	body := exprtree.Block([]*exprtree.Variable{x},
		exprtree.Assign(exprtree.VariableRef(x), exprtree.Constant(intType, 7)),
		inner,
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("outer", nil, innerType, body))

	callable, err := Compile(tree)
	if err != nil {
		t.Fatalf("unexpected compile error: %s", err.Error())
	}

	makeCapture, ok := callable.Interface().(func() func() *RuntimeVariables)
	if !ok {
		t.Fatalf("expected func() func() *RuntimeVariables, got %T", callable.Interface())
	}

	rv := makeCapture()()

	if rv.Count() != 1 {
		t.Fatalf("expected 1 variable, got %d", rv.Count())
	}

	if rv.Get(0) != 7 {
		t.Fatalf("expected 7, got %v", rv.Get(0))
	}

	rv.Set(0, 8)
	if rv.Get(0) != 8 {
		t.Fatalf("expected Set(0, 8) to round-trip, got %v", rv.Get(0))
	}
}

// TestClosureRecordCrossesBigArityThreshold exercises spec.md §8's
// 18-variable big-closure scenario: closureRecordType builds (and caches)
// a reflect.StructOf record for any arity uniformly, so this just confirms
// the factory scales past a small, easy-to-eyeball field count.
func TestClosureRecordCrossesBigArityThreshold(t *testing.T) {
	const arity = 18

	fields := make([]interface{}, arity)
	for i := range fields {
		fields[i] = i
	}

	cc := newCompileContext(nil)

	v, err := cc.makeClosureRecord("big", fields)
	if err != nil {
		t.Fatalf("unexpected error building an %d-field closure record: %v", arity, err)
	}

	if v.NumField() != arity {
		t.Fatalf("expected %d fields, got %d", arity, v.NumField())
	}

	for i := 0; i < arity; i++ {
		if v.Field(i).Interface() != i {
			t.Errorf("field %d: expected %d, got %v", i, i, v.Field(i).Interface())
		}
	}
}
