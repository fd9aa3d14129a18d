package treeinterp

import (
	"reflect"
	"testing"

	"github.com/lambdatree/lct/internal/exprtree"
)

var intType = reflect.TypeOf(int(0))

func TestRunSimpleArithmetic(t *testing.T) {
	a := exprtree.NewVariable("a", intType, false)
	b := exprtree.NewVariable("b", intType, false)

	body := exprtree.Binary(exprtree.OpAdd, exprtree.VariableRef(a), exprtree.VariableRef(b))
	tree := exprtree.AsLambda(exprtree.LambdaNode("add", []*exprtree.Variable{a, b}, intType, body))

	result, err := Run(tree, []interface{}{3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != int64(7) {
		t.Fatalf("expected int64(7), got %v (%T)", result, result)
	}
}

func TestRunRejectsNonLambdaTree(t *testing.T) {
	if _, err := Run(nil, nil); err == nil {
		t.Fatal("expected Run(nil, ...) to report an error")
	}
}

func TestRunTryCatchRecoversDivisionByZero(t *testing.T) {
	a := exprtree.NewVariable("a", intType, false)
	b := exprtree.NewVariable("b", intType, false)

	divide := exprtree.Binary(exprtree.OpDiv, exprtree.VariableRef(a), exprtree.VariableRef(b))
	tryNode := exprtree.Try(divide, []*exprtree.CatchClause{
		exprtree.Catch(nil, nil, nil, exprtree.Constant(intType, -1)),
	}, nil, nil)

	tree := exprtree.AsLambda(exprtree.LambdaNode("divSafe", []*exprtree.Variable{a, b}, intType, tryNode))

	result, err := Run(tree, []interface{}{10, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != -1 {
		t.Fatalf("expected the catch-all handler's constant -1, got %v", result)
	}
}

func TestRunTryFinallyAlwaysRuns(t *testing.T) {
	ran := exprtree.NewVariable("ran", intType, false)

	body := exprtree.Block([]*exprtree.Variable{ran},
		exprtree.Assign(exprtree.VariableRef(ran), exprtree.Constant(intType, 0)),
		exprtree.Try(
			exprtree.Constant(intType, 1),
			nil,
			exprtree.Assign(exprtree.VariableRef(ran), exprtree.Constant(intType, 1)),
			nil,
		),
		exprtree.VariableRef(ran),
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("f", nil, intType, body))

	result, err := Run(tree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != 1 {
		t.Fatalf("expected Finally to have run and set ran=1, got %v", result)
	}
}

func TestRunLoopBreakCarriesValue(t *testing.T) {
	n := exprtree.NewVariable("n", intType, false)
	breakLabel := exprtree.NewLabel("done", intType)

	loopBody := exprtree.Conditional(
		exprtree.Binary(exprtree.OpGreaterOrEqual, exprtree.VariableRef(n), exprtree.Constant(intType, 3)),
		exprtree.Goto(breakLabel, exprtree.VariableRef(n)),
		exprtree.Unary(exprtree.OpPreIncrement, exprtree.VariableRef(n)),
	)

	body := exprtree.Block([]*exprtree.Variable{n},
		exprtree.Assign(exprtree.VariableRef(n), exprtree.Constant(intType, 0)),
		exprtree.Loop(loopBody, breakLabel, nil),
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("countTo3", nil, intType, body))

	result, err := Run(tree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != int64(3) {
		t.Fatalf("expected the loop to break with n == 3, got %v", result)
	}
}

func TestRunQuoteReifiesBodyAndBindings(t *testing.T) {
	x := exprtree.NewVariable("x", intType, false)

	body := exprtree.Block([]*exprtree.Variable{x},
		exprtree.Assign(exprtree.VariableRef(x), exprtree.Constant(intType, 41)),
		exprtree.Quote(exprtree.Binary(exprtree.OpAdd, exprtree.VariableRef(x), exprtree.Constant(intType, 1))),
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("quoteX", nil, intType, body))

	result, err := Run(tree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, ok := result.(*QuotedExpression)
	if !ok {
		t.Fatalf("expected *QuotedExpression, got %T", result)
	}

	cell, ok := q.Bindings["x"]
	if !ok {
		t.Fatal("expected a binding for the free variable x")
	}

	if cell.value != 41 {
		t.Fatalf("expected the quoted binding to observe x's current value 41, got %v", cell.value)
	}
}

func TestRunRuntimeVariablesGetSet(t *testing.T) {
	x := exprtree.NewVariable("x", intType, false)
	y := exprtree.NewVariable("y", intType, false)

	body := exprtree.Block([]*exprtree.Variable{x, y},
		exprtree.Assign(exprtree.VariableRef(x), exprtree.Constant(intType, 1)),
		exprtree.Assign(exprtree.VariableRef(y), exprtree.Constant(intType, 2)),
		exprtree.RuntimeVariables(x, y),
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("vars", nil, intType, body))

	result, err := Run(tree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rv, ok := result.(*RuntimeVariables)
	if !ok {
		t.Fatalf("expected *RuntimeVariables, got %T", result)
	}

	if rv.Count() != 2 {
		t.Fatalf("expected 2 variables, got %d", rv.Count())
	}

	if rv.Get(0) != 1 || rv.Get(1) != 2 {
		t.Fatalf("expected [1, 2], got [%v, %v]", rv.Get(0), rv.Get(1))
	}

	rv.Set(0, 99)
	if rv.Get(0) != 99 {
		t.Fatalf("expected Set to be observable through Get, got %v", rv.Get(0))
	}
}

func TestRunPostIncrementReturnsOldValue(t *testing.T) {
	n := exprtree.NewVariable("n", intType, false)

	body := exprtree.Block([]*exprtree.Variable{n},
		exprtree.Assign(exprtree.VariableRef(n), exprtree.Constant(intType, 5)),
		exprtree.Unary(exprtree.OpPostIncrement, exprtree.VariableRef(n)),
	)

	tree := exprtree.AsLambda(exprtree.LambdaNode("postInc", nil, intType, body))

	result, err := Run(tree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != 5 {
		t.Fatalf("expected post-increment's value to be the OLD value 5, got %v", result)
	}
}
