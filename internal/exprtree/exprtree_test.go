package exprtree

import (
	"reflect"
	"testing"
)

var intType = reflect.TypeOf(int(0))

func TestConstructorsPopulateExactlyOnePayload(t *testing.T) {
	a := NewVariable("a", intType, false)

	nodes := map[NodeKind]*Node{
		KindConstant: Constant(intType, 1),
		KindVariable: VariableRef(a),
		KindAssign:   Assign(VariableRef(a), Constant(intType, 1)),
		KindBlock:    Block(nil, Constant(intType, 1)),
		KindBinary:   Binary(OpAdd, Constant(intType, 1), Constant(intType, 2)),
		KindUnary:    Unary(OpNegate, Constant(intType, 1)),
	}

	for kind, n := range nodes {
		if n.Kind != kind {
			t.Errorf("expected Kind %v, got %v", kind, n.Kind)
		}
	}
}

func TestAsLambdaRequiresLambdaNode(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected AsLambda to panic on a non-lambda node")
		}
	}()

	AsLambda(Constant(intType, 1))
}

func TestAsLambdaWrapsLambdaNode(t *testing.T) {
	n := LambdaNode("f", nil, intType, Constant(intType, 1))

	l := AsLambda(n)
	if l.Node != n {
		t.Error("expected AsLambda to wrap the given node, not copy it")
	}
}

func TestCatchCarriesOptionalFields(t *testing.T) {
	v := NewVariable("e", intType, false)
	c := Catch(intType, v, Constant(intType, 1), Constant(intType, -1))

	if c.ExceptionType != intType || c.Variable != v {
		t.Error("expected Catch to carry its exception type and variable through unchanged")
	}
}

func TestCaseCollectsTests(t *testing.T) {
	c := Case(Constant(intType, 1), Constant(intType, 0), Constant(intType, 2))

	if len(c.Tests) != 2 {
		t.Fatalf("expected 2 tests, got %d", len(c.Tests))
	}
}
