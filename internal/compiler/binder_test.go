package compiler

import (
	"testing"

	"github.com/lambdatree/lct/internal/exprtree"
)

// TestBindVariablesClassifiesEveryStorageKind builds one outer lambda with a
// nested lambda inside it and checks that bindVariables assigns each of the
// five storage kinds (spec.md §3/§4.3) to the variable that should get it.
func TestBindVariablesClassifiesEveryStorageKind(t *testing.T) {
	a := exprtree.NewVariable("a", intType, false) // argument, never captured
	c := exprtree.NewVariable("c", intType, false) // local, never captured
	p := exprtree.NewVariable("p", intType, false) // local, only reified by Quote
	hoisted := exprtree.NewVariable("hoisted", intType, false)     // captured, read-only from nested lambda
	hoistedBoxed := exprtree.NewVariable("hoistedBoxed", intType, false) // captured and mutated

	inner := exprtree.LambdaNode("inner", nil, intType,
		exprtree.Block(nil,
			exprtree.Assign(exprtree.VariableRef(hoistedBoxed), exprtree.Constant(intType, 1)),
			exprtree.VariableRef(hoisted),
		))

	outer := exprtree.LambdaNode("outer", []*exprtree.Variable{a}, intType,
		exprtree.Block([]*exprtree.Variable{c, p, hoisted, hoistedBoxed},
			exprtree.Assign(exprtree.VariableRef(c), exprtree.VariableRef(a)),
			exprtree.Quote(exprtree.VariableRef(p)),
			inner,
		))

	scopes, err := bindVariables(outer)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	cases := []struct {
		name string
		v    *exprtree.Variable
		want StorageKind
	}{
		{"a", a, StorageArgument},
		{"c", c, StorageLocal},
		{"p", p, StorageBoxed},
		{"hoisted", hoisted, StorageHoisted},
		{"hoistedBoxed", hoistedBoxed, StorageHoistedBoxed},
	}

	for _, tc := range cases {
		if got := scopes.storage[tc.v]; got != tc.want {
			t.Errorf("%s: expected storage kind %v, got %v", tc.name, tc.want, got)
		}
	}

	if !scopes.isCaptured(hoisted) || !scopes.isCaptured(hoistedBoxed) {
		t.Error("expected both hoisted and hoistedBoxed to report isCaptured")
	}

	if scopes.isCaptured(a) || scopes.isCaptured(c) {
		t.Error("expected neither a nor c to report isCaptured")
	}

	if !scopes.isBoxed(p) || !scopes.isBoxed(hoistedBoxed) {
		t.Error("expected both p and hoistedBoxed to report isBoxed")
	}

	if scopes.isBoxed(hoisted) {
		t.Error("expected hoisted (read-only capture) not to report isBoxed")
	}
}

// TestBindVariablesRecordsClosureFieldChain checks that a variable captured
// by a lambda two levels deep is threaded through the intermediate lambda's
// closureFields too, so the intermediate closure record can forward it.
func TestBindVariablesRecordsClosureFieldChain(t *testing.T) {
	x := exprtree.NewVariable("x", intType, false)

	innermost := exprtree.LambdaNode("innermost", nil, intType, exprtree.VariableRef(x))
	middle := exprtree.LambdaNode("middle", nil, intType, innermost)
	outer := exprtree.LambdaNode("outer", nil, intType,
		exprtree.Block([]*exprtree.Variable{x}, middle))

	scopes, err := bindVariables(outer)
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}

	if !containsVar(scopes.closureFields[middle], x) {
		t.Error("expected the intermediate lambda to carry x forward in its closureFields")
	}

	if !containsVar(scopes.closureFields[innermost], x) {
		t.Error("expected the innermost lambda's closureFields to list x")
	}
}
