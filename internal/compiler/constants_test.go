package compiler

import (
	"testing"

	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/ilasm"
)

// TestConstantAllocatorPoolsValuesAtOrAboveThreshold checks that a value
// referenced cacheThreshold times or more shares one pool slot across every
// occurrence, while a value referenced fewer times gets one slot per use.
func TestConstantAllocatorPoolsValuesAtOrAboveThreshold(t *testing.T) {
	pooled := make([]*exprtree.Node, cacheThreshold)
	for i := range pooled {
		pooled[i] = exprtree.Constant(intType, 7)
	}

	unpooled1 := exprtree.Constant(intType, 9)
	unpooled2 := exprtree.Constant(intType, 9)

	body := exprtree.Block(nil, append(append([]*exprtree.Node{}, pooled...), unpooled1, unpooled2)...)

	a := newConstantAllocator()
	a.scan(body)

	p := ilasm.NewProgram("k", 0)
	a.allocate(p, body)

	firstSlot := a.slotOf[pooled[0]]
	for i, n := range pooled {
		if a.slotOf[n] != firstSlot {
			t.Errorf("occurrence %d: expected the shared slot %d, got %d", i, firstSlot, a.slotOf[n])
		}
	}

	if a.slotOf[unpooled1] == a.slotOf[unpooled2] {
		t.Error("expected two below-threshold occurrences to get distinct slots")
	}
}

// TestConstantAllocatorStopsAtNestedLambdaBoundary checks that scan/allocate
// never assign a slot to a Constant that lives inside a nested Lambda's own
// body — that lambda gets its own allocator when the Lambda Compiler
// recurses into it.
func TestConstantAllocatorStopsAtNestedLambdaBoundary(t *testing.T) {
	inner := exprtree.Constant(intType, 1)
	nested := exprtree.LambdaNode("inner", nil, intType, inner)

	outer := exprtree.Constant(intType, 2)
	body := exprtree.Block(nil, outer, nested)

	a := newConstantAllocator()
	a.scan(body)

	p := ilasm.NewProgram("outer", 0)
	a.allocate(p, body)

	if _, ok := a.slotOf[outer]; !ok {
		t.Error("expected the outer lambda's own constant to get a slot")
	}

	if _, ok := a.slotOf[inner]; ok {
		t.Error("expected the nested lambda's constant to be left for its own allocator")
	}
}
