package compiler

import (
	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/ilasm"
)

// cacheThreshold is the Constant Allocator's caching heuristic (DESIGN.md
// Open Question O2): a Constant referenced this many times or more is
// pooled once and loaded by index on every use; below the threshold each
// use gets its own pool slot. Left as the reference's literal "referenced
// ≥ 3 times," acknowledged as neither provably optimal nor load-bearing
// for correctness — spec.md explicitly allows revisiting it.
const cacheThreshold = 3

// constantAllocator assigns bound-constants pool slots for every Constant
// node in one lambda's own body (not descending into a nested lambda's
// body — that lambda gets its own allocator when compileLambda recurses
// into it), deduplicating by (DeclaredType, Value) when a value is
// referenced at least cacheThreshold times.
type constantAllocator struct {
	slotOf map[*exprtree.Node]int
	// counts tallies occurrences of each distinct (type, value) pairing before
	// a single pass decides which ones earn a shared slot; keyed on a
	// comparable projection of the value since reflect.Type and most
	// literal kinds are themselves comparable.
	counts map[constKey]int
	slots  map[constKey]int
}

type constKey struct {
	typeName string
	value    interface{}
}

func newConstantAllocator() *constantAllocator {
	return &constantAllocator{
		slotOf: map[*exprtree.Node]int{},
		counts: map[constKey]int{},
		slots:  map[constKey]int{},
	}
}

// scan counts every Constant node's occurrence within root's own lambda
// (stopping at any nested Lambda boundary), a prerequisite pass before
// allocate can decide which values are worth pooling.
func (a *constantAllocator) scan(root *exprtree.Node) {
	walkOwnLambda(root, func(n *exprtree.Node) {
		if n.Kind == exprtree.KindConstant {
			a.counts[keyOf(n.Constant)]++
		}
	})
}

// allocate assigns pool slots (via p.NewConst, so LoadConst.Index lines up
// with p.Consts directly) for every Constant in root, reusing a single
// slot across occurrences once scan has found the value crosses
// cacheThreshold.
func (a *constantAllocator) allocate(p *ilasm.Program, root *exprtree.Node) {
	walkOwnLambda(root, func(n *exprtree.Node) {
		if n.Kind != exprtree.KindConstant {
			return
		}

		k := keyOf(n.Constant)

		if a.counts[k] >= cacheThreshold {
			if slot, ok := a.slots[k]; ok {
				a.slotOf[n] = slot
				return
			}

			slot := p.NewConst(n.Constant.Value)
			a.slots[k] = slot
			a.slotOf[n] = slot

			return
		}

		a.slotOf[n] = p.NewConst(n.Constant.Value)
	})
}

// walkOwnLambda visits root and its descendants in pre-order, stopping
// beneath any nested Lambda node — that lambda's own constants (and
// variables, in the binder's analogous traversals) belong to its own
// compilation, not this one's.
func walkOwnLambda(root *exprtree.Node, visit func(*exprtree.Node)) {
	exprtree.Walk(root, func(n *exprtree.Node) bool {
		visit(n)
		return n.Kind != exprtree.KindLambda
	})
}

func keyOf(c *exprtree.ConstantPayload) constKey {
	name := "<untyped>"
	if c.DeclaredType != nil {
		name = c.DeclaredType.String()
	}

	return constKey{typeName: name, value: c.Value}
}
