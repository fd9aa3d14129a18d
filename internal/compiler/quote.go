package compiler

import "github.com/lambdatree/lct/internal/exprtree"

// QuotedExpression is the runtime value a Quote node produces: the quoted
// subtree as data, plus the shared boxed cells its free variables alias
// into the enclosing lambda's own storage. A caller can walk Node like
// any other expression tree and, through Bindings, observe or drive the
// same mutable state the compiled lambda sees (spec.md §4.6).
type QuotedExpression struct {
	Node     *exprtree.Node
	Bindings map[string]*box
}

// makeQuoted is the fixed helper internal/ilvm calls (via HelperTable) to
// build a QuotedExpression at the site a Quote node is evaluated. rest is
// a flattened (name string, cell *box) pair list, one pair per free
// variable the quote references; reflect.Value.Call's variadic handling
// lets the Lambda Compiler pass however many pairs a given quote needs
// without a fixed-arity helper per arity.
func makeQuoted(body *exprtree.Node, rest ...interface{}) *QuotedExpression {
	q := &QuotedExpression{Node: body, Bindings: map[string]*box{}}

	for i := 0; i+1 < len(rest); i += 2 {
		name, _ := rest[i].(string)
		cell, _ := rest[i+1].(*box)
		q.Bindings[name] = cell
	}

	return q
}

// RuntimeVariables is the indexable handle a RuntimeVariables node
// produces: positional get/set access to a fixed list of the enclosing
// lambda's variables, each backed by its shared *box cell so a write here
// is visible to the lambda and vice versa (spec.md §4.7).
type RuntimeVariables struct {
	cells []*box
}

func makeRuntimeVariables(cells ...*box) *RuntimeVariables {
	return &RuntimeVariables{cells: cells}
}

// Count reports how many variables this handle indexes.
func (r *RuntimeVariables) Count() int { return len(r.cells) }

// Get returns the current value of the variable at index i.
func (r *RuntimeVariables) Get(i int) interface{} { return boxedGet(r.cells[i]) }

// Set assigns the variable at index i, visible to every other holder of
// its shared cell (the owning lambda, any other capturing closure, or a
// Quote binding referencing the same variable).
func (r *RuntimeVariables) Set(i int, v interface{}) { boxedSet(r.cells[i], v) }

// MergeRuntimeVariables combines several handles (typically one per
// lambda frame along a call chain) into a single indexable view, the
// composition spec.md §4.7 describes for merging an inner lambda's
// runtime variables with its caller's.
func MergeRuntimeVariables(handles ...*RuntimeVariables) *RuntimeVariables {
	merged := &RuntimeVariables{}
	for _, h := range handles {
		merged.cells = append(merged.cells, h.cells...)
	}

	return merged
}
