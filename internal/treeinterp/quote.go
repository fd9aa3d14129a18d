package treeinterp

import "github.com/lambdatree/lct/internal/exprtree"

// QuotedExpression and RuntimeVariables are treeinterp's own reification
// types, intentionally not shared with internal/compiler/quote.go's
// identically-shaped QuotedExpression/RuntimeVariables: the two packages
// realize the quote/runtime-variables facility independently (see
// treeinterp.go's package doc), so a test comparing a compiled and an
// interpreted Quote result compares two separately-built values, not one
// value against itself.
type QuotedExpression struct {
	Node     *exprtree.Node
	Bindings map[string]*cell
}

type RuntimeVariables struct {
	cells []*cell
}

func (r *RuntimeVariables) Count() int             { return len(r.cells) }
func (r *RuntimeVariables) Get(i int) interface{}  { return r.cells[i].value }
func (r *RuntimeVariables) Set(i int, v interface{}) { r.cells[i].value = v }

func reifyQuote(n *exprtree.Node, env *environment) *QuotedExpression {
	q := &QuotedExpression{Node: n.Quote.Body, Bindings: map[string]*cell{}}

	for _, v := range freeVariablesOf(n.Quote.Body) {
		q.Bindings[v.Name] = env.lookup(v)
	}

	return q
}

func reifyRuntimeVariables(n *exprtree.Node, env *environment) *RuntimeVariables {
	rv := &RuntimeVariables{cells: make([]*cell, len(n.RuntimeVariables.Variables))}
	for i, v := range n.RuntimeVariables.Variables {
		rv.cells[i] = env.lookup(v)
	}

	return rv
}

// freeVariablesOf collects every distinct Variable referenced under n,
// the same set internal/compiler/emit.go's identically-named helper
// computes for the compiled path (duplicated rather than imported, for
// the same independence reason as arith.go).
func freeVariablesOf(n *exprtree.Node) []*exprtree.Variable {
	seen := map[*exprtree.Variable]bool{}
	var vars []*exprtree.Variable

	exprtree.Walk(n, func(c *exprtree.Node) bool {
		if c.Kind == exprtree.KindVariable && !seen[c.Variable.Var] {
			seen[c.Variable.Var] = true
			vars = append(vars, c.Variable.Var)
		}

		return true
	})

	return vars
}
