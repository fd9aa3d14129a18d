package compiler

import "github.com/lambdatree/lct/internal/exprtree"

// spillThreshold is the chain length beyond which the Stack Spiller
// flattens a run of unchecked OpAdd (or OpMul) Binary nodes into an
// iterative Block,
// so that every later recursive pass (binder, lambda compiler, bytecode
// emission, internal/treeinterp's evaluator) only recurses to a depth
// bounded by the tree's genuine nesting, not by how many terms a single
// associative expression happens to chain together. Grounded on
// internal/codegen/regalloc's single forward pass over abstract machine
// state (there: register pressure; here: recursion depth) — rewritten
// in place rather than allocated.
const spillThreshold = 64

// spill returns a tree equivalent to root in which every unchecked OpAdd
// or OpMul chain longer than spillThreshold has been rewritten as a Block
// that accumulates the result with an explicit local, trading tree depth
// for a flat statement list (spec.md §4.1's 10,000-deep right-leaning
// addition-tree scenario is exactly this shape).
func spill(root *exprtree.Node) *exprtree.Node {
	return spillNode(root)
}

func spillNode(n *exprtree.Node) *exprtree.Node {
	if n == nil {
		return nil
	}

	if n.Kind == exprtree.KindBinary {
		if operands, ok := collectChain(n); ok {
			return buildFoldBlock(n.Binary.Op, operands)
		}
	}

	rewriteChildren(n)

	return n
}

// collectChain walks n.Binary.Right iteratively (not recursively, so the
// walk itself never deepens the Go call stack regardless of chain length)
// gathering every left-hand operand of a run of Binary nodes sharing n's
// operator. Only unchecked OpAdd and OpMul chains qualify: a left fold
// would change the value of a Sub/Div/comparison chain, and folding a
// Checked node would drop its overflow check. ok is true only when the
// chain qualifies and is long enough to be worth flattening.
func collectChain(n *exprtree.Node) (operands []*exprtree.Node, ok bool) {
	op := n.Binary.Op
	if (op != exprtree.OpAdd && op != exprtree.OpMul) || n.Binary.Checked {
		return nil, false
	}

	cur := n

	for {
		if cur.Kind == exprtree.KindBinary && cur.Binary.Op == op && !cur.Binary.Checked {
			operands = append(operands, cur.Binary.Left)
			cur = cur.Binary.Right

			continue
		}

		operands = append(operands, cur)

		break
	}

	return operands, len(operands) > spillThreshold
}

// buildFoldBlock rewrites a flattened operand chain as a left fold over
// an explicit accumulator local: semantically left-associative evaluation
// of the same operator, which for the addition/multiplication chains this
// spiller targets matches the original right-leaning tree's value exactly
// for the integer scenario in spec.md §8 (for float operands the left fold
// can round differently from the original right-leaning tree).
func buildFoldBlock(op exprtree.BinaryOp, operands []*exprtree.Node) *exprtree.Node {
	for i, o := range operands {
		operands[i] = spillNode(o)
	}

	acc := exprtree.NewVariable("$spill_acc", nil, false)

	body := make([]*exprtree.Node, 0, len(operands)+1)
	body = append(body, exprtree.Assign(exprtree.VariableRef(acc), operands[0]))

	for _, o := range operands[1:] {
		body = append(body, exprtree.Assign(exprtree.VariableRef(acc), exprtree.Binary(op, exprtree.VariableRef(acc), o)))
	}

	body = append(body, exprtree.VariableRef(acc))

	return exprtree.Block([]*exprtree.Variable{acc}, body...)
}

// rewriteChildren replaces each of n's child pointers with spillNode
// applied to it, mutating n in place.
func rewriteChildren(n *exprtree.Node) {
	switch n.Kind {
	case exprtree.KindAssign:
		n.Assign.Target = spillNode(n.Assign.Target)
		n.Assign.Value = spillNode(n.Assign.Value)
	case exprtree.KindBlock:
		for i, c := range n.Block.Body {
			n.Block.Body[i] = spillNode(c)
		}
	case exprtree.KindLambda:
		n.Lambda.Body = spillNode(n.Lambda.Body)
	case exprtree.KindInvoke:
		n.Invoke.Target = spillNode(n.Invoke.Target)
		for i, a := range n.Invoke.Arguments {
			n.Invoke.Arguments[i] = spillNode(a)
		}
	case exprtree.KindCall:
		for i, a := range n.Call.Arguments {
			n.Call.Arguments[i] = spillNode(a)
		}
	case exprtree.KindNew:
		for i, a := range n.New.Arguments {
			n.New.Arguments[i] = spillNode(a)
		}
	case exprtree.KindBinary:
		n.Binary.Left = spillNode(n.Binary.Left)
		n.Binary.Right = spillNode(n.Binary.Right)
	case exprtree.KindUnary:
		n.Unary.Operand = spillNode(n.Unary.Operand)
	case exprtree.KindConditional:
		n.Conditional.Test = spillNode(n.Conditional.Test)
		n.Conditional.IfTrue = spillNode(n.Conditional.IfTrue)

		if n.Conditional.IfFalse != nil {
			n.Conditional.IfFalse = spillNode(n.Conditional.IfFalse)
		}
	case exprtree.KindLoop:
		n.Loop.Body = spillNode(n.Loop.Body)
	case exprtree.KindGoto:
		if n.Goto.Value != nil {
			n.Goto.Value = spillNode(n.Goto.Value)
		}
	case exprtree.KindTry:
		n.Try.Body = spillNode(n.Try.Body)

		for _, c := range n.Try.Catches {
			if c.Filter != nil {
				c.Filter = spillNode(c.Filter)
			}

			c.Body = spillNode(c.Body)
		}

		if n.Try.Finally != nil {
			n.Try.Finally = spillNode(n.Try.Finally)
		}

		if n.Try.Fault != nil {
			n.Try.Fault = spillNode(n.Try.Fault)
		}
	case exprtree.KindSwitch:
		n.Switch.Value = spillNode(n.Switch.Value)

		for _, c := range n.Switch.Cases {
			for i, t := range c.Tests {
				c.Tests[i] = spillNode(t)
			}

			c.Body = spillNode(c.Body)
		}

		if n.Switch.Default != nil {
			n.Switch.Default = spillNode(n.Switch.Default)
		}
	case exprtree.KindQuote:
		// A quoted body is data, not code to flatten for our own recursive
		// passes' sake: rewriting it would change what gets reified. Leave
		// it untouched, matching spec.md §4.6.
	}
}
