package exprtree

// Children returns n's immediate child nodes in evaluation order. The
// binder and the free-variable scans walk the tree through this single
// function rather than re-deriving the per-kind child list; the Stack
// Spiller's rewriteChildren keeps its own per-kind switch because it
// replaces child pointers in place, so adding a node kind means updating
// Children, rewriteChildren, and the matching switch in whichever pass
// needs kind-specific behavior.
func Children(n *Node) []*Node {
	if n == nil {
		return nil
	}

	switch n.Kind {
	case KindConstant, KindVariable, KindLabel, KindRuntimeVariables:
		return nil
	case KindAssign:
		return []*Node{n.Assign.Target, n.Assign.Value}
	case KindBlock:
		return n.Block.Body
	case KindLambda:
		return []*Node{n.Lambda.Body}
	case KindInvoke:
		out := make([]*Node, 0, 1+len(n.Invoke.Arguments))
		out = append(out, n.Invoke.Target)
		out = append(out, n.Invoke.Arguments...)

		return out
	case KindCall:
		return n.Call.Arguments
	case KindNew:
		return n.New.Arguments
	case KindBinary:
		return []*Node{n.Binary.Left, n.Binary.Right}
	case KindUnary:
		return []*Node{n.Unary.Operand}
	case KindConditional:
		out := []*Node{n.Conditional.Test, n.Conditional.IfTrue}
		if n.Conditional.IfFalse != nil {
			out = append(out, n.Conditional.IfFalse)
		}

		return out
	case KindLoop:
		return []*Node{n.Loop.Body}
	case KindGoto:
		if n.Goto.Value != nil {
			return []*Node{n.Goto.Value}
		}

		return nil
	case KindTry:
		out := []*Node{n.Try.Body}
		for _, c := range n.Try.Catches {
			if c.Filter != nil {
				out = append(out, c.Filter)
			}

			out = append(out, c.Body)
		}

		if n.Try.Finally != nil {
			out = append(out, n.Try.Finally)
		}

		if n.Try.Fault != nil {
			out = append(out, n.Try.Fault)
		}

		return out
	case KindSwitch:
		out := []*Node{n.Switch.Value}
		for _, c := range n.Switch.Cases {
			out = append(out, c.Tests...)
			out = append(out, c.Body)
		}

		if n.Switch.Default != nil {
			out = append(out, n.Switch.Default)
		}

		return out
	case KindQuote:
		// A Quote's Body is reified, not evaluated in place: free-variable
		// scanning still descends into it (quoted free variables still need
		// aliasing cells, spec.md §4.6), but the spiller and binder treat it
		// as an opaque leaf for stack-depth purposes — callers that need that
		// distinction check n.Kind == KindQuote themselves rather than relying
		// on Children to hide it.
		return []*Node{n.Quote.Body}
	default:
		return nil
	}
}

// Walk visits n and every descendant in pre-order, calling visit on each.
// Descent stops beneath any node for which visit returns false.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}

	for _, c := range Children(n) {
		Walk(c, visit)
	}
}
