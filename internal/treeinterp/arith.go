package treeinterp

import "github.com/lambdatree/lct/internal/exprtree"

// evalBinary/evalUnary duplicate internal/ilvm/arith.go's dynamic-typing
// rules deliberately rather than sharing the file: the two packages are
// independent realizations of the same tree semantics by design (see
// treeinterp.go's package doc), so a bug in one's arithmetic is not
// masked by the other silently sharing the same buggy helper.
func evalBinary(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	lv, c := eval(n.Binary.Left, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	rv, c := eval(n.Binary.Right, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	return evalBinOp(n.Binary.Op, lv, rv), ctrl{}
}

func evalUnary(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	if isIncrementDecrement(n.Unary.Op) {
		return evalIncrementDecrement(n, env)
	}

	v, c := eval(n.Unary.Operand, env)
	if c.kind != ctrlNone {
		return nil, c
	}

	return evalUnOp(n.Unary.Op, v), ctrl{}
}

func isIncrementDecrement(op exprtree.UnaryOp) bool {
	switch op {
	case exprtree.OpPreIncrement, exprtree.OpPreDecrement, exprtree.OpPostIncrement, exprtree.OpPostDecrement:
		return true
	default:
		return false
	}
}

func evalIncrementDecrement(n *exprtree.Node, env *environment) (interface{}, ctrl) {
	target := n.Unary.Operand
	if target.Kind != exprtree.KindVariable {
		panic("treeinterp: increment/decrement target must be a variable")
	}

	c := env.lookup(target.Variable.Var)
	old := c.value

	delta := int64(1)
	if n.Unary.Op == exprtree.OpPreDecrement || n.Unary.Op == exprtree.OpPostDecrement {
		delta = -1
	}

	updated := evalBinOp(exprtree.OpAdd, old, delta)
	c.value = updated

	if n.Unary.Op == exprtree.OpPreIncrement || n.Unary.Op == exprtree.OpPreDecrement {
		return updated, ctrl{}
	}

	return old, ctrl{}
}

func evalBinOp(op exprtree.BinaryOp, lhs, rhs interface{}) interface{} {
	switch op {
	case exprtree.OpAdd:
		return numOp(lhs, rhs, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b }, addMaybeString)
	case exprtree.OpSub:
		return numOp(lhs, rhs, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b }, nil)
	case exprtree.OpMul:
		return numOp(lhs, rhs, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b }, nil)
	case exprtree.OpDiv:
		return numOp(lhs, rhs, func(a, b int64) int64 { return a / b }, func(a, b float64) float64 { return a / b }, nil)
	case exprtree.OpMod:
		return numOp(lhs, rhs, func(a, b int64) int64 { return a % b }, nil, nil)
	case exprtree.OpEqual:
		return lhs == rhs
	case exprtree.OpNotEqual:
		return lhs != rhs
	case exprtree.OpLessThan:
		return cmp(lhs, rhs) < 0
	case exprtree.OpLessOrEqual:
		return cmp(lhs, rhs) <= 0
	case exprtree.OpGreaterThan:
		return cmp(lhs, rhs) > 0
	case exprtree.OpGreaterOrEqual:
		return cmp(lhs, rhs) >= 0
	case exprtree.OpAnd:
		return lhs.(bool) && rhs.(bool)
	case exprtree.OpOr:
		return lhs.(bool) || rhs.(bool)
	default:
		panic("treeinterp: unhandled binary op")
	}
}

func evalUnOp(op exprtree.UnaryOp, v interface{}) interface{} {
	switch op {
	case exprtree.OpNegate:
		switch n := v.(type) {
		case int64:
			return -n
		case int:
			return -n
		case float64:
			return -n
		default:
			panic("treeinterp: negate on non-numeric value")
		}
	case exprtree.OpNot:
		return !v.(bool)
	default:
		panic("treeinterp: unhandled unary op")
	}
}

func addMaybeString(a, b interface{}) (interface{}, bool) {
	as, aok := a.(string)
	bs, bok := b.(string)

	if aok && bok {
		return as + bs, true
	}

	return nil, false
}

func numOp(lhs, rhs interface{}, iop func(a, b int64) int64, fop func(a, b float64) float64, sop func(a, b interface{}) (interface{}, bool)) interface{} {
	if sop != nil {
		if r, ok := sop(lhs, rhs); ok {
			return r
		}
	}

	if li, lok := asInt64(lhs); lok {
		if ri, rok := asInt64(rhs); rok {
			if iop == nil {
				panic("treeinterp: integer operand unsupported for this operator")
			}

			return iop(li, ri)
		}
	}

	lf, lok := asFloat64(lhs)
	rf, rok := asFloat64(rhs)

	if lok && rok && fop != nil {
		return fop(lf, rf)
	}

	panic("treeinterp: unsupported operand types for arithmetic op")
}

func cmp(lhs, rhs interface{}) int {
	if li, lok := asInt64(lhs); lok {
		if ri, rok := asInt64(rhs); rok {
			switch {
			case li < ri:
				return -1
			case li > ri:
				return 1
			default:
				return 0
			}
		}
	}

	lf, _ := asFloat64(lhs)
	rf, _ := asFloat64(rhs)

	switch {
	case lf < rf:
		return -1
	case lf > rf:
		return 1
	default:
		return 0
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
