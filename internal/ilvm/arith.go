package ilvm

import (
	"math"
	"reflect"

	"github.com/lambdatree/lct/internal/exception"
	"github.com/lambdatree/lct/internal/ilasm"
)

// evalBinOp and evalUnOp work over the small set of dynamic types the
// bound-constants pool and helper calls actually produce (ints, floats,
// strings, bools, and — for a lifted/nullable operand — a pointer to one
// of those); a type mismatch comes from a malformed tree, which
// internal/compiler does not type-check, and these panic rather than
// return an error.
func evalBinOp(op ilasm.BinOp, checked bool, lhs, rhs interface{}) interface{} {
	if isNullable(lhs) || isNullable(rhs) {
		return liftedBinOp(op, checked, lhs, rhs)
	}

	switch op {
	case ilasm.BinAdd:
		return numOp(lhs, rhs, checkedIntOp("add", checked, addOverflows, func(a, b int64) int64 { return a + b }), func(a, b float64) float64 { return a + b }, addMaybeString)
	case ilasm.BinSub:
		return numOp(lhs, rhs, checkedIntOp("sub", checked, subOverflows, func(a, b int64) int64 { return a - b }), func(a, b float64) float64 { return a - b }, nil)
	case ilasm.BinMul:
		return numOp(lhs, rhs, checkedIntOp("mul", checked, mulOverflows, func(a, b int64) int64 { return a * b }), func(a, b float64) float64 { return a * b }, nil)
	case ilasm.BinDiv:
		return numOp(lhs, rhs, func(a, b int64) int64 { return a / b }, func(a, b float64) float64 { return a / b }, nil)
	case ilasm.BinMod:
		return numOp(lhs, rhs, func(a, b int64) int64 { return a % b }, nil, nil)
	case ilasm.BinEq:
		return lhs == rhs
	case ilasm.BinNe:
		return lhs != rhs
	case ilasm.BinLt:
		return cmp(lhs, rhs) < 0
	case ilasm.BinLe:
		return cmp(lhs, rhs) <= 0
	case ilasm.BinGt:
		return cmp(lhs, rhs) > 0
	case ilasm.BinGe:
		return cmp(lhs, rhs) >= 0
	case ilasm.BinAnd:
		return lhs.(bool) && rhs.(bool)
	case ilasm.BinOr:
		return lhs.(bool) || rhs.(bool)
	default:
		panic("ilvm: unhandled binary op")
	}
}

func evalUnOp(op ilasm.UnOp, v interface{}) interface{} {
	switch op {
	case ilasm.UnNeg:
		switch n := v.(type) {
		case int64:
			return -n
		case int:
			return -n
		case float64:
			return -n
		default:
			panic("ilvm: neg on non-numeric value")
		}
	case ilasm.UnNot:
		return !v.(bool)
	default:
		panic("ilvm: unhandled unary op")
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
				panic("ilvm: integer operand unsupported for this operator")
			}

			return iop(li, ri)
		}
	}

	lf, lok := asFloat64(lhs)
	rf, rok := asFloat64(rhs)

	if lok && rok && fop != nil {
		return fop(lf, rf)
	}

	panic("ilvm: unsupported operand types for arithmetic op")
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

// checkedIntOp wraps an unchecked int64 operator with spec.md §4.4's
// checked-overflow behavior: when checked is true and overflow reports the
// operands would overflow, it raises an ExceptionOverflow instead of
// letting Go's own int64 arithmetic silently wrap.
func checkedIntOp(name string, checked bool, overflow func(a, b int64) bool, raw func(a, b int64) int64) func(a, b int64) int64 {
	return func(a, b int64) int64 {
		if checked && overflow(a, b) {
			exception.RaiseOverflow(name)
		}

		return raw(a, b)
	}
}

func addOverflows(a, b int64) bool {
	if b > 0 && a > math.MaxInt64-b {
		return true
	}

	if b < 0 && a < math.MinInt64-b {
		return true
	}

	return false
}

func subOverflows(a, b int64) bool {
	if b < 0 && a > math.MaxInt64+b {
		return true
	}

	if b > 0 && a < math.MinInt64+b {
		return true
	}

	return false
}

func mulOverflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}

	result := a * b

	return result/b != a
}

// isNullable reports whether v is the lifted-arithmetic representation of
// a nullable operand (spec.md §4.4): a (possibly nil) pointer to its
// underlying value, as opposed to a plain int64/float64/string/bool.
func isNullable(v interface{}) bool {
	if v == nil {
		return false
	}

	return reflect.TypeOf(v).Kind() == reflect.Ptr
}

// liftedBinOp implements nullable arithmetic: both operands are tested for
// presence, the operation only runs if both are present, and the result is
// re-wrapped into a pointer of the same underlying type. Comparisons follow
// the reference's collapse-to-bool convention: both nil compare Eq, a lone
// nil makes every other comparison false (Ne treats a lone nil as true).
func liftedBinOp(op ilasm.BinOp, checked bool, lhs, rhs interface{}) interface{} {
	lv, lNil, lElem := unwrapNullable(lhs)
	rv, rNil, rElem := unwrapNullable(rhs)

	elemType := lElem
	if elemType == nil {
		elemType = rElem
	}

	if lNil || rNil {
		switch op {
		case ilasm.BinEq:
			return lNil && rNil
		case ilasm.BinNe:
			return !(lNil && rNil)
		case ilasm.BinLt, ilasm.BinLe, ilasm.BinGt, ilasm.BinGe:
			return false
		default:
			return reflect.Zero(reflect.PtrTo(elemType)).Interface()
		}
	}

	result := evalBinOp(op, checked, lv, rv)

	if _, ok := result.(bool); ok {
		return result
	}

	out := reflect.New(elemType)
	out.Elem().Set(reflect.ValueOf(result).Convert(elemType))

	return out.Interface()
}

// unwrapNullable splits a lifted operand into its underlying value (when
// present), whether it was nil, and the pointee type (nil when v isn't a
// nullable operand at all, i.e. lifting only one side of a mixed T/*T op).
func unwrapNullable(v interface{}) (value interface{}, isNil bool, elemType reflect.Type) {
	if v == nil {
		return nil, true, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return v, false, nil
	}

	if rv.IsNil() {
		return nil, true, rv.Type().Elem()
	}

	return rv.Elem().Interface(), false, rv.Type().Elem()
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
