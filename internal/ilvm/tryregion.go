package ilvm

import (
	"reflect"

	"github.com/lambdatree/lct/internal/exception"
	"github.com/lambdatree/lct/internal/ilasm"
)

// execTry runs one structured exception region (spec.md §4.4): the body,
// then on a matching exception the first Catch whose type (and, if
// present, Filter) matches, then Finally (always) or Fault (only when the
// body/handlers raised), before resuming at the region's End. It mirrors
// CIL's leave/endfinally protocol using Go's own panic/recover rather
// than reimplementing unwinding: a Throw inside bodyOrHandler raises a Go
// panic carrying *exception.Exception, which this function's own
// recover() intercepts before it can escape the region.
func (m *Machine) execTry(fr *frame, regionIndex, tryStart, outerEnd int) (ret interface{}) {
	region := fr.program.TryTable[regionIndex]

	caught, retVal, ranFinally := m.runTryBody(fr, region)

	if !ranFinally {
		for _, h := range region.Handlers {
			if h.Kind == ilasm.HandlerFinally {
				m.execRange(fr, h.HandlerStart, h.HandlerEnd)

				break
			}
		}
	}

	if caught != nil {
		// Nothing handled it: propagate past this region, having still run
		// Finally/Fault above.
		exception.AsGoPanic(caught)
	}

	if retVal.hasValue {
		return retVal.value
	}

	return m.execRange(fr, region.End, outerEnd)
}

type optionalValue struct {
	value    interface{}
	hasValue bool
}

// runTryBody executes the protected body, and on a matching exception
// executes the first applicable Catch handler. It returns:
//   - caught: non-nil if no handler matched (or the body/handler raised
//     something unhandled) and the exception must keep propagating
//   - retVal: a Ret value produced inside the body or a handler, if any;
//     a range that ends without a Ret (or whose Ret yields nil) reports
//     none, and execTry then resumes at region.End
//   - ranFault: true if a Fault handler already ran (so the caller must
//     not additionally look for Finally — a region has Finally xor Fault,
//     never both, per spec.md §4.4)
func (m *Machine) runTryBody(fr *frame, region ilasm.TryRegion) (caught *exception.Exception, retVal optionalValue, ranFault bool) {
	var bodyPanic *exception.Exception

	func() {
		defer func() {
			if r := recover(); r != nil {
				bodyPanic = exception.RecoverException(r)
			}
		}()

		v := m.execRange(fr, region.TryStart, region.TryEnd)
		retVal = optionalValue{value: v, hasValue: v != nil}
	}()

	if bodyPanic == nil {
		return nil, retVal, false
	}

	retVal = optionalValue{}

	for _, h := range region.Handlers {
		if h.Kind != ilasm.HandlerCatch {
			continue
		}

		if !matchesHandlerType(bodyPanic, h) {
			continue
		}

		if h.LocalIndex >= 0 {
			fr.locals[h.LocalIndex] = bodyPanic.Payload
		}

		if h.FilterStart >= 0 {
			passed := func() (ok bool) {
				defer func() {
					if recover() != nil {
						ok = false
					}
				}()

				// The filter range ends without a Ret, leaving its bool on
				// the value stack.
				m.execRange(fr, h.FilterStart, h.FilterEnd)

				return truthy(fr.pop())
			}()

			if !passed {
				continue
			}
		}

		var handlerPanic *exception.Exception

		func() {
			defer func() {
				if r := recover(); r != nil {
					handlerPanic = exception.RecoverException(r)
				}
			}()

			v := m.execRange(fr, h.HandlerStart, h.HandlerEnd)
			retVal = optionalValue{value: v, hasValue: v != nil}
		}()

		return handlerPanic, retVal, false
	}

	// No Catch matched: run Fault (only fires on an unhandled exception),
	// then keep propagating.
	for _, h := range region.Handlers {
		if h.Kind == ilasm.HandlerFault {
			m.execRange(fr, h.HandlerStart, h.HandlerEnd)
			ranFault = true

			break
		}
	}

	return bodyPanic, optionalValue{}, ranFault
}

// matchesHandlerType unwraps h.ExceptionType (stored as interface{} to
// keep internal/ilasm free of a reflect/exprtree import) back to a
// reflect.Type and delegates to Exception.MatchesCatchType.
func matchesHandlerType(e *exception.Exception, h ilasm.HandlerRegion) bool {
	if h.ExceptionType == nil {
		return e.MatchesCatchType(nil)
	}

	rt, _ := h.ExceptionType.(reflect.Type)

	return e.MatchesCatchType(rt)
}
