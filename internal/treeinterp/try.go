package treeinterp

import (
	"github.com/lambdatree/lct/internal/exception"
	"github.com/lambdatree/lct/internal/exprtree"
)

// evalTry runs n.Try.Body, dispatches a propagating exception to the
// first matching Catch (honoring an optional Filter), always runs
// Finally on the way out, and runs Fault only when an exception escaped
// uncaught. Mirrors internal/compiler/emit.go's emitTry/internal/ilvm's
// execTry control flow using Go's own panic/recover instead of a
// bytecode handler table, since this package has no instruction stream
// to build one over.
func evalTry(n *exprtree.Node, env *environment) (result interface{}, rc ctrl) {
	if n.Try.Finally != nil {
		defer func() {
			// Finally's own value is discarded (it runs for effect only,
			// matching emitTry's `s.program.Emit(ilasm.Pop{})` after it);
			// a Goto/exception raised from inside Finally itself is not
			// handled specially here and propagates through normally.
			eval(n.Try.Finally, env)
		}()
	}

	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			e := exception.RecoverException(r)

			for _, c := range n.Try.Catches {
				if !e.MatchesCatchType(c.ExceptionType) {
					continue
				}

				catchEnv := newEnvironment(env)
				if c.Variable != nil {
					catchEnv.declare(c.Variable, e.Payload)
				}

				if c.Filter != nil {
					fv, fc := eval(c.Filter, catchEnv)
					if fc.kind != ctrlNone {
						rc = fc
						return
					}

					if !truthy(fv) {
						continue
					}
				}

				result, rc = eval(c.Body, catchEnv)

				return
			}

			if n.Try.Fault != nil {
				eval(n.Try.Fault, env)
			}

			panic(r) // no Catch matched: re-raise for an outer Try or the top level
		}()

		result, rc = eval(n.Try.Body, env)
	}()

	return result, rc
}
