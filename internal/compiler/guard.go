package compiler

import "github.com/lambdatree/lct/internal/errors"

// compileResult carries compileLambda's two return values through the
// channel compileOnGuardedStack uses to hand off to a fresh goroutine.
type compileResult struct {
	idx int
	err *errors.StandardError
}

// compileOnGuardedStack runs fn on the calling goroutine when the
// process stack rlimit is comfortably large, or on a freshly spawned
// goroutine (itself starting from Go's small default stack but free to
// grow up to the runtime's maximum, independent of the host rlimit)
// when stackRlimitTooSmall reports the caller's own stack as the
// constrained one. A deeply nested (not merely long-chained — the
// Stack Spiller already flattens unchecked Add/Mul chains) tree otherwise
// risks exhausting an unusually small inherited stack during constant
// allocation or emission, both of which recurse per nesting level.
// bindVariables runs before this guard, on the caller's own goroutine.
func compileOnGuardedStack(fn func() compileResult) compileResult {
	if !stackRlimitTooSmall() {
		return fn()
	}

	done := make(chan compileResult, 1)

	go func() { done <- fn() }()

	return <-done
}
