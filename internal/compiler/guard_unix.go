//go:build linux || darwin || freebsd

package compiler

import "golang.org/x/sys/unix"

// minStackBytes is the stack rlimit below which Compile refuses to trust
// the calling goroutine's stack for a deeply-nested tree walk (binder,
// emitter, and internal/treeinterp all recurse per nesting level; the
// Stack Spiller only bounds unchecked Add/Mul chain depth, not genuine
// nesting depth). Grounded on internal/runtime/asyncio's unix/windows
// build-tag split, repurposed from syscall plumbing to sizing this
// threshold.
const minStackBytes = 8 << 20 // 8 MiB

// stackRlimitTooSmall reports whether the process's current stack rlimit
// is below minStackBytes, in which case compileOnGuardedStack must run
// the walk on a freshly spawned goroutine instead of the caller's.
func stackRlimitTooSmall() bool {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_STACK, &rl); err != nil {
		return false
	}

	return rl.Cur != unix.RLIM_INFINITY && rl.Cur < minStackBytes
}
