//go:build windows

package compiler

// minStackBytes mirrors guard_unix.go's threshold for documentation
// parity; unused here since stackRlimitTooSmall always reports false on
// this platform (see below).
const minStackBytes = 8 << 20 // 8 MiB

// stackRlimitTooSmall always reports false on Windows: there is no
// per-process stack rlimit the way POSIX's RLIMIT_STACK works, and a Go
// goroutine's stack grows independently of the host thread's reserved
// stack size, so compileOnGuardedStack's goroutine fallback would buy
// nothing here. Kept as a stub for build-tag symmetry with
// guard_unix.go rather than scattering a platform switch through
// compiler.go.
func stackRlimitTooSmall() bool { return false }
