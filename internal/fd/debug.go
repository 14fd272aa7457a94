package fd

import "fmt"

// Debug gates the debug-only precondition checks in this package — diagonal
// dominance ahead of a tridiagonal solve, mostly. These guard a caller
// contract, not anything reachable from validated user input, so they are
// left on for tests and local development and off by default elsewhere.
var Debug = true

func debugAssertf(cond bool, format string, args ...any) {
	if !Debug || cond {
		return
	}
	panic(fmt.Sprintf(format, args...))
}
