package common

import "fmt"

// Assert checks a condition and panics if it is false.
//
// Assertions guard invariants: truths about the engine's internal state that
// must always hold. If internal logic is broken (a lock count gone negative,
// a slot index out of range), continuing execution risks persisting corrupt
// data, so we crash with a stack trace instead. Conditions that can
// reasonably occur at runtime (a full page, a deadlock, a missing table)
// return errors, never assert.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
