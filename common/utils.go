package common

import "github.com/cockroachdb/errors"

// Assert checks a condition and panics with an assertion failure if it is
// false.
//
// Assertions guard invariants of the planner's own data structures (a memo
// group that must exist, a block position that must be in range). They are
// not used for conditions a rule or connector can legitimately hit: "no match"
// and "no capability" are ordinary outcomes, and external failures are
// returned as errors. The optimizer recovers the panic at its boundary, so a
// broken invariant fails the compilation with an InternalError instead of
// crashing the process.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
