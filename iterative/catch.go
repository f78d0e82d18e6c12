package iterative

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// shouldCatch reports whether a value recovered while rewriting should fail
// the compilation instead of the process, and returns it as an error. Rules
// and the memo report broken invariants by panicking with assertion failures;
// since rewriting never touches shared state, the compilation can fail
// cleanly. Panics that are not errors are not caught.
func shouldCatch(r any) (bool, error) {
	err, ok := r.(error)
	if !ok {
		return false, nil
	}
	if errors.HasInterface(err, (*runtime.Error)(nil)) {
		return true, errors.HandleAsAssertionFailure(err)
	}
	return true, err
}
