package common

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type ErrorCode int

const (
	// InternalError classifies failures that do not carry a code, most notably
	// assertion failures raised when a rule breaks its own preconditions.
	InternalError ErrorCode = iota
	// DuplicateObjectError indicates an attempt to register a table or connector
	// that already exists.
	DuplicateObjectError
	// NoSuchObjectError indicates a request for a table, catalog or connector
	// that does not exist.
	NoSuchObjectError
	// NegotiationFailedError is returned when a connector cannot answer a
	// capability request, e.g. because its metadata service is unreachable.
	// Unlike an absent capability this aborts the compilation.
	NegotiationFailedError
	// OptimizerLimitExceededError indicates that the rule set did not reach a
	// fixpoint within the configured number of passes.
	OptimizerLimitExceededError
	// CancelledError indicates the compilation was cancelled or timed out while
	// the optimizer was running.
	CancelledError
	// InvalidPlanError indicates a malformed plan description handed to the
	// optimizer or the plan builder.
	InvalidPlanError
)

func (ec ErrorCode) String() string {
	switch ec {
	case InternalError:
		return "InternalError"
	case DuplicateObjectError:
		return "DuplicateObjectError"
	case NoSuchObjectError:
		return "NoSuchObjectError"
	case NegotiationFailedError:
		return "NegotiationFailedError"
	case OptimizerLimitExceededError:
		return "OptimizerLimitExceededError"
	case CancelledError:
		return "CancelledError"
	case InvalidPlanError:
		return "InvalidPlanError"
	}
	return "unknown"
}

// Error is the coded error type of the planner. The code is the stable
// classification surfaced to users when a compilation fails; the message is
// for humans.
type Error struct {
	Code      ErrorCode
	ErrString string
}

func (e Error) Error() string {
	return fmt.Sprintf("err: %s; msg: %s", e.Code.String(), e.ErrString)
}

// NewError builds a coded error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) error {
	return Error{Code: code, ErrString: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to an underlying cause. The cause stays reachable
// through errors.Is / errors.As.
func WrapError(cause error, code ErrorCode, format string, args ...any) error {
	return &codedError{
		coded: Error{Code: code, ErrString: fmt.Sprintf(format, args...)},
		cause: cause,
	}
}

type codedError struct {
	coded Error
	cause error
}

func (e *codedError) Error() string {
	return fmt.Sprintf("%s: %v", e.coded.Error(), e.cause)
}

func (e *codedError) Unwrap() error {
	return e.cause
}

// Classify returns the code of the outermost coded error in the chain. Errors
// without a code classify as InternalError.
func Classify(err error) ErrorCode {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		switch t := e.(type) {
		case Error:
			return t.Code
		case *Error:
			return t.Code
		case *codedError:
			return t.coded.Code
		}
	}
	return InternalError
}

// HasCode reports whether err classifies as code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && Classify(err) == code
}
