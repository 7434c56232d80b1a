package judge

import (
	"errors"
	"fmt"
	"tle_zone_judge/internal/common"
)

// ErrorKind is the closed set of ways a judging request can fail.
type ErrorKind int

const (
	// KindInput: missing or unresolvable code, language or problem id. Raised before any engine call.
	KindInput ErrorKind = iota + 1
	// KindNotFound: the problem does not exist.
	KindNotFound
	// KindDispatch: the engine call failed or rejected the batch.
	KindDispatch
	// KindPollTimeout: bounded wait exceeded before every token finalized.
	KindPollTimeout
	// KindEngineResult: malformed or missing results from the engine.
	KindEngineResult
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "InputError"
	case KindNotFound:
		return "NotFoundError"
	case KindDispatch:
		return "DispatchError"
	case KindPollTimeout:
		return "PollTimeoutError"
	case KindEngineResult:
		return "EngineResultError"
	case 0:
		return "Unclassified"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Retryable reports whether resubmitting the same request may succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindDispatch || k == KindPollTimeout
}

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets the HTTP layer map kinds through the common sentinels.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindInput:
		return target == common.ErrBadRequest
	case KindNotFound:
		return target == common.ErrNotFound
	case KindDispatch, KindEngineResult:
		return target == common.ErrBadGateway
	case KindPollTimeout:
		return target == common.ErrGatewayTimeout
	}
	return false
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func inputErrorf(op, format string, args ...interface{}) *Error {
	return newError(KindInput, op, fmt.Errorf(format, args...))
}

// KindOf extracts the kind from err, or 0 when err is not a judging error.
func KindOf(err error) ErrorKind {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// InputError wraps a validation failure raised outside this package.
func InputError(op string, err error) error {
	return newError(KindInput, op, err)
}

// NotFoundError wraps a missing-problem failure raised outside this package.
func NotFoundError(op string, err error) error {
	return newError(KindNotFound, op, err)
}
