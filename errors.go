package smoltable

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the faults smoltable can surface. The taxonomy:
// storage and codec faults wrap an
// underlying cause; invalid-argument and conflict faults are raised at the
// API boundary before the engine is ever touched; a miss on a table or
// column-family lookup is never an error at all — it is signaled by a
// plain boolean or nil return, exactly like Go's own map lookups.
type ErrorKind int

const (
	// KindStorage wraps an underlying LSM failure: I/O, corruption, or a
	// failed commit. It is propagated unchanged from the lsm package.
	KindStorage ErrorKind = iota
	// KindCodec indicates cell bytes that could not be parsed: a
	// non-UTF-8 key segment or a truncated value. Treated as corruption.
	KindCodec
	// KindInvalidArgument indicates a malformed column key or identifier
	// caught at parse/validation time, before it ever reaches the engine.
	KindInvalidArgument
	// KindConflict indicates an attempt to create a table or column
	// family that already exists.
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindCodec:
		return "codec"
	case KindInvalidArgument:
		return "invalid argument"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the error type every exported smoltable operation returns.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("smoltable: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func codecErrorf(format string, args ...interface{}) *Error {
	return newError(KindCodec, fmt.Errorf(format, args...))
}

func invalidArgErrorf(format string, args ...interface{}) *Error {
	return newError(KindInvalidArgument, fmt.Errorf(format, args...))
}

func conflictErrorf(format string, args ...interface{}) *Error {
	return newError(KindConflict, fmt.Errorf(format, args...))
}

// wrapStorage wraps a non-nil error from the lsm package as a KindStorage
// Error; it returns nil for a nil err so call sites can write
// `if err := wrapStorage(lsmCall()); err != nil { return err }`.
func wrapStorage(err error) *Error {
	if err == nil {
		return nil
	}
	return newError(KindStorage, err)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
