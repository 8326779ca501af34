package dberr

import "fmt"

// Error wraps a Code with the operation that raised it and, optionally,
// the underlying OS/runtime cause. Equality checks should use Is/Code,
// not string comparison, mirroring the teacher's ErrorCode/TxError pair
// (consensus/errors.go) generalized across every layer of the engine.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func New(code Code, op string) *Error {
	return &Error{Code: code, Op: op}
}

// Wrap returns nil if err is nil, so callers can write
// `return dberr.Wrap(code, op, someCall())` without introducing a
// non-nil *Error wrapping a nil cause.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether err carries the given code, looking through any
// wrapped *Error chain.
func Is(err error, code Code) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			if de.Code == code {
				return true
			}
			err = de.Err
			continue
		}
		break
	}
	return false
}

// CodeOf extracts the Code from err, if any, and whether one was found.
func CodeOf(err error) (Code, bool) {
	if de, ok := err.(*Error); ok {
		return de.Code, true
	}
	return "", false
}
