// Package errs classifies failures raised by the DPS pipeline so callers can
// decide between correcting input, fixing configuration or retrying.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput         = errors.New("input error")
	ErrSerialization = errors.New("serialization error")
	ErrValidation    = errors.New("validation error")
	ErrCrypto        = errors.New("cryptographic error")
	ErrSizeLimit     = errors.New("size limit exceeded")
	ErrConfig        = errors.New("configuration error")
)

// Error carries the class of a failure plus the context needed to log it or
// correct the offending field.
type Error struct {
	Class    error
	Op       string
	Field    string
	Expected string
	Actual   string
	Offset   int
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Class != nil {
		b.WriteString(e.Class.Error())
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, ": expected %s, got %q", e.Expected, e.Actual)
	}
	if e.Offset > 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the class of e.
func (e *Error) Is(target error) bool {
	return e.Class != nil && target == e.Class
}

// Input builds an input-class error for a field.
func Input(op, field, expected, actual string) *Error {
	return &Error{Class: ErrInput, Op: op, Field: field, Expected: expected, Actual: actual}
}

// Wrap attaches a class and operation to err.
func Wrap(class error, op string, err error) *Error {
	return &Error{Class: class, Op: op, Err: err}
}

// ClassOf returns the class sentinel of err, or nil when err is unclassified.
func ClassOf(err error) error {
	for _, class := range []error{ErrInput, ErrSerialization, ErrValidation, ErrCrypto, ErrSizeLimit, ErrConfig} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}
