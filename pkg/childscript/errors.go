package childscript

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/childentry"
	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of child script failure.  The numeric value is
// the exit code the child reports.
type ErrorCode int8

const (
	// ErrWrongHex is returned when the inner witness argument is not hex.
	ErrWrongHex ErrorCode = 120

	// ErrWrongEntry is returned when the child is started without a valid
	// entry.
	ErrWrongEntry = ErrorCode(childentry.ExitWrongEntry)

	// ErrChildFailure is returned when the child's own check fails with an
	// error that carries no exit code.
	ErrChildFailure ErrorCode = 122
)

var errorCodeStrings = map[ErrorCode]string{
	ErrWrongHex:     "ErrWrongHex",
	ErrWrongEntry:   "ErrWrongEntry",
	ErrChildFailure: "ErrChildFailure",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a child script failure.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// ExitCode returns the exit code a script failing with e reports.
func (e Error) ExitCode() int8 {
	return int8(e.ErrorCode)
}

// childError creates an Error given a set of arguments.
func childError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a child script
// error with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var cerr Error
	return errors.As(err, &cerr) && cerr.ErrorCode == c
}
