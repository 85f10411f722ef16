package auth

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of authentication failure.  The numeric value
// is the exit code a script failing with it reports.
type ErrorCode int8

const (
	// ErrNotImplemented is returned for an algorithm id that is known but
	// has no verifier.
	ErrNotImplemented ErrorCode = 100

	// ErrMismatched is returned when a signature does not verify or was
	// made by a key other than the one the pubkey hash commits to.
	ErrMismatched ErrorCode = 101

	// ErrInvalidArg is returned for malformed args, signatures, messages
	// or an unknown algorithm id or entry category.
	ErrInvalidArg ErrorCode = 102

	// ErrWrongState is returned when the verifier a dynamic linking
	// entry refers to does not expose in-process validation.
	ErrWrongState ErrorCode = 103

	// ErrSpawn is returned when the verifier a dynamic linking entry
	// refers to cannot be loaded.
	ErrSpawn ErrorCode = 104

	// ErrExec is returned when the verifier program is started with an
	// argv it cannot decode.
	ErrExec ErrorCode = 105
)

var errorCodeStrings = map[ErrorCode]string{
	ErrNotImplemented: "ErrNotImplemented",
	ErrMismatched:     "ErrMismatched",
	ErrInvalidArg:     "ErrInvalidArg",
	ErrWrongState:     "ErrWrongState",
	ErrSpawn:          "ErrSpawn",
	ErrExec:           "ErrExec",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies an authentication failure.
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

// authError creates an Error given a set of arguments.
func authError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is an
// authentication error with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var aerr Error
	return errors.As(err, &aerr) && aerr.ErrorCode == c
}
