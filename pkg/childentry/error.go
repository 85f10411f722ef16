package childentry

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExitWrongEntry is the exit code a child script reports when it cannot
// decode the entry it was started with.
const ExitWrongEntry int8 = 121

// ErrorCode identifies the rule an entry string broke.
type ErrorCode int

const (
	// ErrInvalidCharacter is returned for a character other than an
	// uppercase hex digit or a colon.
	ErrInvalidCharacter ErrorCode = iota

	// ErrFieldCount is returned when an entry does not have four fields.
	ErrFieldCount

	// ErrCodeHash is returned when the code hash is not 64 hex digits.
	ErrCodeHash

	// ErrHashType is returned when the hash type is not one of 0, 1 and 2.
	ErrHashType

	// ErrWitnessIndex is returned when the witness index is empty, longer
	// than four digits or has a leading zero.
	ErrWitnessIndex

	// ErrArgs is returned when the args are not whole bytes.
	ErrArgs

	// ErrArgsTooLong is returned when the args exceed MaxArgsSize.
	ErrArgsTooLong
)

var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidCharacter: "ErrInvalidCharacter",
	ErrFieldCount:       "ErrFieldCount",
	ErrCodeHash:         "ErrCodeHash",
	ErrHashType:         "ErrHashType",
	ErrWitnessIndex:     "ErrWitnessIndex",
	ErrArgs:             "ErrArgs",
	ErrArgsTooLong:      "ErrArgsTooLong",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error describes why an entry string could not be decoded or encoded.
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
	return ExitWrongEntry
}

// entryError creates an Error given a set of arguments.
func entryError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is an entry error
// with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var eerr Error
	return errors.As(err, &eerr) && eerr.ErrorCode == c
}
