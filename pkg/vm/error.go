package vm

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of syscall or substrate error.  Positive codes
// are the syscall failures every script may surface as its exit code;
// negative codes are failures of the substrate itself and never collide with
// a script-defined discriminant.
type ErrorCode int8

const (
	// ErrIndexOutOfBound is returned when a syscall addresses an item
	// beyond the end of its source.
	ErrIndexOutOfBound ErrorCode = 1

	// ErrItemMissing is returned when a syscall addresses an optional
	// item that is absent, such as the type script of an untyped cell.
	ErrItemMissing ErrorCode = 2

	// ErrLengthNotEnough is returned when a bounded load cannot fit the
	// requested item.
	ErrLengthNotEnough ErrorCode = 3

	// ErrEncoding is returned when a syscall cannot decode an item.
	ErrEncoding ErrorCode = 4

	// ErrUnknown is the exit code reported for errors that carry no code.
	ErrUnknown ErrorCode = -1

	// ErrScriptNotFound is returned when no cell dep provides the code a
	// script refers to, or the code is not a known program image.
	ErrScriptNotFound ErrorCode = -2

	// ErrMultipleMatches is returned when a type-hash reference resolves
	// to more than one distinct code cell.
	ErrMultipleMatches ErrorCode = -3

	// ErrInvalidHashType is returned when a script carries a hash type
	// outside of the defined modes.
	ErrInvalidHashType ErrorCode = -4

	// ErrSpawnDepthExceeded is returned when nested spawns exceed the
	// configured depth.
	ErrSpawnDepthExceeded ErrorCode = -5

	// ErrExecChainExceeded is returned when a chain of exec transfers
	// exceeds the configured length.
	ErrExecChainExceeded ErrorCode = -6

	// ErrInvocationsExceeded is returned when a transaction runs more
	// program images than the configured budget.
	ErrInvocationsExceeded ErrorCode = -7

	// ErrInvalidTransaction is returned when a resolved transaction is
	// inconsistent with itself.
	ErrInvalidTransaction ErrorCode = -8
)

var errorCodeStrings = map[ErrorCode]string{
	ErrIndexOutOfBound:     "ErrIndexOutOfBound",
	ErrItemMissing:         "ErrItemMissing",
	ErrLengthNotEnough:     "ErrLengthNotEnough",
	ErrEncoding:            "ErrEncoding",
	ErrUnknown:             "ErrUnknown",
	ErrScriptNotFound:      "ErrScriptNotFound",
	ErrMultipleMatches:     "ErrMultipleMatches",
	ErrInvalidHashType:     "ErrInvalidHashType",
	ErrSpawnDepthExceeded:  "ErrSpawnDepthExceeded",
	ErrExecChainExceeded:   "ErrExecChainExceeded",
	ErrInvocationsExceeded: "ErrInvocationsExceeded",
	ErrInvalidTransaction:  "ErrInvalidTransaction",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a syscall or substrate failure.
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

// scriptError creates an Error given a set of arguments.
func scriptError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a vm error with
// the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var verr Error
	return errors.As(err, &verr) && verr.ErrorCode == c
}

// ExitCoder is implemented by every error that maps onto a script exit code.
type ExitCoder interface {
	ExitCode() int8
}

// ExitCode maps the result of a program run onto its exit code: 0 for
// success, the error's own code when it carries one, and ErrUnknown
// otherwise.
func ExitCode(err error) int8 {
	if err == nil {
		return 0
	}

	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return int8(ErrUnknown)
}

// exitError is the error a program run reports when it exits with a plain
// code rather than a typed error.
type exitError struct {
	code int8
}

// Error satisfies the error interface.
func (e exitError) Error() string {
	return fmt.Sprintf("exit with code %d", e.code)
}

// ExitCode returns the code the program exited with.
func (e exitError) ExitCode() int8 {
	return e.code
}

// Exit returns the error a program returns to exit with the given code.  A
// zero code is success and yields nil.
func Exit(code int8) error {
	if code == 0 {
		return nil
	}
	return exitError{code: code}
}

// GroupError reports the script group that rejected a transaction.
type GroupError struct {
	Group    *ScriptGroup
	ExitCode int8
	Err      error
}

// Error satisfies the error interface.
func (e *GroupError) Error() string {
	return fmt.Sprintf("%s script %s rejected the transaction with "+
		"exit code %d: %v", e.Group.GroupType, e.Group.ScriptHash,
		e.ExitCode, e.Err)
}

// Unwrap returns the error the group's program failed with.
func (e *GroupError) Unwrap() error {
	return e.Err
}
