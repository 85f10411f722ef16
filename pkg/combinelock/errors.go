package combinelock

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/registry"
	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of composite lock error.  The numeric value is
// the exit code the lock reports.
type ErrorCode int8

const (
	// ErrWrongFormat is returned when a child entry cannot be built for a
	// selected child script.
	ErrWrongFormat ErrorCode = 80

	// ErrWrongScriptConfigHash is returned when the configuration supplied
	// in the witness does not hash to the referenced hash.
	ErrWrongScriptConfigHash ErrorCode = 81

	// ErrWrongHashType is returned when a child script carries a hash type
	// other than data, type and data1.
	ErrWrongHashType ErrorCode = 82

	// ErrUnlockFailed is returned when a child script exits with a non-zero
	// code.
	ErrUnlockFailed ErrorCode = 83

	// ErrWrongMoleculeFormat is returned when a configuration record is not
	// a well-formed ChildScriptConfig.
	ErrWrongMoleculeFormat ErrorCode = 84

	// ErrWrongArgs is returned when the lock args carry an unknown flag or
	// are too short for their flag.
	ErrWrongArgs ErrorCode = 85

	// ErrWrongWitnessFormat is returned when the lock field of the group's
	// first witness is missing or is not a CombineLockWitness.
	ErrWrongWitnessFormat ErrorCode = 86

	// ErrCombineLockWitnessIndexOutOfBounds is returned when the witness
	// selects a child group the configuration does not have.
	ErrCombineLockWitnessIndexOutOfBounds ErrorCode = 87

	// ErrChildScriptArrayIndexOutOfBounds is returned when a child group
	// references a child script the configuration does not have.
	ErrChildScriptArrayIndexOutOfBounds ErrorCode = 88

	// ErrInnerWitnessIndexOutOfBounds is returned when the witness carries
	// no inner witness for a selected child script.
	ErrInnerWitnessIndexOutOfBounds ErrorCode = 89

	// ErrInvalidCellDepRef is returned when no registry cell dep bounds the
	// referenced configuration hash.
	ErrInvalidCellDepRef ErrorCode = 90

	// ErrInvalidDataLength is returned when a registry cell dep's data is
	// too short to hold its next hash.
	ErrInvalidDataLength ErrorCode = 91

	// ErrChainedExec is returned when a chained child cannot hand control
	// to the next entry.
	ErrChainedExec ErrorCode = 92

	// ErrNoRegistryRole is returned when the lock runs in a transaction
	// rewriting its registry without taking part in the rewrite.
	ErrNoRegistryRole ErrorCode = 93
)

var errorCodeStrings = map[ErrorCode]string{
	ErrWrongFormat:                        "ErrWrongFormat",
	ErrWrongScriptConfigHash:              "ErrWrongScriptConfigHash",
	ErrWrongHashType:                      "ErrWrongHashType",
	ErrUnlockFailed:                       "ErrUnlockFailed",
	ErrWrongMoleculeFormat:                "ErrWrongMoleculeFormat",
	ErrWrongArgs:                          "ErrWrongArgs",
	ErrWrongWitnessFormat:                 "ErrWrongWitnessFormat",
	ErrCombineLockWitnessIndexOutOfBounds: "ErrCombineLockWitnessIndexOutOfBounds",
	ErrChildScriptArrayIndexOutOfBounds:   "ErrChildScriptArrayIndexOutOfBounds",
	ErrInnerWitnessIndexOutOfBounds:       "ErrInnerWitnessIndexOutOfBounds",
	ErrInvalidCellDepRef:                  "ErrInvalidCellDepRef",
	ErrInvalidDataLength:                  "ErrInvalidDataLength",
	ErrChainedExec:                        "ErrChainedExec",
	ErrNoRegistryRole:                     "ErrNoRegistryRole",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a composite lock failure.
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

// lockError creates an Error given a set of arguments.
func lockError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a composite lock
// error with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var lerr Error
	return errors.As(err, &lerr) && lerr.ErrorCode == c
}

// fromRegistry renumbers the registry lookup failures the lock reports under
// its own codes.  Partition rule violations keep their registry codes.
func fromRegistry(err error) error {
	switch {
	case registry.IsErrorCode(err, registry.ErrInvalidCellDepRef):
		return lockError(ErrInvalidCellDepRef, err.Error())
	case registry.IsErrorCode(err, registry.ErrInvalidDataLength):
		return lockError(ErrInvalidDataLength, err.Error())
	case registry.IsErrorCode(err, registry.ErrNoRole):
		return lockError(ErrNoRegistryRole, err.Error())
	default:
		return err
	}
}
