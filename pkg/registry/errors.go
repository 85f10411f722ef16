package registry

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of registry error.  The numeric value is the
// exit code the registry type script reports.
type ErrorCode int8

const (
	// ErrInvalidInitHash is returned when a registry is created with args
	// that do not commit to the creating transaction.
	ErrInvalidInitHash ErrorCode = 50

	// ErrCommonError is returned when a registry cell cannot be read as a
	// config cell.
	ErrCommonError ErrorCode = 51

	// ErrOutputTypeForbidden is returned when a transaction touching the
	// registry creates a typed cell that does not belong to the registry.
	ErrOutputTypeForbidden ErrorCode = 52

	// ErrInvalidLinkedList is returned when the registry cells of a
	// transaction do not tile the ranges they consume.
	ErrInvalidLinkedList ErrorCode = 53

	// ErrUpdateFailed is returned when an update changes the lock or type
	// script of a config cell.
	ErrUpdateFailed ErrorCode = 54

	// ErrLockScriptNotExisting is returned when an inserted config cell
	// carries a lock no consumed input carries.
	ErrLockScriptNotExisting ErrorCode = 55

	// ErrLockScriptDup is returned when two inserted config cells carry the
	// same lock.
	ErrLockScriptDup ErrorCode = 56

	// ErrInvalidInitValues is returned when a new registry does not start
	// as a single cell covering the whole hash space.
	ErrInvalidInitValues ErrorCode = 57

	// ErrOverlapPair is returned when two consumed config cells claim
	// overlapping ranges.
	ErrOverlapPair ErrorCode = 58

	// ErrDanglingPair is returned when a created config cell lies outside
	// every consumed range.
	ErrDanglingPair ErrorCode = 59

	// ErrConfigCellUnchanged is returned when an insert modifies the config
	// cell it splits beyond its next hash.
	ErrConfigCellUnchanged ErrorCode = 60

	// ErrInvalidCellDepRef is returned when no cell dep bounds the hash a
	// lock looks up.
	ErrInvalidCellDepRef ErrorCode = 61

	// ErrInvalidDataLength is returned when a config cell's data is too
	// short to hold its next hash.
	ErrInvalidDataLength ErrorCode = 62

	// ErrNoRole is returned when a lock is run in a transaction touching
	// its registry without owning or creating any of the registry cells.
	ErrNoRole ErrorCode = 63
)

var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidInitHash:       "ErrInvalidInitHash",
	ErrCommonError:           "ErrCommonError",
	ErrOutputTypeForbidden:   "ErrOutputTypeForbidden",
	ErrInvalidLinkedList:     "ErrInvalidLinkedList",
	ErrUpdateFailed:          "ErrUpdateFailed",
	ErrLockScriptNotExisting: "ErrLockScriptNotExisting",
	ErrLockScriptDup:         "ErrLockScriptDup",
	ErrInvalidInitValues:     "ErrInvalidInitValues",
	ErrOverlapPair:           "ErrOverlapPair",
	ErrDanglingPair:          "ErrDanglingPair",
	ErrConfigCellUnchanged:   "ErrConfigCellUnchanged",
	ErrInvalidCellDepRef:     "ErrInvalidCellDepRef",
	ErrInvalidDataLength:     "ErrInvalidDataLength",
	ErrNoRole:                "ErrNoRole",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a registry rule violation.
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

// registryError creates an Error given a set of arguments.
func registryError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a registry error
// with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var rerr Error
	return errors.As(err, &rerr) && rerr.ErrorCode == c
}
