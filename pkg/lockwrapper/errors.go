package lockwrapper

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/registry"
	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of lock wrapper error.  The numeric value is
// the exit code the lock reports.
type ErrorCode int8

const (
	// ErrCommonError is returned for a registry rule violation that has no
	// code of its own.
	ErrCommonError ErrorCode = 110

	// ErrInvalidWrappedScriptHash is returned when the wrapped script
	// supplied does not hash to the one the lock references.
	ErrInvalidWrappedScriptHash ErrorCode = 111

	// ErrInvalidDataLength is returned when a registry cell's data is too
	// short to hold its next hash.
	ErrInvalidDataLength ErrorCode = 112

	// ErrChanged is returned when an insert modifies the config cell it
	// splits.
	ErrChanged ErrorCode = 113

	// ErrInvalidLinkedList is returned when registry cells do not tile the
	// ranges they consume.
	ErrInvalidLinkedList ErrorCode = 114

	// ErrOutputTypeForbidden is returned when a registry rewrite creates a
	// typed cell outside the registry.
	ErrOutputTypeForbidden ErrorCode = 115

	// ErrInvalidCellDepRef is returned when no registry cell dep bounds the
	// wrapped script hash.
	ErrInvalidCellDepRef ErrorCode = 116

	// ErrWrongFormat is returned for malformed args, witnesses or config
	// cell records.
	ErrWrongFormat ErrorCode = 117

	// ErrUnknown is returned when the lock runs in a registry rewrite
	// without taking part in it.
	ErrUnknown ErrorCode = 118
)

var errorCodeStrings = map[ErrorCode]string{
	ErrCommonError:              "ErrCommonError",
	ErrInvalidWrappedScriptHash: "ErrInvalidWrappedScriptHash",
	ErrInvalidDataLength:        "ErrInvalidDataLength",
	ErrChanged:                  "ErrChanged",
	ErrInvalidLinkedList:        "ErrInvalidLinkedList",
	ErrOutputTypeForbidden:      "ErrOutputTypeForbidden",
	ErrInvalidCellDepRef:        "ErrInvalidCellDepRef",
	ErrWrongFormat:              "ErrWrongFormat",
	ErrUnknown:                  "ErrUnknown",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a lock wrapper failure.
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

// wrapperError creates an Error given a set of arguments.
func wrapperError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a lock wrapper
// error with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var werr Error
	return errors.As(err, &werr) && werr.ErrorCode == c
}

// registryCodes maps registry errors onto the codes the wrapper reports them
// under.  Registry errors missing here become ErrCommonError.
var registryCodes = map[registry.ErrorCode]ErrorCode{
	registry.ErrInvalidDataLength:   ErrInvalidDataLength,
	registry.ErrConfigCellUnchanged: ErrChanged,
	registry.ErrInvalidLinkedList:   ErrInvalidLinkedList,
	registry.ErrOutputTypeForbidden: ErrOutputTypeForbidden,
	registry.ErrInvalidCellDepRef:   ErrInvalidCellDepRef,
	registry.ErrNoRole:              ErrUnknown,
}

// fromRegistry renumbers a registry error under the wrapper's codes.  Other
// errors are returned unchanged.
func fromRegistry(err error) error {
	var rerr registry.Error
	if !errors.As(err, &rerr) {
		return err
	}
	if c, ok := registryCodes[rerr.ErrorCode]; ok {
		return wrapperError(c, rerr.Description)
	}
	return wrapperError(ErrCommonError, rerr.Description)
}
