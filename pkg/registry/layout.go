package registry

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
)

const (
	// NextHashSize is the size of the next hash leading a config cell's
	// data.
	NextHashSize = ckb.HashSize

	// LockFlagDirect marks flagged lock args that carry the config hash
	// only.
	LockFlagDirect byte = 0

	// LockFlagRegistry marks flagged lock args that carry a registry id
	// followed by the config hash.
	LockFlagRegistry byte = 1

	// FlaggedArgsSize is the size of flagged registry lock args:
	// flag(1) | registry id(32) | hash(32).
	FlaggedArgsSize = 1 + 2*ckb.HashSize

	// PlainArgsSize is the size of unflagged registry lock args:
	// registry id(32) | hash(32).
	PlainArgsSize = 2 * ckb.HashSize
)

// RegistryLock is what a registry-bearing lock's args say: the registry the
// lock belongs to and, on a config cell, the start of the cell's range.
type RegistryLock struct {
	RegistryID ckb.Hash
	Current    ckb.Hash
}

// ParseRegistryLock decodes registry-bearing lock args in either layout:
// flagged (flag 1, as the combine lock uses) or plain (as the lock wrapper
// uses).  It returns false for any other args.
func ParseRegistryLock(args []byte) (RegistryLock, bool) {
	var lock RegistryLock

	switch {
	case len(args) == FlaggedArgsSize && args[0] == LockFlagRegistry:
		copy(lock.RegistryID[:], args[1:1+ckb.HashSize])
		copy(lock.Current[:], args[1+ckb.HashSize:])

	case len(args) == PlainArgsSize:
		copy(lock.RegistryID[:], args[:ckb.HashSize])
		copy(lock.Current[:], args[ckb.HashSize:])

	default:
		return lock, false
	}
	return lock, true
}

// FlaggedArgs returns flagged lock args referencing registryID.
func (l RegistryLock) FlaggedArgs() []byte {
	args := make([]byte, 0, FlaggedArgsSize)
	args = append(args, LockFlagRegistry)
	args = append(args, l.RegistryID[:]...)
	return append(args, l.Current[:]...)
}

// PlainArgs returns plain lock args referencing registryID.
func (l RegistryLock) PlainArgs() []byte {
	args := make([]byte, 0, PlainArgsSize)
	args = append(args, l.RegistryID[:]...)
	return append(args, l.Current[:]...)
}

// SplitConfigCellData splits a config cell's data into its next hash and
// the opaque configuration record following it.
func SplitConfigCellData(data []byte) (ckb.Hash, []byte, error) {
	if len(data) < NextHashSize {
		str := fmt.Sprintf("config cell data is %d bytes, need at "+
			"least %d", len(data), NextHashSize)
		return ckb.Hash{}, nil, registryError(ErrInvalidDataLength, str)
	}

	var next ckb.Hash
	copy(next[:], data[:NextHashSize])
	return next, data[NextHashSize:], nil
}

// PackConfigCellData returns config cell data made of next and the
// configuration record.
func PackConfigCellData(next ckb.Hash, record []byte) []byte {
	data := make([]byte, 0, NextHashSize+len(record))
	data = append(data, next[:]...)
	return append(data, record...)
}

// configCellRange returns the range a config cell claims: the start comes
// from its lock args, the end from its data.
func configCellRange(lock *ckb.Script, data []byte) (HashRange, error) {
	parsed, ok := ParseRegistryLock(lock.Args)
	if !ok {
		str := fmt.Sprintf("config cell lock args of %d bytes are not "+
			"registry-bearing", len(lock.Args))
		return HashRange{}, registryError(ErrCommonError, str)
	}

	next, _, err := SplitConfigCellData(data)
	if err != nil {
		return HashRange{}, registryError(ErrCommonError, err.Error())
	}

	return NewHashRange(parsed.Current, next)
}
