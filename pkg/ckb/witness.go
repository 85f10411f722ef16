package ckb

import (
	"github.com/ArkLabsHQ/combinelock/pkg/molecule"
)

// WitnessArgs is the standard witness envelope.  Each field is optional; a
// nil slice is absent while an empty non-nil slice is present and empty.
type WitnessArgs struct {
	Lock       []byte
	InputType  []byte
	OutputType []byte
}

// packBytesOpt encodes a molecule BytesOpt.
func packBytesOpt(b []byte) []byte {
	if b == nil {
		return molecule.PackOption(nil)
	}
	return molecule.PackBytes(b)
}

// decodeBytesOpt decodes a molecule BytesOpt.
func decodeBytesOpt(data []byte) ([]byte, error) {
	inner, ok := molecule.Option(data)
	if !ok {
		return nil, nil
	}
	raw, err := molecule.Bytes(inner)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, raw...), nil
}

// Serialize returns the molecule table encoding of the witness.
func (w *WitnessArgs) Serialize() []byte {
	return molecule.PackTable(
		packBytesOpt(w.Lock),
		packBytesOpt(w.InputType),
		packBytesOpt(w.OutputType),
	)
}

// DecodeWitnessArgs decodes a molecule WitnessArgs table.
func DecodeWitnessArgs(data []byte) (*WitnessArgs, error) {
	fields, err := molecule.Table(data, 3, false)
	if err != nil {
		return nil, err
	}

	var w WitnessArgs
	if w.Lock, err = decodeBytesOpt(fields[0]); err != nil {
		return nil, err
	}
	if w.InputType, err = decodeBytesOpt(fields[1]); err != nil {
		return nil, err
	}
	if w.OutputType, err = decodeBytesOpt(fields[2]); err != nil {
		return nil, err
	}
	return &w, nil
}

// LockRange returns the byte range of the lock field's content within a
// serialized WitnessArgs, or ok=false when the lock field is absent.
func LockRange(data []byte) (start, end int, ok bool, err error) {
	fields, err := molecule.Table(data, 3, false)
	if err != nil {
		return 0, 0, false, err
	}
	inner, present := molecule.Option(fields[0])
	if !present {
		return 0, 0, false, nil
	}
	raw, err := molecule.Bytes(inner)
	if err != nil {
		return 0, 0, false, err
	}

	// The lock field is the first field, its content follows the item
	// count of the Bytes record.
	start = int(molecule.Uint32(data[molecule.HeaderSize:])) +
		molecule.HeaderSize
	return start, start + len(raw), true, nil
}
