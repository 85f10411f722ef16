// Package molecule implements the subset of the molecule binary record format
// used by cell-model ledgers: fixed-size arrays and structs, fixvec, dynvec,
// table and option.
//
// Decoding is zero-copy: readers return sub-slices of the input buffer that
// act as views onto the fields of a record.  Every reader verifies the full
// header of the record it is given before handing out any view, so callers
// may index the returned slices without further bounds checks.
package molecule

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of a single header word.  Every header word
	// (total size, item count or field offset) is a little-endian uint32.
	HeaderSize = 4
)

// ErrorCode identifies a kind of record verification failure.
type ErrorCode int

const (
	// ErrHeaderIsBroken is returned when a buffer is too short to hold the
	// header it claims to have.
	ErrHeaderIsBroken ErrorCode = iota

	// ErrTotalSizeNotMatch is returned when the total size stored in a
	// header (or implied by an item count) differs from the buffer size.
	ErrTotalSizeNotMatch

	// ErrOffsetsNotMatch is returned when field offsets are not aligned,
	// not monotonic or point outside of the record.
	ErrOffsetsNotMatch

	// ErrFieldCountNotMatch is returned when a table carries a different
	// number of fields than its schema expects.
	ErrFieldCountNotMatch

	// ErrItemSizeNotMatch is returned when a fixed-size item or field
	// has the wrong length.
	ErrItemSizeNotMatch
)

var errorCodeStrings = map[ErrorCode]string{
	ErrHeaderIsBroken:     "ErrHeaderIsBroken",
	ErrTotalSizeNotMatch:  "ErrTotalSizeNotMatch",
	ErrOffsetsNotMatch:    "ErrOffsetsNotMatch",
	ErrFieldCountNotMatch: "ErrFieldCountNotMatch",
	ErrItemSizeNotMatch:   "ErrItemSizeNotMatch",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a record verification failure.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// verifyError creates an Error given a set of arguments.
func verifyError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether or not the provided error is a molecule error
// with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	merr, ok := err.(Error)
	return ok && merr.ErrorCode == c
}

// Uint32 decodes a little-endian uint32 from the first four bytes of b.
func Uint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// PackUint32 returns the little-endian encoding of v.
func PackUint32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

// PackUint64 returns the little-endian encoding of v.
func PackUint64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// FixVec verifies a fixvec of items that are itemSize bytes long and returns
// the raw item area together with the item count.
func FixVec(data []byte, itemSize int) ([]byte, int, error) {
	if len(data) < HeaderSize {
		str := fmt.Sprintf("fixvec of %d bytes has no item count",
			len(data))
		return nil, 0, verifyError(ErrHeaderIsBroken, str)
	}

	count := int(Uint32(data))
	if uint64(len(data)-HeaderSize) != uint64(count)*uint64(itemSize) {
		str := fmt.Sprintf("fixvec claims %d items of %d bytes but "+
			"carries %d bytes", count, itemSize, len(data)-HeaderSize)
		return nil, 0, verifyError(ErrTotalSizeNotMatch, str)
	}

	return data[HeaderSize:], count, nil
}

// Bytes verifies a molecule Bytes (fixvec<byte>) and returns its raw content.
func Bytes(data []byte) ([]byte, error) {
	raw, _, err := FixVec(data, 1)
	return raw, err
}

// DynVec verifies a dynvec and returns a view of every item.
func DynVec(data []byte) ([][]byte, error) {
	return readOffsets(data, -1, false)
}

// Table verifies a table with exactly fieldCount fields and returns a view of
// every field.  When compatible is set, tables carrying extra trailing fields
// are accepted and the extra fields are dropped.
func Table(data []byte, fieldCount int, compatible bool) ([][]byte, error) {
	return readOffsets(data, fieldCount, compatible)
}

// readOffsets verifies the shared header layout of dynvec and table records:
// a total size followed by one offset per item.
func readOffsets(data []byte, fieldCount int, compatible bool) ([][]byte, error) {
	if len(data) < HeaderSize {
		str := fmt.Sprintf("record of %d bytes has no total size",
			len(data))
		return nil, verifyError(ErrHeaderIsBroken, str)
	}

	total := int(Uint32(data))
	if total != len(data) {
		str := fmt.Sprintf("record claims %d bytes but carries %d",
			total, len(data))
		return nil, verifyError(ErrTotalSizeNotMatch, str)
	}

	// An empty record is only a total size.
	if total == HeaderSize {
		if fieldCount > 0 {
			str := fmt.Sprintf("empty record where %d fields are "+
				"expected", fieldCount)
			return nil, verifyError(ErrFieldCountNotMatch, str)
		}
		return nil, nil
	}

	if total < HeaderSize*2 {
		str := fmt.Sprintf("record of %d bytes has no offsets", total)
		return nil, verifyError(ErrHeaderIsBroken, str)
	}

	first := int(Uint32(data[HeaderSize:]))
	if first%HeaderSize != 0 || first < HeaderSize*2 || first > total {
		str := fmt.Sprintf("first offset %d is invalid for a record "+
			"of %d bytes", first, total)
		return nil, verifyError(ErrOffsetsNotMatch, str)
	}

	count := first/HeaderSize - 1
	if fieldCount >= 0 &&
		(count < fieldCount || (count > fieldCount && !compatible)) {

		str := fmt.Sprintf("record has %d fields, expected %d", count,
			fieldCount)
		return nil, verifyError(ErrFieldCountNotMatch, str)
	}

	offsets := make([]int, count+1)
	for i := 0; i < count; i++ {
		offsets[i] = int(Uint32(data[HeaderSize*(i+1):]))
	}
	offsets[count] = total

	for i := 0; i < count; i++ {
		if offsets[i] > offsets[i+1] {
			str := fmt.Sprintf("offset %d (%d) is beyond offset "+
				"%d (%d)", i, offsets[i], i+1, offsets[i+1])
			return nil, verifyError(ErrOffsetsNotMatch, str)
		}
	}

	if fieldCount >= 0 && count > fieldCount {
		count = fieldCount
	}
	items := make([][]byte, count)
	for i := range items {
		items[i] = data[offsets[i]:offsets[i+1]]
	}

	return items, nil
}

// Option returns the inner view of an option and whether it is present.
// Absent options are encoded as an empty buffer.
func Option(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Array verifies that data is a fixed-size array of exactly size bytes.
func Array(data []byte, size int) error {
	if len(data) != size {
		str := fmt.Sprintf("fixed field of %d bytes, expected %d",
			len(data), size)
		return verifyError(ErrItemSizeNotMatch, str)
	}
	return nil
}

// PackBytes encodes b as a molecule Bytes.
func PackBytes(b []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(b))
	out = append(out, PackUint32(uint32(len(b)))...)
	return append(out, b...)
}

// PackFixVec encodes count items whose concatenated bytes are items.
func PackFixVec(items []byte, count int) []byte {
	out := make([]byte, 0, HeaderSize+len(items))
	out = append(out, PackUint32(uint32(count))...)
	return append(out, items...)
}

// PackDynVec encodes items as a dynvec.
func PackDynVec(items [][]byte) []byte {
	return packOffsets(items)
}

// PackTable encodes fields as a table.
func PackTable(fields ...[]byte) []byte {
	return packOffsets(fields)
}

// PackOption encodes an option; a nil value is absent.
func PackOption(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

// packOffsets writes the shared dynvec/table layout.
func packOffsets(items [][]byte) []byte {
	headerLen := HeaderSize * (len(items) + 1)
	total := headerLen
	for _, item := range items {
		total += len(item)
	}

	out := make([]byte, 0, total)
	out = append(out, PackUint32(uint32(total))...)
	offset := headerLen
	for _, item := range items {
		out = append(out, PackUint32(uint32(offset))...)
		offset += len(item)
	}
	for _, item := range items {
		out = append(out, item...)
	}

	return out
}
