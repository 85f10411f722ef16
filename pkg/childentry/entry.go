// Package childentry implements the textual form a child script's identity
// travels in when control is transferred by exec, which can only pass a list
// of strings:
//
//	<code hash: 64 hex>:<hash type: 1 hex>:<witness index: 1-4 hex>:<args: hex>
//
// Only the digits 0-9, the uppercase letters A-F and the colon are allowed.
// Two variants exist.  The natural variant reads every hex field in string
// order, the way a hex library does.  The reversed variant packs nibble pairs
// from the end of the field, so that bytes come out in reverse string order.
// Both variants round-trip exactly for every string they accept.
package childentry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	hex "github.com/tmthrgd/go-hex"
)

const (
	// fieldCount is the number of colon separated fields of an entry.
	fieldCount = 4

	// MaxWitnessIndex is the largest witness index an entry can carry.
	MaxWitnessIndex = 0xFFFF

	// MaxArgsSize is the largest args an entry can carry.
	MaxArgsSize = 32 * 1024
)

// Entry identifies a child script to run, the inner witness it reads and
// the args it runs with.
type Entry struct {
	CodeHash     ckb.Hash
	HashType     ckb.ScriptHashType
	WitnessIndex uint16
	Args         []byte
}

// checkChars fails unless s holds only uppercase hex digits and colons.
func checkChars(s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') {
			continue
		}
		str := fmt.Sprintf("invalid character %q at offset %d", c, i)
		return entryError(ErrInvalidCharacter, str)
	}
	return nil
}

// split checks s and returns its four fields, validating the ones whose
// rules do not depend on the variant.
func split(s string) ([]string, ckb.ScriptHashType, uint16, error) {
	if err := checkChars(s); err != nil {
		return nil, 0, 0, err
	}

	fields := strings.Split(s, ":")
	if len(fields) != fieldCount {
		str := fmt.Sprintf("entry has %d fields, want %d", len(fields),
			fieldCount)
		return nil, 0, 0, entryError(ErrFieldCount, str)
	}

	if len(fields[0]) != 2*ckb.HashSize {
		str := fmt.Sprintf("code hash has %d digits, want %d",
			len(fields[0]), 2*ckb.HashSize)
		return nil, 0, 0, entryError(ErrCodeHash, str)
	}

	if len(fields[1]) != 1 || fields[1][0] > '2' {
		str := fmt.Sprintf("invalid hash type %q", fields[1])
		return nil, 0, 0, entryError(ErrHashType, str)
	}
	hashType := ckb.ScriptHashType(fields[1][0] - '0')

	index := fields[2]
	if len(index) < 1 || len(index) > 4 ||
		(len(index) > 1 && index[0] == '0') {

		str := fmt.Sprintf("invalid witness index %q", index)
		return nil, 0, 0, entryError(ErrWitnessIndex, str)
	}
	witnessIndex, err := strconv.ParseUint(index, 16, 16)
	if err != nil {
		str := fmt.Sprintf("invalid witness index %q: %v", index, err)
		return nil, 0, 0, entryError(ErrWitnessIndex, str)
	}

	if len(fields[3])%2 != 0 {
		str := fmt.Sprintf("args have an odd number of digits (%d)",
			len(fields[3]))
		return nil, 0, 0, entryError(ErrArgs, str)
	}
	if len(fields[3]) > 2*MaxArgsSize {
		str := fmt.Sprintf("args of %d bytes exceed %d", len(fields[3])/2,
			MaxArgsSize)
		return nil, 0, 0, entryError(ErrArgsTooLong, str)
	}

	return fields, hashType, uint16(witnessIndex), nil
}

// Parse decodes an entry in the natural variant.
func Parse(s string) (*Entry, error) {
	fields, hashType, witnessIndex, err := split(s)
	if err != nil {
		return nil, err
	}

	e := &Entry{HashType: hashType, WitnessIndex: witnessIndex}
	if _, err := hex.Decode(e.CodeHash[:], []byte(fields[0])); err != nil {
		return nil, entryError(ErrCodeHash, err.Error())
	}
	e.Args, err = hex.DecodeString(fields[3])
	if err != nil {
		return nil, entryError(ErrArgs, err.Error())
	}
	return e, nil
}

// ParseReversed decodes an entry in the reversed variant.
func ParseReversed(s string) (*Entry, error) {
	fields, hashType, witnessIndex, err := split(s)
	if err != nil {
		return nil, err
	}

	e := &Entry{
		HashType:     hashType,
		WitnessIndex: witnessIndex,
		Args:         unpackReversed(fields[3]),
	}
	copy(e.CodeHash[:], unpackReversed(fields[0]))
	return e, nil
}

// check fails when e cannot be encoded.
func (e *Entry) check() error {
	if e.HashType > ckb.HashTypeData1 {
		str := fmt.Sprintf("invalid hash type %d", byte(e.HashType))
		return entryError(ErrHashType, str)
	}
	if len(e.Args) > MaxArgsSize {
		str := fmt.Sprintf("args of %d bytes exceed %d", len(e.Args),
			MaxArgsSize)
		return entryError(ErrArgsTooLong, str)
	}
	return nil
}

// join assembles the encoded fields of e.
func (e *Entry) join(codeHash, args string) string {
	var b strings.Builder
	b.Grow(len(codeHash) + len(args) + 9)
	b.WriteString(codeHash)
	b.WriteByte(':')
	b.WriteByte('0' + byte(e.HashType))
	b.WriteByte(':')
	b.WriteString(strings.ToUpper(strconv.FormatUint(uint64(e.WitnessIndex), 16)))
	b.WriteByte(':')
	b.WriteString(args)
	return b.String()
}

// Encode returns the natural variant form of e.
func (e *Entry) Encode() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.join(
		hex.EncodeUpperToString(e.CodeHash[:]),
		hex.EncodeUpperToString(e.Args),
	), nil
}

// EncodeReversed returns the reversed variant form of e.
func (e *Entry) EncodeReversed() (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	return e.join(packReversed(e.CodeHash[:]), packReversed(e.Args)), nil
}

// String returns the natural variant form of e, or a description of why it
// cannot be encoded.
func (e *Entry) String() string {
	s, err := e.Encode()
	if err != nil {
		return fmt.Sprintf("<invalid entry: %v>", err)
	}
	return s
}

// Script returns the script e identifies.
func (e *Entry) Script() ckb.Script {
	return ckb.Script{
		CodeHash: e.CodeHash,
		HashType: e.HashType,
		Args:     append([]byte(nil), e.Args...),
	}
}

// nibble returns the value of an uppercase hex digit.  Callers have checked
// the digit with checkChars.
func nibble(c byte) byte {
	if c <= '9' {
		return c - '0'
	}
	return c - 'A' + 0xA
}

// unpackReversed decodes an even length field pair by pair from its end.
func unpackReversed(s string) []byte {
	out := make([]byte, len(s)/2)
	for i := range out {
		hi := s[len(s)-2-2*i]
		lo := s[len(s)-1-2*i]
		out[i] = nibble(hi)<<4 | nibble(lo)
	}
	return out
}

// packReversed is the inverse of unpackReversed.
func packReversed(b []byte) string {
	const digits = "0123456789ABCDEF"

	out := make([]byte, 2*len(b))
	for i := range b {
		v := b[len(b)-1-i]
		out[2*i] = digits[v>>4]
		out[2*i+1] = digits[v&0xF]
	}
	return string(out)
}
