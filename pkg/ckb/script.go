package ckb

import (
	"bytes"
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/molecule"
)

// ScriptHashType selects how a script's code hash is matched against the code
// cells referenced by a transaction.
type ScriptHashType byte

const (
	// HashTypeData matches the hash of a code cell's data.
	HashTypeData ScriptHashType = 0

	// HashTypeType matches the hash of a code cell's type script.
	HashTypeType ScriptHashType = 1

	// HashTypeData1 matches the hash of a code cell's data and selects
	// the second VM version.
	HashTypeData1 ScriptHashType = 2
)

// ParseScriptHashType converts a raw discriminant into a ScriptHashType.  Any
// value other than the three defined modes is rejected.
func ParseScriptHashType(b byte) (ScriptHashType, error) {
	switch ScriptHashType(b) {
	case HashTypeData, HashTypeType, HashTypeData1:
		return ScriptHashType(b), nil
	default:
		return 0, fmt.Errorf("invalid script hash type %d", b)
	}
}

// String returns the lowercase name of the hash type.
func (t ScriptHashType) String() string {
	switch t {
	case HashTypeData:
		return "data"
	case HashTypeType:
		return "type"
	case HashTypeData1:
		return "data1"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ScriptHashType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ScriptHashType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "data":
		*t = HashTypeData
	case "type":
		*t = HashTypeType
	case "data1":
		*t = HashTypeData1
	default:
		return fmt.Errorf("invalid script hash type %q", text)
	}
	return nil
}

// Script identifies an executable script image together with the arguments
// it is run with.
type Script struct {
	CodeHash Hash
	HashType ScriptHashType
	Args     []byte
}

// Serialize returns the molecule table encoding of the script.
func (s *Script) Serialize() []byte {
	return molecule.PackTable(
		s.CodeHash[:],
		[]byte{byte(s.HashType)},
		molecule.PackBytes(s.Args),
	)
}

// Hash returns the script hash, the ledger hash of its serialization.
func (s *Script) Hash() Hash {
	return Blake2b256(s.Serialize())
}

// Equal reports whether two scripts are byte-identical.
func (s *Script) Equal(other *Script) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.CodeHash == other.CodeHash &&
		s.HashType == other.HashType &&
		bytes.Equal(s.Args, other.Args)
}

// SameCode reports whether two scripts run the same code, ignoring args.
func (s *Script) SameCode(other *Script) bool {
	return s.CodeHash == other.CodeHash && s.HashType == other.HashType
}

// Clone returns a deep copy of the script.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	return &Script{
		CodeHash: s.CodeHash,
		HashType: s.HashType,
		Args:     append([]byte(nil), s.Args...),
	}
}

// DecodeScript decodes a molecule Script table.
func DecodeScript(data []byte) (*Script, error) {
	fields, err := molecule.Table(data, 3, false)
	if err != nil {
		return nil, err
	}
	if err := molecule.Array(fields[0], HashSize); err != nil {
		return nil, err
	}
	if err := molecule.Array(fields[1], 1); err != nil {
		return nil, err
	}
	hashType, err := ParseScriptHashType(fields[1][0])
	if err != nil {
		return nil, err
	}
	args, err := molecule.Bytes(fields[2])
	if err != nil {
		return nil, err
	}

	script := &Script{
		HashType: hashType,
		Args:     append([]byte(nil), args...),
	}
	copy(script.CodeHash[:], fields[0])
	return script, nil
}

// SerializeScriptOpt returns the molecule ScriptOpt encoding of s.
func SerializeScriptOpt(s *Script) []byte {
	if s == nil {
		return molecule.PackOption(nil)
	}
	return s.Serialize()
}

// DecodeScriptOpt decodes a molecule ScriptOpt, returning nil when absent.
func DecodeScriptOpt(data []byte) (*Script, error) {
	inner, ok := molecule.Option(data)
	if !ok {
		return nil, nil
	}
	return DecodeScript(inner)
}
