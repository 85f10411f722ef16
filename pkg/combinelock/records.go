package combinelock

import (
	"encoding/binary"
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/molecule"
)

// ChildScriptConfig is the configuration a composite lock is bound to: the
// child scripts it may run and the groups of them an unlock may select.
//
//	table ChildScriptConfig {
//	    array: ChildScriptArray,   // dynvec<ChildScript>
//	    index: ChildScriptVecVec,  // dynvec<fixvec<byte>>
//	}
//
// ChildScript has the Script layout.  Its hash type byte is kept as found so
// that an invalid one is reported when the child is selected.
type ChildScriptConfig struct {
	Array []ckb.Script
	Index [][]uint8
}

// Serialize returns the molecule encoding of the configuration.
func (c *ChildScriptConfig) Serialize() []byte {
	scripts := make([][]byte, len(c.Array))
	for i := range c.Array {
		scripts[i] = c.Array[i].Serialize()
	}

	groups := make([][]byte, len(c.Index))
	for i, g := range c.Index {
		groups[i] = molecule.PackFixVec(g, len(g))
	}

	return molecule.PackTable(
		molecule.PackDynVec(scripts),
		molecule.PackDynVec(groups),
	)
}

// Hash returns the hash composite locks reference the configuration by.
func (c *ChildScriptConfig) Hash() ckb.Hash {
	return ckb.Blake2b256(c.Serialize())
}

// decodeChildScript decodes a ChildScript without judging its hash type.
func decodeChildScript(data []byte) (ckb.Script, error) {
	var s ckb.Script

	fields, err := molecule.Table(data, 3, false)
	if err != nil {
		return s, err
	}
	if err := molecule.Array(fields[0], ckb.HashSize); err != nil {
		return s, err
	}
	if err := molecule.Array(fields[1], 1); err != nil {
		return s, err
	}
	args, err := molecule.Bytes(fields[2])
	if err != nil {
		return s, err
	}

	copy(s.CodeHash[:], fields[0])
	s.HashType = ckb.ScriptHashType(fields[1][0])
	s.Args = append([]byte(nil), args...)
	return s, nil
}

// DecodeChildScriptConfig decodes a configuration record.
func DecodeChildScriptConfig(data []byte) (*ChildScriptConfig, error) {
	cfg, err := decodeChildScriptConfig(data)
	if err != nil {
		str := fmt.Sprintf("malformed child script config: %v", err)
		return nil, lockError(ErrWrongMoleculeFormat, str)
	}
	return cfg, nil
}

func decodeChildScriptConfig(data []byte) (*ChildScriptConfig, error) {
	fields, err := molecule.Table(data, 2, false)
	if err != nil {
		return nil, err
	}

	scripts, err := molecule.DynVec(fields[0])
	if err != nil {
		return nil, err
	}
	groups, err := molecule.DynVec(fields[1])
	if err != nil {
		return nil, err
	}

	cfg := &ChildScriptConfig{
		Array: make([]ckb.Script, len(scripts)),
		Index: make([][]uint8, len(groups)),
	}
	for i, raw := range scripts {
		if cfg.Array[i], err = decodeChildScript(raw); err != nil {
			return nil, err
		}
	}
	for i, raw := range groups {
		items, _, err := molecule.FixVec(raw, 1)
		if err != nil {
			return nil, err
		}
		cfg.Index[i] = append([]uint8{}, items...)
	}
	return cfg, nil
}

// CombineLockWitness is the lock field of the witness unlocking a composite
// lock.
//
//	table CombineLockWitness {
//	    index:         Uint16,
//	    inner_witness: BytesVec,
//	    script_config: ChildScriptConfigOpt,
//	}
type CombineLockWitness struct {
	// Index selects the child group to run.
	Index uint16

	// InnerWitness holds one witness per child script, addressed by the
	// child's position in the configuration's script array.
	InnerWitness [][]byte

	// ScriptConfig is the serialized configuration, nil when absent.  It
	// is kept as found since its hash is taken over these exact bytes.
	ScriptConfig []byte
}

// Serialize returns the molecule encoding of the witness.
func (w *CombineLockWitness) Serialize() []byte {
	var index [2]byte
	binary.LittleEndian.PutUint16(index[:], w.Index)

	return molecule.PackTable(
		index[:],
		ckb.PackBytesVec(w.InnerWitness),
		molecule.PackOption(w.ScriptConfig),
	)
}

// DecodeCombineLockWitness decodes a witness lock field.  The embedded
// configuration is only checked to be well-formed.
func DecodeCombineLockWitness(data []byte) (*CombineLockWitness, error) {
	w, err := decodeCombineLockWitness(data)
	if err != nil {
		str := fmt.Sprintf("malformed combine lock witness: %v", err)
		return nil, lockError(ErrWrongWitnessFormat, str)
	}
	return w, nil
}

func decodeCombineLockWitness(data []byte) (*CombineLockWitness, error) {
	fields, err := molecule.Table(data, 3, false)
	if err != nil {
		return nil, err
	}
	if err := molecule.Array(fields[0], 2); err != nil {
		return nil, err
	}
	inner, err := ckb.DecodeBytesVec(fields[1])
	if err != nil {
		return nil, err
	}

	w := &CombineLockWitness{
		Index:        binary.LittleEndian.Uint16(fields[0]),
		InnerWitness: inner,
	}
	if raw, ok := molecule.Option(fields[2]); ok {
		if _, err := decodeChildScriptConfig(raw); err != nil {
			return nil, err
		}
		w.ScriptConfig = append([]byte(nil), raw...)
	}
	return w, nil
}
