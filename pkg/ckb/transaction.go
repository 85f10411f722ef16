package ckb

import (
	"encoding/binary"
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/molecule"
)

const (
	// OutPointSize is the serialized size of an OutPoint struct.
	OutPointSize = HashSize + 4

	// CellInputSize is the serialized size of a CellInput struct.
	CellInputSize = 8 + OutPointSize

	// CellDepSize is the serialized size of a CellDep struct.
	CellDepSize = OutPointSize + 1
)

// OutPoint references an output of a committed transaction.
type OutPoint struct {
	TxHash Hash
	Index  uint32
}

// Serialize returns the 36 byte struct encoding of the out point.
func (o OutPoint) Serialize() []byte {
	b := make([]byte, OutPointSize)
	copy(b, o.TxHash[:])
	binary.LittleEndian.PutUint32(b[HashSize:], o.Index)
	return b
}

// String returns the out point as hash:index.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash, o.Index)
}

// DecodeOutPoint decodes a 36 byte OutPoint struct.
func DecodeOutPoint(b []byte) (OutPoint, error) {
	var o OutPoint
	if err := molecule.Array(b, OutPointSize); err != nil {
		return o, err
	}
	copy(o.TxHash[:], b)
	o.Index = binary.LittleEndian.Uint32(b[HashSize:])
	return o, nil
}

// CellInput spends a live cell.
type CellInput struct {
	Since          uint64
	PreviousOutput OutPoint
}

// Serialize returns the 44 byte struct encoding of the input.
func (i CellInput) Serialize() []byte {
	b := make([]byte, 0, CellInputSize)
	b = append(b, molecule.PackUint64(i.Since)...)
	return append(b, i.PreviousOutput.Serialize()...)
}

// DepType tells how a cell dep is expanded.
type DepType byte

const (
	// DepTypeCode references a single cell.
	DepTypeCode DepType = 0

	// DepTypeDepGroup references a cell whose data is a list of out
	// points, each of which is added as a code dep.
	DepTypeDepGroup DepType = 1
)

// String returns the lowercase name of the dep type.
func (d DepType) String() string {
	switch d {
	case DepTypeCode:
		return "code"
	case DepTypeDepGroup:
		return "dep_group"
	default:
		return fmt.Sprintf("unknown(%d)", byte(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d DepType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DepType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "code":
		*d = DepTypeCode
	case "dep_group":
		*d = DepTypeDepGroup
	default:
		return fmt.Errorf("invalid dep type %q", text)
	}
	return nil
}

// CellDep makes a cell readable by the scripts of a transaction.
type CellDep struct {
	OutPoint OutPoint
	DepType  DepType
}

// Serialize returns the 37 byte struct encoding of the cell dep.
func (d CellDep) Serialize() []byte {
	return append(d.OutPoint.Serialize(), byte(d.DepType))
}

// DecodeOutPointVec decodes the data of a dep group cell.
func DecodeOutPointVec(data []byte) ([]OutPoint, error) {
	raw, count, err := molecule.FixVec(data, OutPointSize)
	if err != nil {
		return nil, err
	}

	points := make([]OutPoint, count)
	for i := range points {
		points[i], err = DecodeOutPoint(raw[i*OutPointSize : (i+1)*OutPointSize])
		if err != nil {
			return nil, err
		}
	}
	return points, nil
}

// SerializeOutPointVec encodes out points as dep group cell data.
func SerializeOutPointVec(points []OutPoint) []byte {
	raw := make([]byte, 0, len(points)*OutPointSize)
	for _, p := range points {
		raw = append(raw, p.Serialize()...)
	}
	return molecule.PackFixVec(raw, len(points))
}

// CellOutput is the state part of a cell; the data lives next to it in the
// transaction.
type CellOutput struct {
	Capacity uint64
	Lock     Script
	Type     *Script
}

// Serialize returns the molecule table encoding of the output.
func (c *CellOutput) Serialize() []byte {
	return molecule.PackTable(
		molecule.PackUint64(c.Capacity),
		c.Lock.Serialize(),
		SerializeScriptOpt(c.Type),
	)
}

// DecodeCellOutput decodes a molecule CellOutput table.
func DecodeCellOutput(data []byte) (*CellOutput, error) {
	fields, err := molecule.Table(data, 3, false)
	if err != nil {
		return nil, err
	}
	if err := molecule.Array(fields[0], 8); err != nil {
		return nil, err
	}
	lock, err := DecodeScript(fields[1])
	if err != nil {
		return nil, err
	}
	typ, err := DecodeScriptOpt(fields[2])
	if err != nil {
		return nil, err
	}

	return &CellOutput{
		Capacity: binary.LittleEndian.Uint64(fields[0]),
		Lock:     *lock,
		Type:     typ,
	}, nil
}

// Transaction is a full transaction: the raw part that is hashed plus the
// witnesses.
type Transaction struct {
	Version     uint32
	CellDeps    []CellDep
	HeaderDeps  []Hash
	Inputs      []CellInput
	Outputs     []CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

// SerializeRaw returns the molecule RawTransaction encoding, the part of the
// transaction covered by its hash.
func (tx *Transaction) SerializeRaw() []byte {
	deps := make([]byte, 0, len(tx.CellDeps)*CellDepSize)
	for _, d := range tx.CellDeps {
		deps = append(deps, d.Serialize()...)
	}

	headers := make([]byte, 0, len(tx.HeaderDeps)*HashSize)
	for _, h := range tx.HeaderDeps {
		headers = append(headers, h[:]...)
	}

	inputs := make([]byte, 0, len(tx.Inputs)*CellInputSize)
	for _, in := range tx.Inputs {
		inputs = append(inputs, in.Serialize()...)
	}

	outputs := make([][]byte, len(tx.Outputs))
	for i := range tx.Outputs {
		outputs[i] = tx.Outputs[i].Serialize()
	}

	return molecule.PackTable(
		molecule.PackUint32(tx.Version),
		molecule.PackFixVec(deps, len(tx.CellDeps)),
		molecule.PackFixVec(headers, len(tx.HeaderDeps)),
		molecule.PackFixVec(inputs, len(tx.Inputs)),
		molecule.PackDynVec(outputs),
		packBytesVec(tx.OutputsData),
	)
}

// Serialize returns the molecule Transaction encoding.
func (tx *Transaction) Serialize() []byte {
	return molecule.PackTable(tx.SerializeRaw(), packBytesVec(tx.Witnesses))
}

// Hash returns the transaction hash.
func (tx *Transaction) Hash() Hash {
	return Blake2b256(tx.SerializeRaw())
}

// packBytesVec encodes a molecule BytesVec.
func packBytesVec(items [][]byte) []byte {
	packed := make([][]byte, len(items))
	for i, item := range items {
		packed[i] = molecule.PackBytes(item)
	}
	return molecule.PackDynVec(packed)
}

// PackBytesVec encodes a molecule BytesVec.
func PackBytesVec(items [][]byte) []byte {
	return packBytesVec(items)
}

// DecodeBytesVec decodes a molecule BytesVec.
func DecodeBytesVec(data []byte) ([][]byte, error) {
	items, err := molecule.DynVec(data)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(items))
	for i, item := range items {
		out[i], err = molecule.Bytes(item)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
