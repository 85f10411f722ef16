package ckb

import (
	"github.com/ArkLabsHQ/combinelock/pkg/molecule"
)

// CellMeta is a resolved cell: where it lives, its state and its data.
type CellMeta struct {
	OutPoint OutPoint
	Output   CellOutput
	Data     []byte
}

// DataHash returns the ledger hash of the cell data.
func (c *CellMeta) DataHash() Hash {
	return Blake2b256(c.Data)
}

// TypeHash returns the hash of the cell's type script, or nil when the cell
// has none.
func (c *CellMeta) TypeHash() *Hash {
	if c.Output.Type == nil {
		return nil
	}
	h := c.Output.Type.Hash()
	return &h
}

// Serialize encodes the cell state and data as a table, the form the ledger
// store persists cells in.
func (c *CellMeta) Serialize() []byte {
	return molecule.PackTable(
		c.OutPoint.Serialize(),
		c.Output.Serialize(),
		molecule.PackBytes(c.Data),
	)
}

// DecodeCellMeta decodes a cell serialized by CellMeta.Serialize.
func DecodeCellMeta(data []byte) (*CellMeta, error) {
	fields, err := molecule.Table(data, 3, false)
	if err != nil {
		return nil, err
	}
	op, err := DecodeOutPoint(fields[0])
	if err != nil {
		return nil, err
	}
	output, err := DecodeCellOutput(fields[1])
	if err != nil {
		return nil, err
	}
	cellData, err := molecule.Bytes(fields[2])
	if err != nil {
		return nil, err
	}

	return &CellMeta{
		OutPoint: op,
		Output:   *output,
		Data:     append([]byte{}, cellData...),
	}, nil
}
