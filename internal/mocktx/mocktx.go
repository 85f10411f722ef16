// Package mocktx reads and writes transaction files: a transaction together
// with the cells it spends and reads, in YAML or JSON.
//
// Byte fields are 0x prefixed hex.  A data field or a code hash may instead
// name a program image as "@name", standing for the image's code cell data
// and its data hash respectively.
package mocktx

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const imagePrefix = "@"

// File is a transaction file.
type File struct {
	CellDeps  []Cell   `yaml:"cell_deps,omitempty"`
	Inputs    []Cell   `yaml:"inputs,omitempty"`
	Outputs   []Output `yaml:"outputs,omitempty"`
	Witnesses []string `yaml:"witnesses,omitempty"`
}

// Cell is a cell dep or an input.  A mocked cell carries its output; a cell
// of a ledger only needs its out point.
type Cell struct {
	OutPoint *OutPoint   `yaml:"out_point,omitempty"`
	Since    uint64      `yaml:"since,omitempty"`
	DepType  ckb.DepType `yaml:"dep_type,omitempty"`
	Output   *Output     `yaml:"output,omitempty"`
}

// OutPoint references a cell by the transaction creating it.
type OutPoint struct {
	TxHash ckb.Hash `yaml:"tx_hash"`
	Index  uint32   `yaml:"index"`
}

// Output is a cell's state and data.
type Output struct {
	Capacity uint64  `yaml:"capacity"`
	Lock     Script  `yaml:"lock"`
	Type     *Script `yaml:"type,omitempty"`
	Data     string  `yaml:"data,omitempty"`
}

// Script is a lock or type script.
type Script struct {
	CodeHash string             `yaml:"code_hash"`
	HashType ckb.ScriptHashType `yaml:"hash_type"`
	Args     string             `yaml:"args,omitempty"`
}

// Load reads a transaction file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transaction file")
	}
	return Decode(raw)
}

// Decode parses a transaction file.  JSON is read as the YAML subset it is.
func Decode(raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse transaction file")
	}
	return &f, nil
}

// Encode writes f as YAML.
func Encode(w io.Writer, f *File) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return errors.Wrap(err, "failed to encode transaction file")
	}
	return enc.Close()
}

// decoder turns file fields into ledger values, resolving image names.
type decoder struct {
	programs *vm.ProgramRegistry
}

func (d decoder) image(name string) (*vm.Image, error) {
	if d.programs == nil {
		return nil, errors.Errorf("no programs to resolve %s%s",
			imagePrefix, name)
	}
	img, ok := d.programs.ByName(name)
	if !ok {
		return nil, errors.Errorf("unknown image %s%s", imagePrefix, name)
	}
	return img, nil
}

func (d decoder) data(s string) ([]byte, error) {
	if name, ok := strings.CutPrefix(s, imagePrefix); ok {
		img, err := d.image(name)
		if err != nil {
			return nil, err
		}
		return append([]byte{}, img.Data...), nil
	}
	return ckb.DecodeHex(s)
}

func (d decoder) script(s *Script) (*ckb.Script, error) {
	var (
		codeHash ckb.Hash
		err      error
	)
	if name, ok := strings.CutPrefix(s.CodeHash, imagePrefix); ok {
		img, err := d.image(name)
		if err != nil {
			return nil, err
		}
		codeHash = img.DataHash()
	} else if codeHash, err = ckb.ParseHash(s.CodeHash); err != nil {
		return nil, errors.Wrap(err, "code hash")
	}

	args, err := ckb.DecodeHex(s.Args)
	if err != nil {
		return nil, errors.Wrap(err, "args")
	}
	return &ckb.Script{CodeHash: codeHash, HashType: s.HashType, Args: args}, nil
}

func (d decoder) output(o *Output) (*ckb.CellOutput, []byte, error) {
	lock, err := d.script(&o.Lock)
	if err != nil {
		return nil, nil, errors.Wrap(err, "lock")
	}
	out := &ckb.CellOutput{Capacity: o.Capacity, Lock: *lock}
	if o.Type != nil {
		if out.Type, err = d.script(o.Type); err != nil {
			return nil, nil, errors.Wrap(err, "type")
		}
	}
	data, err := d.data(o.Data)
	if err != nil {
		return nil, nil, errors.Wrap(err, "data")
	}
	return out, data, nil
}

// mockOutPoint returns the out point of the i-th mocked cell of a kind when
// the file gives none.
func mockOutPoint(kind string, i int) ckb.OutPoint {
	var seed [4]byte
	binary.LittleEndian.PutUint32(seed[:], uint32(i))
	return ckb.OutPoint{TxHash: ckb.Blake2b256([]byte("mocktx "+kind), seed[:])}
}

func (c *Cell) outPoint(kind string, i int) ckb.OutPoint {
	if c.OutPoint == nil {
		return mockOutPoint(kind, i)
	}
	return ckb.OutPoint{TxHash: c.OutPoint.TxHash, Index: c.OutPoint.Index}
}

// Transaction builds the transaction of f.  Cells without an out point are
// given a mock one.
func (f *File) Transaction(programs *vm.ProgramRegistry) (*ckb.Transaction, error) {
	d := decoder{programs: programs}
	tx := &ckb.Transaction{}

	for i := range f.CellDeps {
		tx.CellDeps = append(tx.CellDeps, ckb.CellDep{
			OutPoint: f.CellDeps[i].outPoint("dep", i),
			DepType:  f.CellDeps[i].DepType,
		})
	}
	for i := range f.Inputs {
		tx.Inputs = append(tx.Inputs, ckb.CellInput{
			Since:          f.Inputs[i].Since,
			PreviousOutput: f.Inputs[i].outPoint("input", i),
		})
	}
	for i := range f.Outputs {
		out, data, err := d.output(&f.Outputs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		tx.Outputs = append(tx.Outputs, *out)
		tx.OutputsData = append(tx.OutputsData, data)
	}
	for i, w := range f.Witnesses {
		b, err := ckb.DecodeHex(w)
		if err != nil {
			return nil, errors.Wrapf(err, "witness %d", i)
		}
		tx.Witnesses = append(tx.Witnesses, b)
	}
	return tx, nil
}

// Resolve builds the resolved transaction of a fully mocked file, one whose
// deps and inputs all carry their output.
func (f *File) Resolve(programs *vm.ProgramRegistry) (*vm.ResolvedTransaction, error) {
	tx, err := f.Transaction(programs)
	if err != nil {
		return nil, err
	}
	d := decoder{programs: programs}

	cell := func(c *Cell, op ckb.OutPoint) (ckb.CellMeta, error) {
		if c.Output == nil {
			return ckb.CellMeta{}, errors.New("cell is not mocked")
		}
		out, data, err := d.output(c.Output)
		if err != nil {
			return ckb.CellMeta{}, err
		}
		return ckb.CellMeta{OutPoint: op, Output: *out, Data: data}, nil
	}

	rtx := &vm.ResolvedTransaction{Transaction: tx}
	for i := range f.CellDeps {
		if f.CellDeps[i].DepType != ckb.DepTypeCode {
			return nil, errors.Errorf("cell dep %d: %s deps cannot be "+
				"mocked", i, f.CellDeps[i].DepType)
		}
		meta, err := cell(&f.CellDeps[i], tx.CellDeps[i].OutPoint)
		if err != nil {
			return nil, errors.Wrapf(err, "cell dep %d", i)
		}
		rtx.CellDeps = append(rtx.CellDeps, meta)
	}
	for i := range f.Inputs {
		meta, err := cell(&f.Inputs[i], tx.Inputs[i].PreviousOutput)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d", i)
		}
		rtx.Inputs = append(rtx.Inputs, meta)
	}
	return rtx, nil
}

// encoder turns ledger values into file fields, naming known images.
type encoder struct {
	programs *vm.ProgramRegistry
}

func (e encoder) data(b []byte) string {
	if e.programs != nil && len(b) > 0 {
		img, ok := e.programs.Lookup(ckb.Blake2b256(b))
		if ok {
			return imagePrefix + img.Name
		}
	}
	return ckb.EncodeHex(b)
}

func (e encoder) script(s *ckb.Script) Script {
	codeHash := s.CodeHash.String()
	if e.programs != nil {
		if img, ok := e.programs.Lookup(s.CodeHash); ok {
			codeHash = imagePrefix + img.Name
		}
	}
	return Script{
		CodeHash: codeHash,
		HashType: s.HashType,
		Args:     ckb.EncodeHex(s.Args),
	}
}

func (e encoder) output(o *ckb.CellOutput, data []byte) *Output {
	out := &Output{
		Capacity: o.Capacity,
		Lock:     e.script(&o.Lock),
		Data:     e.data(data),
	}
	if o.Type != nil {
		typ := e.script(o.Type)
		out.Type = &typ
	}
	return out
}

// FromResolved returns the file of a resolved transaction.  Code and data
// of images in programs, which may be nil, are written by name.
func FromResolved(rtx *vm.ResolvedTransaction,
	programs *vm.ProgramRegistry) *File {

	e := encoder{programs: programs}
	tx := rtx.Transaction
	f := &File{}

	for i := range rtx.CellDeps {
		dep := &rtx.CellDeps[i]
		f.CellDeps = append(f.CellDeps, Cell{
			OutPoint: &OutPoint{
				TxHash: dep.OutPoint.TxHash,
				Index:  dep.OutPoint.Index,
			},
			Output: e.output(&dep.Output, dep.Data),
		})
	}
	for i := range rtx.Inputs {
		in := &rtx.Inputs[i]
		f.Inputs = append(f.Inputs, Cell{
			OutPoint: &OutPoint{
				TxHash: in.OutPoint.TxHash,
				Index:  in.OutPoint.Index,
			},
			Since:  tx.Inputs[i].Since,
			Output: e.output(&in.Output, in.Data),
		})
	}
	for i := range tx.Outputs {
		f.Outputs = append(f.Outputs, *e.output(&tx.Outputs[i],
			tx.OutputsData[i]))
	}
	for _, w := range tx.Witnesses {
		f.Witnesses = append(f.Witnesses, ckb.EncodeHex(w))
	}
	return f
}
