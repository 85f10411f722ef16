// Package vmtest builds resolved transactions for tests of script programs.
package vmtest

import (
	"encoding/binary"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
)

// Builder assembles a transaction together with the cells it spends and
// reads.  Out points of the cells it invents are derived from a counter, so
// two builders fed the same calls produce the same transaction.
type Builder struct {
	programs *vm.ProgramRegistry
	tx       ckb.Transaction
	inputs   []ckb.CellMeta
	deps     []ckb.CellMeta
	counter  uint32
}

// New returns a builder whose program images are registered in programs.
func New(programs *vm.ProgramRegistry) *Builder {
	if programs == nil {
		programs = vm.NewProgramRegistry()
	}
	return &Builder{programs: programs}
}

// Programs returns the registry the builder registers images in.
func (b *Builder) Programs() *vm.ProgramRegistry {
	return b.programs
}

// outPoint returns a fresh out point of a previous transaction.
func (b *Builder) outPoint() ckb.OutPoint {
	var seed [4]byte
	binary.LittleEndian.PutUint32(seed[:], b.counter)
	b.counter++
	return ckb.OutPoint{
		TxHash: ckb.Blake2b256([]byte("vmtest"), seed[:]),
		Index:  0,
	}
}

// AlwaysSuccessLock returns a lock script the builder's cells can carry when
// a test does not care about their lock.  Its code is added as a cell dep.
func (b *Builder) AlwaysSuccessLock(args []byte) ckb.Script {
	img, ok := b.programs.ByName("vmtest-always-success")
	if !ok {
		img = vm.NewImage("vmtest-always-success", vm.ProgramFunc(
			func(*vm.Machine, []string) error { return nil },
		))
		b.programs.MustRegister(img)
	}
	return ckb.Script{
		CodeHash: b.Program(img),
		HashType: ckb.HashTypeData1,
		Args:     args,
	}
}

// Program makes img callable by data hash and returns that hash.  The image
// is registered when it is not already, and its code cell is added as a cell
// dep once.
func (b *Builder) Program(img *vm.Image) ckb.Hash {
	if _, ok := b.programs.ByName(img.Name); !ok {
		b.programs.MustRegister(img)
	}

	h := img.DataHash()
	for i := range b.deps {
		if b.deps[i].DataHash() == h {
			return h
		}
	}
	b.Dep(ckb.CellOutput{Capacity: 1}, img.Data)
	return h
}

// TypedProgram makes img callable by type hash: its code cell carries typ as
// type script.  The returned hash is the type hash.
func (b *Builder) TypedProgram(img *vm.Image, typ ckb.Script) ckb.Hash {
	if _, ok := b.programs.ByName(img.Name); !ok {
		b.programs.MustRegister(img)
	}
	b.Dep(ckb.CellOutput{Capacity: 1, Type: typ.Clone()}, img.Data)
	return typ.Hash()
}

// Dep adds a code cell dep and returns its index.
func (b *Builder) Dep(output ckb.CellOutput, data []byte) int {
	cell := ckb.CellMeta{
		OutPoint: b.outPoint(),
		Output:   output,
		Data:     data,
	}
	b.deps = append(b.deps, cell)
	b.tx.CellDeps = append(b.tx.CellDeps, ckb.CellDep{
		OutPoint: cell.OutPoint,
		DepType:  ckb.DepTypeCode,
	})
	return len(b.deps) - 1
}

// Input spends a new cell and returns the input index.  The witness is stored
// at the same index.
func (b *Builder) Input(output ckb.CellOutput, data []byte,
	witness []byte) int {

	cell := ckb.CellMeta{
		OutPoint: b.outPoint(),
		Output:   output,
		Data:     data,
	}
	b.inputs = append(b.inputs, cell)
	b.tx.Inputs = append(b.tx.Inputs, ckb.CellInput{
		PreviousOutput: cell.OutPoint,
	})

	index := len(b.inputs) - 1
	b.SetWitness(index, witness)
	return index
}

// Output creates a new cell and returns the output index.
func (b *Builder) Output(output ckb.CellOutput, data []byte) int {
	b.tx.Outputs = append(b.tx.Outputs, output)
	b.tx.OutputsData = append(b.tx.OutputsData, data)
	return len(b.tx.Outputs) - 1
}

// SetWitness stores the witness at index, growing the witness list as
// needed.
func (b *Builder) SetWitness(index int, witness []byte) {
	for len(b.tx.Witnesses) <= index {
		b.tx.Witnesses = append(b.tx.Witnesses, []byte{})
	}
	b.tx.Witnesses[index] = witness
}

// Transaction returns the transaction built so far.
func (b *Builder) Transaction() *ckb.Transaction {
	return &b.tx
}

// Build returns the resolved transaction.
func (b *Builder) Build() *vm.ResolvedTransaction {
	return &vm.ResolvedTransaction{
		Transaction: &b.tx,
		Inputs:      b.inputs,
		CellDeps:    b.deps,
	}
}

// Engine returns an engine verifying the built transaction with the default
// limits.
func (b *Builder) Engine() (*vm.Engine, error) {
	return vm.NewEngine(b.Build(), b.programs, nil, vm.DefaultLimits)
}

// Verify builds the transaction and verifies it.
func (b *Builder) Verify() error {
	engine, err := b.Engine()
	if err != nil {
		return err
	}
	return engine.Verify()
}
