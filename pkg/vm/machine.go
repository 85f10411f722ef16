package vm

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/btcsuite/btcd/txscript"
	"github.com/sirupsen/logrus"
)

// Source selects the set of cells, inputs or witnesses a syscall reads from.
type Source uint8

const (
	// SourceInput addresses all transaction inputs.
	SourceInput Source = iota + 1

	// SourceOutput addresses all transaction outputs.
	SourceOutput

	// SourceCellDep addresses all resolved cell deps.
	SourceCellDep

	// SourceGroupInput addresses the inputs of the running script group.
	SourceGroupInput

	// SourceGroupOutput addresses the outputs of the running script
	// group.
	SourceGroupOutput
)

// String returns the name of the source.
func (s Source) String() string {
	switch s {
	case SourceInput:
		return "input"
	case SourceOutput:
		return "output"
	case SourceCellDep:
		return "cell_dep"
	case SourceGroupInput:
		return "group_input"
	case SourceGroupOutput:
		return "group_output"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Transfer is the terminal value a program returns to replace itself with
// another image.  Nothing in the calling program runs after it is returned,
// so every check the caller needs must happen before Exec is called.
type Transfer struct {
	CodeHash ckb.Hash
	HashType ckb.ScriptHashType
	Argv     []string
}

// Error satisfies the error interface so a Transfer can travel through a
// program's ordinary return path.
func (t *Transfer) Error() string {
	return fmt.Sprintf("exec %s (%s)", t.CodeHash, t.HashType)
}

// Machine is the process a program image runs in.  It exposes the
// transaction through syscalls and carries the script group, argv and spawn
// depth of the process.
type Machine struct {
	engine *Engine
	group  *ScriptGroup
	depth  int
	log    logrus.FieldLogger
}

// Log returns the logger of the process.
func (m *Machine) Log() logrus.FieldLogger {
	return m.log
}

// SigCache returns the signature cache shared by the engine, which may be
// nil.
func (m *Machine) SigCache() *txscript.SigCache {
	return m.engine.sigCache
}

// Depth returns the spawn depth of the process.
func (m *Machine) Depth() int {
	return m.depth
}

// Group returns the script group being verified.
func (m *Machine) Group() *ScriptGroup {
	return m.group
}

// Exec returns the Transfer that replaces the running image with the image
// codeHash/hashType refers to.  The caller must return it unchanged:
//
//	return m.Exec(codeHash, hashType, argv)
func (m *Machine) Exec(codeHash ckb.Hash, hashType ckb.ScriptHashType,
	argv []string) error {

	return &Transfer{
		CodeHash: codeHash,
		HashType: hashType,
		Argv:     append([]string(nil), argv...),
	}
}

// Spawn runs the image codeHash/hashType refers to as a child process,
// blocking until it finishes, and returns its exit code.  The child sees the
// same transaction and script group.  An error is returned only when the
// child cannot be started.
func (m *Machine) Spawn(codeHash ckb.Hash, hashType ckb.ScriptHashType,
	argv []string) (int8, error) {

	if m.depth+1 > m.engine.limits.MaxSpawnDepth {
		str := fmt.Sprintf("spawn depth %d exceeds max allowed %d",
			m.depth+1, m.engine.limits.MaxSpawnDepth)
		return 0, scriptError(ErrSpawnDepthExceeded, str)
	}

	img, err := m.engine.resolveProgram(codeHash, hashType)
	if err != nil {
		return 0, err
	}

	child := &Machine{
		engine: m.engine,
		group:  m.group,
		depth:  m.depth + 1,
		log:    m.log.WithField("depth", m.depth+1),
	}
	argv = append([]string(nil), argv...)
	err = m.engine.run(child, img, argv, InvokeSpawn)

	// Running out of the transaction budget is not a child failure, it
	// aborts the whole verification.
	if IsErrorCode(err, ErrInvocationsExceeded) {
		return 0, err
	}

	code := ExitCode(err)
	if err != nil {
		m.log.WithError(err).Debugf("spawned image %s exited with %d",
			img.Name, code)
	}
	return code, nil
}

// LoadLibrary returns the program an in-process library reference resolves
// to, without running it.  It is how scripts model dynamic linking.
func (m *Machine) LoadLibrary(codeHash ckb.Hash,
	hashType ckb.ScriptHashType) (Program, error) {

	img, err := m.engine.resolveProgram(codeHash, hashType)
	if err != nil {
		return nil, err
	}
	return img.Program, nil
}

// LoadScript returns the script of the running group.
func (m *Machine) LoadScript() *ckb.Script {
	return m.group.Script.Clone()
}

// LoadScriptHash returns the hash of the running group's script.
func (m *Machine) LoadScriptHash() ckb.Hash {
	return m.group.ScriptHash
}

// LoadTxHash returns the hash of the transaction being verified.
func (m *Machine) LoadTxHash() ckb.Hash {
	return m.engine.txHash
}

// NumCells returns the number of items in source.  For SourceInput and
// SourceGroupInput this is also the number of inputs.
func (m *Machine) NumCells(source Source) int {
	switch source {
	case SourceInput:
		return len(m.engine.rtx.Inputs)
	case SourceOutput:
		return len(m.engine.outputs)
	case SourceCellDep:
		return len(m.engine.rtx.CellDeps)
	case SourceGroupInput:
		return len(m.group.InputIndices)
	case SourceGroupOutput:
		return len(m.group.OutputIndices)
	default:
		return 0
	}
}

// NumWitnesses returns the number of witnesses of the transaction.
func (m *Machine) NumWitnesses() int {
	return len(m.engine.rtx.Transaction.Witnesses)
}

// indexOutOfBound returns the error for an index beyond the end of source.
func indexOutOfBound(index int, source Source) error {
	str := fmt.Sprintf("index %d out of bound for source %s", index,
		source)
	return scriptError(ErrIndexOutOfBound, str)
}

// txIndex maps an index within source onto the index of the transaction
// input or output it addresses.
func (m *Machine) txIndex(index int, source Source) (int, error) {
	if index < 0 {
		return 0, indexOutOfBound(index, source)
	}

	var indices []int
	switch source {
	case SourceInput, SourceOutput, SourceCellDep:
		if index >= m.NumCells(source) {
			return 0, indexOutOfBound(index, source)
		}
		return index, nil

	case SourceGroupInput:
		indices = m.group.InputIndices

	case SourceGroupOutput:
		indices = m.group.OutputIndices

	default:
		return 0, indexOutOfBound(index, source)
	}

	if index >= len(indices) {
		return 0, indexOutOfBound(index, source)
	}
	return indices[index], nil
}

// cell returns the resolved cell at index within source.
func (m *Machine) cell(index int, source Source) (*ckb.CellMeta, error) {
	i, err := m.txIndex(index, source)
	if err != nil {
		return nil, err
	}

	switch source {
	case SourceInput, SourceGroupInput:
		return &m.engine.rtx.Inputs[i], nil
	case SourceOutput, SourceGroupOutput:
		return &m.engine.outputs[i], nil
	default:
		return &m.engine.rtx.CellDeps[i], nil
	}
}

// LoadCell returns a copy of the state of the cell at index within source.
func (m *Machine) LoadCell(index int, source Source) (*ckb.CellOutput, error) {
	c, err := m.cell(index, source)
	if err != nil {
		return nil, err
	}
	return &ckb.CellOutput{
		Capacity: c.Output.Capacity,
		Lock:     *c.Output.Lock.Clone(),
		Type:     c.Output.Type.Clone(),
	}, nil
}

// LoadCellCapacity returns the capacity of the cell at index within source.
func (m *Machine) LoadCellCapacity(index int, source Source) (uint64, error) {
	c, err := m.cell(index, source)
	if err != nil {
		return 0, err
	}
	return c.Output.Capacity, nil
}

// LoadCellData returns a copy of the data of the cell at index within source.
func (m *Machine) LoadCellData(index int, source Source) ([]byte, error) {
	c, err := m.cell(index, source)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, c.Data...), nil
}

// LoadCellLock returns the lock script of the cell at index within source.
func (m *Machine) LoadCellLock(index int, source Source) (*ckb.Script, error) {
	c, err := m.cell(index, source)
	if err != nil {
		return nil, err
	}
	return c.Output.Lock.Clone(), nil
}

// LoadCellLockHash returns the lock script hash of the cell at index within
// source.
func (m *Machine) LoadCellLockHash(index int, source Source) (ckb.Hash, error) {
	c, err := m.cell(index, source)
	if err != nil {
		return ckb.Hash{}, err
	}
	return c.Output.Lock.Hash(), nil
}

// LoadCellType returns the type script of the cell at index within source,
// failing with ErrItemMissing when the cell has none.
func (m *Machine) LoadCellType(index int, source Source) (*ckb.Script, error) {
	c, err := m.cell(index, source)
	if err != nil {
		return nil, err
	}
	if c.Output.Type == nil {
		str := fmt.Sprintf("cell %d of source %s has no type script",
			index, source)
		return nil, scriptError(ErrItemMissing, str)
	}
	return c.Output.Type.Clone(), nil
}

// LoadCellTypeHash returns the type script hash of the cell at index within
// source, or nil when the cell has no type script.
func (m *Machine) LoadCellTypeHash(index int, source Source) (*ckb.Hash, error) {
	c, err := m.cell(index, source)
	if err != nil {
		return nil, err
	}
	return c.TypeHash(), nil
}

// LoadInput returns the transaction input at index within source.  Only the
// input sources carry inputs.
func (m *Machine) LoadInput(index int, source Source) (ckb.CellInput, error) {
	if source != SourceInput && source != SourceGroupInput {
		return ckb.CellInput{}, indexOutOfBound(index, source)
	}
	i, err := m.txIndex(index, source)
	if err != nil {
		return ckb.CellInput{}, err
	}
	return m.engine.rtx.Transaction.Inputs[i], nil
}

// witnessIndex maps an index within source onto a witness index.  Witnesses
// are addressed by input index for the input sources and by output index for
// the output sources; SourceInput may address witnesses beyond the inputs.
func (m *Machine) witnessIndex(index int, source Source) (int, error) {
	witnesses := m.engine.rtx.Transaction.Witnesses

	switch source {
	case SourceInput, SourceOutput:
		if index < 0 || index >= len(witnesses) {
			return 0, indexOutOfBound(index, source)
		}
		return index, nil

	case SourceGroupInput, SourceGroupOutput:
		i, err := m.txIndex(index, source)
		if err != nil {
			return 0, err
		}
		if i >= len(witnesses) {
			return 0, indexOutOfBound(index, source)
		}
		return i, nil

	default:
		return 0, indexOutOfBound(index, source)
	}
}

// LoadWitness returns a copy of the witness at index within source.
func (m *Machine) LoadWitness(index int, source Source) ([]byte, error) {
	i, err := m.witnessIndex(index, source)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, m.engine.rtx.Transaction.Witnesses[i]...), nil
}

// LoadWitnessChunk is the bounded form of LoadWitness: it returns at most
// size bytes of the witness starting at offset, together with the full
// length of the witness.
func (m *Machine) LoadWitnessChunk(index int, source Source, offset,
	size int) ([]byte, int, error) {

	i, err := m.witnessIndex(index, source)
	if err != nil {
		return nil, 0, err
	}

	w := m.engine.rtx.Transaction.Witnesses[i]
	if offset >= len(w) {
		return []byte{}, len(w), nil
	}
	end := offset + size
	if end > len(w) {
		end = len(w)
	}
	return append([]byte{}, w[offset:end]...), len(w), nil
}

// LoadWitnessArgs returns the decoded witness envelope at index within
// source.
func (m *Machine) LoadWitnessArgs(index int, source Source) (*ckb.WitnessArgs, error) {
	w, err := m.LoadWitness(index, source)
	if err != nil {
		return nil, err
	}
	args, err := ckb.DecodeWitnessArgs(w)
	if err != nil {
		str := fmt.Sprintf("witness %d of source %s is not a witness "+
			"envelope: %v", index, source, err)
		return nil, scriptError(ErrEncoding, str)
	}
	return args, nil
}
