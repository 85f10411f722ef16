package registry

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
)

// Guard is the registry type script.  A registry is identified by the hash
// of this script; its args commit to the transaction that created it.
//
// When the script's group has no inputs the registry is being created and
// the creation must be unique and start the partition at the universal
// range.  Otherwise the registry cells of the transaction must re-partition
// the consumed ranges and every transform must be a legal insert or update.
type Guard struct{}

// Ensure Guard satisfies the vm.Program interface.
var _ vm.Program = Guard{}

// Run validates the registry cells of the running transaction.
func (Guard) Run(m *vm.Machine, _ []string) error {
	if m.NumCells(vm.SourceGroupInput) == 0 {
		return validateBootstrap(m)
	}
	return validateEstablished(m)
}

// InitHash returns the args a registry created by a transaction must carry:
// the hash of the transaction's first input followed by the index of the
// first output carrying the registry type script.
func InitHash(firstInput ckb.CellInput, firstOutputIndex uint64) ckb.Hash {
	var index [8]byte
	binary.LittleEndian.PutUint64(index[:], firstOutputIndex)
	return ckb.Blake2b256(firstInput.Serialize(), index[:])
}

// validateBootstrap checks the creation of a registry.
func validateBootstrap(m *vm.Machine) error {
	script := m.LoadScript()
	registryID := m.LoadScriptHash()

	firstInput, err := m.LoadInput(0, vm.SourceInput)
	if err != nil {
		return err
	}

	firstOutput := -1
	for i := 0; i < m.NumCells(vm.SourceOutput); i++ {
		typeHash, err := m.LoadCellTypeHash(i, vm.SourceOutput)
		if err != nil {
			return err
		}
		if typeHash != nil && *typeHash == registryID {
			firstOutput = i
			break
		}
	}
	if firstOutput < 0 {
		return registryError(ErrInvalidInitValues,
			"registry created without an output")
	}

	initHash := InitHash(firstInput, uint64(firstOutput))
	if !bytes.Equal(script.Args, initHash[:]) {
		str := fmt.Sprintf("registry args %x do not match init hash %s",
			script.Args, initHash)
		return registryError(ErrInvalidInitHash, str)
	}

	if n := m.NumCells(vm.SourceGroupOutput); n != 1 {
		str := fmt.Sprintf("registry created with %d cells, want 1", n)
		return registryError(ErrInvalidInitValues, str)
	}

	lock, err := m.LoadCellLock(0, vm.SourceGroupOutput)
	if err != nil {
		return err
	}
	parsed, ok := ParseRegistryLock(lock.Args)
	if !ok || parsed.RegistryID != registryID {
		return registryError(ErrInvalidInitValues,
			"first config cell lock does not reference the registry")
	}

	data, err := m.LoadCellData(0, vm.SourceGroupOutput)
	if err != nil {
		return err
	}
	next, _, err := SplitConfigCellData(data)
	if err != nil {
		return registryError(ErrInvalidInitValues, err.Error())
	}

	if parsed.Current != UniversalRange.Current ||
		next != UniversalRange.Next {

		str := fmt.Sprintf("first config cell covers %s, want %s",
			HashRange{Current: parsed.Current, Next: next},
			UniversalRange)
		return registryError(ErrInvalidInitValues, str)
	}

	m.Log().Debugf("registry %s created", registryID)
	return nil
}

// loadTransforms reads every config cell of registryID the transaction
// consumes or creates and groups the created cells by the consumed range
// containing them.  Created typed cells outside the registry are refused.
func loadTransforms(r CellReader,
	registryID ckb.Hash) (*PartitionValidator, error) {

	v := NewPartitionValidator()

	cell := func(index int, source vm.Source) (Cell, error) {
		lock, err := r.LoadCellLock(index, source)
		if err != nil {
			return Cell{}, err
		}
		data, err := r.LoadCellData(index, source)
		if err != nil {
			return Cell{}, err
		}
		rng, err := configCellRange(lock, data)
		if err != nil {
			return Cell{}, err
		}
		return Cell{Index: index, Range: rng}, nil
	}

	for i := 0; i < r.NumCells(vm.SourceInput); i++ {
		typeHash, err := r.LoadCellTypeHash(i, vm.SourceInput)
		if err != nil {
			return nil, err
		}
		if typeHash == nil || *typeHash != registryID {
			continue
		}

		c, err := cell(i, vm.SourceInput)
		if err != nil {
			return nil, err
		}
		if err := v.SetInput(c); err != nil {
			return nil, err
		}
	}

	for i := 0; i < r.NumCells(vm.SourceOutput); i++ {
		typeHash, err := r.LoadCellTypeHash(i, vm.SourceOutput)
		if err != nil {
			return nil, err
		}
		if typeHash == nil {
			continue
		}
		if *typeHash != registryID {
			str := fmt.Sprintf("output %d carries foreign type "+
				"script %s", i, *typeHash)
			return nil, registryError(ErrOutputTypeForbidden, str)
		}

		c, err := cell(i, vm.SourceOutput)
		if err != nil {
			return nil, err
		}
		if err := v.SetOutput(c); err != nil {
			return nil, err
		}
	}

	return v, nil
}

// validateTiling fails with ErrInvalidLinkedList unless every transform of v
// tiles its consumed range.
func validateTiling(v *PartitionValidator) error {
	if v.Validate() {
		return nil
	}

	str := "config cells do not tile the consumed ranges:"
	for _, t := range v.Transforms() {
		str += fmt.Sprintf(" %s -> %v;", t.Input, t.Outputs)
	}
	return registryError(ErrInvalidLinkedList, str)
}

// sameType reports whether two optional type scripts are identical.
func sameType(a, b *ckb.Script) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// checkSplitBase checks that the lowest cell created by an insert is the
// consumed cell with only its next hash changed.
func checkSplitBase(m *vm.Machine, t *Transforming) error {
	in, err := m.LoadCell(t.Input.Index, vm.SourceInput)
	if err != nil {
		return err
	}
	out, err := m.LoadCell(t.Outputs[0].Index, vm.SourceOutput)
	if err != nil {
		return err
	}
	inData, err := m.LoadCellData(t.Input.Index, vm.SourceInput)
	if err != nil {
		return err
	}
	outData, err := m.LoadCellData(t.Outputs[0].Index, vm.SourceOutput)
	if err != nil {
		return err
	}

	if in.Capacity != out.Capacity || !in.Lock.Equal(&out.Lock) ||
		!sameType(in.Type, out.Type) ||
		!bytes.Equal(inData[NextHashSize:], outData[NextHashSize:]) {

		str := fmt.Sprintf("insert changed config cell %s into %s",
			t.Input, t.Outputs[0])
		return registryError(ErrConfigCellUnchanged, str)
	}
	return nil
}

// validateEstablished checks the transforms applied to an existing
// registry.
func validateEstablished(m *vm.Machine) error {
	registryID := m.LoadScriptHash()

	v, err := loadTransforms(m, registryID)
	if err != nil {
		return err
	}

	// Locks of the consumed cells that are not config cells.  Inserted
	// config cells must each take one of them.
	assetLocks := make(map[ckb.Hash]struct{})
	for i := 0; i < m.NumCells(vm.SourceInput); i++ {
		typeHash, err := m.LoadCellTypeHash(i, vm.SourceInput)
		if err != nil {
			return err
		}
		if typeHash != nil && *typeHash == registryID {
			continue
		}
		lockHash, err := m.LoadCellLockHash(i, vm.SourceInput)
		if err != nil {
			return err
		}
		assetLocks[lockHash] = struct{}{}
	}

	// Every created config cell must take over the lock of a consumed
	// asset cell, and no lock may be taken twice.
	inserted := make(map[ckb.Hash]int)
	for _, t := range v.Transforms() {
		for _, c := range t.Inserted() {
			lockHash, err := m.LoadCellLockHash(c.Index, vm.SourceOutput)
			if err != nil {
				return err
			}
			if _, ok := assetLocks[lockHash]; !ok {
				str := fmt.Sprintf("inserted config cell %s has a "+
					"lock no input carries", c)
				return registryError(ErrLockScriptNotExisting, str)
			}
			if prev, ok := inserted[lockHash]; ok {
				str := fmt.Sprintf("inserted config cells %d and "+
					"%d share lock %s", prev, c.Index, lockHash)
				return registryError(ErrLockScriptDup, str)
			}
			inserted[lockHash] = c.Index
		}
	}

	if err := validateTiling(v); err != nil {
		return err
	}

	for _, t := range v.Transforms() {
		if t.IsInserting() {
			if err := checkSplitBase(m, t); err != nil {
				return err
			}

			m.Log().Debugf("config cell %s split into %v", t.Input,
				t.Outputs)
			continue
		}

		in, err := m.LoadCell(t.Input.Index, vm.SourceInput)
		if err != nil {
			return err
		}
		out, err := m.LoadCell(t.Outputs[0].Index, vm.SourceOutput)
		if err != nil {
			return err
		}
		if !in.Lock.Equal(&out.Lock) || !sameType(in.Type, out.Type) {
			str := fmt.Sprintf("update of config cell %s changed "+
				"its scripts", t.Input)
			return registryError(ErrUpdateFailed, str)
		}

		m.Log().Debugf("config cell %s updated", t.Input)
	}

	return nil
}
