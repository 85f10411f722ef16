package registry

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
)

// RoleKind tells what a registry-bearing lock does in a transaction that
// consumes cells of its registry.
type RoleKind uint8

const (
	// RoleSplitter locks the config cell an insert splits.  Anyone may
	// insert, so the lock has nothing to authorize.
	RoleSplitter RoleKind = iota

	// RoleInserter locks an asset cell being turned into a new config
	// cell.  The lock authorizes with the configuration it references,
	// supplied in its witness.
	RoleInserter

	// RoleOwner locks a config cell being updated.  The lock authorizes
	// with the configuration the cell stores before the update.
	RoleOwner

	// RoleHolder locks the config cell an insert splits together with
	// cells outside the registry.  Those cells are spent as usual, so the
	// lock authorizes with the configuration it references, supplied in
	// its witness.
	RoleHolder
)

// String returns the name of the role.
func (k RoleKind) String() string {
	switch k {
	case RoleSplitter:
		return "splitter"
	case RoleInserter:
		return "inserter"
	case RoleOwner:
		return "owner"
	case RoleHolder:
		return "holder"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Role is the part a lock plays in a registry transform.
type Role struct {
	Kind RoleKind

	// Config is the configuration record stored by the updated config
	// cell, set for RoleOwner only.
	Config []byte
}

// ConsumesRegistry reports whether the transaction spends any cell of
// registryID.
func ConsumesRegistry(r CellReader, registryID ckb.Hash) (bool, error) {
	for i := 0; i < r.NumCells(vm.SourceInput); i++ {
		typeHash, err := r.LoadCellTypeHash(i, vm.SourceInput)
		if err != nil {
			return false, err
		}
		if typeHash != nil && *typeHash == registryID {
			return true, nil
		}
	}
	return false, nil
}

// groupInRegistry reports whether every input of the running group is a
// cell of registryID.
func groupInRegistry(m *vm.Machine, registryID ckb.Hash) (bool, error) {
	for i := 0; i < m.NumCells(vm.SourceGroupInput); i++ {
		typeHash, err := m.LoadCellTypeHash(i, vm.SourceGroupInput)
		if err != nil {
			return false, err
		}
		if typeHash == nil || *typeHash != registryID {
			return false, nil
		}
	}
	return true, nil
}

// AuthorizeRole validates the registry cells of the transaction and returns
// the role lock plays in them.  The partition rules are the ones the
// registry type script enforces; the lock checks them too so that it never
// authorizes against a malformed registry.  The splitter passes without
// authorization only when its group holds nothing but registry cells.
// ErrNoRole is returned when lock
// neither splits, inserts nor updates a config cell.
func AuthorizeRole(m *vm.Machine, lock *ckb.Script,
	registryID ckb.Hash) (*Role, error) {

	v, err := loadTransforms(m, registryID)
	if err != nil {
		return nil, err
	}
	if err := validateTiling(v); err != nil {
		return nil, err
	}

	for _, t := range v.Transforms() {
		inLock, err := m.LoadCellLock(t.Input.Index, vm.SourceInput)
		if err != nil {
			return nil, err
		}

		if !t.IsInserting() {
			if !inLock.Equal(lock) {
				continue
			}
			data, err := m.LoadCellData(t.Input.Index, vm.SourceInput)
			if err != nil {
				return nil, err
			}
			_, record, err := SplitConfigCellData(data)
			if err != nil {
				return nil, err
			}
			return &Role{Kind: RoleOwner, Config: record}, nil
		}

		if err := checkSplitBase(m, t); err != nil {
			return nil, err
		}
		if inLock.Equal(lock) {
			only, err := groupInRegistry(m, registryID)
			if err != nil {
				return nil, err
			}
			if !only {
				m.Log().Debugf("lock %s splits a config cell and "+
					"spends other cells", lock.Hash())
				return &Role{Kind: RoleHolder}, nil
			}
			return &Role{Kind: RoleSplitter}, nil
		}

		for _, c := range t.Outputs[1:] {
			outLock, err := m.LoadCellLock(c.Index, vm.SourceOutput)
			if err != nil {
				return nil, err
			}
			if outLock.Equal(lock) {
				return &Role{Kind: RoleInserter}, nil
			}
		}
	}

	str := fmt.Sprintf("lock %s plays no part in the transforms of "+
		"registry %s", lock.Hash(), registryID)
	return nil, registryError(ErrNoRole, str)
}
