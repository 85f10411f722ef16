package registry

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
)

// CellReader is the read-only view of a transaction the registry rules are
// evaluated against.
type CellReader interface {
	NumCells(source vm.Source) int
	LoadCellTypeHash(index int, source vm.Source) (*ckb.Hash, error)
	LoadCellLock(index int, source vm.Source) (*ckb.Script, error)
	LoadCellData(index int, source vm.Source) ([]byte, error)
}

// Ensure the machine syscalls satisfy the CellReader interface.
var _ CellReader = (*vm.Machine)(nil)

// Resolution is the outcome of looking a configuration hash up in a
// registry.
type Resolution struct {
	// Found is set when a config cell stores the configuration.  Config
	// is then the stored record.
	Found  bool
	Config []byte

	// Target is the hash looked up.  When Found is false the cell deps
	// prove that no config cell stores it yet, and the configuration must
	// be supplied out of band.
	Target ckb.Hash

	// DepIndex is the cell dep that decided the lookup.
	DepIndex int
}

// Resolve looks target up among the cell deps belonging to registryID whose
// lock runs the same code as lock.  A dep whose range starts at target yields
// the stored configuration.  A dep whose range strictly contains target
// proves its absence, but only once no dep stores target exactly, so the
// scan goes on after the first proof.  Deps that bound nothing are skipped
// since one transaction may reference several unrelated parts of a registry.
// ErrInvalidCellDepRef is returned when no dep bounds target.
func Resolve(r CellReader, lock *ckb.Script, registryID,
	target ckb.Hash) (*Resolution, error) {

	var absent *Resolution
	for i := 0; i < r.NumCells(vm.SourceCellDep); i++ {
		typeHash, err := r.LoadCellTypeHash(i, vm.SourceCellDep)
		if err != nil {
			return nil, err
		}
		if typeHash == nil || *typeHash != registryID {
			continue
		}

		depLock, err := r.LoadCellLock(i, vm.SourceCellDep)
		if err != nil {
			return nil, err
		}
		if !depLock.SameCode(lock) {
			continue
		}
		parsed, ok := ParseRegistryLock(depLock.Args)
		if !ok || parsed.RegistryID != registryID {
			continue
		}

		data, err := r.LoadCellData(i, vm.SourceCellDep)
		if err != nil {
			return nil, err
		}
		next, record, err := SplitConfigCellData(data)
		if err != nil {
			return nil, err
		}

		switch parsed.Current.Compare(target) {
		case 0:
			return &Resolution{
				Found:    true,
				Config:   record,
				Target:   target,
				DepIndex: i,
			}, nil

		case -1:
			if absent == nil && target.Less(next) {
				absent = &Resolution{Target: target, DepIndex: i}
			}
		}
	}

	if absent != nil {
		return absent, nil
	}

	str := fmt.Sprintf("no cell dep of registry %s bounds %s", registryID,
		target)
	return nil, registryError(ErrInvalidCellDepRef, str)
}
