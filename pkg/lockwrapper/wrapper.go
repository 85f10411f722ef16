// Package lockwrapper implements a lock that lets any existing lock script
// adopt a global registry.  The wrapper's args reference a registry and the
// hash of the wrapped lock script:
//
//	args: registry id(32) | wrapped script hash(32)
//
// When a config cell of the registry stores the wrapped script, the wrapper
// execs it with the stored script config.  When the cell deps prove no config
// cell stores it, the witness must carry the wrapped script itself.
package lockwrapper

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/registry"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	hex "github.com/tmthrgd/go-hex"
)

// Wrapper is the lock wrapper program.
type Wrapper struct{}

// Ensure Wrapper satisfies the vm.Program interface.
var _ vm.Program = Wrapper{}

// Args returns wrapper args referencing the wrapped script hash in the given
// registry.
func Args(registryID, wrappedHash ckb.Hash) []byte {
	return registry.RegistryLock{
		RegistryID: registryID,
		Current:    wrappedHash,
	}.PlainArgs()
}

// Run implements vm.Program.
func (Wrapper) Run(m *vm.Machine, _ []string) error {
	script := m.LoadScript()
	if len(script.Args) < registry.PlainArgsSize {
		str := fmt.Sprintf("lock args of %d bytes, need at least %d",
			len(script.Args), registry.PlainArgsSize)
		return wrapperError(ErrWrongFormat, str)
	}
	parsed, _ := registry.ParseRegistryLock(
		script.Args[:registry.PlainArgsSize])
	registryID, wrappedHash := parsed.RegistryID, parsed.Current

	consumes, err := registry.ConsumesRegistry(m, registryID)
	if err != nil {
		return err
	}
	if consumes {
		role, err := registry.AuthorizeRole(m, script, registryID)
		if err != nil {
			return fromRegistry(err)
		}

		switch role.Kind {
		case registry.RoleSplitter:
			m.Log().Warn("registry insert, config cell lock bypassed")
			return nil
		case registry.RoleOwner:
			return execWithConfig(m, wrappedHash, role.Config)
		default:
			return execNoConfig(m, wrappedHash)
		}
	}

	res, err := registry.Resolve(m, script, registryID, wrappedHash)
	if err != nil {
		return fromRegistry(err)
	}
	if res.Found {
		return execWithConfig(m, wrappedHash, res.Config)
	}
	return execNoConfig(m, wrappedHash)
}

// loadWitness decodes the lock field of the group's first witness.
func loadWitness(m *vm.Machine) (*Witness, error) {
	wa, err := m.LoadWitnessArgs(0, vm.SourceGroupInput)
	if err != nil {
		return nil, wrapperError(ErrWrongFormat, err.Error())
	}
	if wa.Lock == nil {
		return nil, wrapperError(ErrWrongFormat,
			"witness lock field is absent")
	}
	return DecodeWitness(wa.Lock)
}

func checkWrappedHash(s *ckb.Script, want ckb.Hash) error {
	if h := s.Hash(); h != want {
		str := fmt.Sprintf("wrapped script hashes to %s, lock "+
			"references %s", h, want)
		return wrapperError(ErrInvalidWrappedScriptHash, str)
	}
	return nil
}

// execNoConfig execs the wrapped script the witness carries with argv
// [args, wrapped witness].
func execNoConfig(m *vm.Machine, wrappedHash ckb.Hash) error {
	w, err := loadWitness(m)
	if err != nil {
		return err
	}
	if w.WrappedScript == nil {
		return wrapperError(ErrWrongFormat,
			"witness carries no wrapped script")
	}
	if err := checkWrappedHash(w.WrappedScript, wrappedHash); err != nil {
		return err
	}

	argv := []string{
		hex.EncodeUpperToString(w.WrappedScript.Args),
		hex.EncodeUpperToString(w.WrappedWitness),
	}
	m.Log().Debugf("exec wrapped script %s without config", wrappedHash)
	return m.Exec(w.WrappedScript.CodeHash, w.WrappedScript.HashType, argv)
}

// execWithConfig execs the wrapped script a config cell stores with argv
// [args, wrapped witness, script config].
func execWithConfig(m *vm.Machine, wrappedHash ckb.Hash,
	record []byte) error {

	w, err := loadWitness(m)
	if err != nil {
		return err
	}
	data, err := DecodeConfigCellData(record)
	if err != nil {
		return err
	}
	if err := checkWrappedHash(&data.WrappedScript, wrappedHash); err != nil {
		return err
	}

	argv := []string{
		hex.EncodeUpperToString(data.WrappedScript.Args),
		hex.EncodeUpperToString(w.WrappedWitness),
		hex.EncodeUpperToString(data.ScriptConfig),
	}
	m.Log().Debugf("exec wrapped script %s with config", wrappedHash)
	return m.Exec(data.WrappedScript.CodeHash, data.WrappedScript.HashType,
		argv)
}
