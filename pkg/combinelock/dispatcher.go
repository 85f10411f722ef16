package combinelock

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/childentry"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/registry"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	hex "github.com/tmthrgd/go-hex"
)

// Dispatcher is the composite lock program that spawns every selected child
// script and succeeds when all of them exit with zero.
type Dispatcher struct{}

// Chained is the composite lock program that hands control to the first
// selected child script and leaves running the rest to the children.
type Chained struct{}

// Ensure both dispatch modes satisfy the vm.Program interface.
var (
	_ vm.Program = Dispatcher{}
	_ vm.Program = Chained{}
)

// Child is a child script selected to run, together with the inner witness
// it reads.
type Child struct {
	Entry        childentry.Entry
	InnerWitness []byte
}

// Plan is what an unlock has to run.
type Plan struct {
	// Bypass is set when the lock has nothing to authorize: it locks the
	// config cell an insert splits.
	Bypass bool

	Children []Child
}

// Run implements vm.Program.
func (Dispatcher) Run(m *vm.Machine, _ []string) error {
	plan, err := Prepare(m)
	if err != nil {
		return err
	}
	if plan.Bypass {
		m.Log().Warn("registry insert, config cell lock bypassed")
		return nil
	}

	for i := range plan.Children {
		c := &plan.Children[i]

		entry, err := c.Entry.Encode()
		if err != nil {
			return lockError(ErrWrongFormat, err.Error())
		}
		argv := []string{entry, hex.EncodeUpperToString(c.InnerWitness)}

		m.Log().Debugf("spawning child script %d: %s", i, entry)
		code, err := m.Spawn(c.Entry.CodeHash, c.Entry.HashType, argv)
		if err != nil {
			return err
		}
		if code != 0 {
			str := fmt.Sprintf("child script %d (%s) exited with %d",
				c.Entry.WitnessIndex, c.Entry.CodeHash, code)
			return lockError(ErrUnlockFailed, str)
		}
	}
	return nil
}

// Run implements vm.Program.
func (Chained) Run(m *vm.Machine, _ []string) error {
	plan, err := Prepare(m)
	if err != nil {
		return err
	}
	if plan.Bypass {
		m.Log().Warn("registry insert, config cell lock bypassed")
		return nil
	}
	if len(plan.Children) == 0 {
		return nil
	}

	argv := make([]string, len(plan.Children))
	for i := range plan.Children {
		argv[i], err = plan.Children[i].Entry.Encode()
		if err != nil {
			return lockError(ErrWrongFormat, err.Error())
		}
	}

	first := plan.Children[0].Entry
	m.Log().Debugf("chaining %d child scripts", len(argv))
	return m.Exec(first.CodeHash, first.HashType, argv)
}

// Prepare checks the args and witness of the running composite lock, finds
// the configuration it is bound to and returns the children to run.  Every
// check either mode performs happens here, before any child runs.
func Prepare(m *vm.Machine) (*Plan, error) {
	script := m.LoadScript()
	la, err := ParseLockArgs(script.Args)
	if err != nil {
		return nil, err
	}

	var cfg *ChildScriptConfig
	if la.ViaRegistry {
		var bypass bool
		cfg, bypass, err = registryConfig(m, script, la)
		if err != nil {
			return nil, err
		}
		if bypass {
			return &Plan{Bypass: true}, nil
		}
	}

	witness, err := LoadWitness(m)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg, err = witnessConfig(witness, la.ConfigHash)
		if err != nil {
			return nil, err
		}
	}

	children, err := SelectChildren(cfg, witness)
	if err != nil {
		return nil, err
	}
	return &Plan{Children: children}, nil
}

// LoadWitness decodes the lock field of the group's first witness.
func LoadWitness(m *vm.Machine) (*CombineLockWitness, error) {
	wa, err := m.LoadWitnessArgs(0, vm.SourceGroupInput)
	if err != nil {
		return nil, lockError(ErrWrongWitnessFormat, err.Error())
	}
	if wa.Lock == nil {
		return nil, lockError(ErrWrongWitnessFormat,
			"witness lock field is absent")
	}
	return DecodeCombineLockWitness(wa.Lock)
}

// witnessConfig returns the configuration the witness carries, which must
// hash to target.
func witnessConfig(w *CombineLockWitness,
	target ckb.Hash) (*ChildScriptConfig, error) {

	if w.ScriptConfig == nil {
		return nil, lockError(ErrWrongWitnessFormat,
			"witness carries no child script config")
	}

	if h := ckb.Blake2b256(w.ScriptConfig); h != target {
		str := fmt.Sprintf("child script config hashes to %s, lock "+
			"references %s", h, target)
		return nil, lockError(ErrWrongScriptConfigHash, str)
	}
	return DecodeChildScriptConfig(w.ScriptConfig)
}

// registryConfig returns the configuration a registry stores for the lock,
// nil when the witness must supply it, or bypass=true when the lock has
// nothing to authorize.
func registryConfig(m *vm.Machine, script *ckb.Script,
	la *LockArgs) (*ChildScriptConfig, bool, error) {

	consumes, err := registry.ConsumesRegistry(m, la.RegistryID)
	if err != nil {
		return nil, false, err
	}
	if consumes {
		role, err := registry.AuthorizeRole(m, script, la.RegistryID)
		if err != nil {
			return nil, false, fromRegistry(err)
		}
		m.Log().Debugf("registry %s rewritten, lock acts as %s",
			la.RegistryID, role.Kind)

		switch role.Kind {
		case registry.RoleSplitter:
			return nil, true, nil
		case registry.RoleOwner:
			cfg, err := DecodeChildScriptConfig(role.Config)
			return cfg, false, err
		default:
			return nil, false, nil
		}
	}

	res, err := registry.Resolve(m, script, la.RegistryID, la.ConfigHash)
	if err != nil {
		return nil, false, fromRegistry(err)
	}
	if !res.Found {
		m.Log().Debugf("cell dep %d proves config %s is not registered",
			res.DepIndex, res.Target)
		return nil, false, nil
	}

	m.Log().Debugf("config %s found in cell dep %d", res.Target,
		res.DepIndex)
	cfg, err := DecodeChildScriptConfig(res.Config)
	return cfg, false, err
}

// SelectChildren returns the children of the group the witness selects, in
// group order.  Each child's entry addresses its inner witness by the
// child's position in the script array.
func SelectChildren(cfg *ChildScriptConfig,
	w *CombineLockWitness) ([]Child, error) {

	if int(w.Index) >= len(cfg.Index) {
		str := fmt.Sprintf("witness selects child group %d of %d",
			w.Index, len(cfg.Index))
		return nil, lockError(ErrCombineLockWitnessIndexOutOfBounds, str)
	}

	group := cfg.Index[w.Index]
	children := make([]Child, 0, len(group))
	for _, i := range group {
		if int(i) >= len(cfg.Array) {
			str := fmt.Sprintf("child group %d references child "+
				"script %d of %d", w.Index, i, len(cfg.Array))
			return nil, lockError(ErrChildScriptArrayIndexOutOfBounds,
				str)
		}
		if int(i) >= len(w.InnerWitness) {
			str := fmt.Sprintf("no inner witness for child script "+
				"%d, witness carries %d", i, len(w.InnerWitness))
			return nil, lockError(ErrInnerWitnessIndexOutOfBounds, str)
		}

		s := &cfg.Array[i]
		hashType, err := ckb.ParseScriptHashType(byte(s.HashType))
		if err != nil {
			str := fmt.Sprintf("child script %d: %v", i, err)
			return nil, lockError(ErrWrongHashType, str)
		}

		children = append(children, Child{
			Entry: childentry.Entry{
				CodeHash:     s.CodeHash,
				HashType:     hashType,
				WitnessIndex: uint16(i),
				Args:         s.Args,
			},
			InnerWitness: w.InnerWitness[i],
		})
	}
	return children, nil
}
