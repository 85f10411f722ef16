// Package vm implements the deterministic execution substrate scripts run on.
//
// The engine verifies a resolved transaction the way a cell-model ledger
// does:
//   - Inputs are grouped by lock script hash, and inputs and outputs are
//     grouped by type script hash.  Every group runs its script once.
//   - A script's code is located through the transaction's cell deps, by data
//     hash (Data, Data1) or by the hash of a dep's type script (Type), and the
//     located bytes select a native program image from a ProgramRegistry.
//   - Programs read the transaction through Machine syscalls, may replace
//     themselves with another image (Exec) and may run a child image
//     synchronously (Spawn).
//
// Verification is single-threaded and never mutates the transaction.
package vm

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/btcsuite/btcd/txscript"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// resolveCacheSize is the number of code references an engine keeps
	// resolved images for.
	resolveCacheSize = 256
)

// Limits bounds the work a single transaction verification may perform.
type Limits struct {
	// MaxSpawnDepth is the deepest allowed nesting of spawned children.
	MaxSpawnDepth int

	// MaxExecChain is the longest allowed chain of exec transfers within
	// one process.
	MaxExecChain int

	// MaxInvocations is the total number of images, including exec
	// targets and spawned children, a transaction may run.
	MaxInvocations int
}

// DefaultLimits are the limits used when none are configured.
var DefaultLimits = Limits{
	MaxSpawnDepth:  8,
	MaxExecChain:   64,
	MaxInvocations: 4096,
}

// ResolvedTransaction is a transaction together with the cells its inputs
// spend and the cells its deps make readable.  CellDeps lists the cells in
// the order scripts see them, dep groups already expanded.
type ResolvedTransaction struct {
	Transaction *ckb.Transaction
	Inputs      []ckb.CellMeta
	CellDeps    []ckb.CellMeta
}

// ScriptGroupType tells whether a group runs a lock or a type script.
type ScriptGroupType uint8

const (
	// LockGroup runs a lock script over the inputs it guards.
	LockGroup ScriptGroupType = iota

	// TypeGroup runs a type script over the inputs and outputs it types.
	TypeGroup
)

// String returns the name of the group type.
func (t ScriptGroupType) String() string {
	if t == LockGroup {
		return "lock"
	}
	return "type"
}

// ScriptGroup is the set of cells sharing one script.  The script runs once
// per group and sees the group's cells through the GroupInput and GroupOutput
// sources.
type ScriptGroup struct {
	GroupType     ScriptGroupType
	Script        ckb.Script
	ScriptHash    ckb.Hash
	InputIndices  []int
	OutputIndices []int
}

// InvocationKind tells how an image came to run.
type InvocationKind uint8

const (
	// InvokeGroup is the first image of a script group.
	InvokeGroup InvocationKind = iota

	// InvokeExec is an image that replaced its caller.
	InvokeExec

	// InvokeSpawn is a child image run synchronously.
	InvokeSpawn
)

// String returns the name of the invocation kind.
func (k InvocationKind) String() string {
	switch k {
	case InvokeGroup:
		return "group"
	case InvokeExec:
		return "exec"
	default:
		return "spawn"
	}
}

// TraceInfo houses the state passed back to the trace callback every time an
// image starts or finishes.
type TraceInfo struct {
	// Group is the script group being verified.
	Group *ScriptGroup

	// Kind tells how the image was reached.
	Kind InvocationKind

	// Depth is the spawn depth of the running process, 0 for the group's
	// own process.
	Depth int

	// Image is the name of the image.
	Image string

	// Argv is the argument vector the image runs with.
	Argv []string

	// Done is set once the image returned; ExitCode is only meaningful
	// then.
	Done bool

	// ExitCode is the code the image finished with.
	ExitCode int8
}

// Engine verifies the scripts of one resolved transaction.
type Engine struct {
	// The following fields are set when the engine is created and must not be
	// changed afterwards.
	//
	// rtx is the transaction being verified together with the cells it
	// reads.
	//
	// outputs are the transaction outputs paired with their data, in the
	// form syscalls hand cells out.
	//
	// depDataHashes caches the data hash of every cell dep.
	//
	// programs maps code cell data onto program images.
	//
	// sigCache caches signature verification results across engines, since
	// the same transaction is often verified more than once.
	rtx           *ResolvedTransaction
	txHash        ckb.Hash
	outputs       []ckb.CellMeta
	depDataHashes []ckb.Hash
	programs      *ProgramRegistry
	sigCache      *txscript.SigCache
	limits        Limits
	log           logrus.FieldLogger

	// resolved caches code reference resolution for the lifetime of the
	// engine.
	resolved *lru.Cache

	// invocations counts the images run so far.
	invocations int

	// traceCallback is an optional function called whenever an image starts
	// and finishes.
	//
	// NOTE: This is only meant to be used in debugging, and SHOULD NOT BE
	// USED during regular operation.
	traceCallback func(*TraceInfo) error
}

// codeRef is the cache key of a resolved code reference.
type codeRef struct {
	codeHash ckb.Hash
	hashType ckb.ScriptHashType
}

// NewEngine returns a new engine for the provided resolved transaction.
func NewEngine(rtx *ResolvedTransaction, programs *ProgramRegistry,
	sigCache *txscript.SigCache, limits Limits) (*Engine, error) {

	if rtx == nil || rtx.Transaction == nil {
		return nil, scriptError(ErrInvalidTransaction,
			"resolved transaction is empty")
	}
	tx := rtx.Transaction

	if len(rtx.Inputs) != len(tx.Inputs) {
		str := fmt.Sprintf("%d resolved inputs for %d transaction "+
			"inputs", len(rtx.Inputs), len(tx.Inputs))
		return nil, scriptError(ErrInvalidTransaction, str)
	}
	if len(tx.OutputsData) != len(tx.Outputs) {
		str := fmt.Sprintf("%d outputs data for %d outputs",
			len(tx.OutputsData), len(tx.Outputs))
		return nil, scriptError(ErrInvalidTransaction, str)
	}
	for i := range rtx.Inputs {
		if rtx.Inputs[i].OutPoint != tx.Inputs[i].PreviousOutput {
			str := fmt.Sprintf("resolved input %d is %s, transaction "+
				"spends %s", i, rtx.Inputs[i].OutPoint,
				tx.Inputs[i].PreviousOutput)
			return nil, scriptError(ErrInvalidTransaction, str)
		}
	}

	resolved, err := lru.New(resolveCacheSize)
	if err != nil {
		return nil, err
	}

	txHash := tx.Hash()
	outputs := make([]ckb.CellMeta, len(tx.Outputs))
	for i := range tx.Outputs {
		outputs[i] = ckb.CellMeta{
			OutPoint: ckb.OutPoint{TxHash: txHash, Index: uint32(i)},
			Output:   tx.Outputs[i],
			Data:     tx.OutputsData[i],
		}
	}

	depDataHashes := make([]ckb.Hash, len(rtx.CellDeps))
	for i := range rtx.CellDeps {
		depDataHashes[i] = rtx.CellDeps[i].DataHash()
	}

	if limits == (Limits{}) {
		limits = DefaultLimits
	}

	return &Engine{
		rtx:           rtx,
		txHash:        txHash,
		outputs:       outputs,
		depDataHashes: depDataHashes,
		programs:      programs,
		sigCache:      sigCache,
		limits:        limits,
		log:           logrus.StandardLogger(),
		resolved:      resolved,
	}, nil
}

// NewDebugEngine returns a new engine with a trace callback set.  This is
// useful for debugging script execution.
func NewDebugEngine(rtx *ResolvedTransaction, programs *ProgramRegistry,
	sigCache *txscript.SigCache, limits Limits,
	traceCallback func(*TraceInfo) error) (*Engine, error) {

	vm, err := NewEngine(rtx, programs, sigCache, limits)
	if err != nil {
		return nil, err
	}

	vm.traceCallback = traceCallback
	return vm, nil
}

// SetLogger sets the logger scripts write their debug output to.
func (vm *Engine) SetLogger(log logrus.FieldLogger) {
	vm.log = log
}

// TxHash returns the hash of the transaction being verified.
func (vm *Engine) TxHash() ckb.Hash {
	return vm.txHash
}

// Groups returns the script groups of the transaction: lock groups in order
// of first appearance among the inputs, then type groups in order of first
// appearance among the inputs followed by the outputs.
func (vm *Engine) Groups() []*ScriptGroup {
	var (
		groups    []*ScriptGroup
		lockIndex = make(map[ckb.Hash]*ScriptGroup)
		typeIndex = make(map[ckb.Hash]*ScriptGroup)
	)

	for i := range vm.rtx.Inputs {
		lock := &vm.rtx.Inputs[i].Output.Lock
		h := lock.Hash()
		g, ok := lockIndex[h]
		if !ok {
			g = &ScriptGroup{
				GroupType:  LockGroup,
				Script:     *lock.Clone(),
				ScriptHash: h,
			}
			lockIndex[h] = g
			groups = append(groups, g)
		}
		g.InputIndices = append(g.InputIndices, i)
	}

	typeGroup := func(typ *ckb.Script) *ScriptGroup {
		h := typ.Hash()
		g, ok := typeIndex[h]
		if !ok {
			g = &ScriptGroup{
				GroupType:  TypeGroup,
				Script:     *typ.Clone(),
				ScriptHash: h,
			}
			typeIndex[h] = g
			groups = append(groups, g)
		}
		return g
	}
	for i := range vm.rtx.Inputs {
		if typ := vm.rtx.Inputs[i].Output.Type; typ != nil {
			g := typeGroup(typ)
			g.InputIndices = append(g.InputIndices, i)
		}
	}
	for i := range vm.outputs {
		if typ := vm.outputs[i].Output.Type; typ != nil {
			g := typeGroup(typ)
			g.OutputIndices = append(g.OutputIndices, i)
		}
	}

	return groups
}

// Verify runs every script group of the transaction and returns nil when all
// of them succeed.  The first failing group aborts verification and is
// reported as a *GroupError.
func (vm *Engine) Verify() error {
	for _, group := range vm.Groups() {
		if err := vm.VerifyGroup(group); err != nil {
			return err
		}
	}
	return nil
}

// VerifyGroup runs the script of a single group.
func (vm *Engine) VerifyGroup(group *ScriptGroup) error {
	img, err := vm.resolveProgram(group.Script.CodeHash, group.Script.HashType)
	if err != nil {
		return &GroupError{Group: group, ExitCode: ExitCode(err), Err: err}
	}

	m := &Machine{
		engine: vm,
		group:  group,
		log: vm.log.WithFields(logrus.Fields{
			"group":  group.GroupType.String(),
			"script": group.ScriptHash.String(),
		}),
	}

	err = vm.run(m, img, nil, InvokeGroup)
	if err != nil {
		return &GroupError{Group: group, ExitCode: ExitCode(err), Err: err}
	}
	return nil
}

// resolveProgram locates the image a code reference points at through the
// transaction's cell deps.
func (vm *Engine) resolveProgram(codeHash ckb.Hash,
	hashType ckb.ScriptHashType) (*Image, error) {

	key := codeRef{codeHash: codeHash, hashType: hashType}
	if v, ok := vm.resolved.Get(key); ok {
		return v.(*Image), nil
	}

	var dataHash *ckb.Hash
	switch hashType {
	case ckb.HashTypeData, ckb.HashTypeData1:
		for i := range vm.depDataHashes {
			if vm.depDataHashes[i] == codeHash {
				dataHash = &vm.depDataHashes[i]
				break
			}
		}

	case ckb.HashTypeType:
		for i := range vm.rtx.CellDeps {
			typeHash := vm.rtx.CellDeps[i].TypeHash()
			if typeHash == nil || *typeHash != codeHash {
				continue
			}
			if dataHash != nil && *dataHash != vm.depDataHashes[i] {
				str := fmt.Sprintf("type hash %s matches several "+
					"code cells", codeHash)
				return nil, scriptError(ErrMultipleMatches, str)
			}
			dataHash = &vm.depDataHashes[i]
		}

	default:
		str := fmt.Sprintf("invalid hash type %d for code hash %s",
			byte(hashType), codeHash)
		return nil, scriptError(ErrInvalidHashType, str)
	}

	if dataHash == nil {
		str := fmt.Sprintf("no cell dep provides code %s (%s)",
			codeHash, hashType)
		return nil, scriptError(ErrScriptNotFound, str)
	}

	img, ok := vm.programs.Lookup(*dataHash)
	if !ok {
		str := fmt.Sprintf("code cell %s is not a known program image",
			*dataHash)
		return nil, scriptError(ErrScriptNotFound, str)
	}

	vm.resolved.Add(key, img)
	return img, nil
}

// tallyInvocation accounts for one more image run.
func (vm *Engine) tallyInvocation() error {
	vm.invocations++
	if vm.invocations > vm.limits.MaxInvocations {
		str := fmt.Sprintf("transaction ran more than %d images",
			vm.limits.MaxInvocations)
		return scriptError(ErrInvocationsExceeded, str)
	}
	return nil
}

// trace calls the trace callback when one is set.
func (vm *Engine) trace(info *TraceInfo) error {
	if vm.traceCallback == nil {
		return nil
	}
	return vm.traceCallback(info)
}

// run executes img on m, following exec transfers until an image finishes.
// The returned error is the final image's result.
func (vm *Engine) run(m *Machine, img *Image, argv []string,
	kind InvocationKind) error {

	for chain := 0; ; chain++ {
		if err := vm.tallyInvocation(); err != nil {
			return err
		}

		info := &TraceInfo{
			Group: m.group,
			Kind:  kind,
			Depth: m.depth,
			Image: img.Name,
			Argv:  argv,
		}
		if err := vm.trace(info); err != nil {
			return err
		}

		m.log.WithFields(logrus.Fields{
			"image": img.Name,
			"kind":  kind.String(),
			"depth": m.depth,
		}).Debug("running image")

		err := img.Program.Run(m, argv)

		// A transfer replaces the running image.  The caller's state is
		// gone, so the next image's result is the process result.
		var transfer *Transfer
		if errors.As(err, &transfer) {
			if chain+1 >= vm.limits.MaxExecChain {
				str := fmt.Sprintf("exec chain longer than %d",
					vm.limits.MaxExecChain)
				return scriptError(ErrExecChainExceeded, str)
			}

			next, rerr := vm.resolveProgram(
				transfer.CodeHash, transfer.HashType,
			)
			if rerr != nil {
				return rerr
			}

			img, argv, kind = next, transfer.Argv, InvokeExec
			continue
		}

		info.Done = true
		info.ExitCode = ExitCode(err)
		if terr := vm.trace(info); terr != nil {
			return terr
		}

		return err
	}
}
