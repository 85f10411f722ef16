// Package childscript is the runtime of child scripts, the programs a
// composite lock delegates to.
//
// A child is started in one of two ways.  Spawned by the composite lock it
// receives its own entry and its inner witness in hex:
//
//	argv: [entry, HEX(inner witness)]
//
// Chained, it receives its own entry followed by the entries of every child
// still to run, and reads its inner witness from the composite lock witness.
// Once its check passes it execs the next entry with the rest of the list.
//
// Executed by a lock wrapper, it receives the hex of its args, of its
// wrapped witness and, when a config cell stores one, of its script config:
//
//	argv: [HEX(args), HEX(wrapped witness)(, HEX(script config))]
//
// Started without argv, a child script runs as a plain lock: its entry is
// its own script and its inner witness is the lock field of the group's
// first witness.
package childscript

import (
	"fmt"
	"strings"

	"github.com/ArkLabsHQ/combinelock/pkg/childentry"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/combinelock"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/pkg/errors"
	hex "github.com/tmthrgd/go-hex"
)

// Invocation is how a child script was started.
type Invocation struct {
	Entry *childentry.Entry

	// Chain is the argv of a chained child: its own entry followed by
	// the entries still to run.  It is nil for a spawned child.
	Chain []string

	// Config is the script config a lock wrapper passed from the config
	// cell storing the child, nil otherwise.
	Config []byte

	inner      []byte
	standalone bool
	wrapped    bool
}

// ParseArgv decodes the argv a child script was started with.
func ParseArgv(argv []string) (*Invocation, error) {
	if len(argv) == 0 {
		return nil, childError(ErrWrongEntry, "started without an entry")
	}

	if !strings.Contains(argv[0], ":") {
		return parseWrapped(argv)
	}

	entry, err := childentry.Parse(argv[0])
	if err != nil {
		return nil, err
	}
	inv := &Invocation{Entry: entry}

	if len(argv) == 2 && !strings.Contains(argv[1], ":") {
		inv.inner, err = hex.DecodeString(argv[1])
		if err != nil {
			str := fmt.Sprintf("inner witness is not hex: %v", err)
			return nil, childError(ErrWrongHex, str)
		}
		return inv, nil
	}

	inv.Chain = append([]string(nil), argv...)
	return inv, nil
}

// parseWrapped decodes the argv of a child executed by a lock wrapper.  The
// entry of a wrapped child carries its args only.
func parseWrapped(argv []string) (*Invocation, error) {
	if len(argv) != 2 && len(argv) != 3 {
		str := fmt.Sprintf("wrapped child started with %d arguments",
			len(argv))
		return nil, childError(ErrWrongEntry, str)
	}

	fields := make([][]byte, len(argv))
	for i, a := range argv {
		b, err := hex.DecodeString(a)
		if err != nil {
			str := fmt.Sprintf("argument %d is not hex: %v", i, err)
			return nil, childError(ErrWrongHex, str)
		}
		fields[i] = b
	}

	inv := &Invocation{
		Entry:   &childentry.Entry{Args: fields[0]},
		inner:   fields[1],
		wrapped: true,
	}
	if len(fields) == 3 {
		inv.Config = fields[2]
	}
	return inv, nil
}

// Standalone returns the invocation of a child script run directly as the
// lock of its group.
func Standalone(m *vm.Machine) *Invocation {
	script := m.LoadScript()
	return &Invocation{
		Entry: &childentry.Entry{
			CodeHash: script.CodeHash,
			HashType: script.HashType,
			Args:     script.Args,
		},
		standalone: true,
	}
}

// Spawned reports whether the child was spawned rather than chained.
func (inv *Invocation) Spawned() bool {
	return inv.Chain == nil && !inv.standalone && !inv.wrapped
}

// Wrapped reports whether the child was executed by a lock wrapper.
func (inv *Invocation) Wrapped() bool {
	return inv.wrapped
}

// InnerWitness returns the witness the child authorizes with.
func (inv *Invocation) InnerWitness(m *vm.Machine) ([]byte, error) {
	if inv.Spawned() || inv.wrapped {
		return inv.inner, nil
	}
	if inv.standalone {
		wa, err := m.LoadWitnessArgs(0, vm.SourceGroupInput)
		if err != nil {
			return nil, err
		}
		return wa.Lock, nil
	}

	w, err := combinelock.LoadWitness(m)
	if err != nil {
		return nil, err
	}
	i := int(inv.Entry.WitnessIndex)
	if i >= len(w.InnerWitness) {
		str := fmt.Sprintf("entry addresses inner witness %d, witness "+
			"carries %d", i, len(w.InnerWitness))
		return nil, childError(ErrWrongEntry, str)
	}
	return w.InnerWitness[i], nil
}

// Continue hands control to the next chained entry, if any.  The caller
// must return the result unchanged.
func Continue(m *vm.Machine, inv *Invocation) error {
	if len(inv.Chain) < 2 {
		m.Log().Debug("last chained child, chain ends")
		return nil
	}

	next, err := childentry.Parse(inv.Chain[1])
	if err != nil {
		return combinelock.Error{
			ErrorCode:   combinelock.ErrChainedExec,
			Description: fmt.Sprintf("next entry: %v", err),
		}
	}
	m.Log().Debugf("exec next chained child %s", next.CodeHash)
	return m.Exec(next.CodeHash, next.HashType, inv.Chain[1:])
}

// Check is the authorization a child script performs.
type Check func(m *vm.Machine, inv *Invocation) error

// Program returns a child script program performing check.  Errors without
// an exit code of their own are reported as ErrChildFailure.  A check may
// hand control to another image by returning a vm.Transfer, which ends the
// chain.
func Program(check Check) vm.Program {
	return vm.ProgramFunc(func(m *vm.Machine, argv []string) error {
		inv := Standalone(m)
		if len(argv) > 0 {
			var err error
			if inv, err = ParseArgv(argv); err != nil {
				return err
			}
		}

		if err := check(m, inv); err != nil {
			var (
				coder    vm.ExitCoder
				transfer *vm.Transfer
			)
			if errors.As(err, &coder) || errors.As(err, &transfer) {
				return err
			}
			return childError(ErrChildFailure, err.Error())
		}
		return Continue(m, inv)
	})
}

// AlwaysSuccess is a child script that authorizes anything.
var AlwaysSuccess = Program(func(m *vm.Machine, _ *Invocation) error {
	m.Log().Debug("always success")
	return nil
})

// ExitWithArgs is a child script that exits with the code its first args
// byte holds, or zero without args.
var ExitWithArgs = Program(func(_ *vm.Machine, inv *Invocation) error {
	if len(inv.Entry.Args) == 0 {
		return nil
	}
	return vm.Exit(int8(inv.Entry.Args[0]))
})

// Preimage is a child script whose args are a hash; it authorizes an inner
// witness hashing to it.
var Preimage = Program(func(m *vm.Machine, inv *Invocation) error {
	want, err := ckb.HashFromBytes(inv.Entry.Args)
	if err != nil {
		return childError(ErrWrongEntry, err.Error())
	}

	witness, err := inv.InnerWitness(m)
	if err != nil {
		return err
	}
	if got := ckb.Blake2b256(witness); got != want {
		str := fmt.Sprintf("inner witness hashes to %s, want %s", got,
			want)
		return childError(ErrChildFailure, str)
	}
	return nil
})
