package auth

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/childscript"
	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/sighash"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
)

const (
	// ArgsSize is the size of auth script args:
	//
	//	algorithm id(1) | entry category(1) | pubkey hash(20) |
	//	verifier code hash(32) [| verifier hash type(1)]
	//
	// The verifier hash type defaults to data1 when absent.
	ArgsSize = 2 + PubkeyHashSize + ckb.HashSize

	// DefaultVerifierHashType is the hash type verifiers are referenced
	// by when the args carry none.
	DefaultVerifierHashType = ckb.HashTypeData1
)

// Verifier is the verifier program.  It is reached by exec with a single
// argv string, see EncodeExecArgs, or linked in-process.
type Verifier struct{}

// Ensure Verifier satisfies the vm.Program and Validator interfaces.
var (
	_ vm.Program = Verifier{}
	_ Validator  = Verifier{}
)

// Run implements vm.Program.
func (Verifier) Run(m *vm.Machine, argv []string) error {
	if len(argv) != 1 {
		str := fmt.Sprintf("verifier started with %d arguments, want 1",
			len(argv))
		return authError(ErrExec, str)
	}
	req, err := DecodeExecArgs(argv[0])
	if err != nil {
		return err
	}
	return Verify(m, req.Auth.AlgorithmID, req.Signature, req.Message,
		req.Auth.PubkeyHash)
}

// Validate implements Validator.
func (Verifier) Validate(m *vm.Machine, id AlgorithmID, sig, msg []byte,
	pubkeyHash [PubkeyHashSize]byte) error {

	return Verify(m, id, sig, msg, pubkeyHash)
}

// Args returns auth script args.  The verifier hash type is only written
// when it differs from the default.
func Args(id *Auth, entry *Entry) []byte {
	args := make([]byte, 0, ArgsSize+1)
	args = append(args, byte(id.AlgorithmID), byte(entry.Category))
	args = append(args, id.PubkeyHash[:]...)
	args = append(args, entry.CodeHash[:]...)
	if entry.HashType != DefaultVerifierHashType {
		args = append(args, byte(entry.HashType))
	}
	return args
}

// ParseArgs decodes auth script args.
func ParseArgs(args []byte) (*Auth, *Entry, error) {
	if len(args) != ArgsSize && len(args) != ArgsSize+1 {
		str := fmt.Sprintf("args of %d bytes, want %d or %d", len(args),
			ArgsSize, ArgsSize+1)
		return nil, nil, authError(ErrInvalidArg, str)
	}

	alg, err := ParseAlgorithmID(args[0])
	if err != nil {
		return nil, nil, err
	}
	category, err := ParseEntryCategory(args[1])
	if err != nil {
		return nil, nil, err
	}

	id := &Auth{AlgorithmID: alg}
	copy(id.PubkeyHash[:], args[2:2+PubkeyHashSize])

	entry := &Entry{
		HashType: DefaultVerifierHashType,
		Category: category,
	}
	copy(entry.CodeHash[:], args[2+PubkeyHashSize:ArgsSize])
	if len(args) > ArgsSize {
		entry.HashType, err = ckb.ParseScriptHashType(args[ArgsSize])
		if err != nil {
			return nil, nil, authError(ErrInvalidArg, err.Error())
		}
	}
	return id, entry, nil
}

// authorizeGroup verifies sig against the signing message of the running
// group.
func authorizeGroup(m *vm.Machine, args, sig []byte) error {
	id, entry, err := ParseArgs(args)
	if err != nil {
		return err
	}
	msg, err := sighash.All(m)
	if err != nil {
		return err
	}
	return Authorize(m, entry, id, sig, msg)
}

var script = childscript.Program(
	func(m *vm.Machine, inv *childscript.Invocation) error {
		sig, err := inv.InnerWitness(m)
		if err != nil {
			return err
		}
		return authorizeGroup(m, inv.Entry.Args, sig)
	},
)

// Script is the auth script program.  Started by a composite lock it takes
// its args from its entry and its signature from its inner witness.  Used as
// a lock on its own it takes them from its script and the lock field of the
// group's first witness.
type Script struct{}

// Ensure Script satisfies the vm.Program interface.
var _ vm.Program = Script{}

// Run implements vm.Program.
func (Script) Run(m *vm.Machine, argv []string) error {
	return script.Run(m, argv)
}
