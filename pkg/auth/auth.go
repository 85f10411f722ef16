// Package auth is a multi-algorithm signature backend for lock scripts.
//
// A script names the algorithm and the 20 byte hash of the public key it
// expects, and refers to a verifier program by code hash.  The verifier is
// reached one of two ways: linked in-process (dynamic linking), or by
// replacing the running image with it (exec), in which case the request
// travels as a single argv string:
//
//	code_hash:hash_type:algorithm_id:signature:message:pubkey_hash
//
// with hash type and algorithm id as two uppercase hex digits and every other
// field in lowercase hex.
package auth

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/pkg/errors"
	hex "github.com/tmthrgd/go-hex"
)

// PubkeyHashSize is the size of the public key commitment of an Auth.
const PubkeyHashSize = ckb.Blake160Size

// AlgorithmID selects a signature algorithm.
type AlgorithmID uint8

const (
	AlgCkb         AlgorithmID = 0
	AlgEthereum    AlgorithmID = 1
	AlgEos         AlgorithmID = 2
	AlgTron        AlgorithmID = 3
	AlgBitcoin     AlgorithmID = 4
	AlgDogecoin    AlgorithmID = 5
	AlgCkbMultisig AlgorithmID = 6
	AlgSchnorr     AlgorithmID = 7
	AlgRsa         AlgorithmID = 8
	AlgIso97962    AlgorithmID = 9
	AlgOwnerLock   AlgorithmID = 0xFC
)

var algorithmNames = map[AlgorithmID]string{
	AlgCkb:         "ckb",
	AlgEthereum:    "ethereum",
	AlgEos:         "eos",
	AlgTron:        "tron",
	AlgBitcoin:     "bitcoin",
	AlgDogecoin:    "dogecoin",
	AlgCkbMultisig: "ckb-multisig",
	AlgSchnorr:     "schnorr",
	AlgRsa:         "rsa",
	AlgIso97962:    "iso9796-2",
	AlgOwnerLock:   "owner-lock",
}

// String returns the name of the algorithm.
func (a AlgorithmID) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(a))
}

// ParseAlgorithmID validates an algorithm id byte.
func ParseAlgorithmID(b byte) (AlgorithmID, error) {
	id := AlgorithmID(b)
	if _, ok := algorithmNames[id]; !ok {
		str := fmt.Sprintf("unknown algorithm id %d", b)
		return 0, authError(ErrInvalidArg, str)
	}
	return id, nil
}

// EntryCategory is how a verifier program is reached.
type EntryCategory uint8

const (
	// CategoryExec replaces the running image with the verifier.
	CategoryExec EntryCategory = 0

	// CategoryDynamicLinking calls the verifier in-process.
	CategoryDynamicLinking EntryCategory = 1
)

// String returns the name of the category.
func (c EntryCategory) String() string {
	switch c {
	case CategoryExec:
		return "exec"
	case CategoryDynamicLinking:
		return "dynamic-linking"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseEntryCategory validates an entry category byte.
func ParseEntryCategory(b byte) (EntryCategory, error) {
	c := EntryCategory(b)
	if c != CategoryExec && c != CategoryDynamicLinking {
		str := fmt.Sprintf("unknown entry category %d", b)
		return 0, authError(ErrInvalidArg, str)
	}
	return c, nil
}

// Auth names the algorithm and the key a signature must be made with.
type Auth struct {
	AlgorithmID AlgorithmID
	PubkeyHash  [PubkeyHashSize]byte
}

// Entry refers to a verifier program.
type Entry struct {
	CodeHash ckb.Hash
	HashType ckb.ScriptHashType
	Category EntryCategory
}

// Validator is implemented by verifier programs that can be linked
// in-process.
type Validator interface {
	Validate(m *vm.Machine, id AlgorithmID, sig, msg []byte,
		pubkeyHash [PubkeyHashSize]byte) error
}

// Authorize checks that sig is a signature of msg by the key id commits to,
// using the verifier entry refers to.  For an exec entry the result is the
// vm.Transfer to the verifier and the caller must return it unchanged.
func Authorize(m *vm.Machine, entry *Entry, id *Auth, sig []byte,
	msg ckb.Hash) error {

	switch entry.Category {
	case CategoryExec:
		argv := EncodeExecArgs(entry, id, sig, msg)
		m.Log().Debugf("exec %s verifier %s", id.AlgorithmID,
			entry.CodeHash)
		return m.Exec(entry.CodeHash, entry.HashType, []string{argv})

	case CategoryDynamicLinking:
		lib, err := m.LoadLibrary(entry.CodeHash, entry.HashType)
		if err != nil {
			str := fmt.Sprintf("load verifier %s: %v", entry.CodeHash,
				err)
			return authError(ErrSpawn, str)
		}
		v, ok := lib.(Validator)
		if !ok {
			str := fmt.Sprintf("verifier %s cannot be linked",
				entry.CodeHash)
			return authError(ErrWrongState, str)
		}
		return v.Validate(m, id.AlgorithmID, sig, msg[:], id.PubkeyHash)

	default:
		str := fmt.Sprintf("unknown entry category %d", entry.Category)
		return authError(ErrInvalidArg, str)
	}
}

// EncodeExecArgs returns the argv string an exec entry passes to its
// verifier.
func EncodeExecArgs(entry *Entry, id *Auth, sig []byte, msg ckb.Hash) string {
	return fmt.Sprintf("%s:%02X:%02X:%s:%s:%s",
		hex.EncodeToString(entry.CodeHash[:]), uint8(entry.HashType),
		uint8(id.AlgorithmID), hex.EncodeToString(sig),
		hex.EncodeToString(msg[:]), hex.EncodeToString(id.PubkeyHash[:]))
}

// ExecRequest is a decoded exec argv string.
type ExecRequest struct {
	Entry     Entry
	Auth      Auth
	Signature []byte
	Message   []byte
}

// DecodeExecArgs decodes the argv string of an exec entry.
func DecodeExecArgs(s string) (*ExecRequest, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 6 {
		str := fmt.Sprintf("exec args have %d fields, want 6",
			len(fields))
		return nil, authError(ErrExec, str)
	}

	fail := func(what string, err error) (*ExecRequest, error) {
		str := fmt.Sprintf("exec args %s: %v", what, err)
		return nil, authError(ErrExec, str)
	}

	var req ExecRequest
	codeHash, err := hex.DecodeString(fields[0])
	if err != nil {
		return fail("code hash", err)
	}
	if req.Entry.CodeHash, err = ckb.HashFromBytes(codeHash); err != nil {
		return fail("code hash", err)
	}

	ht, err := strconv.ParseUint(fields[1], 16, 8)
	if err != nil {
		return fail("hash type", err)
	}
	if req.Entry.HashType, err = ckb.ParseScriptHashType(byte(ht)); err != nil {
		return fail("hash type", err)
	}
	req.Entry.Category = CategoryExec

	alg, err := strconv.ParseUint(fields[2], 16, 8)
	if err != nil {
		return fail("algorithm id", err)
	}
	if req.Auth.AlgorithmID, err = ParseAlgorithmID(byte(alg)); err != nil {
		return nil, err
	}

	if req.Signature, err = hex.DecodeString(fields[3]); err != nil {
		return fail("signature", err)
	}
	if req.Message, err = hex.DecodeString(fields[4]); err != nil {
		return fail("message", err)
	}

	pkh, err := hex.DecodeString(fields[5])
	if err != nil {
		return fail("pubkey hash", err)
	}
	if len(pkh) != PubkeyHashSize {
		return fail("pubkey hash", errors.Errorf("%d bytes, want %d",
			len(pkh), PubkeyHashSize))
	}
	copy(req.Auth.PubkeyHash[:], pkh)

	return &req, nil
}
