package combinelock

import (
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/registry"
)

// LockArgs is what a composite lock's args say.
type LockArgs struct {
	// ViaRegistry is set when the configuration is looked up in the
	// registry RegistryID rather than supplied in the witness.
	ViaRegistry bool
	RegistryID  ckb.Hash

	// ConfigHash is the hash of the configuration the lock is bound to.
	ConfigHash ckb.Hash
}

// ParseLockArgs decodes lock args.  Flag 0 is followed by the configuration
// hash; flag 1 by a registry id and the configuration hash.  Trailing bytes
// are ignored.
func ParseLockArgs(args []byte) (*LockArgs, error) {
	if len(args) == 0 {
		return nil, lockError(ErrWrongArgs, "empty lock args")
	}

	switch args[0] {
	case registry.LockFlagDirect:
		if len(args) < 1+ckb.HashSize {
			str := fmt.Sprintf("direct lock args of %d bytes, need "+
				"at least %d", len(args), 1+ckb.HashSize)
			return nil, lockError(ErrWrongArgs, str)
		}
		la := &LockArgs{}
		copy(la.ConfigHash[:], args[1:1+ckb.HashSize])
		return la, nil

	case registry.LockFlagRegistry:
		if len(args) < registry.FlaggedArgsSize {
			str := fmt.Sprintf("registry lock args of %d bytes, "+
				"need at least %d", len(args),
				registry.FlaggedArgsSize)
			return nil, lockError(ErrWrongArgs, str)
		}
		la := &LockArgs{ViaRegistry: true}
		copy(la.RegistryID[:], args[1:1+ckb.HashSize])
		copy(la.ConfigHash[:], args[1+ckb.HashSize:registry.FlaggedArgsSize])
		return la, nil

	default:
		str := fmt.Sprintf("unknown lock args flag %d", args[0])
		return nil, lockError(ErrWrongArgs, str)
	}
}

// Bytes returns the args encoding of la.
func (la *LockArgs) Bytes() []byte {
	if la.ViaRegistry {
		return registry.RegistryLock{
			RegistryID: la.RegistryID,
			Current:    la.ConfigHash,
		}.FlaggedArgs()
	}

	args := make([]byte, 0, 1+ckb.HashSize)
	args = append(args, registry.LockFlagDirect)
	return append(args, la.ConfigHash[:]...)
}
