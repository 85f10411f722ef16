// Package sighash computes the signing message of a lock script group.
//
// The message commits to the transaction hash and to every witness the group
// is responsible for, with the lock field of the group's first witness
// zeroed so the signature it will hold is not part of what it signs:
//
//	blake2b(tx hash
//	        | len(w0) | w0 with lock zeroed
//	        | len(w) | w   for every other group witness
//	        | len(w) | w   for every witness beyond the inputs)
//
// Lengths are u64 little endian.  Witnesses are streamed in chunks so the
// message of a large witness never needs it in memory at once.
package sighash

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/pkg/errors"
)

const (
	// ChunkSize is the number of witness bytes loaded at once.
	ChunkSize = 32768

	// lockOffset is where the content of the lock field of a serialized
	// witness envelope begins, after the table header and the Bytes item
	// count.
	lockOffset = 20
)

// ErrorCode identifies a kind of sighash failure.
type ErrorCode int8

const (
	// ErrEncoding is returned when the group's first witness is not a
	// witness envelope carrying a lock field.
	ErrEncoding = ErrorCode(vm.ErrEncoding)
)

// Error identifies a sighash failure.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// ExitCode returns the exit code a script failing with e reports.
func (e Error) ExitCode() int8 {
	return int8(e.ErrorCode)
}

// IsErrorCode returns whether or not the provided error is a sighash error
// with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	var serr Error
	return errors.As(err, &serr) && serr.ErrorCode == c
}

// chunkFunc receives one chunk of a witness, the offset of the chunk and the
// full length of the witness.
type chunkFunc func(chunk []byte, offset, total int) error

// stream feeds the witness at index within source through fn.  It reports
// false when source holds no witness at index.
func stream(m *vm.Machine, index int, source vm.Source,
	fn chunkFunc) (bool, error) {

	for offset := 0; ; {
		chunk, total, err := m.LoadWitnessChunk(index, source, offset,
			ChunkSize)
		if vm.IsErrorCode(err, vm.ErrIndexOutOfBound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if err := fn(chunk, offset, total); err != nil {
			return false, err
		}

		offset += len(chunk)
		if offset >= total {
			return true, nil
		}
	}
}

func writeLen(h hash.Hash, n int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	h.Write(b[:])
}

// hashFrom digests every witness of source from index start on.
func hashFrom(m *vm.Machine, h hash.Hash, start int, source vm.Source) error {
	for i := start; ; i++ {
		found, err := stream(m, i, source,
			func(chunk []byte, offset, total int) error {
				if offset == 0 {
					writeLen(h, total)
				}
				h.Write(chunk)
				return nil
			},
		)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
	}
}

// All returns the signing message of the running script group.
func All(m *vm.Machine) (ckb.Hash, error) {
	h := ckb.NewHasher()
	txHash := m.LoadTxHash()

	var zeroEnd int
	first := func(chunk []byte, offset, total int) error {
		if offset == 0 {
			if total < lockOffset {
				str := fmt.Sprintf("first group witness of %d "+
					"bytes cannot hold a lock", total)
				return Error{ErrEncoding, str}
			}
			lockLen := int(binary.LittleEndian.Uint32(
				chunk[lockOffset-4 : lockOffset]))
			if total < lockOffset+lockLen {
				str := fmt.Sprintf("lock of %d bytes overruns "+
					"witness of %d bytes", lockLen, total)
				return Error{ErrEncoding, str}
			}
			zeroEnd = lockOffset + lockLen

			h.Write(txHash[:])
			writeLen(h, total)
		}

		from := max(lockOffset, offset)
		to := min(zeroEnd, offset+len(chunk))
		for i := from; i < to; i++ {
			chunk[i-offset] = 0
		}
		h.Write(chunk)
		return nil
	}

	found, err := stream(m, 0, vm.SourceGroupInput, first)
	if err != nil {
		return ckb.Hash{}, err
	}
	if !found {
		return ckb.Hash{}, Error{ErrEncoding, "script group has no witness"}
	}

	if err := hashFrom(m, h, 1, vm.SourceGroupInput); err != nil {
		return ckb.Hash{}, err
	}
	if err := hashFrom(m, h, m.NumCells(vm.SourceInput), vm.SourceInput); err != nil {
		return ckb.Hash{}, err
	}

	var msg ckb.Hash
	copy(msg[:], h.Sum(nil))
	return msg, nil
}
