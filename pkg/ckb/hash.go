package ckb

import (
	"bytes"
	"fmt"
	"hash"

	"github.com/minio/blake2b-simd"
	"github.com/tmthrgd/go-hex"
)

const (
	// HashSize is the size of a Hash in bytes.
	HashSize = 32

	// Blake160Size is the size of a truncated blake2b digest, used for
	// public key hashes.
	Blake160Size = 20
)

// personalization is the blake2b personalization string every ledger hash is
// computed with.
var personalization = []byte("ckb-default-hash")

// Hash is a 256-bit value.  Hashes are totally ordered by big-endian byte
// comparison, which is the order the registry partitions the hash space by.
type Hash [HashSize]byte

// ZeroHash is the lowest Hash value.
var ZeroHash Hash

// MaxHash is the highest Hash value, all bits set.
var MaxHash = Hash{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// NewHasher returns a blake2b-256 hasher with the ledger personalization.
func NewHasher() hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   HashSize,
		Person: personalization,
	})
	if err != nil {
		// The configuration is constant and valid.
		panic(err)
	}
	return h
}

// Blake2b256 returns the ledger hash of the concatenation of data.
func Blake2b256(data ...[]byte) Hash {
	h := NewHasher()
	for _, d := range data {
		h.Write(d)
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Blake160 returns the first 20 bytes of the ledger hash of data.
func Blake160(data []byte) [Blake160Size]byte {
	full := Blake2b256(data)

	var out [Blake160Size]byte
	copy(out[:], full[:Blake160Size])
	return out
}

// HashFromBytes copies a 32 byte slice into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length %d, expected %d",
			len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash decodes a hex string, with or without a 0x prefix, into a Hash.
func ParseHash(s string) (Hash, error) {
	b, err := DecodeHex(s)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(b)
}

// Compare returns -1, 0 or +1 depending on whether h sorts before, equal to or
// after other.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// Less reports whether h sorts strictly before other.
func (h Hash) Less(other Hash) bool {
	return h.Compare(other) < 0
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Bytes returns a copy of the hash bytes.
func (h Hash) Bytes() []byte {
	return append([]byte(nil), h[:]...)
}

// String returns the 0x prefixed lowercase hex form of h.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// DecodeHex decodes a hex string with an optional 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// EncodeHex returns the 0x prefixed lowercase hex form of b.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
