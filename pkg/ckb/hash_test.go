package ckb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlake2b256(t *testing.T) {
	t.Parallel()

	want, err := ParseHash("44f4c69744d5f8c55d642062949dcae49bc4e7ef43d388c5a12f42b5633d163e")
	require.NoError(t, err)
	require.Equal(t, want, Blake2b256())
	require.Equal(t, want, Blake2b256(nil, []byte{}))

	// Hashing the parts equals hashing their concatenation.
	require.Equal(t, Blake2b256([]byte("abcd")),
		Blake2b256([]byte("ab"), []byte("cd")))

	full := Blake2b256([]byte("key"))
	short := Blake160([]byte("key"))
	require.Equal(t, full[:Blake160Size], short[:])
}

func TestHashOrder(t *testing.T) {
	t.Parallel()

	low := Hash{0x00, 0xff}
	high := Hash{0x01}

	require.True(t, ZeroHash.Less(low))
	require.True(t, low.Less(high))
	require.True(t, high.Less(MaxHash))
	require.False(t, high.Less(high))
	require.Equal(t, 0, MaxHash.Compare(MaxHash))
	require.Equal(t, 1, MaxHash.Compare(ZeroHash))
	require.True(t, ZeroHash.IsZero())
	require.False(t, low.IsZero())
}

func TestParseHash(t *testing.T) {
	t.Parallel()

	s := MaxHash.String()
	require.Equal(t, "0x"+string(make64('f')), s)

	for _, in := range []string{s, s[2:], "0X" + s[2:]} {
		h, err := ParseHash(in)
		require.NoError(t, err)
		require.Equal(t, MaxHash, h)
	}

	_, err := ParseHash("0x00")
	require.Error(t, err)
	_, err = ParseHash("0xzz")
	require.Error(t, err)

	var h Hash
	require.NoError(t, h.UnmarshalText([]byte(s)))
	require.Equal(t, MaxHash, h)
	text, err := h.MarshalText()
	require.NoError(t, err)
	require.Equal(t, s, string(text))

	b, err := DecodeHex("0x")
	require.NoError(t, err)
	require.Empty(t, b)
	require.Equal(t, "0x0aff", EncodeHex([]byte{0x0a, 0xff}))
}

func make64(c byte) []byte {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return b
}
