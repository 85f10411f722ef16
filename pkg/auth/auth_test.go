package auth

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func newKey(seed byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return priv
}

// signFunc signs msg and returns the signature together with the pubkey
// hash it verifies against.
type signFunc func(t *testing.T, priv *btcec.PrivateKey,
	msg []byte) ([]byte, [PubkeyHashSize]byte)

// rsv turns a compact signature into r || s || v, v being the header minus
// base.
func rsv(compact []byte, base byte) []byte {
	sig := make([]byte, 0, RecoverableSigSize)
	sig = append(sig, compact[1:]...)
	return append(sig, compact[0]-base)
}

func signCkb(t *testing.T, priv *btcec.PrivateKey,
	msg []byte) ([]byte, [PubkeyHashSize]byte) {

	compact, err := ecdsa.SignCompact(priv, msg, true)
	require.NoError(t, err)
	return rsv(compact, compactMagic+compactCompressed),
		ckb.Blake160(priv.PubKey().SerializeCompressed())
}

func signKeccak(prefix []byte) signFunc {
	return func(t *testing.T, priv *btcec.PrivateKey,
		msg []byte) ([]byte, [PubkeyHashSize]byte) {

		compact, err := ecdsa.SignCompact(priv, keccak256(prefix, msg),
			false)
		require.NoError(t, err)

		var addr [PubkeyHashSize]byte
		pub := priv.PubKey().SerializeUncompressed()
		copy(addr[:], keccak256(pub[1:])[12:])
		return rsv(compact, compactMagic), addr
	}
}

func signMessage(magic string) signFunc {
	return func(t *testing.T, priv *btcec.PrivateKey,
		msg []byte) ([]byte, [PubkeyHashSize]byte) {

		digest, err := signedMessageDigest(magic, msg)
		require.NoError(t, err)
		sig, err := ecdsa.SignCompact(priv, digest, true)
		require.NoError(t, err)
		return sig, hash160(priv.PubKey().SerializeCompressed())
	}
}

func signSchnorr(t *testing.T, priv *btcec.PrivateKey,
	msg []byte) ([]byte, [PubkeyHashSize]byte) {

	s, err := schnorr.Sign(priv, msg)
	require.NoError(t, err)

	xonly := schnorr.SerializePubKey(priv.PubKey())
	return append(append([]byte{}, xonly...), s.Serialize()...),
		ckb.Blake160(xonly)
}

var signers = map[AlgorithmID]signFunc{
	AlgCkb:      signCkb,
	AlgEthereum: signKeccak(ethereumPrefix),
	AlgTron:     signKeccak(tronPrefix),
	AlgBitcoin:  signMessage(bitcoinMagic),
	AlgDogecoin: signMessage(dogecoinMagic),
	AlgSchnorr:  signSchnorr,
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	require.Error(t, err)
	require.True(t, IsErrorCode(err, code), "want %v, got %v", code, err)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	msg := bytes.Repeat([]byte{0x42}, MessageSize)
	other := bytes.Repeat([]byte{0x43}, MessageSize)

	for id, sign := range signers {
		t.Run(id.String(), func(tt *testing.T) {
			tt.Parallel()

			priv := newKey(1)
			sig, pkh := sign(tt, priv, msg)
			_, stranger := sign(tt, newKey(2), msg)
			cache := txscript.NewSigCache(10)

			require.NoError(tt, VerifySignature(nil, id, sig, msg, pkh))
			require.NoError(tt, VerifySignature(cache, id, sig, msg, pkh))
			require.NoError(tt, VerifySignature(cache, id, sig, msg, pkh))

			err := VerifySignature(nil, id, sig, other, pkh)
			requireCode(tt, err, ErrMismatched)

			err = VerifySignature(nil, id, sig, msg, stranger)
			requireCode(tt, err, ErrMismatched)

			err = VerifySignature(nil, id, sig[:len(sig)-1], msg, pkh)
			requireCode(tt, err, ErrInvalidArg)

			err = VerifySignature(nil, id, sig, msg[:31], pkh)
			requireCode(tt, err, ErrInvalidArg)
		})
	}
}

func TestVerifyNotImplemented(t *testing.T) {
	t.Parallel()

	msg := make([]byte, MessageSize)
	for _, id := range []AlgorithmID{AlgEos, AlgCkbMultisig, AlgRsa,
		AlgIso97962} {

		err := VerifySignature(nil, id, nil, msg, [PubkeyHashSize]byte{})
		requireCode(t, err, ErrNotImplemented)
	}
}

func TestVerifyConsultsCache(t *testing.T) {
	t.Parallel()

	msg := bytes.Repeat([]byte{7}, MessageSize)
	sig := bytes.Repeat([]byte{1}, RecoverableSigSize)
	pkh := [PubkeyHashSize]byte{9}

	cache := txscript.NewSigCache(10)
	err := VerifySignature(cache, AlgCkb, sig, msg, pkh)
	require.Error(t, err)

	key := chainhash.TaggedHash(cacheTag, []byte{byte(AlgCkb)}, msg)
	cache.Add(*key, sig, pkh[:])
	require.NoError(t, VerifySignature(cache, AlgCkb, sig, msg, pkh))

	// The entry is bound to the algorithm.
	err = VerifySignature(cache, AlgEthereum, sig, msg, pkh)
	require.Error(t, err)
}

func TestExecArgs(t *testing.T) {
	t.Parallel()

	entry := &Entry{
		CodeHash: ckb.Hash{0xab},
		HashType: ckb.HashTypeData1,
		Category: CategoryExec,
	}
	id := &Auth{AlgorithmID: AlgSchnorr, PubkeyHash: [20]byte{0xcd}}
	msg := ckb.Hash{0xef}

	s := EncodeExecArgs(entry, id, []byte{1, 2}, msg)
	fields := strings.Split(s, ":")
	require.Len(t, fields, 6)
	require.Equal(t, "ab"+strings.Repeat("0", 62), fields[0])
	require.Equal(t, "02", fields[1])
	require.Equal(t, "07", fields[2])
	require.Equal(t, "0102", fields[3])

	req, err := DecodeExecArgs(s)
	require.NoError(t, err)
	require.Equal(t, *entry, req.Entry)
	require.Equal(t, *id, req.Auth)
	require.Equal(t, []byte{1, 2}, req.Signature)
	require.Equal(t, msg[:], req.Message)

	owner := &Auth{AlgorithmID: AlgOwnerLock}
	fields = strings.Split(EncodeExecArgs(entry, owner, nil, msg), ":")
	require.Equal(t, "FC", fields[2])
	require.Empty(t, fields[3])

	tests := []struct {
		name string
		args string
		code ErrorCode
	}{
		{name: "missing field", args: strings.Join(fields[:5], ":"),
			code: ErrExec},
		{name: "bad code hash", args: "zz" + s[2:], code: ErrExec},
		{name: "short code hash", args: s[2:], code: ErrExec},
		{
			name: "unknown algorithm",
			args: strings.Replace(s, ":07:", ":0A:", 1),
			code: ErrInvalidArg,
		},
		{
			name: "bad hash type",
			args: strings.Replace(s, ":02:", ":03:", 1),
			code: ErrExec,
		},
		{name: "short pubkey hash", args: s[:len(s)-2], code: ErrExec},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			_, err := DecodeExecArgs(tc.args)
			requireCode(tt, err, tc.code)
		})
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	id := &Auth{AlgorithmID: AlgEthereum, PubkeyHash: [20]byte{1, 2, 3}}
	entry := &Entry{
		CodeHash: ckb.MaxHash,
		HashType: ckb.HashTypeData1,
		Category: CategoryDynamicLinking,
	}

	args := Args(id, entry)
	require.Len(t, args, ArgsSize)
	gotID, gotEntry, err := ParseArgs(args)
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.Equal(t, entry, gotEntry)

	entry.HashType = ckb.HashTypeType
	args = Args(id, entry)
	require.Len(t, args, ArgsSize+1)
	_, gotEntry, err = ParseArgs(args)
	require.NoError(t, err)
	require.Equal(t, ckb.HashTypeType, gotEntry.HashType)

	tests := []struct {
		name string
		args func() []byte
	}{
		{name: "short", args: func() []byte { return args[:ArgsSize-1] }},
		{name: "long", args: func() []byte { return append(args, 0) }},
		{
			name: "unknown algorithm",
			args: func() []byte {
				b := Args(id, entry)
				b[0] = 0x10
				return b
			},
		},
		{
			name: "unknown category",
			args: func() []byte {
				b := Args(id, entry)
				b[1] = 2
				return b
			},
		},
		{
			name: "bad hash type",
			args: func() []byte {
				b := Args(id, entry)
				b[ArgsSize] = 7
				return b
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tt *testing.T) {
			tt.Parallel()

			_, _, err := ParseArgs(tc.args())
			requireCode(tt, err, ErrInvalidArg)
		})
	}
}
