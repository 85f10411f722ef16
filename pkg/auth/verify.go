package auth

import (
	"bytes"
	"fmt"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/crypto/sha3"
)

const (
	// MessageSize is the size of the message every algorithm signs.
	MessageSize = 32

	// RecoverableSigSize is the size of an r || s || recovery id
	// signature.
	RecoverableSigSize = 65

	// SchnorrSigSize is the size of an x-only key followed by a BIP340
	// signature.
	SchnorrSigSize = schnorr.PubKeyBytesLen + schnorr.SignatureSize

	// compactMagic is the header base of a btcec compact signature.
	compactMagic = 27

	// compactCompressed flags a compact signature made by a compressed
	// key.
	compactCompressed = 4
)

var (
	ethereumPrefix = []byte("\x19Ethereum Signed Message:\n32")
	tronPrefix     = []byte("\x19TRON Signed Message:\n32")

	bitcoinMagic  = "Bitcoin Signed Message:\n"
	dogecoinMagic = "Dogecoin Signed Message:\n"

	// cacheTag separates cache entries of this package from any other
	// user of a shared signature cache.
	cacheTag = []byte("combinelock/auth")
)

// verifyFunc checks sig over msg against a public key commitment.
type verifyFunc func(sig, msg []byte, pubkeyHash [PubkeyHashSize]byte) error

var verifiers = map[AlgorithmID]verifyFunc{
	AlgCkb:      verifyCkb,
	AlgEthereum: verifyKeccak(ethereumPrefix),
	AlgTron:     verifyKeccak(tronPrefix),
	AlgBitcoin:  verifySignedMessage(bitcoinMagic),
	AlgDogecoin: verifySignedMessage(dogecoinMagic),
	AlgSchnorr:  verifySchnorr,
}

// Verify checks sig over msg for the algorithm id against pubkeyHash.  The
// owner lock algorithm checks the transaction instead of a signature.
func Verify(m *vm.Machine, id AlgorithmID, sig, msg []byte,
	pubkeyHash [PubkeyHashSize]byte) error {

	if id == AlgOwnerLock {
		return verifyOwnerLock(m, pubkeyHash)
	}
	return VerifySignature(m.SigCache(), id, sig, msg, pubkeyHash)
}

// VerifySignature checks sig over msg for the signature algorithm id against
// pubkeyHash.  Verified signatures are remembered in sigCache, which may be
// nil.
func VerifySignature(sigCache *txscript.SigCache, id AlgorithmID, sig,
	msg []byte, pubkeyHash [PubkeyHashSize]byte) error {

	verify, ok := verifiers[id]
	if !ok {
		str := fmt.Sprintf("algorithm %s is not implemented", id)
		return authError(ErrNotImplemented, str)
	}
	if len(msg) != MessageSize {
		str := fmt.Sprintf("message of %d bytes, want %d", len(msg),
			MessageSize)
		return authError(ErrInvalidArg, str)
	}

	cacheKey := chainhash.TaggedHash(cacheTag, []byte{byte(id)}, msg)
	if sigCache != nil && sigCache.Exists(*cacheKey, sig, pubkeyHash[:]) {
		return nil
	}

	if err := verify(sig, msg, pubkeyHash); err != nil {
		return err
	}

	if sigCache != nil {
		sigCache.Add(*cacheKey, sig, pubkeyHash[:])
	}
	return nil
}

func matchHash(got, want [PubkeyHashSize]byte) error {
	if got != want {
		str := fmt.Sprintf("key hashes to %x, want %x", got, want)
		return authError(ErrMismatched, str)
	}
	return nil
}

func hash160(b []byte) [PubkeyHashSize]byte {
	var out [PubkeyHashSize]byte
	copy(out[:], btcutil.Hash160(b))
	return out
}

// recoverKey recovers the key of an r || s || recid signature over digest.
func recoverKey(sig, digest []byte) (*btcec.PublicKey, error) {
	if len(sig) != RecoverableSigSize {
		str := fmt.Sprintf("signature of %d bytes, want %d", len(sig),
			RecoverableSigSize)
		return nil, authError(ErrInvalidArg, str)
	}

	recID := sig[64]
	if recID >= compactMagic {
		recID -= compactMagic
	}
	if recID > 3 {
		str := fmt.Sprintf("invalid recovery id %d", sig[64])
		return nil, authError(ErrInvalidArg, str)
	}

	compact := make([]byte, 0, RecoverableSigSize)
	compact = append(compact, compactMagic+compactCompressed+recID)
	compact = append(compact, sig[:64]...)

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, authError(ErrMismatched, err.Error())
	}
	return pub, nil
}

func verifyCkb(sig, msg []byte, pubkeyHash [PubkeyHashSize]byte) error {
	pub, err := recoverKey(sig, msg)
	if err != nil {
		return err
	}
	return matchHash(ckb.Blake160(pub.SerializeCompressed()), pubkeyHash)
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// verifyKeccak verifies signatures of prefixed messages made by keys
// committed to by their keccak address.
func verifyKeccak(prefix []byte) verifyFunc {
	return func(sig, msg []byte, pubkeyHash [PubkeyHashSize]byte) error {
		pub, err := recoverKey(sig, keccak256(prefix, msg))
		if err != nil {
			return err
		}

		var addr [PubkeyHashSize]byte
		copy(addr[:], keccak256(pub.SerializeUncompressed()[1:])[12:])
		return matchHash(addr, pubkeyHash)
	}
}

// signedMessageDigest returns the double SHA256 a wallet signs for msg
// under the given magic.
func signedMessageDigest(magic string, msg []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarString(&buf, 0, magic); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&buf, 0, msg); err != nil {
		return nil, err
	}
	return chainhash.DoubleHashB(buf.Bytes()), nil
}

// verifySignedMessage verifies wallet compact signatures, header byte first,
// made by keys committed to by their hash160.
func verifySignedMessage(magic string) verifyFunc {
	return func(sig, msg []byte, pubkeyHash [PubkeyHashSize]byte) error {
		if len(sig) != RecoverableSigSize {
			str := fmt.Sprintf("signature of %d bytes, want %d",
				len(sig), RecoverableSigSize)
			return authError(ErrInvalidArg, str)
		}

		digest, err := signedMessageDigest(magic, msg)
		if err != nil {
			return authError(ErrInvalidArg, err.Error())
		}
		pub, compressed, err := ecdsa.RecoverCompact(sig, digest)
		if err != nil {
			return authError(ErrMismatched, err.Error())
		}

		if compressed {
			return matchHash(hash160(pub.SerializeCompressed()),
				pubkeyHash)
		}
		return matchHash(hash160(pub.SerializeUncompressed()), pubkeyHash)
	}
}

func verifySchnorr(sig, msg []byte, pubkeyHash [PubkeyHashSize]byte) error {
	if len(sig) != SchnorrSigSize {
		str := fmt.Sprintf("signature of %d bytes, want %d", len(sig),
			SchnorrSigSize)
		return authError(ErrInvalidArg, str)
	}

	xonly := sig[:schnorr.PubKeyBytesLen]
	if err := matchHash(ckb.Blake160(xonly), pubkeyHash); err != nil {
		return err
	}

	pub, err := schnorr.ParsePubKey(xonly)
	if err != nil {
		return authError(ErrInvalidArg, err.Error())
	}
	s, err := schnorr.ParseSignature(sig[schnorr.PubKeyBytesLen:])
	if err != nil {
		return authError(ErrInvalidArg, err.Error())
	}
	if !s.Verify(msg, pub) {
		return authError(ErrMismatched, "invalid schnorr signature")
	}
	return nil
}

// verifyOwnerLock passes when the transaction spends an input whose lock
// hash starts with pubkeyHash.
func verifyOwnerLock(m *vm.Machine, pubkeyHash [PubkeyHashSize]byte) error {
	for i := 0; i < m.NumCells(vm.SourceInput); i++ {
		h, err := m.LoadCellLockHash(i, vm.SourceInput)
		if err != nil {
			return err
		}
		if bytes.Equal(h[:PubkeyHashSize], pubkeyHash[:]) {
			m.Log().Debugf("owner lock found at input %d", i)
			return nil
		}
	}
	str := fmt.Sprintf("no input lock hash starts with %x", pubkeyHash)
	return authError(ErrMismatched, str)
}
