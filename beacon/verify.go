package beacon

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"golang.org/x/crypto/sha3"
)

// Domain separation tags, one per scheme (spec.md §4.4 table). The two
// G2-signature schemes share the curve library's own default G2 tag; the
// three G1-signature schemes each pin a distinct historical or RFC9380 tag.
const (
	dstG2Default = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"
	dstSwappedG1 = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_"
	dstRFC9380G1 = "BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_NUL_"
	dstBN254G1   = "BLS_SIG_BN254G1_XMD:KECCAK-256_SVDW_RO_NUL_"
)

// Beacon is one fetched randomness round (spec.md §3 "Beacon").
type Beacon struct {
	Round             uint64
	SignatureHex      string
	RandomnessHex     string
	PreviousSignature string // hex; only populated/meaningful for SchemeChainedG2
}

// roundBE64 is the 8-byte big-endian encoding of the round number used in
// every scheme's message construction (spec.md §4.4).
func roundBE64(round uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, round)
	return buf
}

// Verify checks that b is a valid beacon for wantRound under chain's pinned
// scheme and public key (spec.md §4.1 state VERIFY_BEACON).
func Verify(b Beacon, wantRound uint64, chain ChainInfo) error {
	if b.Round != wantRound {
		return fmt.Errorf("beacon: round %d != expected %d", b.Round, wantRound)
	}

	sigBytes, err := hex.DecodeString(b.SignatureHex)
	if err != nil {
		return fmt.Errorf("beacon: decode signature hex: %w", err)
	}
	wantRandomness := sha256.Sum256(sigBytes)
	if hex.EncodeToString(wantRandomness[:]) != b.RandomnessHex {
		return fmt.Errorf("beacon: SHA-256(signature) != randomness")
	}

	pubkeyBytes, err := hex.DecodeString(chain.PublicKeyHex)
	if err != nil {
		return fmt.Errorf("beacon: decode chain public key hex: %w", err)
	}

	switch chain.SchemeID {
	case SchemeChainedG2:
		prevBytes, err := hex.DecodeString(b.PreviousSignature)
		if err != nil {
			return fmt.Errorf("beacon: decode previous_signature hex: %w", err)
		}
		msg := sha256Concat(prevBytes, roundBE64(b.Round))
		return verifyG2Scheme(pubkeyBytes, sigBytes, msg, dstG2Default)
	case SchemeUnchainedG2:
		msg := sha256Sum(roundBE64(b.Round))
		return verifyG2Scheme(pubkeyBytes, sigBytes, msg, dstG2Default)
	case SchemeSwappedG1:
		msg := sha256Sum(roundBE64(b.Round))
		return verifyG1Scheme(pubkeyBytes, sigBytes, msg, dstSwappedG1)
	case SchemeRFC9380G1:
		msg := sha256Sum(roundBE64(b.Round))
		return verifyG1Scheme(pubkeyBytes, sigBytes, msg, dstRFC9380G1)
	case SchemeBN254G1:
		msg := keccak256Sum(roundBE64(b.Round))
		return verifyBN254Scheme(pubkeyBytes, sigBytes, msg, dstBN254G1)
	default:
		return fmt.Errorf("beacon: unrecognized scheme %q", chain.SchemeID)
	}
}

func sha256Sum(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}

func sha256Concat(a, b []byte) []byte {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}

func keccak256Sum(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}

// verifyG2Scheme checks the minimal-pubkey-size BLS12-381 equation used by
// the chained and unchained schemes: public key on G1, signature and
// message-hash on G2. e(g1, Sig) == e(PubKey, Hm).
func verifyG2Scheme(pubkeyBytes, sigBytes, msg []byte, dst string) error {
	var pubkey bls12381.G1Affine
	if _, err := pubkey.SetBytes(pubkeyBytes); err != nil {
		return fmt.Errorf("beacon: decode G1 public key: %w", err)
	}
	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(sigBytes); err != nil {
		return fmt.Errorf("beacon: decode G2 signature: %w", err)
	}
	hm, err := bls12381.HashToG2(msg, []byte(dst))
	if err != nil {
		return fmt.Errorf("beacon: hash-to-G2: %w", err)
	}

	_, _, g1gen, _ := bls12381.Generators()

	var negPubkey bls12381.G1Affine
	negPubkey.Neg(&pubkey)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{g1gen, negPubkey},
		[]bls12381.G2Affine{sig, hm},
	)
	if err != nil {
		return fmt.Errorf("beacon: pairing check: %w", err)
	}
	if !ok {
		return fmt.Errorf("beacon: signature does not verify")
	}
	return nil
}

// verifyG1Scheme checks the minimal-signature-size BLS12-381 equation used
// by swapped-G1 and RFC9380-G1: public key on G2, signature and
// message-hash on G1. e(Hm, -PubKey) * e(Sig, g2) == 1.
func verifyG1Scheme(pubkeyBytes, sigBytes, msg []byte, dst string) error {
	var pubkey bls12381.G2Affine
	if _, err := pubkey.SetBytes(pubkeyBytes); err != nil {
		return fmt.Errorf("beacon: decode G2 public key: %w", err)
	}
	var sig bls12381.G1Affine
	if _, err := sig.SetBytes(sigBytes); err != nil {
		return fmt.Errorf("beacon: decode G1 signature: %w", err)
	}
	hm, err := bls12381.HashToG1(msg, []byte(dst))
	if err != nil {
		return fmt.Errorf("beacon: hash-to-G1: %w", err)
	}

	_, _, _, g2gen := bls12381.Generators()

	var negPubkey bls12381.G2Affine
	negPubkey.Neg(&pubkey)

	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{hm, sig},
		[]bls12381.G2Affine{negPubkey, g2gen},
	)
	if err != nil {
		return fmt.Errorf("beacon: pairing check: %w", err)
	}
	if !ok {
		return fmt.Errorf("beacon: signature does not verify")
	}
	return nil
}

// verifyBN254Scheme mirrors verifyG1Scheme on the BN254 curve with a
// Keccak-256 hash and the SVDW hash-to-curve map (spec.md §4.4 table).
func verifyBN254Scheme(pubkeyBytes, sigBytes, msg []byte, dst string) error {
	var pubkey bn254.G2Affine
	if _, err := pubkey.SetBytes(pubkeyBytes); err != nil {
		return fmt.Errorf("beacon: decode BN254 G2 public key: %w", err)
	}
	var sig bn254.G1Affine
	if _, err := sig.SetBytes(sigBytes); err != nil {
		return fmt.Errorf("beacon: decode BN254 G1 signature: %w", err)
	}
	hm, err := bn254.HashToG1(msg, []byte(dst))
	if err != nil {
		return fmt.Errorf("beacon: hash-to-G1 (BN254): %w", err)
	}

	_, _, _, g2gen := bn254.Generators()

	var negPubkey bn254.G2Affine
	negPubkey.Neg(&pubkey)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{hm, sig},
		[]bn254.G2Affine{negPubkey, g2gen},
	)
	if err != nil {
		return fmt.Errorf("beacon: pairing check: %w", err)
	}
	if !ok {
		return fmt.Errorf("beacon: signature does not verify")
	}
	return nil
}
