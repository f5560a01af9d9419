package attestation

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha512"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"
)

// p384SignatureLen is the byte length of a raw r‖s P-384 signature
// (2 x 48-byte field elements).
const p384SignatureLen = 96

// Verifier checks an attestation envelope's COSE signature against a chain
// of trust pinned to a single root certificate (spec.md §4.3 "Verify
// (cryptographic)").
type Verifier struct {
	Root *x509.Certificate
	// Now returns the clock used for validity checks; defaults to time.Now
	// when nil, overridable in tests.
	Now func() time.Time
}

// NewVerifier constructs a Verifier pinned to root.
func NewVerifier(root *x509.Certificate) *Verifier {
	return &Verifier{Root: root}
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify parses raw as a COSE_Sign1 envelope, verifies its signature chains
// to the pinned root, and returns the parsed document. Any structural or
// cryptographic failure is returned as an error; callers must treat every
// error as fatal and never attempt to recover a document from a failed
// verification (spec.md §4.3, §7).
func (v *Verifier) Verify(raw []byte) (*Document, error) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(env.Payload)
	if err != nil {
		return nil, err
	}

	alg, err := env.Algorithm()
	if err != nil {
		return nil, err
	}
	if alg != ecdsaP384SHA384AlgID {
		return nil, fmt.Errorf("attestation: algorithm %d != expected %d", alg, ecdsaP384SHA384AlgID)
	}

	chain, err := v.buildChain(doc)
	if err != nil {
		return nil, err
	}

	now := v.now()
	for i := 0; i < len(chain)-1; i++ {
		child, issuer := chain[i], chain[i+1]
		if err := verifyLink(child, issuer, now); err != nil {
			return nil, fmt.Errorf("attestation: chain link %d: %w", i, err)
		}
	}
	root := chain[len(chain)-1]
	if now.Before(root.NotBefore) || now.After(root.NotAfter) {
		return nil, fmt.Errorf("attestation: root certificate not valid at %s", now)
	}

	leaf := chain[0]
	leafKey, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("attestation: leaf public key is not ECDSA")
	}
	if leafKey.Curve != elliptic.P384() {
		return nil, fmt.Errorf("attestation: leaf public key is not on P-384")
	}

	der, err := rawToDER(env.Signature)
	if err != nil {
		return nil, fmt.Errorf("attestation: signature conversion: %w", err)
	}
	toBeSigned, err := sigStructure(env.Protected, env.Payload)
	if err != nil {
		return nil, err
	}
	hash := sha512.Sum384(toBeSigned)
	if !ecdsa.VerifyASN1(leafKey, hash[:], der) {
		return nil, fmt.Errorf("attestation: signature verification failed")
	}

	return doc, nil
}

// buildChain assembles [leaf, intermediates-reversed] and asserts the last
// element matches the pinned root byte-for-byte (spec.md §4.3 step 2, §9
// "chain-construction order ... is security-critical").
func (v *Verifier) buildChain(doc *Document) ([]*x509.Certificate, error) {
	leaf, err := x509.ParseCertificate(doc.Certificate)
	if err != nil {
		return nil, fmt.Errorf("attestation: parse leaf certificate: %w", err)
	}

	chain := make([]*x509.Certificate, 0, len(doc.CABundle)+1)
	chain = append(chain, leaf)
	for i := len(doc.CABundle) - 1; i >= 0; i-- {
		cert, err := x509.ParseCertificate(doc.CABundle[i])
		if err != nil {
			return nil, fmt.Errorf("attestation: parse cabundle[%d]: %w", i, err)
		}
		chain = append(chain, cert)
	}

	last := chain[len(chain)-1]
	if v.Root == nil || !bytes.Equal(last.Raw, v.Root.Raw) {
		return nil, fmt.Errorf("attestation: chain does not terminate at the pinned root")
	}
	return chain, nil
}

func verifyLink(child, issuer *x509.Certificate, now time.Time) error {
	if child.Issuer.String() != issuer.Subject.String() {
		return fmt.Errorf("issuer/subject mismatch")
	}
	if now.Before(child.NotBefore) || now.After(child.NotAfter) {
		return fmt.Errorf("certificate not valid at %s", now)
	}
	if err := child.CheckSignatureFrom(issuer); err != nil {
		return fmt.Errorf("signature check failed: %w", err)
	}
	return nil
}

// rawToDER converts a raw r‖s P-384 signature into ASN.1 DER (spec.md §4.3
// step 5).
func rawToDER(sig []byte) ([]byte, error) {
	if len(sig) != p384SignatureLen {
		return nil, fmt.Errorf("raw signature length %d != %d", len(sig), p384SignatureLen)
	}
	half := p384SignatureLen / 2
	r := new(big.Int).SetBytes(sig[:half])
	s := new(big.Int).SetBytes(sig[half:])

	der, err := asn1.Marshal(struct {
		R, S *big.Int
	}{r, s})
	if err != nil {
		return nil, fmt.Errorf("asn1 marshal: %w", err)
	}
	return der, nil
}
