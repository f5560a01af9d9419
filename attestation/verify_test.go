package attestation

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

type fixtureChain struct {
	rootCert *x509.Certificate
	leafCert *x509.Certificate
	leafKey  *ecdsa.PrivateKey
}

func buildChainFixture(t *testing.T) fixtureChain {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	rootTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	require.NoError(t, err)
	rootCert, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test leaf"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, rootTemplate, &leafKey.PublicKey, rootKey)
	require.NoError(t, err)
	leafCert, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	return fixtureChain{rootCert: rootCert, leafCert: leafCert, leafKey: leafKey}
}

func defaultPayload(fx fixtureChain) map[string]interface{} {
	return map[string]interface{}{
		"module_id": "i-0123456789abcdef0-enc0123456789abcdef",
		"timestamp": uint64(1_700_000_000_000),
		"digest":    "SHA384",
		"pcrs": map[int][]byte{
			0: make([]byte, 48),
			1: make([]byte, 48),
			2: make([]byte, 48),
		},
		"certificate": fx.leafCert.Raw,
		"cabundle":    [][]byte{fx.rootCert.Raw},
		"nonce":       []byte{0xde, 0xad, 0xbe, 0xef},
		"user_data":   []byte{0xca, 0xfe},
	}
}

// envelopeBytes builds the full COSE_Sign1 CBOR bytes. If rawSig is nil, it
// signs the reconstructed Sig_structure with fx.leafKey; otherwise it uses
// rawSig verbatim, letting tests exercise mismatched-signature scenarios.
func envelopeBytes(t *testing.T, fx fixtureChain, payload map[string]interface{}, alg int64, rawSig []byte) []byte {
	t.Helper()

	protected, err := cbor.Marshal(map[interface{}]interface{}{int64(1): alg})
	require.NoError(t, err)

	payloadBytes, err := cbor.Marshal(payload)
	require.NoError(t, err)

	if rawSig == nil {
		toBeSigned, err := sigStructure(protected, payloadBytes)
		require.NoError(t, err)
		hash := sha512.Sum384(toBeSigned)
		r, s, err := ecdsa.Sign(rand.Reader, fx.leafKey, hash[:])
		require.NoError(t, err)
		rawSig = make([]byte, p384SignatureLen)
		r.FillBytes(rawSig[:48])
		s.FillBytes(rawSig[48:])
	}

	raw, err := cbor.Marshal([]interface{}{protected, map[interface{}]interface{}{}, payloadBytes, rawSig})
	require.NoError(t, err)
	return raw
}

func TestVerifyAcceptsWellFormedAttestation(t *testing.T) {
	fx := buildChainFixture(t)
	raw := envelopeBytes(t, fx, defaultPayload(fx), ecdsaP384SHA384AlgID, nil)

	v := NewVerifier(fx.rootCert)
	doc, err := v.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "SHA384", doc.Digest)
	require.Equal(t, int64(1_700_000_000_000), doc.Timestamp)
}

func TestVerifyRejectsTag18Mismatch(t *testing.T) {
	fx := buildChainFixture(t)
	raw := envelopeBytes(t, fx, defaultPayload(fx), ecdsaP384SHA384AlgID, nil)
	tagged, err := cbor.Marshal(cbor.Tag{Number: 99, Content: raw})
	require.NoError(t, err)

	v := NewVerifier(fx.rootCert)
	_, err = v.Verify(tagged)
	require.Error(t, err)
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	fx := buildChainFixture(t)
	raw := envelopeBytes(t, fx, defaultPayload(fx), -7, nil)

	v := NewVerifier(fx.rootCert)
	_, err := v.Verify(raw)
	require.Error(t, err)
}

func TestVerifyRejectsFieldMutationsAfterSigning(t *testing.T) {
	fx := buildChainFixture(t)
	base := defaultPayload(fx)
	baseline := envelopeBytes(t, fx, base, ecdsaP384SHA384AlgID, nil)
	_, sig := splitForSignature(t, baseline)

	mutate := func(mutator func(map[string]interface{})) []byte {
		p := defaultPayload(fx)
		mutator(p)
		return envelopeBytes(t, fx, p, ecdsaP384SHA384AlgID, sig)
	}

	cases := map[string]func(map[string]interface{}){
		"timestamp": func(p map[string]interface{}) { p["timestamp"] = uint64(1_700_000_000_001) },
		"nonce":     func(p map[string]interface{}) { p["nonce"] = []byte{0xde, 0xad, 0xbe, 0xee} },
		"user_data": func(p map[string]interface{}) { p["user_data"] = []byte{0xca, 0xff} },
		"pcrs": func(p map[string]interface{}) {
			pcrs := p["pcrs"].(map[int][]byte)
			mutated := make(map[int][]byte, len(pcrs))
			for k, v := range pcrs {
				mutated[k] = append([]byte(nil), v...)
			}
			mutated[0][0] ^= 0x01
			p["pcrs"] = mutated
		},
		"certificate": func(p map[string]interface{}) {
			cert := append([]byte(nil), fx.leafCert.Raw...)
			cert[len(cert)-1] ^= 0x01
			p["certificate"] = cert
		},
		"cabundle": func(p map[string]interface{}) {
			entry := append([]byte(nil), fx.rootCert.Raw...)
			entry[len(entry)-1] ^= 0x01
			p["cabundle"] = [][]byte{entry}
		},
	}

	v := NewVerifier(fx.rootCert)
	for name, mutator := range cases {
		t.Run(name, func(t *testing.T) {
			raw := mutate(mutator)
			_, err := v.Verify(raw)
			require.Error(t, err)
		})
	}

	require.NotNil(t, baseline) // baseline stays well-formed for comparison above
}

func TestVerifyRejectsSignatureBitFlip(t *testing.T) {
	fx := buildChainFixture(t)
	raw := envelopeBytes(t, fx, defaultPayload(fx), ecdsaP384SHA384AlgID, nil)

	var seq []interface{}
	require.NoError(t, cbor.Unmarshal(raw, &seq))
	sig := seq[3].([]byte)
	tampered := append([]byte(nil), sig...)
	tampered[0] ^= 0x01

	retampered, err := cbor.Marshal([]interface{}{seq[0], seq[1], seq[2], tampered})
	require.NoError(t, err)

	v := NewVerifier(fx.rootCert)
	_, err = v.Verify(retampered)
	require.Error(t, err)
}

func TestVerifyRejectsProtectedHeaderBitFlip(t *testing.T) {
	fx := buildChainFixture(t)
	raw := envelopeBytes(t, fx, defaultPayload(fx), ecdsaP384SHA384AlgID, nil)

	var seq []interface{}
	require.NoError(t, cbor.Unmarshal(raw, &seq))
	protected := seq[0].([]byte)
	tampered := append([]byte(nil), protected...)
	tampered[len(tampered)-1] ^= 0x01

	retampered, err := cbor.Marshal([]interface{}{tampered, seq[1], seq[2], seq[3]})
	require.NoError(t, err)

	v := NewVerifier(fx.rootCert)
	_, err = v.Verify(retampered)
	require.Error(t, err)
}

func TestVerifyRejectsUnknownRoot(t *testing.T) {
	fx := buildChainFixture(t)
	other := buildChainFixture(t)
	raw := envelopeBytes(t, fx, defaultPayload(fx), ecdsaP384SHA384AlgID, nil)

	v := NewVerifier(other.rootCert)
	_, err := v.Verify(raw)
	require.Error(t, err)
}

// splitForSignature extracts the raw signature bytes of a built envelope so
// tests can reuse the original (valid-at-signing-time) signature against a
// mutated payload.
func splitForSignature(t *testing.T, raw []byte) ([]byte, []byte) {
	t.Helper()
	var seq []interface{}
	require.NoError(t, cbor.Unmarshal(raw, &seq))
	return seq[2].([]byte), seq[3].([]byte)
}
