// Package attestation implements the COSE_Sign1/CBOR attestation codec and
// chain-of-trust verifier (spec.md §3 "Attestation Document / Envelope",
// §4.3 "Attestation Codec & Verifier"). The document shape mirrors the AWS
// Nitro attestation convention referenced in the retrieved pack's enclave
// runtime code.
package attestation

import (
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

const expectedDigest = "SHA384"

const (
	minPCRIndex = 0
	maxPCRIndex = 32

	maxCertificateLen = 1024
	maxPublicKeyLen   = 1024
	maxUserDataLen    = 512
	maxNonceLen       = 64
)

var validPCRLens = map[int]bool{32: true, 48: true, 64: true}

// Document is the parsed attestation payload (spec.md §3).
type Document struct {
	ModuleID    string
	Timestamp   int64
	Digest      string
	PCRs        map[int][]byte
	Certificate []byte
	CABundle    [][]byte
	PublicKey   []byte
	UserData    []byte
	Nonce       []byte
}

// ParseDocument decodes and structurally validates the CBOR-encoded
// attestation payload (spec.md §4.3 "Parse (structural)").
func ParseDocument(payload []byte) (*Document, error) {
	var raw map[interface{}]interface{}
	if err := cbor.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("attestation: decode payload map: %w", err)
	}

	doc := &Document{}

	moduleID, err := requireText(raw, "module_id")
	if err != nil {
		return nil, err
	}
	if moduleID == "" {
		return nil, fmt.Errorf("attestation: module_id must be non-empty")
	}
	doc.ModuleID = moduleID

	ts, err := requireUint(raw, "timestamp")
	if err != nil {
		return nil, err
	}
	if ts == 0 {
		return nil, fmt.Errorf("attestation: timestamp must be positive")
	}
	doc.Timestamp = int64(ts)

	digest, err := requireText(raw, "digest")
	if err != nil {
		return nil, err
	}
	if digest != expectedDigest {
		return nil, fmt.Errorf("attestation: digest %q != %q", digest, expectedDigest)
	}
	doc.Digest = digest

	pcrs, err := parsePCRs(raw["pcrs"])
	if err != nil {
		return nil, err
	}
	doc.PCRs = pcrs

	cert, err := requireBytes(raw, "certificate")
	if err != nil {
		return nil, err
	}
	if len(cert) == 0 || len(cert) > maxCertificateLen {
		return nil, fmt.Errorf("attestation: certificate length %d out of bounds", len(cert))
	}
	doc.Certificate = cert

	cabundle, err := parseCABundle(raw["cabundle"])
	if err != nil {
		return nil, err
	}
	doc.CABundle = cabundle

	if v, ok := raw["public_key"]; ok {
		b, err := asBytes(v)
		if err != nil {
			return nil, fmt.Errorf("attestation: public_key: %w", err)
		}
		if len(b) > maxPublicKeyLen {
			return nil, fmt.Errorf("attestation: public_key length %d exceeds %d", len(b), maxPublicKeyLen)
		}
		doc.PublicKey = b
	}
	if v, ok := raw["user_data"]; ok {
		b, err := asBytes(v)
		if err != nil {
			return nil, fmt.Errorf("attestation: user_data: %w", err)
		}
		if len(b) > maxUserDataLen {
			return nil, fmt.Errorf("attestation: user_data length %d exceeds %d", len(b), maxUserDataLen)
		}
		doc.UserData = b
	}
	if v, ok := raw["nonce"]; ok {
		b, err := asBytes(v)
		if err != nil {
			return nil, fmt.Errorf("attestation: nonce: %w", err)
		}
		if len(b) > maxNonceLen {
			return nil, fmt.Errorf("attestation: nonce length %d exceeds %d", len(b), maxNonceLen)
		}
		doc.Nonce = b
	}

	return doc, nil
}

func parsePCRs(v interface{}) (map[int][]byte, error) {
	m, ok := v.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("attestation: pcrs must be a map")
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("attestation: pcrs must be non-empty")
	}
	out := make(map[int][]byte, len(m))
	for k, val := range m {
		idx, err := pcrIndex(k)
		if err != nil {
			return nil, err
		}
		if idx < minPCRIndex || idx >= maxPCRIndex {
			return nil, fmt.Errorf("attestation: pcr index %d out of range [%d,%d)", idx, minPCRIndex, maxPCRIndex)
		}
		b, err := asBytes(val)
		if err != nil {
			return nil, fmt.Errorf("attestation: pcr[%d]: %w", idx, err)
		}
		if !validPCRLens[len(b)] {
			return nil, fmt.Errorf("attestation: pcr[%d] length %d not in {32,48,64}", idx, len(b))
		}
		out[idx] = b
	}
	return out, nil
}

// pcrIndex normalizes a PCR map key from either the integer-keyed or the
// text-keyed CBOR encoding (spec.md §4.3, §9 "Dynamic CBOR shapes").
func pcrIndex(k interface{}) (int, error) {
	switch t := k.(type) {
	case int64:
		return int(t), nil
	case uint64:
		return int(t), nil
	case string:
		i, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("attestation: non-numeric pcr key %q", t)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("attestation: unsupported pcr key type %T", k)
	}
}

func parseCABundle(v interface{}) ([][]byte, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("attestation: cabundle must be an array")
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("attestation: cabundle must be non-empty")
	}
	out := make([][]byte, 0, len(list))
	for i, item := range list {
		b, err := asBytes(item)
		if err != nil {
			return nil, fmt.Errorf("attestation: cabundle[%d]: %w", i, err)
		}
		if len(b) == 0 || len(b) > maxCertificateLen {
			return nil, fmt.Errorf("attestation: cabundle[%d] length %d out of bounds", i, len(b))
		}
		out = append(out, b)
	}
	return out, nil
}

func requireText(m map[interface{}]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("attestation: missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("attestation: field %q is not text", key)
	}
	return s, nil
}

func requireUint(m map[interface{}]interface{}, key string) (uint64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("attestation: missing field %q", key)
	}
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("attestation: field %q must not be negative", key)
		}
		return uint64(t), nil
	default:
		return 0, fmt.Errorf("attestation: field %q is not an integer", key)
	}
}

func requireBytes(m map[interface{}]interface{}, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("attestation: missing field %q", key)
	}
	return asBytes(v)
}

func asBytes(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("not a byte string (got %T)", v)
	}
	return b, nil
}
