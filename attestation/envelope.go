package attestation

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// coseSign1TagNumber is the CBOR tag optionally wrapping a COSE_Sign1 item.
const coseSign1TagNumber = 18

// ecdsaP384SHA384AlgID is the COSE algorithm identifier for ECDSA w/ SHA-384
// (spec.md §3: "the protected header's algorithm identifier must equal ... -35").
const ecdsaP384SHA384AlgID = -35

// Envelope is the parsed COSE_Sign1 four-tuple (spec.md §3 "Attestation
// Envelope"): protected header bytes, unprotected header (ignored beyond
// structural presence), payload bytes, and the raw r‖s signature.
type Envelope struct {
	Protected []byte
	Payload   []byte
	Signature []byte
}

// ParseEnvelope decodes raw CBOR bytes into an Envelope, unwrapping CBOR tag
// 18 if present and demanding a four-element sequence whose protected
// header, payload, and signature positions are byte strings (spec.md §4.3
// "Parse (structural)"). The unprotected header (array position 1) is
// decoded only far enough to confirm it is present; its contents are not
// used by the protocol.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var generic interface{}
	if err := cbor.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("attestation: decode outer CBOR item: %w", err)
	}

	if tag, ok := generic.(cbor.Tag); ok {
		if tag.Number != coseSign1TagNumber {
			return nil, fmt.Errorf("attestation: unexpected CBOR tag %d", tag.Number)
		}
		generic = tag.Content
	}

	seq, ok := generic.([]interface{})
	if !ok {
		return nil, fmt.Errorf("attestation: expected a four-element sequence, got %T", generic)
	}
	if len(seq) != 4 {
		return nil, fmt.Errorf("attestation: expected 4 elements, got %d", len(seq))
	}

	protected, ok := seq[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("attestation: protected header is not a byte string")
	}
	payload, ok := seq[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("attestation: payload is not a byte string")
	}
	signature, ok := seq[3].([]byte)
	if !ok {
		return nil, fmt.Errorf("attestation: signature is not a byte string")
	}

	return &Envelope{Protected: protected, Payload: payload, Signature: signature}, nil
}

// Algorithm decodes the protected header as a CBOR map and returns the
// value of label 1 (the algorithm identifier).
func (e *Envelope) Algorithm() (int64, error) {
	var hdr map[interface{}]interface{}
	if err := cbor.Unmarshal(e.Protected, &hdr); err != nil {
		return 0, fmt.Errorf("attestation: decode protected header: %w", err)
	}
	// The decoder yields uint64 for non-negative integer keys; int64 is
	// accepted too in case the header was built with a signed key type.
	v, ok := hdr[uint64(1)]
	if !ok {
		v, ok = hdr[int64(1)]
	}
	if !ok {
		return 0, fmt.Errorf("attestation: protected header missing algorithm label")
	}
	switch t := v.(type) {
	case int64:
		return t, nil
	case uint64:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("attestation: algorithm label is not an integer (got %T)", v)
	}
}

// sigStructure reconstructs the COSE Sig_structure to be signed/verified:
// the CBOR encoding of ["Signature1", protected, h'', payload] (spec.md
// §4.3 step 5).
func sigStructure(protected, payload []byte) ([]byte, error) {
	items := []interface{}{"Signature1", protected, []byte{}, payload}
	enc, err := cbor.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("attestation: encode Sig_structure: %w", err)
	}
	return enc, nil
}
