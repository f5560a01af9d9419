// Package ceremony drives the two-party ceremony state machines (spec.md
// §4.1 "Ceremony State Machine — Enclave side", §4.2 "... — Host side").
package ceremony

// Artifacts holds every byte blob the ceremony produces, keyed by the
// fixed path names used in the manifest and in the framed transport
// (spec.md §3 "Ceremony Artifacts").
type Artifacts struct {
	Circuit            []byte
	PTAU               []byte
	InitialZkey        []byte
	R1CS               []byte
	Wasm               []byte
	TimeAttestation    []byte
	BeaconJSON         []byte
	FinalZkey          []byte
	VerifierSource     []byte
	CreationBytecode   string
	RuntimeKeccak256   string
	ManifestText       string
	FinalAttestation   []byte
}

// ManifestOrder is the fixed order in which produced artifacts are
// committed into the ceremony manifest (spec.md §3, §4.1 state COMMIT).
// "manifest text" and "final attestation" are themselves produced from
// this commitment and are therefore not members of it.
var ManifestOrder = []string{
	"circuit.circom",
	"powersOfTau.ptau",
	"circuit_0000.zkey",
	"circuit.r1cs",
	"circuit.wasm",
	"time-attestation.cbor",
	"drand-beacon.json",
	"circuit_final.zkey",
	"verifier.sol",
	"verifier.bytecode.hex",
	"verifier.runtime-keccak256.hex",
}

// ShippedArtifactOrder is the fixed order of the nine files SHIP_ARTIFACTS
// sends back to the host (spec.md §4.1 state SHIP_ARTIFACTS, §6 "On-disk
// output set"). It excludes the three inputs the host already holds
// (circuit source, PTAU, initial zkey) and the beacon JSON the host itself
// fetched and shipped to the enclave.
var ShippedArtifactOrder = []string{
	"circuit.r1cs",
	"circuit.wasm",
	"time-attestation.cbor",
	"circuit_final.zkey",
	"verifier.sol",
	"verifier.bytecode.hex",
	"verifier.runtime-keccak256.hex",
	"manifest.txt",
	"final-attestation.cbor",
}

// contents renders a maps from ManifestOrder path to bytes, the shape
// manifest.Build expects.
func (a *Artifacts) contents() map[string][]byte {
	return map[string][]byte{
		"circuit.circom":                  a.Circuit,
		"powersOfTau.ptau":                a.PTAU,
		"circuit_0000.zkey":               a.InitialZkey,
		"circuit.r1cs":                    a.R1CS,
		"circuit.wasm":                    a.Wasm,
		"time-attestation.cbor":           a.TimeAttestation,
		"drand-beacon.json":               a.BeaconJSON,
		"circuit_final.zkey":              a.FinalZkey,
		"verifier.sol":                    a.VerifierSource,
		"verifier.bytecode.hex":           []byte(a.CreationBytecode),
		"verifier.runtime-keccak256.hex":  []byte(a.RuntimeKeccak256),
	}
}

// ExpectedPCRs is the optional, off-by-default static table a host can
// check against a time-attestation before proceeding (spec.md §9 first
// Open Question; supplemented feature, disabled by default to match the
// reference integration path).
type ExpectedPCRs struct {
	Enabled bool
	Values  map[int]string // PCR index -> expected lowercase hex digest
}

// Check compares got against the table when Enabled; a disabled table
// always passes.
func (e ExpectedPCRs) Check(got map[int][]byte) error {
	if !e.Enabled {
		return nil
	}
	for idx, wantHex := range e.Values {
		b, ok := got[idx]
		if !ok {
			return pcrError(idx, "missing")
		}
		if hexEncode(b) != wantHex {
			return pcrError(idx, "mismatch")
		}
	}
	return nil
}
