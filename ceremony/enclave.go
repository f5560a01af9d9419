package ceremony

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sealedkey/groth16tee/attestation"
	"github.com/sealedkey/groth16tee/beacon"
	"github.com/sealedkey/groth16tee/compiler"
	"github.com/sealedkey/groth16tee/config"
	"github.com/sealedkey/groth16tee/manifest"
	"github.com/sealedkey/groth16tee/ptau"
	"github.com/sealedkey/groth16tee/rng"
	"github.com/sealedkey/groth16tee/solidity"
	"github.com/sealedkey/groth16tee/toolchain"
	"github.com/sealedkey/groth16tee/transport"
)

// EnclaveState tags the enclave-side ceremony's strictly forward-moving
// phases (spec.md §4.1). There are no back-edges: any failure is terminal.
type EnclaveState int

const (
	StateRNGCheck EnclaveState = iota
	StateAwaitInputs
	StateCompile
	StatePTAUCheck
	StateVerifyInitial
	StateContribute
	StateVerifyIntermediate
	StateTimeAttestation
	StateShipAttestation
	StateAwaitBeacon
	StateVerifyBeacon
	StateApplyBeacon
	StateVerifyFinal
	StateExportVerifier
	StateCommit
	StateFinalAttestation
	StateShipArtifacts
	StateDone
)

func (s EnclaveState) String() string {
	names := [...]string{
		"RNG_CHECK", "AWAIT_INPUTS", "COMPILE", "PTAU_CHECK", "VERIFY_INITIAL",
		"CONTRIBUTE", "VERIFY_INTERMEDIATE", "TIME_ATTESTATION", "SHIP_ATTESTATION",
		"AWAIT_BEACON", "VERIFY_BEACON", "APPLY_BEACON", "VERIFY_FINAL",
		"EXPORT_VERIFIER", "COMMIT", "FINAL_ATTESTATION", "SHIP_ARTIFACTS", "DONE",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "UNKNOWN"
	}
	return names[s]
}

// EnclaveCeremony drives the enclave side of one ceremony run.
type EnclaveCeremony struct {
	Conn       net.Conn
	RNGSource  rng.Source
	Circom     compiler.Circom
	Catalog    ptau.Catalog
	Toolchain  toolchain.Toolchain
	Issuer     attestation.Issuer
	Verifier   *attestation.Verifier
	Chain      beacon.ChainInfo
	SolidityVM *solidity.Compiler
	WorkDir    string
	Logger     zerolog.Logger

	state  EnclaveState
	reader *transport.FrameReader
}

func (e *EnclaveCeremony) transition(s EnclaveState) {
	e.state = s
	e.Logger.Info().Str("phase", s.String()).Msg("ceremony state transition")
}

func (e *EnclaveCeremony) path(name string) string {
	return filepath.Join(e.WorkDir, name)
}

// Run executes all seventeen enclave-side states in order. Any error is
// fatal; the enclave must not produce a final attestation after a failure
// (spec.md §4.1 closing paragraph, §7).
func (e *EnclaveCeremony) Run(ctx context.Context) (*Artifacts, error) {
	a := &Artifacts{}
	e.reader = transport.NewFrameReader(e.Conn)

	e.transition(StateRNGCheck)
	if err := rng.RequireHardware(e.RNGSource, config.ExpectedHardwareRNGSource); err != nil {
		return nil, fmt.Errorf("ceremony: RNG_CHECK: %w", err)
	}

	e.transition(StateAwaitInputs)
	frames, err := e.reader.ReadN(3)
	if err != nil {
		return nil, fmt.Errorf("ceremony: AWAIT_INPUTS: %w", err)
	}
	a.Circuit, a.PTAU, a.InitialZkey = frames[0].Body, frames[1].Body, frames[2].Body

	e.transition(StateCompile)
	circomPath := e.path("circuit.circom")
	if err := writeFile(circomPath, a.Circuit); err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE: %w", err)
	}
	out, err := e.Circom.Compile(ctx, circomPath, e.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE: %w", err)
	}
	a.R1CS, err = readFile(out.R1CSPath)
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE: read r1cs: %w", err)
	}
	a.Wasm, err = readFile(out.WasmPath)
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE: read wasm: %w", err)
	}

	e.transition(StatePTAUCheck)
	desc, err := e.Catalog.Lookup(out.NumConstraints)
	if err != nil {
		return nil, fmt.Errorf("ceremony: PTAU_CHECK: %w", err)
	}
	if err := desc.VerifyDigest(a.PTAU); err != nil {
		return nil, fmt.Errorf("ceremony: PTAU_CHECK: %w", err)
	}

	ptauPath := e.path("powersOfTau.ptau")
	if err := writeFile(ptauPath, a.PTAU); err != nil {
		return nil, fmt.Errorf("ceremony: PTAU_CHECK: %w", err)
	}
	initialZkeyPath := e.path("circuit_0000.zkey")
	if err := writeFile(initialZkeyPath, a.InitialZkey); err != nil {
		return nil, fmt.Errorf("ceremony: PTAU_CHECK: %w", err)
	}

	e.transition(StateVerifyInitial)
	if err := e.Toolchain.VerifyFromR1CS(ctx, initialZkeyPath, out.R1CSPath, ptauPath); err != nil {
		return nil, fmt.Errorf("ceremony: VERIFY_INITIAL: %w", err)
	}

	e.transition(StateContribute)
	intermediateZkeyPath := e.path("circuit_0001.zkey")
	secret := rng.NewSecretBytes(make([]byte, 32))
	defer secret.Zero() // covers the error and panic exits; Zero is idempotent
	if _, err := rand.Read(secret.Bytes()); err != nil {
		return nil, fmt.Errorf("ceremony: CONTRIBUTE: draw entropy: %w", err)
	}
	randomnessHex := hex.EncodeToString(secret.Bytes())
	contribErr := e.Toolchain.Contribute(ctx, initialZkeyPath, intermediateZkeyPath, randomnessHex, config.ContributionLabel)
	secret.Zero()
	// Drops this reference to the hex copy. Go strings are immutable, so the
	// bytes of the hex string itself are not overwritten.
	randomnessHex = ""
	if contribErr != nil {
		return nil, fmt.Errorf("ceremony: CONTRIBUTE: %w", contribErr)
	}

	e.transition(StateVerifyIntermediate)
	if err := e.Toolchain.VerifyFromR1CS(ctx, intermediateZkeyPath, out.R1CSPath, ptauPath); err != nil {
		return nil, fmt.Errorf("ceremony: VERIFY_INTERMEDIATE: %w", err)
	}

	e.transition(StateTimeAttestation)
	intermediateZkeyBytes, err := readFile(intermediateZkeyPath)
	if err != nil {
		return nil, fmt.Errorf("ceremony: TIME_ATTESTATION: %w", err)
	}
	intermediateDigest := sha256.Sum256(intermediateZkeyBytes)
	nonce := intermediateDigest[:]
	rawAttestation, err := e.Issuer.Request(ctx, nonce, nil)
	if err != nil {
		return nil, fmt.Errorf("ceremony: TIME_ATTESTATION: request: %w", err)
	}
	timeDoc, err := e.Verifier.Verify(rawAttestation)
	if err != nil {
		return nil, fmt.Errorf("ceremony: TIME_ATTESTATION: local re-verify: %w", err)
	}
	if hexEncode(timeDoc.Nonce) != hexEncode(nonce) {
		return nil, fmt.Errorf("ceremony: TIME_ATTESTATION: returned nonce does not match submitted value")
	}
	a.TimeAttestation = rawAttestation

	e.transition(StateShipAttestation)
	if err := transport.WriteFrame(e.Conn, transport.Frame{Name: "time-attestation.cbor", Body: a.TimeAttestation}); err != nil {
		return nil, fmt.Errorf("ceremony: SHIP_ATTESTATION: %w", err)
	}

	e.transition(StateAwaitBeacon)
	expectedRound := e.Chain.RoundAt(timeDoc.Timestamp + config.TimeAttestationSkewMillis)
	beaconFrames, err := e.reader.ReadN(1)
	if err != nil {
		return nil, fmt.Errorf("ceremony: AWAIT_BEACON: %w", err)
	}
	a.BeaconJSON = beaconFrames[0].Body

	e.transition(StateVerifyBeacon)
	parsedBeacon, err := beacon.ParseBeaconJSON(a.BeaconJSON)
	if err != nil {
		return nil, fmt.Errorf("ceremony: VERIFY_BEACON: %w", err)
	}
	if err := beacon.Verify(parsedBeacon, expectedRound, e.Chain); err != nil {
		return nil, fmt.Errorf("ceremony: VERIFY_BEACON: %w", err)
	}

	e.transition(StateApplyBeacon)
	finalZkeyPath := e.path("circuit_final.zkey")
	if err := e.Toolchain.ApplyBeacon(ctx, intermediateZkeyPath, finalZkeyPath, parsedBeacon.RandomnessHex, config.BeaconLabel, config.BeaconApplyIterations); err != nil {
		return nil, fmt.Errorf("ceremony: APPLY_BEACON: %w", err)
	}

	e.transition(StateVerifyFinal)
	if err := e.Toolchain.VerifyFromR1CS(ctx, finalZkeyPath, out.R1CSPath, ptauPath); err != nil {
		return nil, fmt.Errorf("ceremony: VERIFY_FINAL: %w", err)
	}
	a.FinalZkey, err = readFile(finalZkeyPath)
	if err != nil {
		return nil, fmt.Errorf("ceremony: VERIFY_FINAL: %w", err)
	}

	e.transition(StateExportVerifier)
	verifierSourcePath := e.path("verifier.sol")
	if err := e.Toolchain.ExportSolidityVerifier(ctx, finalZkeyPath, verifierSourcePath); err != nil {
		return nil, fmt.Errorf("ceremony: EXPORT_VERIFIER: %w", err)
	}
	a.VerifierSource, err = readFile(verifierSourcePath)
	if err != nil {
		return nil, fmt.Errorf("ceremony: EXPORT_VERIFIER: %w", err)
	}
	solArtifact, err := e.SolidityVM.Compile(ctx, string(a.VerifierSource), "Verifier")
	if err != nil {
		return nil, fmt.Errorf("ceremony: EXPORT_VERIFIER: solc: %w", err)
	}
	a.CreationBytecode = solArtifact.CreationBytecodeHex
	a.RuntimeKeccak256 = solArtifact.RuntimeKeccak256Hex

	e.transition(StateCommit)
	m, err := manifest.Build(ManifestOrder, a.contents())
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMMIT: %w", err)
	}
	a.ManifestText = m.Render()
	hashOfHashes := sha256.Sum256([]byte(a.ManifestText))

	e.transition(StateFinalAttestation)
	finalNonce, err := hex.DecodeString(m.FinalAttestationNonce)
	if err != nil {
		return nil, fmt.Errorf("ceremony: FINAL_ATTESTATION: %w", err)
	}
	rawFinal, err := e.Issuer.Request(ctx, finalNonce, hashOfHashes[:])
	if err != nil {
		return nil, fmt.Errorf("ceremony: FINAL_ATTESTATION: request: %w", err)
	}
	finalDoc, err := e.Verifier.Verify(rawFinal)
	if err != nil {
		return nil, fmt.Errorf("ceremony: FINAL_ATTESTATION: local re-verify: %w", err)
	}
	if hexEncode(finalDoc.Nonce) != hexEncode(finalNonce) {
		return nil, fmt.Errorf("ceremony: FINAL_ATTESTATION: returned nonce does not match submitted value")
	}
	if hexEncode(finalDoc.UserData) != hexEncode(hashOfHashes[:]) {
		return nil, fmt.Errorf("ceremony: FINAL_ATTESTATION: returned user_data does not match submitted value")
	}
	a.FinalAttestation = rawFinal

	e.transition(StateShipArtifacts)
	shipped := map[string][]byte{
		"circuit.r1cs":                   a.R1CS,
		"circuit.wasm":                   a.Wasm,
		"time-attestation.cbor":          a.TimeAttestation,
		"circuit_final.zkey":             a.FinalZkey,
		"verifier.sol":                   a.VerifierSource,
		"verifier.bytecode.hex":          []byte(a.CreationBytecode),
		"verifier.runtime-keccak256.hex": []byte(a.RuntimeKeccak256),
		"manifest.txt":                   []byte(a.ManifestText),
		"final-attestation.cbor":         a.FinalAttestation,
	}
	frames = frames[:0]
	for _, name := range ShippedArtifactOrder {
		frames = append(frames, transport.Frame{Name: name, Body: shipped[name]})
	}
	if err := transport.WriteFrames(e.Conn, frames); err != nil {
		return nil, fmt.Errorf("ceremony: SHIP_ARTIFACTS: %w", err)
	}
	if err := transport.CloseSendSide(e.Conn); err != nil {
		return nil, fmt.Errorf("ceremony: SHIP_ARTIFACTS: half-close: %w", err)
	}

	e.transition(StateDone)
	return a, nil
}
