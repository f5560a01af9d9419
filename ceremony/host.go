package ceremony

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealedkey/groth16tee/attestation"
	"github.com/sealedkey/groth16tee/beacon"
	"github.com/sealedkey/groth16tee/compiler"
	"github.com/sealedkey/groth16tee/config"
	"github.com/sealedkey/groth16tee/ptau"
	"github.com/sealedkey/groth16tee/toolchain"
	"github.com/sealedkey/groth16tee/transport"
)

// HostState tags the host-side ceremony's eight phases (spec.md §4.2).
type HostState int

const (
	HostCompile HostState = iota
	HostNewZkey
	HostStartEnclave
	HostSendInputs
	HostAwaitTimeAttestation
	HostComputeRound
	HostFetchBeacon
	HostAwaitArtifacts
	HostDone
)

func (s HostState) String() string {
	names := [...]string{
		"COMPILE_AND_SELECT_PTAU", "NEW_ZKEY", "START_ENCLAVE", "SEND_INPUTS",
		"AWAIT_TIME_ATTESTATION", "COMPUTE_ROUND", "FETCH_BEACON", "AWAIT_ARTIFACTS", "DONE",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "UNKNOWN"
	}
	return names[s]
}

// HostCeremony drives the untrusted host side of one ceremony run. Its
// correctness is not security-critical (spec.md §4.2 closing paragraph):
// every check it performs is re-verified authoritatively inside the
// enclave.
type HostCeremony struct {
	Circom        compiler.Circom
	Catalog       ptau.Catalog
	Toolchain     toolchain.Toolchain
	BeaconClient  *beacon.Client
	Chain         beacon.ChainInfo
	WorkDir       string
	EnclaveBinary string
	EnclaveArgs   []string
	DialEnclave   func(ctx context.Context) (net.Conn, error)
	Logger        zerolog.Logger

	state HostState
}

func (h *HostCeremony) transition(s HostState) {
	h.state = s
	h.Logger.Info().Str("phase", s.String()).Msg("ceremony state transition")
}

func (h *HostCeremony) path(name string) string {
	return filepath.Join(h.WorkDir, name)
}

// Run executes all eight host-side states in order, returning the nine
// shipped final artifacts keyed by name.
func (h *HostCeremony) Run(ctx context.Context, circuitSource []byte) (map[string][]byte, error) {
	h.transition(HostCompile)
	circomPath := h.path("circuit.circom")
	if err := writeFile(circomPath, circuitSource); err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE_AND_SELECT_PTAU: %w", err)
	}
	out, err := h.Circom.Compile(ctx, circomPath, h.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE_AND_SELECT_PTAU: %w", err)
	}
	desc, err := h.Catalog.Lookup(out.NumConstraints)
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE_AND_SELECT_PTAU: %w", err)
	}
	ptauBytes, err := fetchPTAU(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE_AND_SELECT_PTAU: %w", err)
	}
	if err := desc.VerifyDigest(ptauBytes); err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE_AND_SELECT_PTAU: pre-flight digest check: %w", err)
	}
	ptauPath := h.path("powersOfTau.ptau")
	if err := writeFile(ptauPath, ptauBytes); err != nil {
		return nil, fmt.Errorf("ceremony: COMPILE_AND_SELECT_PTAU: %w", err)
	}

	h.transition(HostNewZkey)
	initialZkeyPath := h.path("circuit_0000.zkey")
	if err := h.Toolchain.NewZkey(ctx, out.R1CSPath, ptauPath, initialZkeyPath); err != nil {
		return nil, fmt.Errorf("ceremony: NEW_ZKEY: %w", err)
	}
	initialZkey, err := readFile(initialZkeyPath)
	if err != nil {
		return nil, fmt.Errorf("ceremony: NEW_ZKEY: %w", err)
	}

	h.transition(HostStartEnclave)
	cmd := exec.CommandContext(ctx, h.EnclaveBinary, h.EnclaveArgs...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ceremony: START_ENCLAVE: %w", err)
	}

	conn, err := h.DialEnclave(ctx)
	if err != nil {
		return nil, fmt.Errorf("ceremony: START_ENCLAVE: dial: %w", err)
	}
	defer conn.Close()
	reader := transport.NewFrameReader(conn)

	h.transition(HostSendInputs)
	inputs := []transport.Frame{
		{Name: "circuit.circom", Body: circuitSource},
		{Name: "powersOfTau.ptau", Body: ptauBytes},
		{Name: "circuit_0000.zkey", Body: initialZkey},
	}
	if err := transport.WriteFrames(conn, inputs); err != nil {
		return nil, fmt.Errorf("ceremony: SEND_INPUTS: %w", err)
	}

	h.transition(HostAwaitTimeAttestation)
	attFrames, err := reader.ReadN(1)
	if err != nil {
		return nil, fmt.Errorf("ceremony: AWAIT_TIME_ATTESTATION: %w", err)
	}
	timeAttestation := attFrames[0].Body

	h.transition(HostComputeRound)
	timestampMillis, err := peekAttestationTimestamp(timeAttestation)
	if err != nil {
		return nil, fmt.Errorf("ceremony: COMPUTE_ROUND: %w", err)
	}
	round := h.Chain.RoundAt(timestampMillis + config.TimeAttestationSkewMillis)
	availableAt := h.Chain.RoundTime(round) + config.BeaconAvailabilityGraceSeconds
	if err := sleepUntil(ctx, availableAt); err != nil {
		return nil, fmt.Errorf("ceremony: COMPUTE_ROUND: %w", err)
	}

	h.transition(HostFetchBeacon)
	beaconValue, rawBeacon, err := h.BeaconClient.Fetch(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("ceremony: FETCH_BEACON: %w", err)
	}
	if err := beacon.Verify(beaconValue, round, h.Chain); err != nil {
		return nil, fmt.Errorf("ceremony: FETCH_BEACON: pre-flight verify: %w", err)
	}
	if err := transport.WriteFrame(conn, transport.Frame{Name: "drand-beacon.json", Body: rawBeacon}); err != nil {
		return nil, fmt.Errorf("ceremony: FETCH_BEACON: send: %w", err)
	}

	h.transition(HostAwaitArtifacts)
	finalFrames, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ceremony: AWAIT_ARTIFACTS: %w", err)
	}
	if len(finalFrames) != len(ShippedArtifactOrder) {
		return nil, fmt.Errorf("ceremony: AWAIT_ARTIFACTS: expected %d files, got %d", len(ShippedArtifactOrder), len(finalFrames))
	}
	result := make(map[string][]byte, len(finalFrames))
	for _, f := range finalFrames {
		result[f.Name] = f.Body
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ceremony: AWAIT_ARTIFACTS: enclave process: %w", err)
	}

	h.transition(HostDone)
	return result, nil
}

// sleepUntil blocks until the wall clock reaches availableAtUnixSeconds or
// ctx is done (spec.md §4.2 step 6).
func sleepUntil(ctx context.Context, availableAtUnixSeconds int64) error {
	target := time.Unix(availableAtUnixSeconds, 0)
	d := time.Until(target)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// peekAttestationTimestamp reads the millisecond timestamp out of a raw
// attestation document without verifying the certificate chain: the host's
// round computation is not security-critical (spec.md §4.2 closing
// paragraph), since the enclave independently recomputes and re-verifies
// the same round from its own locally re-verified copy.
func peekAttestationTimestamp(raw []byte) (int64, error) {
	env, err := attestation.ParseEnvelope(raw)
	if err != nil {
		return 0, fmt.Errorf("peek timestamp: %w", err)
	}
	doc, err := attestation.ParseDocument(env.Payload)
	if err != nil {
		return 0, fmt.Errorf("peek timestamp: %w", err)
	}
	return doc.Timestamp, nil
}

// fetchPTAU downloads the Powers of Tau file named by desc from its
// upstream source (spec.md §4.2 step 1).
func fetchPTAU(ctx context.Context, desc ptau.Descriptor) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch ptau: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ptau: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ptau: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch ptau: read body: %w", err)
	}
	return body, nil
}
