// Package toolchain wraps the Groth16 library as an opaque external tool
// (spec.md §1: "the Groth16 library itself ... treated as an opaque
// callable providing new_zkey, contribute, apply_beacon, verify_from_r1cs,
// and export_solidity_verifier"). The ceremony packages never link the
// proving-system library directly; they drive it through this narrow
// interface, the same way the teacher's cmd/compile binary drives its
// ceremony subcommands through a fixed CLI surface (compile.go).
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Toolchain is the set of Groth16 ceremony primitives the enclave and host
// state machines call, in the order spec.md §4.1/§4.2 invoke them.
type Toolchain interface {
	// NewZkey produces an unsafe initial proving key from r1cs and ptau.
	NewZkey(ctx context.Context, r1csPath, ptauPath, outPath string) error
	// VerifyFromR1CS checks a zkey against r1cs and ptau, returning an error
	// for any result other than success (spec.md §4.1 states VERIFY_INITIAL/
	// VERIFY_INTERMEDIATE/VERIFY_FINAL).
	VerifyFromR1CS(ctx context.Context, zkeyPath, r1csPath, ptauPath string) error
	// Contribute adds a contribution identified by randomnessHex and label,
	// producing the next zkey.
	Contribute(ctx context.Context, zkeyPath, outPath, randomnessHex, label string) error
	// ApplyBeacon finalizes a zkey using beacon randomness, a fixed
	// iteration count, and a label (spec.md §4.1 state APPLY_BEACON).
	ApplyBeacon(ctx context.Context, zkeyPath, outPath, beaconRandomnessHex, label string, iterations int) error
	// ExportSolidityVerifier emits Solidity verifier source from a final
	// zkey.
	ExportSolidityVerifier(ctx context.Context, zkeyPath, outPath string) error
}

// ExecToolchain shells out to a single external binary that implements the
// five primitives as subcommands, mirroring the positional-subcommand
// convention of the teacher's own ceremony CLI (compile.go's
// "ceremony p1-init|p1-contribute|p1-verify|..." dispatch).
type ExecToolchain struct {
	BinaryPath string
}

// NewExecToolchain returns a Toolchain backed by the binary at path.
func NewExecToolchain(path string) *ExecToolchain {
	return &ExecToolchain{BinaryPath: path}
}

func (t *ExecToolchain) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("toolchain: %s %v: %w (stderr: %s)", t.BinaryPath, args, err, stderr.String())
	}
	return nil
}

func (t *ExecToolchain) NewZkey(ctx context.Context, r1csPath, ptauPath, outPath string) error {
	return t.run(ctx, "new_zkey", r1csPath, ptauPath, outPath)
}

func (t *ExecToolchain) VerifyFromR1CS(ctx context.Context, zkeyPath, r1csPath, ptauPath string) error {
	return t.run(ctx, "verify_from_r1cs", zkeyPath, r1csPath, ptauPath)
}

func (t *ExecToolchain) Contribute(ctx context.Context, zkeyPath, outPath, randomnessHex, label string) error {
	return t.run(ctx, "contribute", zkeyPath, outPath, randomnessHex, label)
}

func (t *ExecToolchain) ApplyBeacon(ctx context.Context, zkeyPath, outPath, beaconRandomnessHex, label string, iterations int) error {
	return t.run(ctx, "apply_beacon", zkeyPath, outPath, beaconRandomnessHex, fmt.Sprintf("%d", iterations), label)
}

func (t *ExecToolchain) ExportSolidityVerifier(ctx context.Context, zkeyPath, outPath string) error {
	return t.run(ctx, "export_solidity_verifier", zkeyPath, outPath)
}
