// Package compiler wraps the Circom compiler as an opaque external tool
// (spec.md §1: "an opaque tool producing r1cs/wasm from a .circom source").
package compiler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Output is the result of compiling a circuit source: the produced r1cs and
// wasm paths, plus the constraint count the ceremony's PTAU_CHECK state
// needs (spec.md §4.1 state COMPILE/PTAU_CHECK).
type Output struct {
	R1CSPath        string
	WasmPath        string
	NumConstraints  uint64
}

// Circom is the Circom compiler interface.
type Circom interface {
	Compile(ctx context.Context, circomPath, outDir string) (Output, error)
}

// ExecCircom shells out to the real `circom` binary.
type ExecCircom struct {
	BinaryPath string
}

// NewExecCircom returns a Circom backed by the binary at path.
func NewExecCircom(path string) *ExecCircom {
	return &ExecCircom{BinaryPath: path}
}

// Compile invokes circom with r1cs/wasm output flags and parses the
// constraint count it reports on stdout.
func (c *ExecCircom) Compile(ctx context.Context, circomPath, outDir string) (Output, error) {
	cmd := exec.CommandContext(ctx, c.BinaryPath, circomPath, "--r1cs", "--wasm", "-o", outDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Output{}, fmt.Errorf("compiler: circom failed: %w (stderr: %s)", err, stderr.String())
	}

	n, err := parseConstraintCount(stdout.String())
	if err != nil {
		return Output{}, fmt.Errorf("compiler: parse constraint count: %w", err)
	}

	base := strings.TrimSuffix(circomPath, ".circom")
	name := base
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		name = base[idx+1:]
	}

	return Output{
		R1CSPath:       outDir + "/" + name + ".r1cs",
		WasmPath:       outDir + "/" + name + "_js/" + name + ".wasm",
		NumConstraints: n,
	}, nil
}

// parseConstraintCount scans circom's "non-linear constraints: N" /
// "linear constraints: N" report lines and sums them, matching circom's
// own compile-time statistics output.
func parseConstraintCount(report string) (uint64, error) {
	var total uint64
	found := false
	scanner := bufio.NewScanner(strings.NewReader(report))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if !strings.Contains(line, "constraints:") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) != 2 {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		total += n
		found = true
	}
	if !found {
		return 0, fmt.Errorf("no constraint-count line found in circom output")
	}
	return total, nil
}
