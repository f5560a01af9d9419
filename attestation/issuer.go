package attestation

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os/exec"
)

// Issuer requests a signed attestation document for a given nonce/user_data
// pair. The TEE hypervisor's attestation issuer is an opaque oracle
// (spec.md §1); the default implementation shells out to an external CLI
// binary, matching the positional-argument convention in spec.md §6.
type Issuer interface {
	Request(ctx context.Context, nonce, userData []byte) ([]byte, error)
}

// ExecIssuer invokes an external binary with positional arguments
// [nonce_hex] [user_data_hex] (empty string for "absent") and reads the raw
// CBOR attestation document from its stdout.
type ExecIssuer struct {
	BinaryPath string
}

// NewExecIssuer returns an Issuer backed by the binary at path.
func NewExecIssuer(path string) *ExecIssuer {
	return &ExecIssuer{BinaryPath: path}
}

// Request runs the issuer binary and returns its stdout bytes unmodified.
func (e *ExecIssuer) Request(ctx context.Context, nonce, userData []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.BinaryPath, hex.EncodeToString(nonce), hex.EncodeToString(userData))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("attestation: issuer binary failed: %w (stderr: %s)", err, stderr.String())
	}
	return stdout.Bytes(), nil
}
