package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBinary writes a tiny shell script that records its argv and exits 0,
// standing in for the real Groth16-backed tool during tests.
func fakeBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary harness is POSIX-shell only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "groth16tool")
	script := "#!/bin/sh\necho \"$@\" > \"$(dirname \"$0\")/last_args.txt\"\nexit 0\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestExecToolchainRunsExpectedSubcommands(t *testing.T) {
	bin := fakeBinary(t)
	tc := NewExecToolchain(bin)
	ctx := context.Background()
	lastArgs := func() string {
		b, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "last_args.txt"))
		require.NoError(t, err)
		return string(b)
	}

	require.NoError(t, tc.NewZkey(ctx, "a.r1cs", "b.ptau", "c.zkey"))
	require.Equal(t, "new_zkey a.r1cs b.ptau c.zkey\n", lastArgs())
	require.NoError(t, tc.VerifyFromR1CS(ctx, "c.zkey", "a.r1cs", "b.ptau"))
	require.Equal(t, "verify_from_r1cs c.zkey a.r1cs b.ptau\n", lastArgs())
	require.NoError(t, tc.Contribute(ctx, "c.zkey", "d.zkey", "deadbeef", "enclave-contribution"))
	require.Equal(t, "contribute c.zkey d.zkey deadbeef enclave-contribution\n", lastArgs())
	require.NoError(t, tc.ApplyBeacon(ctx, "d.zkey", "e.zkey", "cafef00d", "public-beacon", 10))
	require.Equal(t, "apply_beacon d.zkey e.zkey cafef00d 10 public-beacon\n", lastArgs())
	require.NoError(t, tc.ExportSolidityVerifier(ctx, "e.zkey", "verifier.sol"))
	require.Equal(t, "export_solidity_verifier e.zkey verifier.sol\n", lastArgs())
}

func TestExecToolchainPropagatesFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failing-tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0o755))

	tc := NewExecToolchain(path)
	err := tc.NewZkey(context.Background(), "a.r1cs", "b.ptau", "c.zkey")
	require.Error(t, err)
}
