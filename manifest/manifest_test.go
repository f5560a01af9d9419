package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func contentsFixture() map[string][]byte {
	return map[string][]byte{
		"r1cs":     []byte("r1cs bytes"),
		"zkey":     []byte("zkey bytes"),
		"vkey":     []byte("vkey bytes"),
		"verifier": []byte("solidity bytes"),
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	order := []string{"r1cs", "zkey", "vkey", "verifier"}
	m1, err := Build(order, contentsFixture())
	require.NoError(t, err)
	m2, err := Build(order, contentsFixture())
	require.NoError(t, err)
	require.Equal(t, m1.FinalAttestationNonce, m2.FinalAttestationNonce)
}

func TestBuildReorderingChangesNonce(t *testing.T) {
	forward := []string{"r1cs", "zkey", "vkey", "verifier"}
	reversed := []string{"verifier", "vkey", "zkey", "r1cs"}

	m1, err := Build(forward, contentsFixture())
	require.NoError(t, err)
	m2, err := Build(reversed, contentsFixture())
	require.NoError(t, err)

	require.NotEqual(t, m1.FinalAttestationNonce, m2.FinalAttestationNonce)
}

func TestBuildMissingArtifactIsAnError(t *testing.T) {
	_, err := Build([]string{"missing"}, contentsFixture())
	require.Error(t, err)
}

func TestRenderContainsAllEntriesAndNonce(t *testing.T) {
	order := []string{"r1cs", "zkey"}
	m, err := Build(order, contentsFixture())
	require.NoError(t, err)

	out := m.Render()
	require.Contains(t, out, "r1cs: "+m.Entries[0].Sha256)
	require.Contains(t, out, "zkey: "+m.Entries[1].Sha256)
	require.Contains(t, out, "concatenated: "+m.Concatenated)
	require.Contains(t, out, "finalAttestationNonce: "+m.FinalAttestationNonce)
}
