package solidity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeccak256HexKnownVector(t *testing.T) {
	// keccak256("") per the standard Keccak test vectors.
	got := Keccak256Hex(nil)
	require.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", got)
}

func TestKeccak256HexChangesWithInput(t *testing.T) {
	a := Keccak256Hex([]byte("runtime-bytecode-a"))
	b := Keccak256Hex([]byte("runtime-bytecode-b"))
	require.NotEqual(t, a, b)
}
