package rng

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	id  string
	err error
}

func (f fakeSource) Identifier() (string, error) { return f.id, f.err }

func TestRequireHardwareAcceptsExpectedSource(t *testing.T) {
	require.NoError(t, RequireHardware(fakeSource{id: "nsm-hwrng"}, "nsm-hwrng"))
}

func TestRequireHardwareRejectsSoftwareFallback(t *testing.T) {
	err := RequireHardware(fakeSource{id: "software-urandom"}, "nsm-hwrng")
	require.Error(t, err)
}

func TestRequireHardwarePropagatesSourceError(t *testing.T) {
	err := RequireHardware(fakeSource{err: errors.New("device unavailable")}, "nsm-hwrng")
	require.Error(t, err)
}

func TestSecretBytesZeroClearsBuffer(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04}
	s := NewSecretBytes(buf)
	require.Equal(t, buf, s.Bytes())

	s.Zero()
	require.Nil(t, s.Bytes())
	for _, b := range buf {
		require.Equal(t, byte(0), b)
	}
}

func TestSecretBytesZeroIsIdempotent(t *testing.T) {
	s := NewSecretBytes([]byte{0xFF})
	s.Zero()
	require.NotPanics(t, func() { s.Zero() })
}
