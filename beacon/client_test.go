package beacon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBeaconJSON(t *testing.T) {
	raw := []byte(`{"round":3485635,"signature":"aabbcc","randomness":"ddeeff","previous_signature":"112233"}`)
	b, err := ParseBeaconJSON(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(3485635), b.Round)
	require.Equal(t, "aabbcc", b.SignatureHex)
	require.Equal(t, "ddeeff", b.RandomnessHex)
	require.Equal(t, "112233", b.PreviousSignature)
}

func TestParseBeaconJSONRejectsMissingSignature(t *testing.T) {
	raw := []byte(`{"round":1,"randomness":"ddeeff"}`)
	_, err := ParseBeaconJSON(raw)
	require.Error(t, err)
}

func TestParseBeaconJSONRejectsMalformed(t *testing.T) {
	_, err := ParseBeaconJSON([]byte("not json"))
	require.Error(t, err)
}
