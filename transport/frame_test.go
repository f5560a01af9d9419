package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFramesRoundTrip(t *testing.T) {
	frames := []Frame{
		{Name: "r1cs", Body: []byte("constraint system bytes")},
		{Name: "zkey", Body: []byte("z")},
		{Name: "wasm", Body: bytes.Repeat([]byte{0xAB}, 4096)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrames(&buf, frames))

	got, err := ReadFrames(&buf)
	require.NoError(t, err)
	require.Equal(t, frames, got)
}

func TestReadFramesEmptyStreamIsNotAnError(t *testing.T) {
	got, err := ReadFrames(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadFramesTruncatedMidHeaderIsAnError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Name: "x", Body: []byte("y")}))
	truncated := buf.Bytes()[:headerSize-1]
	_, err := ReadFrames(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestReadFramesTruncatedMidBodyIsAnError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Name: "x", Body: []byte("longer-body-than-truncation")}))
	truncated := buf.Bytes()[:buf.Len()-5]
	_, err := ReadFrames(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestFrameReaderReadNLeavesRemainderForLaterReads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrames(&buf, []Frame{
		{Name: "a", Body: []byte("first")},
		{Name: "b", Body: []byte("second")},
		{Name: "c", Body: []byte("third")},
	}))

	fr := NewFrameReader(&buf)

	first, err := fr.ReadN(2)
	require.NoError(t, err)
	require.Equal(t, []Frame{
		{Name: "a", Body: []byte("first")},
		{Name: "b", Body: []byte("second")},
	}, first)

	rest, err := fr.ReadAll()
	require.NoError(t, err)
	require.Equal(t, []Frame{{Name: "c", Body: []byte("third")}}, rest)
}

func TestFrameReaderReadNErrorsWhenStreamEndsEarly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Name: "only", Body: []byte("x")}))

	fr := NewFrameReader(&buf)
	_, err := fr.ReadN(2)
	require.Error(t, err)
}

func TestWriteFrameRejectsOversizedName(t *testing.T) {
	var buf bytes.Buffer
	longName := string(bytes.Repeat([]byte{'a'}, maxNameLen+1))
	err := WriteFrame(&buf, Frame{Name: longName, Body: []byte("x")})
	require.Error(t, err)
}

func TestWriteFrameRejectsEmptyBody(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, Frame{Name: "zkey", Body: []byte{}})
	require.Error(t, err, "spec.md §3 requires 0 < size; an empty body must be rejected, not accepted")
}

func TestWriteFrameRejectsEmptyName(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, Frame{Name: "", Body: []byte("x")})
	require.Error(t, err)
}

func TestFrameReaderResyncsPastSpuriousPrefixByte(t *testing.T) {
	var buf bytes.Buffer
	// nameLen = 1024 so its low byte is 0x00; shifting the 10-byte window by
	// one spurious prefix byte then reads a name-length field of 0, which
	// fails the sanity predicate and forces the one-byte slide in §4.5 to
	// actually run before the real, aligned header is found.
	longName := string(bytes.Repeat([]byte{'a'}, 1024))
	require.NoError(t, WriteFrame(&buf, Frame{Name: longName, Body: []byte("hello")}))

	withPrefix := append([]byte{0x00}, buf.Bytes()...)
	got, err := ReadFrames(bytes.NewReader(withPrefix))
	require.NoError(t, err)
	require.Equal(t, []Frame{{Name: longName, Body: []byte("hello")}}, got)
}
