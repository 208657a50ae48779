package pcm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeFormat(t *testing.T) {
	f, ok := DecodeFormat(5)
	require.True(t, ok)
	require.Equal(t, Format{16000, 1, 16}, f)
	require.Equal(t, 32000, f.BytesPerSecond())

	_, ok = DecodeFormat(0)
	require.False(t, ok)
	_, ok = DecodeFormat(8)
	require.False(t, ok)
}

func TestIsEndMarker(t *testing.T) {
	require.True(t, IsEndMarker(bytes.Repeat([]byte{0xFF}, 1024)))
	require.True(t, IsEndMarker(bytes.Repeat([]byte{0xFF}, 8)))

	require.False(t, IsEndMarker(nil))
	require.False(t, IsEndMarker(bytes.Repeat([]byte{0xFF}, 6)))
	require.False(t, IsEndMarker(bytes.Repeat([]byte{0xFF}, 9))) // odd size

	// silence is not an end marker
	require.False(t, IsEndMarker(make([]byte, 1024)))

	// marker only in the second half of the packet
	b := make([]byte, 1024)
	for i := 512; i < 1024; i++ {
		b[i] = 0xFF
	}
	require.False(t, IsEndMarker(b))
}

func TestApplyGain(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint16(b[0:], uint16(int16(1000)))
	neg := int16(-1000)
	binary.LittleEndian.PutUint16(b[2:], uint16(neg))
	binary.LittleEndian.PutUint16(b[4:], uint16(int16(32000)))

	ApplyGain(b, 0.5)

	require.Equal(t, int16(500), int16(binary.LittleEndian.Uint16(b[0:])))
	require.Equal(t, int16(-500), int16(binary.LittleEndian.Uint16(b[2:])))
	require.Equal(t, int16(16000), int16(binary.LittleEndian.Uint16(b[4:])))
	require.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(b[6:])))
}
