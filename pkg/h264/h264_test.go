package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	sps = []byte{0x67, 0x64, 0x00, 0x28, 0xAC, 0x2B, 0x40, 0x3C, 0x01, 0x13, 0xF2, 0xCD}
	pps = []byte{0x68, 0xEE, 0x06, 0xE2, 0xC0}
	idr = []byte{0x65, 0x88, 0x84, 0x00, 0x33, 0xFF}
	pfr = []byte{0x41, 0x9A, 0x24, 0x6C, 0x41, 0x4F}
)

func TestSplitSingle(t *testing.T) {
	units := Split(JoinAnnexB(pfr))
	require.Len(t, units, 1)
	require.Equal(t, pfr, units[0])
	require.Equal(t, byte(NALUTypePFrame), NALUType(units[0]))
}

func TestSplitBundle(t *testing.T) {
	// stream start: SPS+PPS+IDR in one packet
	units := Split(JoinAnnexB(sps, pps, idr))
	require.Len(t, units, 3)
	require.Equal(t, byte(NALUTypeSPS), NALUType(units[0]))
	require.Equal(t, byte(NALUTypePPS), NALUType(units[1]))
	require.Equal(t, byte(NALUTypeIFrame), NALUType(units[2]))
	require.Equal(t, sps, units[0])
	require.Equal(t, pps, units[1])
	require.Equal(t, idr, units[2])
}

func TestSplitShortStartCode(t *testing.T) {
	b := append([]byte{0, 0, 1}, sps...)
	b = append(b, 0, 0, 1)
	b = append(b, pps...)

	units := Split(b)
	require.Len(t, units, 2)
	require.Equal(t, sps, units[0])
	require.Equal(t, pps, units[1])
}

func TestSplitGarbage(t *testing.T) {
	require.Nil(t, Split([]byte{1, 2, 3, 4, 5}))
	require.Nil(t, Split(nil))
}

func TestIsKeyframe(t *testing.T) {
	require.True(t, IsKeyframe(JoinAnnexB(sps, pps, idr)))
	require.True(t, IsKeyframe(JoinAnnexB(idr)))
	require.False(t, IsKeyframe(JoinAnnexB(pfr)))
	require.False(t, IsKeyframe(JoinAnnexB(sps, pps)))
}
