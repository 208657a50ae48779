package demux

import (
	"testing"

	"github.com/carbridge/carbridge/pkg/h264"
	"github.com/carbridge/carbridge/pkg/link"
	"github.com/stretchr/testify/require"
)

var (
	sps = []byte{0x67, 0x64, 0x00, 0x28, 0xAC, 0x2B, 0x40}
	pps = []byte{0x68, 0xEE, 0x06, 0xE2, 0xC0}
	idr = []byte{0x65, 0x88, 0x84, 0x00, 0x33}
	pfr = []byte{0x41, 0x9A, 0x24, 0x6C, 0x41}
)

func video(pts uint32, units ...[]byte) *link.VideoData {
	return &link.VideoData{Width: 800, Height: 480, PTS: pts, Data: h264.JoinAnnexB(units...)}
}

func collect(v *Video) *[]any {
	events := new([]any)
	v.Listen(func(msg any) { *events = append(*events, msg) })
	return events
}

func TestKeyframeGate(t *testing.T) {
	v := NewVideo()
	events := collect(v)

	// slices before any parameter set are not decodable
	v.Ingest(video(1, pfr))
	v.Ingest(video(2, idr))
	require.Empty(t, *events)
	require.False(t, v.Ready())

	v.Ingest(video(3, sps))
	v.Ingest(video(4, pps))
	require.Empty(t, *events)
	require.True(t, v.Ready())

	v.Ingest(video(5, idr))
	require.Len(t, *events, 1)

	u := (*events)[0].(Unit)
	require.True(t, u.Keyframe)
	require.Equal(t, uint32(5), u.PTS)
	require.Equal(t, h264.JoinAnnexB(sps, pps, idr), u.Data)

	v.Ingest(video(6, pfr))
	require.Len(t, *events, 2)
	require.False(t, (*events)[1].(Unit).Keyframe)
}

func TestBundledStreamStart(t *testing.T) {
	v := NewVideo()
	events := collect(v)

	// SPS+PPS+IDR in a single packet
	v.Ingest(video(1, sps, pps, idr))

	require.Len(t, *events, 1)
	u := (*events)[0].(Unit)
	require.True(t, u.Keyframe)
	require.Equal(t, h264.JoinAnnexB(sps, pps, idr), u.Data)
	require.Equal(t, uint(1), v.Packets)
	require.Equal(t, uint(3), v.Units)
}

func TestRecoveryRequestOncePerGap(t *testing.T) {
	v := NewVideo()
	events := collect(v)

	v.Ingest(video(1, sps, pps, idr))
	v.Ingest(video(2, pfr))
	require.Len(t, *events, 2)

	v.ReportDecodeError()
	v.ReportDecodeError() // second report inside the same gap
	v.ReportDecodeError()

	var requests int
	for _, ev := range *events {
		if _, ok := ev.(KeyframeNeeded); ok {
			requests++
		}
	}
	require.Equal(t, 1, requests)

	// gated until the keyframe arrives
	v.Ingest(video(3, pfr))
	require.Len(t, *events, 3) // only the KeyframeNeeded was added

	v.Ingest(video(4, idr))
	v.Ingest(video(5, pfr))
	require.Len(t, *events, 5)
	require.True(t, (*events)[3].(Unit).Keyframe)

	// a new gap may request again
	v.ReportDecodeError()
	requests = 0
	for _, ev := range *events {
		if _, ok := ev.(KeyframeNeeded); ok {
			requests++
		}
	}
	require.Equal(t, 2, requests)
}

func TestIngestGarbage(t *testing.T) {
	v := NewVideo()
	events := collect(v)

	v.Ingest(&link.VideoData{PTS: 1, Data: []byte{1, 2, 3}})
	require.Empty(t, *events)
	require.Equal(t, uint(1), v.Packets)
	require.Equal(t, uint(0), v.Units)
}
