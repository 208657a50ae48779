package demux

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/carbridge/carbridge/pkg/link"
	"github.com/stretchr/testify/require"
)

func mediaPCM(b ...byte) *link.AudioData {
	return &link.AudioData{DecodeType: 1, Volume: 1, AudioType: link.AudioTypeMain, Data: b}
}

func naviPCM(b ...byte) *link.AudioData {
	return &link.AudioData{DecodeType: 7, Volume: 1, AudioType: link.AudioTypeNavi, Data: b}
}

func naviCmd(cmd link.AudioCommand) *link.AudioData {
	return &link.AudioData{DecodeType: 7, Volume: 1, AudioType: link.AudioTypeNavi, Command: cmd}
}

func TestStreamIsolation(t *testing.T) {
	a := NewAudio()
	a.Route(&link.AudioData{DecodeType: 1, AudioType: link.AudioTypeMain, Command: link.AudioMediaStart})
	a.Route(naviCmd(link.AudioNaviStart))

	rnd := rand.New(rand.NewSource(1))

	var wantMedia, wantNavi []byte
	for i := 0; i < 200; i++ {
		tag := byte(i)
		if rnd.Intn(2) == 0 {
			wantMedia = append(wantMedia, tag)
			a.Route(mediaPCM(tag, 1, 2, 3))
		} else {
			wantNavi = append(wantNavi, tag)
			a.Route(naviPCM(tag, 1, 2, 3))
		}
	}

	// FIFO per bus, nothing in the wrong buffer
	pop := func(bus Bus) (tags []byte) {
		q := a.Stream(bus).Queue
		for b := q.Pop(); b != nil; b = q.Pop() {
			tags = append(tags, b[0])
		}
		return
	}

	// queue is bounded at 32, the oldest chunks were dropped
	gotMedia := pop(BusMedia)
	gotNavi := pop(BusNavigation)
	require.LessOrEqual(t, len(gotMedia), queueSize)
	require.LessOrEqual(t, len(gotNavi), queueSize)
	require.Equal(t, wantMedia[len(wantMedia)-len(gotMedia):], gotMedia)
	require.Equal(t, wantNavi[len(wantNavi)-len(gotNavi):], gotNavi)

	// voice and call buses stayed untouched
	require.Equal(t, 0, a.Stream(BusVoice).Queue.Len())
	require.Equal(t, 0, a.Stream(BusCall).Queue.Len())
}

func TestMainBusClassification(t *testing.T) {
	a := NewAudio()

	a.Route(&link.AudioData{DecodeType: 5, AudioType: link.AudioTypeMain, Data: []byte{1, 2}})
	a.Route(&link.AudioData{DecodeType: 3, AudioType: link.AudioTypeMain, Data: []byte{3, 4}})
	a.Route(&link.AudioData{DecodeType: 4, AudioType: link.AudioTypeMain, Data: []byte{5, 6}})

	require.Equal(t, 1, a.Stream(BusVoice).Queue.Len())
	require.Equal(t, 1, a.Stream(BusCall).Queue.Len())
	require.Equal(t, 1, a.Stream(BusMedia).Queue.Len())
}

func TestUnknownAudioDropped(t *testing.T) {
	a := NewAudio()

	var events []any
	a.Listen(func(msg any) { events = append(events, msg) })

	a.Route(&link.AudioData{DecodeType: 9, AudioType: link.AudioTypeMain, Data: []byte{1, 2}})
	a.Route(&link.AudioData{DecodeType: 1, AudioType: 7, Data: []byte{1, 2}})

	require.Equal(t, []any{
		UnknownAudio{DecodeType: 9, AudioType: 1},
		UnknownAudio{DecodeType: 1, AudioType: 7},
	}, events)
	require.Equal(t, 0, a.Stream(BusMedia).Queue.Len())
}

func TestEndMarkerFlush(t *testing.T) {
	a := NewAudio()

	var flushed []any
	a.Listen(func(msg any) {
		if _, ok := msg.(BufferFlushed); ok {
			flushed = append(flushed, msg)
		}
	})

	a.Route(naviCmd(link.AudioNaviStart))
	for i := 0; i < 5; i++ {
		a.Route(naviPCM(1, 2, 3, 4))
	}
	require.Equal(t, 5, a.Stream(BusNavigation).Queue.Len())

	a.Route(naviPCM(bytes.Repeat([]byte{0xFF}, 64)...))

	require.Equal(t, 0, a.Stream(BusNavigation).Queue.Len())
	require.Equal(t, []any{BufferFlushed{Bus: BusNavigation, Chunks: 5}}, flushed)

	// marker must not run on the media bus
	a.Route(&link.AudioData{DecodeType: 1, AudioType: link.AudioTypeMain, Data: bytes.Repeat([]byte{0xFF}, 64)})
	require.Equal(t, 1, a.Stream(BusMedia).Queue.Len())
}

func TestDuckingScenario(t *testing.T) {
	a := NewAudio()

	now := time.Unix(1000, 0)
	a.now = func() time.Time { return now }

	a.Route(&link.AudioData{DecodeType: 1, AudioType: link.AudioTypeMain, Command: link.AudioMediaStart})
	a.Route(mediaPCM(1, 2, 3, 4))
	require.Equal(t, float32(1), a.MediaGain())

	// duck request on the volume side channel
	a.Route(&link.AudioData{DecodeType: 1, Volume: 0.2, AudioType: link.AudioTypeMain, VolumeDuration: 0.5, VolumeAvail: true})
	require.Equal(t, float32(0.2), a.MediaGain())

	a.Route(naviCmd(link.AudioNaviStart))

	// both streams interleave during the overlap window
	for i := 0; i < 10; i++ {
		a.Route(naviPCM(9, 9))
		a.Route(mediaPCM(1, 1))
	}
	require.Equal(t, float32(0.2), a.MediaGain())
	require.Equal(t, 10, a.Stream(BusNavigation).Queue.Len())

	a.Route(naviCmd(link.AudioNaviStop))
	require.Equal(t, 0, a.Stream(BusNavigation).Queue.Len())

	// trailing silence before NAVI_COMPLETE is accepted but not buffered
	for i := 0; i < 20; i++ {
		now = now.Add(95 * time.Millisecond)
		a.Route(naviPCM(0, 0, 0, 0))
	}
	require.Equal(t, 0, a.Stream(BusNavigation).Queue.Len())

	a.Route(naviCmd(link.AudioNaviComplete))

	a.Route(&link.AudioData{DecodeType: 1, Volume: 1, AudioType: link.AudioTypeMain, VolumeDuration: 0, VolumeAvail: true})
	require.Equal(t, float32(1), a.MediaGain())
}

func TestPullAppliesGain(t *testing.T) {
	a := NewAudio()

	a.Route(&link.AudioData{DecodeType: 1, AudioType: link.AudioTypeMain, Command: link.AudioMediaStart})
	a.Route(mediaPCM(0xE8, 0x03, 0xD0, 0x07)) // samples 1000, 2000

	// duck to half
	a.Route(&link.AudioData{DecodeType: 1, Volume: 0.5, AudioType: link.AudioTypeMain, VolumeDuration: 0.3, VolumeAvail: true})

	require.Equal(t, []byte{0xF4, 0x01, 0xE8, 0x03}, a.Pull(BusMedia)) // 500, 1000
	require.Nil(t, a.Pull(BusMedia))

	// navigation prompts never get scaled
	a.Route(naviCmd(link.AudioNaviStart))
	a.Route(naviPCM(0xE8, 0x03))
	require.Equal(t, []byte{0xE8, 0x03}, a.Pull(BusNavigation))
}

func TestPostGraceRestart(t *testing.T) {
	a := NewAudio()

	now := time.Unix(1000, 0)
	a.now = func() time.Time { return now }

	a.Route(naviCmd(link.AudioNaviStart))
	a.Route(naviPCM(1, 2))
	a.Route(naviCmd(link.AudioNaviStop))

	// inside the grace window: discarded
	a.Route(naviPCM(3, 4))
	require.Equal(t, 0, a.Stream(BusNavigation).Queue.Len())

	// a new prompt after the window starts the stream again
	now = now.Add(3 * time.Second)
	a.Route(naviPCM(5, 6))
	require.Equal(t, 1, a.Stream(BusNavigation).Queue.Len())
}
