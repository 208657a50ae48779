// Package demux routes decoded AudioData/VideoData messages into
// independent per-bus buffers and keeps the H.264 stream decodable.
//
// The adapter interleaves concurrent audio streams (navigation prompt
// over media) at 10-20 ms granularity on the same connection, so every
// bus gets its own bounded queue and routing never blocks.
package demux

import "github.com/carbridge/carbridge/pkg/pcm"

// Bus - logical audio stream
type Bus byte

const (
	BusMedia Bus = iota
	BusNavigation
	BusVoice
	BusCall
	BusMic
)

func (b Bus) String() string {
	switch b {
	case BusMedia:
		return "media"
	case BusNavigation:
		return "navigation"
	case BusVoice:
		return "voice"
	case BusCall:
		return "call"
	case BusMic:
		return "mic"
	}
	return "unknown"
}

// events fired to listeners

type StreamStarted struct {
	Bus    Bus
	Format pcm.Format
}

type StreamStopped struct {
	Bus Bus
}

type BufferFlushed struct {
	Bus    Bus
	Chunks int
}

// Ducked - main output gain change requested by the adapter
type Ducked struct {
	Gain     float32
	Duration float32
}

// UnknownAudio - unsupported (decodeType, audioType) pair, packet dropped
type UnknownAudio struct {
	DecodeType uint32
	AudioType  uint32
}

// Unit - decodable video payload in Annex-B format
type Unit struct {
	NALType  byte
	Keyframe bool
	PTS      uint32
	Data     []byte
}

// KeyframeNeeded - recovery request that should go upstream as a command
type KeyframeNeeded struct{}
