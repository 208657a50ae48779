package pcm

import "encoding/binary"

// Format - sample profile behind an AudioData decode type
type Format struct {
	SampleRate uint32
	Channels   uint16
	BitDepth   uint16
}

// adapters use small integer codes instead of real audio params
var formats = map[uint32]Format{
	1: {44100, 2, 16}, // media (CarPlay)
	2: {44100, 2, 16}, // media (Android Auto)
	3: {8000, 1, 16},  // phone call downlink
	4: {48000, 2, 16}, // media (48k head units)
	5: {16000, 1, 16}, // Siri / voice assistant
	6: {24000, 1, 16}, // phone call wideband
	7: {16000, 2, 16}, // navigation prompts
}

// DecodeFormat - false for unknown codes, caller logs and drops the packet
func DecodeFormat(decodeType uint32) (Format, bool) {
	f, ok := formats[decodeType]
	return f, ok
}

// BytesPerSecond for grace window and buffer sizing
func (f Format) BytesPerSecond() int {
	return int(f.SampleRate) * int(f.Channels) * int(f.BitDepth) / 8
}

// IsEndMarker - detect the solid 0xFFFF tail the adapter appends to the
// last packet of a navigation prompt. Samples are probed at 0%, 25%,
// 50% and 75% offsets, so a real (if unlikely) all-loud PCM packet of a
// different shape won't trigger a flush.
func IsEndMarker(b []byte) bool {
	if n := len(b); n < 8 || n%2 != 0 {
		return false
	}

	samples := len(b) / 2
	for q := 0; q < 4; q++ {
		off := samples / 4 * q * 2
		if binary.LittleEndian.Uint16(b[off:]) != 0xFFFF {
			return false
		}
	}
	return true
}

// ApplyGain - scale s16le samples in place
func ApplyGain(b []byte, gain float32) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(b); i += 2 {
		s := int16(binary.LittleEndian.Uint16(b[i:]))
		binary.LittleEndian.PutUint16(b[i:], uint16(int16(float32(s)*gain)))
	}
}
