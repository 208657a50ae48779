package demux

import (
	"sync"
	"time"

	"github.com/carbridge/carbridge/pkg/core"
	"github.com/carbridge/carbridge/pkg/link"
	"github.com/carbridge/carbridge/pkg/pcm"
)

// naviGrace - silence keeps arriving this long between NAVI_STOP and
// NAVI_COMPLETE, it must be accepted but carries no content
const naviGrace = 2 * time.Second

// queueSize - chunks per bus, about half a second of 10-20 ms packets
const queueSize = 32

// Stream - one logical audio bus with its own buffer.
// Single producer (Route), single consumer (playback sink).
type Stream struct {
	Bus    Bus
	Format pcm.Format
	Queue  *core.Queue

	active bool
}

// Audio - routes AudioData packets by (decodeType, audioType) and owns
// the ducking side channel of the main output bus
type Audio struct {
	core.Listener

	mu      sync.Mutex
	streams map[Bus]*Stream

	mediaGain  float32
	graceUntil time.Time // navigation post-stop window

	now func() time.Time
}

func NewAudio() *Audio {
	return &Audio{
		streams:   map[Bus]*Stream{},
		mediaGain: 1,
		now:       time.Now,
	}
}

// Stream - get or create bus state
func (a *Audio) Stream(bus Bus) *Stream {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream(bus)
}

func (a *Audio) stream(bus Bus) *Stream {
	s, ok := a.streams[bus]
	if !ok {
		s = &Stream{Bus: bus, Queue: core.NewQueue(queueSize)}
		a.streams[bus] = s
	}
	return s
}

// MediaGain - effective gain of the media bus (1.0 unless ducked)
func (a *Audio) MediaGain() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mediaGain
}

// Pull - next buffered chunk of the bus, nil when empty.
// Media chunks come out with the current ducking gain applied, the
// other buses always play at full scale.
func (a *Audio) Pull(bus Bus) []byte {
	b := a.Stream(bus).Queue.Pop()
	if b != nil && bus == BusMedia {
		pcm.ApplyGain(b, a.MediaGain())
	}
	return b
}

// Route - classify one AudioData packet.
// Never blocks: full queues drop oldest chunks.
func (a *Audio) Route(msg *link.AudioData) {
	if msg.Command != 0 {
		a.command(msg.Command)
		return
	}

	if msg.VolumeAvail {
		// volume side channel, not PCM: duck or restore the media bus
		a.mu.Lock()
		a.mediaGain = msg.Volume
		a.mu.Unlock()
		a.Fire(Ducked{Gain: msg.Volume, Duration: msg.VolumeDuration})
		return
	}

	if len(msg.Data) == 0 {
		return
	}

	format, ok := pcm.DecodeFormat(msg.DecodeType)
	if !ok {
		a.Fire(UnknownAudio{DecodeType: msg.DecodeType, AudioType: msg.AudioType})
		return
	}

	bus, ok := busFor(msg.DecodeType, msg.AudioType)
	if !ok {
		a.Fire(UnknownAudio{DecodeType: msg.DecodeType, AudioType: msg.AudioType})
		return
	}

	a.mu.Lock()
	s := a.stream(bus)
	s.Format = format

	if bus == BusNavigation {
		if !s.active && a.now().Before(a.graceUntil) {
			// trailing silence after NAVI_STOP, accept and discard
			a.mu.Unlock()
			return
		}
		if pcm.IsEndMarker(msg.Data) {
			n := s.Queue.Flush()
			a.mu.Unlock()
			a.Fire(BufferFlushed{Bus: bus, Chunks: n})
			return
		}
	}

	if !s.active {
		// PCM may race ahead of the start command
		s.active = true
		a.mu.Unlock()
		a.Fire(StreamStarted{Bus: bus, Format: format})
		a.mu.Lock()
	}

	s.Queue.Push(msg.Data)
	a.mu.Unlock()
}

func (a *Audio) command(cmd link.AudioCommand) {
	switch cmd {
	case link.AudioMediaStart, link.AudioOutputStart:
		a.start(BusMedia)
	case link.AudioMediaStop, link.AudioOutputStop:
		a.stop(BusMedia, true)

	case link.AudioNaviStart, link.AudioAlertStart:
		a.start(BusNavigation)
	case link.AudioNaviStop, link.AudioAlertStop:
		// buffer is flushed here or by the end marker, whichever first;
		// silence packets keep arriving until NAVI_COMPLETE
		a.mu.Lock()
		a.graceUntil = a.now().Add(naviGrace)
		a.mu.Unlock()
		a.stop(BusNavigation, true)
	case link.AudioNaviComplete:
		a.mu.Lock()
		a.graceUntil = time.Time{}
		a.mu.Unlock()

	case link.AudioSiriStart:
		a.start(BusVoice)
		a.start(BusMic)
	case link.AudioSiriStop:
		a.stop(BusVoice, true)
		a.stop(BusMic, false)

	case link.AudioPhonecallStart, link.AudioIncomingCallInit:
		a.start(BusCall)
		a.start(BusMic)
	case link.AudioPhonecallStop:
		a.stop(BusCall, true)
		a.stop(BusMic, false)

	case link.AudioInputConfig:
		a.start(BusMic)
	}
}

func (a *Audio) start(bus Bus) {
	a.mu.Lock()
	s := a.stream(bus)
	if s.active {
		a.mu.Unlock()
		return
	}
	s.active = true
	format := s.Format
	a.mu.Unlock()

	a.Fire(StreamStarted{Bus: bus, Format: format})
}

func (a *Audio) stop(bus Bus, flush bool) {
	a.mu.Lock()
	s := a.stream(bus)
	if !s.active {
		a.mu.Unlock()
		return
	}
	s.active = false
	var n int
	if flush {
		n = s.Queue.Flush()
	}
	a.mu.Unlock()

	a.Fire(StreamStopped{Bus: bus})
	if flush {
		a.Fire(BufferFlushed{Bus: bus, Chunks: n})
	}
}

// busFor - map the wire tuple to a logical bus.
// The main output carries media, voice and call audio, telling them
// apart needs the decode type.
func busFor(decodeType, audioType uint32) (Bus, bool) {
	switch audioType {
	case link.AudioTypeNavi:
		return BusNavigation, true
	case link.AudioTypeMic:
		return BusMic, true
	case link.AudioTypeMain:
		switch decodeType {
		case 3, 6: // phone call profiles
			return BusCall, true
		case 5: // voice assistant profile
			return BusVoice, true
		default:
			return BusMedia, true
		}
	}
	return 0, false
}
