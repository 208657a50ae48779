package adapter

import (
	"sync"

	"github.com/carbridge/carbridge/pkg/link"
)

type State byte

const (
	StateIdle State = iota
	StateInitializing
	StateConnecting
	StateStreaming
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session - runtime state of one adapter connection.
// Always rebuilt from defaults on every (re)connect: the adapter resets
// its own runtime state on disconnect, so nothing here may be assumed
// to survive from persisted config.
type Session struct {
	mu    sync.Mutex
	state State
	phase uint32

	PhoneType uint32
	WiFi      bool

	info map[string]string

	onEvent func(msg any)
}

func NewSession(onEvent func(msg any)) *Session {
	return &Session{state: StateIdle, info: map[string]string{}, onEvent: onEvent}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Phase() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Reset - back to defaults for a fresh connection
func (s *Session) Reset() {
	s.mu.Lock()
	s.state = StateIdle
	s.phase = 0
	s.PhoneType = 0
	s.WiFi = false
	s.info = map[string]string{}
	s.mu.Unlock()
}

func (s *Session) to(state State) {
	s.mu.Lock()
	if s.state == state || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = state
	s.mu.Unlock()

	s.onEvent(StateChanged{From: from, To: state})
}

// OnInitSent - host pushed the init sequence
func (s *Session) OnInitSent() {
	s.mu.Lock()
	ok := s.state == StateIdle
	s.mu.Unlock()
	if ok {
		s.to(StateInitializing)
	}
}

func (s *Session) OnPhase(value uint32) {
	s.mu.Lock()
	s.phase = value
	state := s.state
	s.mu.Unlock()

	switch {
	case value == link.PhaseConnecting && state == StateInitializing:
		s.to(StateConnecting)
	case value == link.PhaseStreaming && (state == StateInitializing || state == StateConnecting):
		s.to(StateStreaming)
	}
}

func (s *Session) OnPlugged(msg *link.Plugged) {
	s.mu.Lock()
	s.PhoneType = msg.PhoneType
	s.WiFi = msg.WiFiAvail && msg.WiFi != 0
	s.mu.Unlock()

	s.onEvent(Connected{PhoneType: msg.PhoneType, WiFi: msg.WiFiAvail && msg.WiFi != 0})
}

func (s *Session) OnUnplugged() {
	s.mu.Lock()
	s.PhoneType = 0
	s.mu.Unlock()

	s.onEvent(Disconnected{})
}

// OnVideo - projection is live once video flows, even if the adapter
// never reports the streaming phase
func (s *Session) OnVideo() {
	s.mu.Lock()
	ok := s.state == StateConnecting || s.state == StateInitializing
	s.mu.Unlock()
	if ok {
		s.to(StateStreaming)
	}
}

// OnProjectionStopped - phone dropped the projection link
func (s *Session) OnProjectionStopped() {
	s.to(StateError)
}

func (s *Session) OnClosed() {
	s.to(StateClosed)
}

func (s *Session) SetInfo(key, value string) {
	s.mu.Lock()
	s.info[key] = value
	s.mu.Unlock()

	s.onEvent(InfoUpdated{Key: key, Value: value})
}

func (s *Session) Info() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := make(map[string]string, len(s.info))
	for k, v := range s.info {
		info[k] = v
	}
	return info
}
