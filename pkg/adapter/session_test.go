package adapter

import (
	"testing"

	"github.com/carbridge/carbridge/pkg/link"
	"github.com/stretchr/testify/require"
)

func newTestSession() (*Session, *[]any) {
	events := new([]any)
	s := NewSession(func(msg any) { *events = append(*events, msg) })
	return s, events
}

func TestSessionLifecycle(t *testing.T) {
	s, events := newTestSession()
	require.Equal(t, StateIdle, s.State())

	s.OnInitSent()
	require.Equal(t, StateInitializing, s.State())

	// unrelated phase values don't move the state
	s.OnPhase(link.PhaseSearching)
	require.Equal(t, StateInitializing, s.State())

	s.OnPhase(link.PhaseConnecting)
	require.Equal(t, StateConnecting, s.State())

	s.OnPhase(link.PhaseStreaming)
	require.Equal(t, StateStreaming, s.State())

	require.Equal(t, []any{
		StateChanged{StateIdle, StateInitializing},
		StateChanged{StateInitializing, StateConnecting},
		StateChanged{StateConnecting, StateStreaming},
	}, *events)
}

func TestSessionStreamingOnVideo(t *testing.T) {
	// some firmwares never report the streaming phase, first video
	// data is just as good
	s, _ := newTestSession()
	s.OnInitSent()
	s.OnPhase(link.PhaseConnecting)
	s.OnVideo()
	require.Equal(t, StateStreaming, s.State())

	// but video while already streaming changes nothing
	s.OnVideo()
	require.Equal(t, StateStreaming, s.State())
}

func TestSessionErrorAndClosed(t *testing.T) {
	s, _ := newTestSession()
	s.OnInitSent()
	s.OnProjectionStopped()
	require.Equal(t, StateError, s.State())

	s.OnClosed()
	require.Equal(t, StateClosed, s.State())

	// closed is terminal
	s.OnPhase(link.PhaseStreaming)
	s.OnInitSent()
	require.Equal(t, StateClosed, s.State())
}

func TestSessionReset(t *testing.T) {
	s, _ := newTestSession()
	s.OnInitSent()
	s.OnPlugged(&link.Plugged{PhoneType: 3, WiFi: 1, WiFiAvail: true})
	s.SetInfo("bt_name", "CPC200")
	require.Equal(t, uint32(3), s.PhoneType)

	// runtime state never survives a reconnect
	s.Reset()
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, uint32(0), s.PhoneType)
	require.Empty(t, s.Info())
}

func TestSessionPlugEvents(t *testing.T) {
	s, events := newTestSession()
	s.OnPlugged(&link.Plugged{PhoneType: 5})
	s.OnUnplugged()

	require.Equal(t, []any{
		Connected{PhoneType: 5},
		Disconnected{},
	}, *events)
}
