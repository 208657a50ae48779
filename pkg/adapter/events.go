package adapter

// StateChanged - session lifecycle progress
type StateChanged struct {
	From State
	To   State
}

// Connected - phone plugged into the adapter
type Connected struct {
	PhoneType uint32
	WiFi      bool
}

// Disconnected - phone unplugged
type Disconnected struct{}

// Reconnecting - restart sequence started (projection drop or lost liveness)
type Reconnecting struct{}

// Closed - client stopped, no further events
type Closed struct{}

// LivenessLost - no frames from the adapter within the liveness window
type LivenessLost struct{}

// CommandEvent - adapter state report (btConnected, wifiConnected, ...)
type CommandEvent struct {
	Value uint32
}

// InfoUpdated - device identity report (bt_name, sw_version, ...)
type InfoUpdated struct {
	Key   string
	Value string
}

// MediaInfo - now playing metadata or cover art
type MediaInfo struct {
	Tag  uint32
	Data []byte
}

// FrameDropped - a single malformed frame was skipped
type FrameDropped struct {
	Err error
}
