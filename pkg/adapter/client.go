// Package adapter implements the host side of a CPC200 projection
// session: connection lifecycle, heartbeat, init sequence and the
// dispatcher loop feeding the stream demultiplexers.
package adapter

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carbridge/carbridge/pkg/core"
	"github.com/carbridge/carbridge/pkg/demux"
	"github.com/carbridge/carbridge/pkg/link"
)

type Config struct {
	// Address - tcp://host:port of a wireless adapter.
	// Leave empty when supplying your own transport via NewClient.
	Address string

	Width  uint32
	Height uint32
	FPS    uint32
	DPI    uint32

	NightMode     bool
	LeftHandDrive bool
	BoxName       string
	MediaDelay    uint32

	// HeartbeatInterval - liveness frames cadence, the firmware expects
	// them from the first moment of the connection
	HeartbeatInterval time.Duration

	// LivenessTimeout - observed firmware gives up after ~11-12 s of
	// silence, ours is configurable since no hard constant is documented
	LivenessTimeout time.Duration

	// SettleDelay - pause between teardown and reopen during restart
	SettleDelay time.Duration

	EventsBuffer int
}

func (c *Config) setDefaults() {
	if c.Width == 0 {
		c.Width = 800
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.FPS == 0 {
		c.FPS = 30
	}
	if c.DPI == 0 {
		c.DPI = 160
	}
	if c.BoxName == "" {
		c.BoxName = "carbridge"
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 2 * time.Second
	}
	if c.LivenessTimeout == 0 {
		c.LivenessTimeout = 10 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = time.Second
	}
	if c.EventsBuffer == 0 {
		c.EventsBuffer = 256
	}
}

const openFormat = 5      // NV12 on screen, irrelevant for hosts
const openPacketMax = 49152
const openVersion = 2
const openMode = 2

type Client struct {
	core.Listener

	conf Config

	mu     sync.Mutex // guards conn for writes and swap on restart
	conn   io.ReadWriteCloser
	reader *link.Reader

	session *Session
	Audio   *demux.Audio
	Video   *demux.Video

	hbMu      sync.Mutex // serializes start/stop of the heartbeat worker
	heartbeat *core.Worker
	hbActive  int32
	hbTimers  int32 // active heartbeat workers, must never exceed 1

	lastRecv int64 // unix nano

	events  chan any
	dropped int32

	loop       sync.WaitGroup // live dispatcher loops
	stopped    int32
	restarting int32

	// stats
	Recv      uint32
	IdleDrops uint32
	Unknowns  uint32
}

// Dial - connect to a wireless adapter over TCP
func Dial(conf Config) (*Client, error) {
	conf.setDefaults()

	conn, err := dial(conf.Address)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, conf), nil
}

func dial(address string) (net.Conn, error) {
	host := strings.TrimPrefix(address, "tcp://")
	if u, err := url.Parse(address); err == nil && u.Host != "" {
		host = u.Host
	}
	if !strings.ContainsRune(host, ':') {
		host += ":7240"
	}
	return net.DialTimeout("tcp", host, 3*time.Second)
}

// NewClient - wrap an established transport (USB bulk wrapper, net.Conn...)
func NewClient(conn io.ReadWriteCloser, conf Config) *Client {
	conf.setDefaults()

	c := &Client{
		conf:   conf,
		conn:   conn,
		reader: link.NewReader(conn),
		Audio:  demux.NewAudio(),
		Video:  demux.NewVideo(),
		events: make(chan any, conf.EventsBuffer),
	}
	c.session = NewSession(c.emit)
	c.touch()

	c.Audio.Listen(c.emit)
	c.Video.Listen(func(msg any) {
		if _, ok := msg.(demux.KeyframeNeeded); ok {
			_ = c.send(&link.Command{Value: link.CmdFrame})
		}
		c.emit(msg)
	})

	return c
}

// Start - begin the session: heartbeat first, then the init sequence.
// The order is load bearing: the firmware kills sessions ~11-12 s after
// boot when heartbeats are held back until init completes.
func (c *Client) Start() error {
	c.startHeartbeat()

	if err := c.sendInit(); err != nil {
		return err
	}

	c.session.OnInitSent()
	return nil
}

// Handle - dispatcher loop, one reader per transport.
// Returns nil after Stop or restart, the transport error otherwise.
func (c *Client) Handle() error {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()

	c.loop.Add(1)
	defer c.loop.Done()

	return c.handle(reader)
}

func (c *Client) handle(reader *link.Reader) error {
	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			if errors.Is(err, link.ErrShortPayload) {
				// single bad frame, stream still in sync
				c.emit(FrameDropped{Err: err})
				continue
			}
			if atomic.LoadInt32(&c.stopped) != 0 || atomic.LoadInt32(&c.restarting) != 0 {
				return nil
			}
			c.session.OnClosed()
			return err
		}

		c.touch()
		atomic.AddUint32(&c.Recv, 1)
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg any) {
	// before Open only liveness frames mean anything
	if c.session.State() == StateIdle {
		if _, ok := msg.(*link.Heartbeat); !ok {
			atomic.AddUint32(&c.IdleDrops, 1)
			return
		}
	}

	switch msg := msg.(type) {
	case *link.Heartbeat:

	case *link.Phase:
		c.session.OnPhase(msg.Value)

	case *link.Plugged:
		c.session.OnPlugged(msg)

	case *link.Unplugged:
		c.session.OnUnplugged()

	case *link.Command:
		c.onCommand(msg.Value)

	case *link.AudioData:
		c.Audio.Route(msg)

	case *link.VideoData:
		c.session.OnVideo()
		c.Video.Ingest(msg)

	case *link.ManufacturerInfo:
	case *link.SoftwareVersion:
		c.session.SetInfo("sw_version", msg.Version)
	case *link.BluetoothAddress:
		c.session.SetInfo("bt_address", msg.Address)
	case *link.BluetoothPIN:
		c.session.SetInfo("bt_pin", msg.PIN)
	case *link.BluetoothDeviceName:
		c.session.SetInfo("bt_name", msg.Name)
	case *link.WifiDeviceName:
		c.session.SetInfo("wifi_name", msg.Name)
	case *link.BluetoothPairedList:
		c.session.SetInfo("bt_paired", msg.Data)
	case *link.HiCarLink:
		c.session.SetInfo("hicar_link", msg.Link)

	case *link.MediaData:
		c.emit(MediaInfo{Tag: msg.Tag, Data: msg.Data})

	case *link.BoxSettings:
		c.session.SetInfo("box_settings", string(msg.Settings))

	case *link.Unknown:
		atomic.AddUint32(&c.Unknowns, 1)
	}
}

func (c *Client) onCommand(value uint32) {
	if value == link.CmdProjectionDisconnected {
		c.session.OnProjectionStopped()
		go c.restart()
		return
	}
	c.emit(CommandEvent{Value: value})
}

// restart - documented recovery sequence: strictly stop-then-start.
// Old heartbeat is fully cancelled before the new session begins, two
// live heartbeat timers were a real lifecycle bug once.
func (c *Client) restart() {
	if !atomic.CompareAndSwapInt32(&c.restarting, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.restarting, 0)

	c.emit(Reconnecting{})

	// dead transport first: a heartbeat blocked on a stalled write must
	// fail out before stopHeartbeat waits for the worker to finish
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	c.stopHeartbeat()

	// the old dispatcher must be fully gone before the next session
	// opens, overlapping loops would race on the reader
	c.loop.Wait()

	if c.conf.Address == "" {
		// external transport, the owner reconnects
		c.session.OnClosed()
		c.emit(Closed{})
		return
	}

	time.Sleep(c.conf.SettleDelay)

	if atomic.LoadInt32(&c.stopped) != 0 {
		return
	}

	conn, err := dial(c.conf.Address)
	if err != nil {
		c.session.OnClosed()
		c.emit(Closed{})
		return
	}

	reader := link.NewReader(conn)

	c.mu.Lock()
	c.conn = conn
	c.reader = reader
	c.mu.Unlock()

	c.session.Reset()
	c.touch()

	if err = c.Start(); err != nil {
		c.session.OnClosed()
		return
	}

	// registered before the restarting flag clears, so the next restart
	// can't miss this loop in its wait
	c.loop.Add(1)
	go func() {
		err := c.handle(reader)
		c.loop.Done()
		if err != nil && atomic.LoadInt32(&c.stopped) == 0 {
			c.restart()
		}
	}()
}

// Serve - dispatcher loop with automatic recovery.
// Returns after Stop or when recovery gives up (Closed event fired).
func (c *Client) Serve() {
	if err := c.Handle(); err != nil && atomic.LoadInt32(&c.stopped) == 0 {
		c.restart()
	}
}

// Stop - full teardown, terminal
func (c *Client) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}

	c.stopHeartbeat()

	c.session.OnClosed()
	c.emit(Closed{})
	return err
}

// Events - bounded event stream for the app.
// A slow consumer loses events (video first, keyframes last), never
// stalls the dispatcher or the heartbeat.
func (c *Client) Events() <-chan any {
	return c.events
}

// Dropped - events lost to a slow consumer
func (c *Client) Dropped() int {
	return int(atomic.LoadInt32(&c.dropped))
}

func (c *Client) State() State {
	return c.session.State()
}

func (c *Client) Session() *Session {
	return c.session
}

// SendTouch - x and y are relative 0.0..1.0
func (c *Client) SendTouch(action uint32, x, y float32) error {
	return c.send(&link.Touch{Action: action, X: uint32(x * 10000), Y: uint32(y * 10000)})
}

func (c *Client) SendCommand(value uint32) error {
	return c.send(&link.Command{Value: value})
}

// SendMic - upstream microphone PCM (16 kHz mono s16le)
func (c *Client) SendMic(pcm []byte) error {
	return c.send(&link.AudioData{DecodeType: 5, Volume: 1, AudioType: link.AudioTypeMic, Data: pcm})
}

func (c *Client) send(msg any) error {
	b, err := link.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return net.ErrClosed
	}
	_, err = c.conn.Write(b)
	return err
}

func (c *Client) sendInit() error {
	settings, err := json.Marshal(map[string]any{
		"mediaDelay":       c.conf.MediaDelay,
		"syncTime":         time.Now().Unix(),
		"androidAutoSizeW": c.conf.Width,
		"androidAutoSizeH": c.conf.Height,
	})
	if err != nil {
		return err
	}

	// the firmware wants this exact shape of handshake, config files
	// first, Open, then runtime re-assertion commands
	msgs := []any{
		&link.SendFile{Path: "/tmp/screen_dpi", Data: fileU32(c.conf.DPI)},
		&link.Open{
			Width:     c.conf.Width,
			Height:    c.conf.Height,
			FPS:       c.conf.FPS,
			Format:    openFormat,
			PacketMax: openPacketMax,
			Version:   openVersion,
			Mode:      openMode,
		},
		&link.SendFile{Path: "/tmp/night_mode", Data: fileBool(c.conf.NightMode)},
		&link.SendFile{Path: "/tmp/hand_drive_mode", Data: fileBool(!c.conf.LeftHandDrive)},
		&link.SendFile{Path: "/tmp/charge_mode", Data: fileBool(true)},
		&link.SendFile{Path: "/etc/box_name", Data: []byte(c.conf.BoxName)},
		&link.BoxSettings{Settings: settings},
		&link.Command{Value: link.CmdWifiEnable},
		&link.Command{Value: link.CmdWifi5G},
		&link.Command{Value: link.CmdMic},
		&link.Command{Value: link.CmdAudioTransferOff},
	}

	for _, msg := range msgs {
		if err = c.send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) startHeartbeat() {
	c.hbMu.Lock()
	defer c.hbMu.Unlock()

	if !atomic.CompareAndSwapInt32(&c.hbActive, 0, 1) {
		return
	}
	atomic.AddInt32(&c.hbTimers, 1)

	// first beat goes out synchronously, ahead of any init frame
	_ = c.send(&link.Heartbeat{})

	c.heartbeat = core.NewWorker(c.conf.HeartbeatInterval, func() time.Duration {
		if atomic.LoadInt32(&c.hbActive) == 0 {
			return 0
		}

		last := time.Unix(0, atomic.LoadInt64(&c.lastRecv))
		if time.Since(last) > c.conf.LivenessTimeout {
			c.emit(LivenessLost{})
			go c.restart()
			return 0
		}

		_ = c.send(&link.Heartbeat{})
		return c.conf.HeartbeatInterval
	})
}

func (c *Client) stopHeartbeat() {
	c.hbMu.Lock()
	defer c.hbMu.Unlock()

	if !atomic.CompareAndSwapInt32(&c.hbActive, 1, 0) {
		return
	}
	c.heartbeat.Stop()
	atomic.AddInt32(&c.hbTimers, -1)
}

func (c *Client) touch() {
	atomic.StoreInt64(&c.lastRecv, time.Now().UnixNano())
}

// emit - listeners first, then the bounded app channel.
// On overflow video slices go first and keyframes push out older
// events, an app must never miss the recovery point.
func (c *Client) emit(msg any) {
	c.Fire(msg)

	select {
	case c.events <- msg:
		return
	default:
	}

	if u, ok := msg.(demux.Unit); ok && !u.Keyframe {
		atomic.AddInt32(&c.dropped, 1)
		return
	}

	// make room for everything else
	select {
	case <-c.events:
	default:
	}
	select {
	case c.events <- msg:
	default:
		atomic.AddInt32(&c.dropped, 1)
	}
}

func fileU32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func fileBool(v bool) []byte {
	if v {
		return fileU32(1)
	}
	return fileU32(0)
}
