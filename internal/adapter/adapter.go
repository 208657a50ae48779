// Package adapter is the app module that owns the configured adapter
// sessions and exposes them over the HTTP/WS API.
package adapter

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carbridge/carbridge/internal/api"
	"github.com/carbridge/carbridge/internal/api/ws"
	"github.com/carbridge/carbridge/internal/app"
	"github.com/carbridge/carbridge/pkg/demux"
	"github.com/carbridge/carbridge/pkg/link"
	"github.com/carbridge/carbridge/pkg/yaml"
	"github.com/rs/zerolog"
	yamlv3 "gopkg.in/yaml.v3"

	ca "github.com/carbridge/carbridge/pkg/adapter"
)

type conf struct {
	Address string `yaml:"address"`

	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
	FPS    uint32 `yaml:"fps"`
	DPI    uint32 `yaml:"dpi"`

	NightMode     bool   `yaml:"night_mode"`
	LeftHandDrive bool   `yaml:"left_hand_drive"`
	BoxName       string `yaml:"box_name"`
	MediaDelay    uint32 `yaml:"media_delay"`

	// seconds; zero means the library defaults
	LivenessTimeout uint32 `yaml:"liveness_timeout"`
}

// UnmarshalYAML - support the short form:
//
//	adapters:
//	  car: tcp://192.168.50.2:7240
func (c *conf) UnmarshalYAML(node *yamlv3.Node) error {
	if node.Kind == yamlv3.ScalarNode {
		return node.Decode(&c.Address)
	}
	type raw conf
	return node.Decode((*raw)(c))
}

func Init() {
	var cfg struct {
		Mod map[string]conf `yaml:"adapters"`
	}

	app.LoadConfig(&cfg)

	log = app.GetLogger("adapter")

	for name, cf := range cfg.Mod {
		c := &client{name: name, conf: cf}
		clients[name] = c
		go c.serve()
	}

	api.HandleFunc("api/adapters", apiAdapters)
	api.HandleFunc("api/adapters/save", apiSave)
	api.HandleFunc("api/adapters/keyframe", apiKeyframe)
	api.HandleFunc("api/adapters/touch", apiTouch)

	ws.HandleFunc("adapter", wsEvents)
	ws.HandleFunc("adapter/video", wsVideo)
	ws.HandleFunc("adapter/audio", wsAudio)
}

var log zerolog.Logger

// clients is filled once in Init, handlers only read it
var clients = map[string]*client{}

const redialDelay = 5 * time.Second

type client struct {
	name string
	conf conf

	mx     sync.Mutex
	cl     *ca.Client
	events []*ws.Transport
	video  []*ws.Transport
}

// serve - dial, run and redial forever. Short-lived disconnects are
// recovered inside the library, this loop only handles the cases the
// library gave up on (adapter rebooting, cable pulled...).
func (c *client) serve() {
	for {
		cl, err := ca.Dial(ca.Config{
			Address:         c.conf.Address,
			Width:           c.conf.Width,
			Height:          c.conf.Height,
			FPS:             c.conf.FPS,
			DPI:             c.conf.DPI,
			NightMode:       c.conf.NightMode,
			LeftHandDrive:   c.conf.LeftHandDrive,
			BoxName:         c.conf.BoxName,
			MediaDelay:      c.conf.MediaDelay,
			LivenessTimeout: time.Duration(c.conf.LivenessTimeout) * time.Second,
		})
		if err != nil {
			log.Warn().Err(err).Str("adapter", c.name).Msg("[adapter] dial")
			time.Sleep(redialDelay)
			continue
		}

		c.mx.Lock()
		c.cl = cl
		c.mx.Unlock()

		go cl.Serve()

		if err = cl.Start(); err != nil {
			log.Warn().Err(err).Str("adapter", c.name).Msg("[adapter] start")
			_ = cl.Stop()
			time.Sleep(redialDelay)
			continue
		}

		log.Info().Str("adapter", c.name).Str("addr", c.conf.Address).Msg("[adapter] connected")

		c.pump(cl)

		log.Info().Str("adapter", c.name).Msg("[adapter] closed")
		time.Sleep(redialDelay)
	}
}

// pump - forward session events to logs and WS subscribers,
// returns when the session is gone for good
func (c *client) pump(cl *ca.Client) {
	for msg := range cl.Events() {
		c.broadcast(msg)

		switch msg := msg.(type) {
		case ca.StateChanged:
			log.Info().Str("adapter", c.name).Stringer("state", msg.To).Msg("[adapter] state")
		case ca.Connected:
			log.Info().Str("adapter", c.name).Uint32("phone_type", msg.PhoneType).Msg("[adapter] phone connected")
		case ca.Disconnected:
			log.Info().Str("adapter", c.name).Msg("[adapter] phone disconnected")
		case ca.LivenessLost:
			log.Warn().Str("adapter", c.name).Msg("[adapter] liveness lost")
		case ca.FrameDropped:
			log.Debug().Err(msg.Err).Str("adapter", c.name).Msg("[adapter] frame dropped")
		case ca.Closed:
			return
		}
	}
}

func (c *client) broadcast(msg any) {
	switch msg := msg.(type) {
	case demux.Unit:
		c.mx.Lock()
		subs := c.video
		c.mx.Unlock()
		for _, tr := range subs {
			tr.Write(msg.Data)
		}

	default:
		c.mx.Lock()
		subs := c.events
		c.mx.Unlock()
		if len(subs) == 0 {
			return
		}

		m := &ws.Message{Type: "adapter", Value: map[string]any{
			"adapter": c.name,
			"event":   eventName(msg),
			"data":    msg,
		}}
		for _, tr := range subs {
			tr.Write(m)
		}
	}
}

func (c *client) subscribe(tr *ws.Transport, video bool) {
	c.mx.Lock()
	if video {
		c.video = append(c.video, tr)
	} else {
		c.events = append(c.events, tr)
	}
	c.mx.Unlock()

	tr.OnClose(func() {
		c.mx.Lock()
		c.video = remove(c.video, tr)
		c.events = remove(c.events, tr)
		c.mx.Unlock()
	})
}

func remove(subs []*ws.Transport, tr *ws.Transport) []*ws.Transport {
	for i, t := range subs {
		if t == tr {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

func eventName(msg any) string {
	switch msg.(type) {
	case ca.StateChanged:
		return "state"
	case ca.Connected:
		return "connected"
	case ca.Disconnected:
		return "disconnected"
	case ca.Reconnecting:
		return "reconnecting"
	case ca.Closed:
		return "closed"
	case ca.LivenessLost:
		return "liveness_lost"
	case ca.CommandEvent:
		return "command"
	case ca.InfoUpdated:
		return "info"
	case ca.MediaInfo:
		return "media"
	case ca.FrameDropped:
		return "frame_dropped"
	case demux.StreamStarted:
		return "stream_started"
	case demux.StreamStopped:
		return "stream_stopped"
	case demux.BufferFlushed:
		return "buffer_flushed"
	case demux.Ducked:
		return "ducked"
	case demux.UnknownAudio:
		return "unknown_audio"
	case demux.KeyframeNeeded:
		return "keyframe_needed"
	}
	return fmt.Sprintf("%T", msg)
}

func (c *client) get() *ca.Client {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.cl
}

func apiAdapters(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Name      string            `json:"name"`
		Address   string            `json:"address"`
		State     string            `json:"state"`
		Phase     uint32            `json:"phase"`
		PhoneType uint32            `json:"phone_type,omitempty"`
		Info      map[string]string `json:"info,omitempty"`
		Recv      uint32            `json:"recv"`
		IdleDrops uint32            `json:"idle_drops,omitempty"`
		Unknowns  uint32            `json:"unknowns,omitempty"`
		Dropped   int               `json:"dropped_events,omitempty"`
	}

	items := make([]status, 0, len(clients))
	for name, c := range clients {
		st := status{Name: name, Address: c.conf.Address, State: "offline"}
		if cl := c.get(); cl != nil {
			s := cl.Session()
			st.State = cl.State().String()
			st.Phase = s.Phase()
			st.PhoneType = s.PhoneType
			st.Info = s.Info()
			st.Recv = atomic.LoadUint32(&cl.Recv)
			st.IdleDrops = atomic.LoadUint32(&cl.IdleDrops)
			st.Unknowns = atomic.LoadUint32(&cl.Unknowns)
			st.Dropped = cl.Dropped()
		}
		items = append(items, st)
	}

	api.ResponseJSON(w, items)
}

// apiSave - persist a (usually discovered) adapter to the config file,
// keeping user formatting and comments. Picked up on the next start.
func apiSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	if app.ConfigPath == "" {
		http.Error(w, "", http.StatusGone)
		return
	}

	query := r.URL.Query()
	name := query.Get("src")
	address := query.Get("url")
	if name == "" || address == "" {
		http.Error(w, "src and url are required", http.StatusBadRequest)
		return
	}

	data, _ := os.ReadFile(app.ConfigPath)
	data, err := yaml.Patch(data, name, address, "adapters")
	if err != nil {
		api.Error(w, err)
		return
	}
	if err = os.WriteFile(app.ConfigPath, data, 0644); err != nil {
		api.Error(w, err)
		return
	}

	log.Info().Str("adapter", name).Str("url", address).Msg("[adapter] saved to config")
	api.Response(w, "OK", api.MimeText)
}

func apiKeyframe(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	cl := find(r)
	if cl == nil {
		http.Error(w, api.AdapterNotFound, http.StatusNotFound)
		return
	}

	if err := cl.SendCommand(link.CmdFrame); err != nil {
		api.Error(w, err)
		return
	}
	api.Response(w, "OK", api.MimeText)
}

func apiTouch(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	cl := find(r)
	if cl == nil {
		http.Error(w, api.AdapterNotFound, http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	action, err := strconv.ParseUint(query.Get("action"), 10, 32)
	x, err2 := strconv.ParseFloat(query.Get("x"), 32)
	y, err3 := strconv.ParseFloat(query.Get("y"), 32)
	if err != nil || err2 != nil || err3 != nil || x < 0 || x > 1 || y < 0 || y > 1 {
		http.Error(w, "bad action/x/y", http.StatusBadRequest)
		return
	}

	if err = cl.SendTouch(uint32(action), float32(x), float32(y)); err != nil {
		api.Error(w, err)
		return
	}
	api.Response(w, "OK", api.MimeText)
}

func find(r *http.Request) *ca.Client {
	if c := clients[r.URL.Query().Get("src")]; c != nil {
		return c.get()
	}
	return nil
}

func wsEvents(tr *ws.Transport, msg *ws.Message) error {
	c := clients[msg.String()]
	if c == nil {
		return errors.New(api.AdapterNotFound)
	}
	c.subscribe(tr, false)
	return nil
}

func wsVideo(tr *ws.Transport, msg *ws.Message) error {
	c := clients[msg.String()]
	if c == nil {
		return errors.New(api.AdapterNotFound)
	}
	c.subscribe(tr, true)

	// late joiners need a keyframe to start decoding
	if cl := c.get(); cl != nil {
		return cl.SendCommand(link.CmdFrame)
	}
	return nil
}

// wsAudio - binary media-bus PCM with the ducking gain already applied
func wsAudio(tr *ws.Transport, msg *ws.Message) error {
	c := clients[msg.String()]
	if c == nil {
		return errors.New(api.AdapterNotFound)
	}

	stop := make(chan struct{})
	tr.OnClose(func() { close(stop) })

	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cl := c.get()
				if cl == nil {
					continue
				}
				for b := cl.Audio.Pull(demux.BusMedia); b != nil; b = cl.Audio.Pull(demux.BusMedia) {
					tr.Write(b)
				}
			}
		}
	}()

	return nil
}
