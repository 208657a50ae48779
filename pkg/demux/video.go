package demux

import (
	"sync"
	"time"

	"github.com/carbridge/carbridge/pkg/core"
	"github.com/carbridge/carbridge/pkg/h264"
	"github.com/carbridge/carbridge/pkg/link"
)

// Video - reassembles the H.264 elementary stream of a session.
//
// The adapter sends keyframes only on request (a real session showed a
// single IDR in six minutes), so recovery after a decode error is host
// driven: ReportDecodeError fires KeyframeNeeded upstream exactly once
// per gap and further slices are gated until the next IDR.
type Video struct {
	core.Listener

	mu      sync.Mutex
	sps     []byte
	pps     []byte
	gapped  bool
	pending bool // keyframe request in flight

	lastIDR time.Time

	// stats
	Packets uint
	Units   uint
}

func NewVideo() *Video {
	return &Video{}
}

// Ingest one VideoData packet. One packet is one NAL unit in ~99.8% of
// cases, the rest bundle SPS+PPS+IDR at stream start.
func (v *Video) Ingest(msg *link.VideoData) {
	units := h264.Split(msg.Data)

	v.mu.Lock()
	v.Packets++

	var out []Unit

	for _, unit := range units {
		v.Units++

		switch nalType := h264.NALUType(unit); nalType {
		case h264.NALUTypeSPS:
			v.sps = append(v.sps[:0], unit...)
		case h264.NALUTypePPS:
			v.pps = append(v.pps[:0], unit...)

		case h264.NALUTypeIFrame:
			if v.sps == nil || v.pps == nil {
				continue // no parameter set observed yet
			}
			v.gapped = false
			v.pending = false
			v.lastIDR = time.Now()
			out = append(out, Unit{
				NALType:  nalType,
				Keyframe: true,
				PTS:      msg.PTS,
				Data:     h264.JoinAnnexB(v.sps, v.pps, unit),
			})

		default:
			// non-IDR slices, SEI and the rest are decodable only with
			// cached parameter sets and never across a detected gap
			if v.sps == nil || v.pps == nil || v.gapped {
				continue
			}
			out = append(out, Unit{
				NALType: nalType,
				PTS:     msg.PTS,
				Data:    h264.JoinAnnexB(unit),
			})
		}
	}
	v.mu.Unlock()

	for _, u := range out {
		v.Fire(u)
	}
}

// ReportDecodeError - downstream decoder detected corruption.
// Gates slice output and requests one keyframe per gap.
func (v *Video) ReportDecodeError() {
	v.mu.Lock()
	request := !v.pending
	v.pending = true
	v.gapped = true
	v.mu.Unlock()

	if request {
		v.Fire(KeyframeNeeded{})
	}
}

// Ready - parameter sets observed at least once
func (v *Video) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sps != nil && v.pps != nil
}

// LastKeyframe - time of the last forwarded IDR
func (v *Video) LastKeyframe() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastIDR
}
