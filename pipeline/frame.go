package pipeline

import (
	"sync/atomic"

	"github.com/cwbudde/algo-vj/audio"
	"github.com/cwbudde/algo-vj/images"
	"github.com/cwbudde/algo-vj/input"
	"github.com/cwbudde/algo-vj/logging"
	"github.com/cwbudde/algo-vj/patch"
	"github.com/cwbudde/algo-vj/pfpu"
)

// Status is the position of a frame in the pipeline.
type Status int32

const (
	StatusNew Status = iota
	StatusSampling
	StatusSampled
	StatusEvaluated
	StatusUsed
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusSampling:
		return "sampling"
	case StatusSampled:
		return "sampled"
	case StatusEvaluated:
		return "evaluated"
	case StatusUsed:
		return "used"
	}
	return "invalid"
}

// Wave holds the waveform parameters of a frame.
type Wave struct {
	Mode            int
	Scale           float32
	Additive, Dots  bool
	Maximize, Thick bool
	X, Y            float32
	R, G, B, A      float32
}

// MotionVectors holds the motion vector grid parameters.
type MotionVectors struct {
	X, Y       float32
	Dx, Dy     float32
	L          float32
	R, G, B, A float32
}

// Border is a frame drawn along the texture edges.
type Border struct {
	Size       float32
	R, G, B, A float32
}

// ImageLayer is one composited image. Image is retained for the frame and
// released when the frame returns to the sampler.
type ImageLayer struct {
	Image   *images.Image
	A, X, Y float32
	Zoom    float32
}

// Frame is a frame descriptor. It owns its audio buffer and mesh for the
// lifetime of the pool.
type Frame struct {
	index  int
	status atomic.Int32

	Audio    *audio.Buffer
	Vertices []pfpu.Vertex

	// Filled by the sampler.
	Bass, Mid, Treb          float32
	BassAtt, MidAtt, TrebAtt float32
	Time                     float32
	Index                    int
	IDMX                     [DMXChannels]float32
	OSC                      [input.OSCSlots]float32
	MIDI                     [input.MIDISlots]float32
	MIDIEvents               []input.MIDIEvent

	// Filled by the evaluator.
	Decay           float32
	Wave            Wave
	MV              MotionVectors
	OB, IB          Border
	EchoAlpha       float32
	EchoZoom        float32
	EchoOrientation int
	DMX             [DMXChannels]float32
	Images          [patch.ImageCount]ImageLayer
	VideoAlpha      float32
	TexWrap         bool
}

// Slot returns the position of f in the pool.
func (f *Frame) Slot() int { return f.index }

// Status returns the current status of f.
func (f *Frame) Status() Status { return Status(f.status.Load()) }

// validTransition reports whether a frame may move from one status to
// another. Statuses only increase, except for recycling to StatusNew.
func validTransition(from, to Status) bool {
	switch to {
	case StatusNew:
		return from == StatusUsed || from == StatusSampling
	default:
		return to == from+1
	}
}

// advance moves f to status to. An invalid transition is logged and
// ignored.
func (p *Pipeline) advance(f *Frame, to Status) bool {
	from := f.Status()
	if !validTransition(from, to) || !f.status.CompareAndSwap(int32(from), int32(to)) {
		logging.Logger().Error("pipeline: invalid frame transition",
			"frame", f.index, "from", from.String(), "to", to.String())
		return false
	}
	if p.cfg.Observer != nil {
		p.cfg.Observer(f.index, to)
	}
	return true
}

// releaseImages drops the image references taken by the evaluator.
func (f *Frame) releaseImages() {
	for i := range f.Images {
		if f.Images[i].Image != nil {
			f.Images[i].Image.Release()
		}
		f.Images[i] = ImageLayer{}
	}
}

func newPool(cfg *Config) []*Frame {
	frames := make([]*Frame, cfg.FrameCount)
	verts := (cfg.HMeshLast + 1) * (cfg.VMeshLast + 1)
	for i := range frames {
		frames[i] = &Frame{
			index:    i,
			Audio:    &audio.Buffer{Samples: make([]int16, cfg.AudioFrames*cfg.Channels), Tag: i},
			Vertices: make([]pfpu.Vertex, verts),
		}
	}
	return frames
}
