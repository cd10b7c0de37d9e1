package pipeline

import (
	"fmt"
	"image"
	"sync"

	"github.com/cwbudde/algo-vj/analyzer"
	"github.com/cwbudde/algo-vj/audio"
	"github.com/cwbudde/algo-vj/display"
	"github.com/cwbudde/algo-vj/input"
	"github.com/cwbudde/algo-vj/logging"
	"github.com/cwbudde/algo-vj/mashup"
	"github.com/cwbudde/algo-vj/patch"
	"github.com/cwbudde/algo-vj/pfpu"
	"github.com/cwbudde/algo-vj/tmu"
)

// VideoSource supplies the live video layer.
type VideoSource interface {
	// Frame returns the latest video frame, or nil when none is available.
	Frame() *image.RGBA
}

// Devices are the collaborators of a pipeline. PFPU, TMU, OpenAudio and
// Screen are required; inputs and outputs left nil are disconnected.
type Devices struct {
	PFPU pfpu.Device
	TMU  tmu.Device
	// OpenAudio opens the capture device at Start. The sampler closes it
	// when the pipeline stops.
	OpenAudio func(cfg Config) (audio.Capture, error)
	Screen    display.Surface

	DMXIn  input.DMXReader
	DMXOut input.DMXWriter
	OSC    input.OSCSource
	MIDI   input.MIDISource
	Video  VideoSource
}

// Pipeline is a rendering pipeline over a patch list.
type Pipeline struct {
	cfg  Config
	dev  Devices
	list *mashup.List

	mu      sync.Mutex
	running bool
	errOnce sync.Once
	err     error

	frames   []*Frame
	returned chan *Frame
	evalIn   chan *Frame
	rasterIn chan *Frame

	samplerDone chan struct{}
	evalDone    chan struct{}
	rasterDone  chan struct{}

	sampler sampler
	eval    evaluator
	raster  rasterizer
}

// New returns a stopped pipeline rendering the current entries of list.
func New(dev Devices, list *mashup.List, opts ...Option) (*Pipeline, error) {
	cfg := ApplyOptions(opts...)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	switch {
	case dev.PFPU == nil:
		return nil, fmt.Errorf("%w: pfpu", errNoDevice)
	case dev.TMU == nil:
		return nil, fmt.Errorf("%w: tmu", errNoDevice)
	case dev.OpenAudio == nil:
		return nil, fmt.Errorf("%w: audio", errNoDevice)
	case dev.Screen == nil:
		return nil, fmt.Errorf("%w: screen", errNoDevice)
	case list == nil:
		return nil, fmt.Errorf("%w: patch list", errNoDevice)
	}
	if w, h := dev.Screen.Size(); w != cfg.ScreenW || h != cfg.ScreenH {
		return nil, fmt.Errorf("%w: screen is %dx%d, config %dx%d", errConfig, w, h, cfg.ScreenW, cfg.ScreenH)
	}
	return &Pipeline{cfg: cfg, dev: dev, list: list}, nil
}

// Config returns the pipeline settings.
func (p *Pipeline) Config() Config { return p.cfg }

// Start allocates the frame pool, opens the audio device and starts the
// stages.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errRunning
	}

	an, err := analyzer.New(
		analyzer.WithSampleRate(p.cfg.SampleRate),
		analyzer.WithFFTSize(p.cfg.AudioFrames),
		analyzer.WithChannels(p.cfg.Channels),
	)
	if err != nil {
		return fmt.Errorf("pipeline: analyzer: %w", err)
	}
	if m, ok := p.dev.MIDI.(input.MIDIMapper); ok {
		m.SetMIDIMap(p.cfg.MIDIMap)
	}
	capture, err := p.dev.OpenAudio(p.cfg)
	if err != nil {
		return &DeviceError{Device: "audio", Op: "open", Err: err}
	}

	p.err = nil
	p.errOnce = sync.Once{}
	p.frames = newPool(&p.cfg)
	n := len(p.frames)
	// One extra slot keeps the stop sentinel from blocking.
	p.returned = make(chan *Frame, n+1)
	p.evalIn = make(chan *Frame, n+1)
	p.rasterIn = make(chan *Frame, n+1)
	p.samplerDone = make(chan struct{})
	p.evalDone = make(chan struct{})
	p.rasterDone = make(chan struct{})

	p.sampler = sampler{capture: capture, analyzer: an}
	p.eval = evaluator{defaults: patch.Defaults()}
	p.raster = newRasterizer(&p.cfg)

	go p.runSampler()
	go p.runEval()
	go p.runRaster()
	p.running = true
	logging.Logger().Info("pipeline: started",
		"frames", n, "fps", p.cfg.FPS, "mesh", fmt.Sprintf("%dx%d", p.cfg.HMeshLast, p.cfg.VMeshLast))
	return nil
}

// Stop shuts the stages down in order and releases the pool. It returns
// the first device error seen while running.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return errNotRunning
	}
	p.returned <- nil
	// Collect may be waiting on a device that never completes.
	p.sampler.capture.Abort()
	<-p.samplerDone
	p.evalIn <- nil
	<-p.evalDone
	p.rasterIn <- nil
	<-p.rasterDone

	for _, f := range p.frames {
		f.releaseImages()
	}
	p.frames = nil
	p.running = false
	logging.Logger().Info("pipeline: stopped")
	return p.err
}

// Running reports whether the stages are running.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Done is closed once the sampler has terminated, either because Stop was
// called or because the audio device failed.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samplerDone
}

func (p *Pipeline) fail(err *DeviceError) {
	logging.Logger().Error("pipeline: device failure", "device", err.Device, "op", err.Op, "err", err.Err)
	p.errOnce.Do(func() { p.err = err })
}
