package pipeline

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwbudde/algo-vj/audio"
	"github.com/cwbudde/algo-vj/display"
	"github.com/cwbudde/algo-vj/input"
	"github.com/cwbudde/algo-vj/mashup"
	"github.com/cwbudde/algo-vj/patch"
	"github.com/cwbudde/algo-vj/pfpu"
	"github.com/cwbudde/algo-vj/tmu"
)

// testOptions keeps the pipeline small enough to run many frames quickly.
func testOptions(extra ...Option) []Option {
	return append([]Option{
		WithFrameCount(3),
		WithMesh(4, 3),
		WithTexSize(32),
		WithScreen(32, 24),
		WithSampleRate(48000, 2, 256),
	}, extra...)
}

func toneAudio(cfg Config) (audio.Capture, error) {
	d, err := audio.NewDevice(&audio.Tone{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Freqs:      []float64{187.5},
		Amplitude:  0.5,
	}, cfg.FrameCount)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func sourceAudio(src audio.Source) func(Config) (audio.Capture, error) {
	return func(cfg Config) (audio.Capture, error) {
		d, err := audio.NewDevice(src, cfg.FrameCount)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func newTestPipeline(t *testing.T, dev Devices, list *mashup.List, opts ...Option) (*Pipeline, *display.Memory) {
	t.Helper()
	cfg := ApplyOptions(testOptions(opts...)...)
	screen, err := display.NewMemory(cfg.ScreenW, cfg.ScreenH)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if dev.PFPU == nil {
		dev.PFPU = pfpu.NewEmulator()
	}
	if dev.TMU == nil {
		dev.TMU = tmu.Software{}
	}
	dev.Screen = screen
	if dev.OpenAudio == nil {
		dev.OpenAudio = toneAudio
	}
	p, err := New(dev, list, testOptions(opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, screen
}

func mustCompile(t *testing.T, text string) *patch.Patch {
	t.Helper()
	pt, err := patch.Compile("", text)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return pt
}

func waitFrames(t *testing.T, screen *display.Memory, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for screen.Frames() < n {
		if time.Now().After(deadline) {
			t.Fatalf("presented %d frames, want %d", screen.Frames(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

type statusLog struct {
	mu   sync.Mutex
	last map[int]Status
	bad  []string
}

func (l *statusLog) observe(frame int, s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		l.last = make(map[int]Status)
	}
	if !validTransition(l.last[frame], s) {
		l.bad = append(l.bad, l.last[frame].String()+"->"+s.String())
	}
	l.last[frame] = s
}

func TestEndToEnd(t *testing.T) {
	list := mashup.New()
	defer list.Close()
	list.Pulse(mustCompile(t, "per_frame=dmx1=0.5\nper_frame_2=dmx2=idmx1\nper_frame_3=wave_a=bass"))

	var in, out input.Universe
	in.WriteChannel(1, 255)
	var log statusLog
	p, screen := newTestPipeline(t, Devices{DMXIn: &in, DMXOut: &out}, list,
		WithDMXMap([DMXChannels]int{1, 2, 3, 4}, [DMXChannels]int{5, 6, 0, 0}),
		WithObserver(log.observe))

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(); err == nil {
		t.Fatal("second Start succeeded")
	}
	waitFrames(t, screen, 20)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Running() {
		t.Fatal("pipeline still running after Stop")
	}

	if v, _ := out.ReadChannel(5); v != 128 {
		t.Errorf("dmx1 output = %d, want 128", v)
	}
	if v, _ := out.ReadChannel(6); v != 255 {
		t.Errorf("dmx2 output = %d, want 255", v)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.bad) > 0 {
		t.Fatalf("invalid transitions: %v", log.bad)
	}
	if len(log.last) > 3 {
		t.Fatalf("observed %d frames, pool holds 3", len(log.last))
	}
	for i, s := range log.last {
		if s != StatusNew {
			t.Errorf("frame %d ended %s, want new", i, s)
		}
	}
}

func TestMIDIMapApplied(t *testing.T) {
	list := mashup.New()
	defer list.Close()
	list.Pulse(mustCompile(t, "per_frame=dmx1=midi1\nper_frame_2=dmx2=midi2"))

	var m [input.MIDISlots]input.MIDIControl
	for i := range m {
		m[i] = input.MIDIControl{Channel: 3, Controller: uint8(40 + i)}
	}
	q := input.NewMIDIQueue(input.DefaultMIDIMap())
	var out input.Universe
	p, screen := newTestPipeline(t, Devices{MIDI: q, DMXOut: &out}, list,
		WithMIDIMap(m),
		WithDMXMap([DMXChannels]int{}, [DMXChannels]int{1, 2, 0, 0}))
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q.Push(input.MIDIEvent{Channel: 3, Controller: 40, Value: 127})
	q.Push(input.MIDIEvent{Channel: 0, Controller: 2, Value: 127})
	n := screen.Frames()
	waitFrames(t, screen, n+10)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if v, _ := out.ReadChannel(1); v != 255 {
		t.Errorf("midi1 via mapped controller = %d, want 255", v)
	}
	if v, _ := out.ReadChannel(2); v != 0 {
		t.Errorf("midi2 via default controller = %d, want 0", v)
	}
}

func TestRestart(t *testing.T) {
	list := mashup.New()
	defer list.Close()
	p, screen := newTestPipeline(t, Devices{}, list)
	for i := 0; i < 2; i++ {
		if err := p.Start(); err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		waitFrames(t, screen, uint64(5*(i+1)))
		if err := p.Stop(); err != nil {
			t.Fatalf("Stop %d: %v", i, err)
		}
	}
	if err := p.Stop(); err == nil {
		t.Fatal("Stop on a stopped pipeline succeeded")
	}
}

type countingSource struct{ reads atomic.Int64 }

func (s *countingSource) Read(samples []int16) error {
	s.reads.Add(1)
	clear(samples)
	return nil
}

type slowTMU struct{ delay time.Duration }

func (d slowTMU) Submit(t *tmu.Task) error {
	time.Sleep(d.delay)
	return tmu.Software{}.Submit(t)
}

func TestSlowRasterThrottlesCapture(t *testing.T) {
	src := &countingSource{}
	list := mashup.New()
	defer list.Close()
	p, screen := newTestPipeline(t, Devices{
		OpenAudio: sourceAudio(src),
		TMU:       slowTMU{delay: 5 * time.Millisecond},
	}, list)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	frames := uint64(p.Config().FrameCount)
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		// reads is loaded first; presented only grows afterwards.
		reads := uint64(src.reads.Load())
		presented := screen.Frames()
		if reads > presented+frames {
			p.Stop()
			t.Fatalf("captured %d buffers with %d frames presented, pool holds %d", reads, presented, frames)
		}
		time.Sleep(time.Millisecond)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if screen.Frames() == 0 {
		t.Fatal("no frames presented")
	}
}

type stuckSource struct{ release chan struct{} }

func (s *stuckSource) Read([]int16) error {
	<-s.release
	return nil
}

func TestStopWhileCaptureBlocked(t *testing.T) {
	src := &stuckSource{release: make(chan struct{})}
	list := mashup.New()
	defer list.Close()
	p, _ := newTestPipeline(t, Devices{OpenAudio: sourceAudioCloser(src)}, list)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- p.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while capture was blocked")
	}
}

// sourceAudioCloser unblocks the source when the device closes, since the
// capture goroutine is stuck in Read until then.
func sourceAudioCloser(src *stuckSource) func(Config) (audio.Capture, error) {
	return func(cfg Config) (audio.Capture, error) {
		d, err := audio.NewDevice(src, cfg.FrameCount)
		if err != nil {
			return nil, err
		}
		return &unblockOnClose{Device: d, src: src}, nil
	}
}

type unblockOnClose struct {
	*audio.Device
	src  *stuckSource
	once sync.Once
}

func (u *unblockOnClose) Close() error {
	u.once.Do(func() { close(u.src.release) })
	return u.Device.Close()
}

type failingSource struct{ n int }

func (s *failingSource) Read(samples []int16) error {
	s.n++
	if s.n > 4 {
		return errors.New("unplugged")
	}
	clear(samples)
	return nil
}

func TestAudioFailure(t *testing.T) {
	list := mashup.New()
	defer list.Close()
	p, _ := newTestPipeline(t, Devices{OpenAudio: sourceAudio(&failingSource{})}, list)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("sampler did not terminate after the audio device failed")
	}
	err := p.Stop()
	var de *DeviceError
	if !errors.As(err, &de) || de.Device != "audio" {
		t.Fatalf("Stop error = %v, want an audio DeviceError", err)
	}
}

func TestStartOpenFailure(t *testing.T) {
	list := mashup.New()
	defer list.Close()
	boom := errors.New("no such device")
	p, _ := newTestPipeline(t, Devices{OpenAudio: func(Config) (audio.Capture, error) { return nil, boom }}, list)
	err := p.Start()
	var de *DeviceError
	if !errors.As(err, &de) || !errors.Is(err, boom) {
		t.Fatalf("Start error = %v, want DeviceError wrapping the open failure", err)
	}
	if p.Running() {
		t.Fatal("pipeline running after a failed Start")
	}
}

func TestNewValidation(t *testing.T) {
	list := mashup.New()
	screen, _ := display.NewMemory(32, 24)
	full := Devices{PFPU: pfpu.NewEmulator(), TMU: tmu.Software{}, OpenAudio: toneAudio, Screen: screen}
	tests := map[string]struct {
		dev  Devices
		list *mashup.List
		opts []Option
	}{
		"no pfpu":     {Devices{TMU: full.TMU, OpenAudio: toneAudio, Screen: screen}, list, testOptions()},
		"no list":     {full, nil, testOptions()},
		"empty pool":  {full, list, testOptions(WithFrameCount(0))},
		"flat mesh":   {full, list, testOptions(WithMesh(0, 4))},
		"screen size": {full, list, testOptions(WithScreen(64, 48))},
	}
	for name, tt := range tests {
		if _, err := New(tt.dev, tt.list, tt.opts...); err == nil {
			t.Errorf("%s: New succeeded", name)
		}
	}
	if _, err := New(full, list, testOptions()...); err != nil {
		t.Fatalf("New with every device: %v", err)
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusSampling, true},
		{StatusSampling, StatusSampled, true},
		{StatusSampled, StatusEvaluated, true},
		{StatusEvaluated, StatusUsed, true},
		{StatusUsed, StatusNew, true},
		{StatusSampling, StatusNew, true},
		{StatusNew, StatusSampled, false},
		{StatusEvaluated, StatusNew, false},
		{StatusUsed, StatusSampling, false},
		{StatusSampled, StatusSampling, false},
	}
	for _, tt := range tests {
		if got := validTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("validTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestBrightnessAccumulator(t *testing.T) {
	var r rasterizer
	if got := r.brightness(1); got != 64 {
		t.Fatalf("brightness(1) = %d, want 64", got)
	}
	if got := r.brightness(2); got != 64 {
		t.Fatalf("brightness(2) = %d, want 64", got)
	}
	r = rasterizer{}
	if got := r.brightness(-1); got != 0 {
		t.Fatalf("brightness(-1) = %d, want 0", got)
	}

	r = rasterizer{}
	sum := 0
	const n = 400
	for i := 0; i < n; i++ {
		sum += r.brightness(0.98)
	}
	if mean := float64(sum) / n; math.Abs(mean-62.72) > 0.1 {
		t.Fatalf("mean brightness = %v, want 62.72", mean)
	}
}
