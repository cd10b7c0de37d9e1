package analyzer

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-vj/window"
)

var errBadCrossover = errors.New("analyzer: crossovers must satisfy 0 < bass/mid < mid/treble < nyquist")

// Config holds analysis settings.
type Config struct {
	SampleRate float64
	FFTSize    int
	Channels   int
	Window     window.Type
	// BassMid and MidTreb are the band crossover frequencies in Hz.
	BassMid float64
	MidTreb float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns settings for 48 kHz stereo capture.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		FFTSize:    1024,
		Channels:   2,
		Window:     window.TypeHann,
		BassMid:    250,
		MidTreb:    4000,
	}
}

// WithSampleRate sets the capture sample rate.
func WithSampleRate(rate float64) Option {
	return func(cfg *Config) {
		if rate > 0 {
			cfg.SampleRate = rate
		}
	}
}

// WithFFTSize sets the transform length in frames.
func WithFFTSize(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.FFTSize = n
		}
	}
}

// WithChannels sets the number of interleaved channels.
func WithChannels(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.Channels = n
		}
	}
}

// WithWindow selects the analysis window.
func WithWindow(t window.Type) Option {
	return func(cfg *Config) {
		cfg.Window = t
	}
}

// WithCrossovers sets the bass/mid and mid/treble crossover frequencies.
func WithCrossovers(bassMid, midTreb float64) Option {
	return func(cfg *Config) {
		cfg.BassMid = bassMid
		cfg.MidTreb = midTreb
	}
}

// Levels are the band levels of one block.
type Levels struct {
	Bass, Mid, Treb float32
}

// Smooth returns the attenuated levels following raw from prev:
// 0.6*prev + 0.4*raw per band.
func Smooth(prev, raw Levels) Levels {
	return Levels{
		Bass: 0.6*prev.Bass + 0.4*raw.Bass,
		Mid:  0.6*prev.Mid + 0.4*raw.Mid,
		Treb: 0.6*prev.Treb + 0.4*raw.Treb,
	}
}

// Analyzer computes band levels. It is not safe for concurrent use.
type Analyzer struct {
	cfg  Config
	plan *algofft.Plan[complex128]

	win    []float64
	winPow float64 // mean of w^2
	edges  [4]int  // first bin of bass, mid, treble, and one past the last

	mono  []float64
	lane  []float64
	in    []complex128
	out   []complex128
	re    []float64
	im    []float64
	power []float64
}

// New returns an analyzer configured by opts.
func New(opts ...Option) (*Analyzer, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	n := cfg.FFTSize
	if n < 4 {
		return nil, fmt.Errorf("analyzer: fft size must be >= 4: %d", n)
	}
	nyquist := cfg.SampleRate / 2
	if cfg.BassMid <= 0 || cfg.MidTreb <= cfg.BassMid || cfg.MidTreb >= nyquist {
		return nil, errBadCrossover
	}
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("analyzer: fft plan: %w", err)
	}

	win, err := window.Generate(cfg.Window, n, window.WithPeriodic())
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	winPow, err := window.PowerGain(win)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}

	a := &Analyzer{
		cfg:    cfg,
		plan:   plan,
		win:    win,
		winPow: winPow,
		mono:   make([]float64, n),
		lane:   make([]float64, n),
		in:     make([]complex128, n),
		out:    make([]complex128, n),
	}

	half := n/2 + 1
	a.re = make([]float64, half)
	a.im = make([]float64, half)
	a.power = make([]float64, half)

	binHz := cfg.SampleRate / float64(n)
	a.edges = [4]int{
		1,
		int(math.Ceil(cfg.BassMid / binHz)),
		int(math.Ceil(cfg.MidTreb / binHz)),
		half,
	}
	return a, nil
}

// Config returns the analyzer settings.
func (a *Analyzer) Config() Config { return a.cfg }

// Analyze returns the band levels of one block of interleaved signed
// 16-bit samples. Blocks shorter than the transform are zero padded;
// samples past it are ignored.
func (a *Analyzer) Analyze(samples []int16) (Levels, error) {
	n := a.cfg.FFTSize
	ch := a.cfg.Channels
	frames := min(len(samples)/ch, n)

	clear(a.mono)
	for c := 0; c < ch; c++ {
		clear(a.lane)
		for i := 0; i < frames; i++ {
			a.lane[i] = float64(samples[i*ch+c])
		}
		vecmath.AddBlockInPlace(a.mono, a.lane)
	}
	vecmath.ScaleBlock(a.mono, a.mono, 1/(32768*float64(ch)))
	if err := window.Apply(a.mono, a.win); err != nil {
		return Levels{}, fmt.Errorf("analyzer: %w", err)
	}

	for i, x := range a.mono {
		a.in[i] = complex(x, 0)
	}
	if err := a.plan.Forward(a.out, a.in); err != nil {
		return Levels{}, fmt.Errorf("analyzer: fft: %w", err)
	}
	for i := range a.re {
		a.re[i] = real(a.out[i])
		a.im[i] = imag(a.out[i])
	}
	vecmath.Power(a.power, a.re, a.im)

	norm := 4 / (float64(n) * float64(n) * a.winPow)
	band := func(lo, hi int) float32 {
		sum := 0.0
		for _, p := range a.power[lo:hi] {
			sum += p
		}
		return float32(math.Sqrt(sum * norm))
	}
	return Levels{
		Bass: band(a.edges[0], a.edges[1]),
		Mid:  band(a.edges[1], a.edges[2]),
		Treb: band(a.edges[2], a.edges[3]),
	}, nil
}

const (
	// longTermRate is the per-block weight of a new level in the running
	// average, about three seconds at 30 blocks per second.
	longTermRate = 0.01
	// quietLevel bounds the average below; quieter input reads as silence
	// instead of being amplified.
	quietLevel = 1e-3
)

// Normalizer rescales levels against their running long-term average, so
// a band at its usual loudness reads 1 whatever the input gain. The zero
// value is ready to use; the first block seeds the average.
type Normalizer struct {
	avg    Levels
	primed bool
}

// Normalize folds raw into the long-term average and returns raw relative
// to it.
func (n *Normalizer) Normalize(raw Levels) Levels {
	if !n.primed {
		n.avg = raw
		n.primed = true
	} else {
		n.avg.Bass += longTermRate * (raw.Bass - n.avg.Bass)
		n.avg.Mid += longTermRate * (raw.Mid - n.avg.Mid)
		n.avg.Treb += longTermRate * (raw.Treb - n.avg.Treb)
	}
	return Levels{
		Bass: raw.Bass / max(n.avg.Bass, quietLevel),
		Mid:  raw.Mid / max(n.avg.Mid, quietLevel),
		Treb: raw.Treb / max(n.avg.Treb, quietLevel),
	}
}

// Average returns the current long-term levels.
func (n *Normalizer) Average() Levels { return n.avg }
