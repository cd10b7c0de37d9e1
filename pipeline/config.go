package pipeline

import (
	"fmt"
	"image/color"

	"github.com/cwbudde/algo-vj/input"
)

// DMXChannels is the number of DMX inputs and outputs visible to patches.
const DMXChannels = 4

// Config holds the pipeline settings.
type Config struct {
	// FPS is the nominal frame rate; time advances by 1/FPS per frame.
	FPS float64
	// FrameCount is the number of frame descriptors.
	FrameCount int

	// HMeshLast and VMeshLast are the last warp mesh column and row.
	HMeshLast int
	VMeshLast int
	// TexSize is the square feedback texture edge in pixels.
	TexSize int

	SampleRate  float64
	Channels    int
	AudioFrames int

	// DMXIn and DMXOut are the channels of idmx1..4 and dmx1..4. Zero
	// leaves a variable unconnected.
	DMXIn  [DMXChannels]int
	DMXOut [DMXChannels]int
	// MIDIMap selects the controllers of midi1..8. It is applied at Start
	// to a MIDI source that implements input.MIDIMapper.
	MIDIMap [input.MIDISlots]input.MIDIControl

	ScreenW, ScreenH int

	// ChromaKey is the transparent colour of image layers, if any.
	ChromaKey *color.RGBA

	// Observer is called on every frame status change.
	Observer func(frame int, s Status)
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the settings used when no option overrides them.
func DefaultConfig() Config {
	cfg := Config{
		FPS:         30,
		FrameCount:  4,
		HMeshLast:   32,
		VMeshLast:   24,
		TexSize:     512,
		SampleRate:  48000,
		Channels:    2,
		AudioFrames: 1024,
		MIDIMap:     input.DefaultMIDIMap(),
		ScreenW:     640,
		ScreenH:     480,
	}
	for i := range cfg.DMXIn {
		cfg.DMXIn[i] = i + 1
		cfg.DMXOut[i] = DMXChannels + i + 1
	}
	return cfg
}

// WithFPS sets the nominal frame rate.
func WithFPS(fps float64) Option {
	return func(cfg *Config) {
		if fps > 0 {
			cfg.FPS = fps
		}
	}
}

// WithFrameCount sets the size of the frame pool.
func WithFrameCount(n int) Option {
	return func(cfg *Config) {
		cfg.FrameCount = n
	}
}

// WithMesh sets the warp mesh to hLast x vLast cells.
func WithMesh(hLast, vLast int) Option {
	return func(cfg *Config) {
		cfg.HMeshLast = hLast
		cfg.VMeshLast = vLast
	}
}

// WithTexSize sets the feedback texture edge.
func WithTexSize(n int) Option {
	return func(cfg *Config) {
		cfg.TexSize = n
	}
}

// WithSampleRate sets the audio format. Frames is the number of sample
// frames analyzed per video frame.
func WithSampleRate(rate float64, channels, frames int) Option {
	return func(cfg *Config) {
		if rate > 0 {
			cfg.SampleRate = rate
		}
		if channels > 0 {
			cfg.Channels = channels
		}
		if frames > 0 {
			cfg.AudioFrames = frames
		}
	}
}

// WithDMXMap sets the DMX channels of the patch inputs and outputs.
func WithDMXMap(in, out [DMXChannels]int) Option {
	return func(cfg *Config) {
		cfg.DMXIn = in
		cfg.DMXOut = out
	}
}

// WithMIDIMap sets the controllers feeding midi1..8.
func WithMIDIMap(m [input.MIDISlots]input.MIDIControl) Option {
	return func(cfg *Config) {
		cfg.MIDIMap = m
	}
}

// WithScreen sets the presented frame size.
func WithScreen(w, h int) Option {
	return func(cfg *Config) {
		cfg.ScreenW = w
		cfg.ScreenH = h
	}
}

// WithChromaKey makes c transparent in image layers.
func WithChromaKey(c color.RGBA) Option {
	return func(cfg *Config) {
		cfg.ChromaKey = &c
	}
}

// WithObserver installs a frame status observer. It runs on the stage
// goroutines and must not block.
func WithObserver(fn func(frame int, s Status)) Option {
	return func(cfg *Config) {
		cfg.Observer = fn
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg *Config) validate() error {
	switch {
	case cfg.FrameCount < 1:
		return fmt.Errorf("%w: frame count %d", errConfig, cfg.FrameCount)
	case cfg.HMeshLast < 1 || cfg.VMeshLast < 1:
		return fmt.Errorf("%w: mesh %dx%d", errConfig, cfg.HMeshLast, cfg.VMeshLast)
	case cfg.TexSize < 16:
		return fmt.Errorf("%w: texture size %d", errConfig, cfg.TexSize)
	case cfg.ScreenW < 1 || cfg.ScreenH < 1:
		return fmt.Errorf("%w: screen %dx%d", errConfig, cfg.ScreenW, cfg.ScreenH)
	case cfg.AudioFrames < 1 || cfg.Channels < 1:
		return fmt.Errorf("%w: audio %d frames x %d channels", errConfig, cfg.AudioFrames, cfg.Channels)
	}
	return nil
}
