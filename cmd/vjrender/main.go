// Command vjrender runs the rendering pipeline headless and writes frames
// as PNG files.
//
// Usage:
//
//	vjrender [flags] patch-file [layer-patch-file ...]
//
// A single patch is rendered alone; several patches are layered as a
// mashup. Audio comes from a synthetic tone unless -live selects the default
// input device.
//
// Examples:
//
//	vjrender -frames 300 -every 30 -out frames tunnel.fnp
//	vjrender -live -osc :7770 -midi "nanoKONTROL2" tunnel.fnp sparks.fnp
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cwbudde/algo-vj/audio"
	"github.com/cwbudde/algo-vj/audio/portaudio"
	"github.com/cwbudde/algo-vj/display"
	"github.com/cwbudde/algo-vj/images"
	"github.com/cwbudde/algo-vj/input"
	"github.com/cwbudde/algo-vj/logging"
	"github.com/cwbudde/algo-vj/mashup"
	"github.com/cwbudde/algo-vj/patch"
	"github.com/cwbudde/algo-vj/pfpu"
	"github.com/cwbudde/algo-vj/pipeline"
	"github.com/cwbudde/algo-vj/tmu"
)

type options struct {
	frames   uint64
	every    uint64
	out      string
	width    int
	height   int
	fps      float64
	mesh     string
	texSize  int
	live     bool
	tone     string
	osc      string
	midiPort string
	verbose  bool
}

func main() {
	var o options
	flag.Uint64Var(&o.frames, "frames", 300, "number of frames to render, 0 renders until interrupted")
	flag.Uint64Var(&o.every, "every", 30, "write every n-th frame, 0 writes none")
	flag.StringVar(&o.out, "out", "frames", "output directory")
	flag.IntVar(&o.width, "w", 640, "output width")
	flag.IntVar(&o.height, "h", 480, "output height")
	flag.Float64Var(&o.fps, "fps", 30, "nominal frame rate")
	flag.StringVar(&o.mesh, "mesh", "32x24", "warp mesh cells")
	flag.IntVar(&o.texSize, "tex", 512, "feedback texture size")
	flag.BoolVar(&o.live, "live", false, "capture from the default audio input")
	flag.StringVar(&o.tone, "tone", "55,440,5000", "comma-separated test tone frequencies in Hz")
	flag.StringVar(&o.osc, "osc", "", "listen for OSC on this UDP address")
	flag.StringVar(&o.midiPort, "midi", "", "read control changes from this MIDI input port")
	flag.BoolVar(&o.verbose, "v", false, "log pipeline activity")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vjrender [flags] patch-file [layer-patch-file ...]\n\n")
		fmt.Fprintf(os.Stderr, "Renders patches headless and writes frames as PNG.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelInfo
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(o, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(o options, paths []string) error {
	hLast, vLast, err := parseMesh(o.mesh)
	if err != nil {
		return err
	}
	freqs, err := parseFreqs(o.tone)
	if err != nil {
		return err
	}

	list := mashup.New()
	defer list.Close()
	cache := images.NewCache(images.WithMaxSize(o.texSize, o.texSize))
	for _, path := range paths {
		p, err := compile(cache, path)
		if err != nil {
			return err
		}
		if len(paths) == 1 {
			list.Pulse(p)
		} else {
			list.Add(p)
		}
		p.Release()
	}

	screen, err := display.NewMemory(o.width, o.height)
	if err != nil {
		return err
	}
	dev := pipeline.Devices{
		PFPU:   pfpu.NewEmulator(),
		TMU:    tmu.Software{},
		Screen: screen,
		DMXIn:  &input.Universe{},
		DMXOut: &input.Universe{},
		OpenAudio: func(cfg pipeline.Config) (audio.Capture, error) {
			var src audio.Source
			if o.live {
				s, err := portaudio.Open(cfg.SampleRate, cfg.Channels, cfg.AudioFrames)
				if err != nil {
					return nil, err
				}
				src = s
			} else {
				src = &audio.Tone{
					SampleRate: cfg.SampleRate,
					Channels:   cfg.Channels,
					Freqs:      freqs,
					Amplitude:  0.8,
					PulseHz:    0.5,
					Realtime:   o.frames == 0,
				}
			}
			d, err := audio.NewDevice(src, cfg.FrameCount)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	}

	if o.osc != "" {
		l, err := input.ListenOSC(o.osc)
		if err != nil {
			return err
		}
		defer l.Close()
		dev.OSC = l
	}
	cfg := pipeline.DefaultConfig()
	if o.midiPort != "" {
		in, err := midi.FindInPort(o.midiPort)
		if err != nil {
			return fmt.Errorf("midi port %q: %w", o.midiPort, err)
		}
		// The pipeline installs its mapping at Start.
		q := input.NewMIDIQueue(cfg.MIDIMap)
		stop, err := input.ListenMIDI(in, q)
		if err != nil {
			return err
		}
		defer midi.CloseDriver()
		defer stop()
		dev.MIDI = q
	}

	pl, err := pipeline.New(dev, list,
		pipeline.WithFPS(o.fps),
		pipeline.WithMesh(hLast, vLast),
		pipeline.WithTexSize(o.texSize),
		pipeline.WithScreen(o.width, o.height),
		pipeline.WithSampleRate(cfg.SampleRate, cfg.Channels, cfg.AudioFrames),
	)
	if err != nil {
		return err
	}
	if o.every > 0 {
		if err := os.MkdirAll(o.out, 0o755); err != nil {
			return err
		}
	}
	if err := pl.Start(); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var written uint64
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-interrupt:
			break loop
		case <-pl.Done():
			break loop
		case <-tick.C:
		}
		n := screen.Frames()
		if o.every > 0 && n/o.every > written {
			img, _ := screen.Snapshot()
			written = n / o.every
			name := filepath.Join(o.out, fmt.Sprintf("frame%06d.png", n))
			if err := display.SavePNG(name, img, 0, 0); err != nil {
				pl.Stop()
				return err
			}
		}
		if o.frames > 0 && n >= o.frames {
			break loop
		}
	}
	if err := pl.Stop(); err != nil {
		return err
	}
	fmt.Printf("rendered %d frames\n", screen.Frames())
	return nil
}

func compile(cache *images.Cache, path string) (*patch.Patch, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return patch.Compile(filepath.Dir(path), string(text),
		patch.WithImages(cache),
		patch.WithReporter(func(msg string) {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", path, msg)
		}))
}

func parseMesh(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("mesh %q: want WxH", s)
	}
	hLast, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("mesh %q: %w", s, err)
	}
	vLast, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("mesh %q: %w", s, err)
	}
	return hLast, vLast, nil
}

func parseFreqs(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("tone frequency %q is invalid", f)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no tone frequencies")
	}
	return out, nil
}
