// Package portaudio captures audio from the default input device.
package portaudio

import (
	"fmt"
	"strings"

	pa "github.com/gordonklaus/portaudio"

	"github.com/cwbudde/algo-vj/logging"
)

// Source reads interleaved 16-bit frames from a PortAudio input stream.
// It implements audio.Source and io.Closer.
type Source struct {
	stream *pa.Stream
	buf    []int16
}

// Open initializes PortAudio and starts the default input stream. Frames is
// the number of frames per device read.
func Open(sampleRate float64, channels, frames int) (*Source, error) {
	if channels <= 0 || frames <= 0 {
		return nil, fmt.Errorf("portaudio: invalid stream shape %d x %d", channels, frames)
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	s := &Source{buf: make([]int16, channels*frames)}
	stream, err := pa.OpenDefaultStream(channels, 0, sampleRate, frames, s.buf)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("portaudio: open input: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, fmt.Errorf("portaudio: start: %w", err)
	}
	s.stream = stream
	logging.Logger().Info("portaudio: capture started",
		"version", strings.Split(pa.VersionText(), ",")[0],
		"rate", stream.Info().SampleRate,
		"channels", channels,
	)
	return s, nil
}

// Read fills samples with captured audio, reading the device as many times
// as needed.
func (s *Source) Read(samples []int16) error {
	for len(samples) > 0 {
		if err := s.stream.Read(); err != nil {
			return fmt.Errorf("portaudio: read: %w", err)
		}
		n := copy(samples, s.buf)
		samples = samples[n:]
	}
	return nil
}

// Close stops the stream and terminates PortAudio.
func (s *Source) Close() error {
	s.stream.Stop()
	if err := s.stream.Close(); err != nil {
		pa.Terminate()
		return fmt.Errorf("portaudio: close: %w", err)
	}
	return pa.Terminate()
}
