package audio

import (
	"math"
	"time"
)

// Tone is a synthetic source: a sum of sines with a slow amplitude pulse,
// identical on every channel.
type Tone struct {
	SampleRate float64
	Channels   int
	Freqs      []float64
	Amplitude  float64
	// PulseHz modulates the amplitude; zero disables it.
	PulseHz float64
	// Realtime paces Read to the sample clock.
	Realtime bool

	n    int64
	last time.Time
}

// Read fills samples with the next block.
func (t *Tone) Read(samples []int16) error {
	ch := max(t.Channels, 1)
	frames := len(samples) / ch
	for i := 0; i < frames; i++ {
		at := float64(t.n) / t.SampleRate
		t.n++
		var x float64
		for _, f := range t.Freqs {
			x += math.Sin(2 * math.Pi * f * at)
		}
		if len(t.Freqs) > 0 {
			x /= float64(len(t.Freqs))
		}
		gain := t.Amplitude
		if t.PulseHz > 0 {
			gain *= 0.5 + 0.5*math.Cos(2*math.Pi*t.PulseHz*at)
		}
		s := int16(math.Max(-32768, math.Min(32767, x*gain*32767)))
		for c := 0; c < ch; c++ {
			samples[i*ch+c] = s
		}
	}
	if t.Realtime {
		t.pace(frames)
	}
	return nil
}

func (t *Tone) pace(frames int) {
	block := time.Duration(float64(frames) / t.SampleRate * float64(time.Second))
	if t.last.IsZero() {
		t.last = time.Now()
	}
	t.last = t.last.Add(block)
	if d := time.Until(t.last); d > 0 {
		time.Sleep(d)
	}
}

// Loop replays PCM forever. An empty Loop produces silence.
type Loop struct {
	PCM []int16
	pos int
}

// Read fills samples from the loop.
func (l *Loop) Read(samples []int16) error {
	if len(l.PCM) == 0 {
		clear(samples)
		return nil
	}
	for i := range samples {
		samples[i] = l.PCM[l.pos]
		l.pos = (l.pos + 1) % len(l.PCM)
	}
	return nil
}
