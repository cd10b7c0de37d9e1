package analyzer

import (
	"fmt"
	"testing"

	"github.com/cwbudde/algo-vj/internal/testutil"
	"github.com/cwbudde/algo-vj/window"
)

// Test tones sit on bin centres (46.875 Hz apart), where the Hann window
// leaks into the two neighbouring bins only.
func TestBandSeparation(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		name    string
		freq    float64
		band    func(Levels) float32
		leakage []func(Levels) float32
	}{
		{"bass", 140.625, func(l Levels) float32 { return l.Bass }, []func(Levels) float32{
			func(l Levels) float32 { return l.Mid }, func(l Levels) float32 { return l.Treb }}},
		{"mid", 937.5, func(l Levels) float32 { return l.Mid }, []func(Levels) float32{
			func(l Levels) float32 { return l.Bass }, func(l Levels) float32 { return l.Treb }}},
		{"treb", 9375, func(l Levels) float32 { return l.Treb }, []func(Levels) float32{
			func(l Levels) float32 { return l.Bass }, func(l Levels) float32 { return l.Mid }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := testutil.SinePCM16(tt.freq, 48000, 0.5, 1024, 2)
			l, err := a.Analyze(pcm)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			testutil.RequireNear(t, tt.name, float64(tt.band(l)), 0.5, 0.01)
			for _, other := range tt.leakage {
				if v := other(l); v > 0.005 {
					t.Fatalf("leakage into another band = %v, levels %+v", v, l)
				}
			}
		})
	}
}

func TestSilence(t *testing.T) {
	a, err := New(WithChannels(1), WithFFTSize(512))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l, err := a.Analyze(make([]int16, 100))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if l != (Levels{}) {
		t.Fatalf("Analyze(silence) = %+v, want zero", l)
	}
}

func TestShortBlockIsPadded(t *testing.T) {
	a, err := New(WithChannels(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	full, _ := a.Analyze(testutil.NoisePCM16(1, 0.5, 1024, 1))
	short, err := a.Analyze(testutil.NoisePCM16(1, 0.5, 256, 1))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if short.Treb <= 0 || short.Treb >= full.Treb {
		t.Fatalf("short block treb = %v, want between 0 and %v", short.Treb, full.Treb)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"tiny fft", []Option{WithFFTSize(2)}},
		{"crossover order", []Option{WithCrossovers(4000, 250)}},
		{"above nyquist", []Option{WithSampleRate(8000), WithCrossovers(250, 4000)}},
		{"zero crossover", []Option{WithCrossovers(0, 1000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts...); err == nil {
				t.Fatal("New accepted an invalid config")
			}
		})
	}
}

func TestSmooth(t *testing.T) {
	att := Levels{}
	raw := Levels{Bass: 1, Mid: 0.5, Treb: 0}
	att = Smooth(att, raw)
	testutil.RequireNear(t, "bass", float64(att.Bass), 0.4, 1e-6)
	att = Smooth(att, raw)
	testutil.RequireNear(t, "bass", float64(att.Bass), 0.64, 1e-6)
	testutil.RequireNear(t, "mid", float64(att.Mid), 0.32, 1e-6)
	for i := 0; i < 100; i++ {
		att = Smooth(att, raw)
	}
	testutil.RequireNear(t, "bass", float64(att.Bass), 1, 1e-5)
}

func ExampleAnalyzer_Analyze() {
	a, err := New(WithChannels(1))
	if err != nil {
		fmt.Println(err)
		return
	}
	l, _ := a.Analyze(testutil.SinePCM16(140.625, 48000, 1, 1024, 1))
	fmt.Printf("bass %.1f mid %.1f treb %.1f\n", l.Bass, l.Mid, l.Treb)
	// Output: bass 1.0 mid 0.0 treb 0.0
}

func TestWindowSelection(t *testing.T) {
	pcm := testutil.SinePCM16(937.5, 48000, 0.5, 1024, 1)
	for _, w := range []window.Type{window.TypeHann, window.TypeHamming, window.TypeBlackman, window.TypeBlackmanHarris} {
		t.Run(w.String(), func(t *testing.T) {
			a, err := New(WithChannels(1), WithWindow(w))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if a.Config().Window != w {
				t.Fatalf("Config().Window = %v, want %v", a.Config().Window, w)
			}
			l, err := a.Analyze(pcm)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			// The power normalisation keeps the band level independent of
			// the window.
			testutil.RequireNear(t, "mid", float64(l.Mid), 0.5, 0.02)
		})
	}
	if _, err := New(WithWindow(window.Type(99))); err == nil {
		t.Fatal("New with an unknown window succeeded")
	}
}

func TestNormalizer(t *testing.T) {
	var n Normalizer
	quiet := Levels{Bass: 0.05, Mid: 0.02, Treb: 0.01}
	got := n.Normalize(quiet)
	for name, v := range map[string]float32{"bass": got.Bass, "mid": got.Mid, "treb": got.Treb} {
		testutil.RequireNear(t, name, float64(v), 1, 1e-6)
	}

	for i := 0; i < 2000; i++ {
		got = n.Normalize(quiet)
	}
	testutil.RequireNear(t, "steady bass", float64(got.Bass), 1, 1e-4)

	loud := n.Normalize(Levels{Bass: 0.1, Mid: 0.02, Treb: 0.01})
	if loud.Bass < 1.9 {
		t.Fatalf("doubled bass = %v, want about 2", loud.Bass)
	}

	var silent Normalizer
	for i := 0; i < 10; i++ {
		got = silent.Normalize(Levels{})
	}
	if got != (Levels{}) {
		t.Fatalf("Normalize(silence) = %+v, want zero", got)
	}
	if tiny := silent.Normalize(Levels{Bass: 1e-5}); tiny.Bass > 0.02 {
		t.Fatalf("Normalize of noise floor = %v, want it kept small", tiny.Bass)
	}
}
