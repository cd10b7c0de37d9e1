// Package testutil holds signal generators and tolerance checks shared by
// the package tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a sine wave starting at phase 0.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// SinePCM16 generates frames of interleaved signed 16-bit samples with the
// same sine on every channel. Amplitude 1 is full scale.
func SinePCM16(freqHz, sampleRate, amplitude float64, frames, channels int) []int16 {
	return toPCM16(DeterministicSine(freqHz, sampleRate, amplitude, frames), channels)
}

// NoisePCM16 generates interleaved white noise with a fixed seed.
func NoisePCM16(seed int64, amplitude float64, frames, channels int) []int16 {
	rng := rand.New(rand.NewSource(seed))
	mono := make([]float64, frames)
	for i := range mono {
		mono[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return toPCM16(mono, channels)
}

func toPCM16(mono []float64, channels int) []int16 {
	out := make([]int16, len(mono)*channels)
	for i, x := range mono {
		s := int16(math.Max(-32768, math.Min(32767, math.Round(x*32767))))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = s
		}
	}
	return out
}
