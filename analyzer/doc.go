// Package analyzer reduces blocks of captured audio to the three band
// levels patches react to: bass, mid and treble.
//
// Each block is mixed to mono, windowed (Hann by default) and transformed
// with algo-fft. A band level is the amplitude of the sine that would carry the
// energy found inside the band, so a full-scale sine reads as 1 in its band.
// Normalizer turns these absolute levels into levels relative to a running
// long-term average, the scale patches expect. Attenuated levels follow
// the normalized levels with a one-pole smoother.
package analyzer
