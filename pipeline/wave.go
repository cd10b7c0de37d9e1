package pipeline

import (
	"image"
	"math"
)

// Waveform modes.
const (
	WaveCircle = iota
	WaveScope
	WaveHorizontal
	WaveHorizontalTreb
	WaveVertical
	WaveSpiral
	WaveDiagonal
	WaveDual
	waveModes
)

const wavePoints = 256

type point struct{ x, y float32 }

type waveBuffer struct {
	left, right [wavePoints]float32
	strokes     [2][]point
}

// load takes wavePoints evenly spaced sample frames from interleaved pcm,
// scaled to -1..1.
func (w *waveBuffer) load(pcm []int16, channels int) {
	frames := len(pcm) / channels
	for i := 0; i < wavePoints; i++ {
		w.left[i], w.right[i] = 0, 0
		if frames == 0 {
			continue
		}
		j := i * frames / wavePoints * channels
		w.left[i] = float32(pcm[j]) / 32768
		w.right[i] = float32(pcm[j+(1%channels)]) / 32768
	}
}

// shape builds the strokes of mode in normalized texture coordinates.
func (w *waveBuffer) shape(wave Wave) [][]point {
	s := wave.Scale
	for i := range w.strokes {
		w.strokes[i] = w.strokes[i][:0]
	}
	last := float32(wavePoints - 1)
	for i := 0; i < wavePoints; i++ {
		l, r := w.left[i]*s, w.right[i]*s
		t := float32(i) / last
		switch wave.Mode {
		case WaveCircle:
			a := 2 * math.Pi * float64(i) / wavePoints
			rad := 0.25 + 0.1*l
			w.add(0, wave.X+rad*float32(math.Cos(a)), wave.Y+rad*float32(math.Sin(a)))
		case WaveScope:
			w.add(0, wave.X+0.5*l, wave.Y+0.5*r)
		case WaveHorizontal, WaveHorizontalTreb:
			w.add(0, t, wave.Y+0.25*l)
		case WaveVertical:
			w.add(0, wave.X+0.25*l, t)
		case WaveSpiral:
			a := 4 * math.Pi * float64(t)
			rad := 0.05 + 0.3*t + 0.05*l
			w.add(0, wave.X+rad*float32(math.Cos(a)), wave.Y+rad*float32(math.Sin(a)))
		case WaveDiagonal:
			d := 0.2 * l * math.Sqrt2 / 2
			w.add(0, t-d, t+d)
		case WaveDual:
			w.add(0, t, wave.Y-0.15+0.15*l)
			w.add(1, t, wave.Y+0.15+0.15*r)
		}
	}
	if wave.Mode == WaveCircle && len(w.strokes[0]) > 0 {
		w.strokes[0] = append(w.strokes[0], w.strokes[0][0])
	}
	return w.strokes[:]
}

func (w *waveBuffer) add(stroke int, x, y float32) {
	w.strokes[stroke] = append(w.strokes[stroke], point{x, y})
}

// draw renders the waveform of f's audio onto img.
func (w *waveBuffer) draw(img *image.RGBA, f *Frame, channels int) {
	wave := f.Wave
	if wave.A <= 0 || wave.Mode < 0 || wave.Mode >= waveModes {
		return
	}
	c := rgba{clamp01(wave.R), clamp01(wave.G), clamp01(wave.B), clamp01(wave.A)}
	if wave.Mode == WaveHorizontalTreb {
		c.a = clamp01(c.a * f.Treb)
	}
	if wave.Maximize {
		if m := max(c.r, c.g, c.b); m > 0 {
			c.r, c.g, c.b = c.r/m, c.g/m, c.b/m
		}
	}
	w.load(f.Audio.Samples, max(channels, 1))

	size := float32(img.Rect.Dx())
	for _, stroke := range w.shape(wave) {
		var px, py int
		have := false
		for _, pt := range stroke {
			x, okx := coord(pt.x, size)
			y, oky := coord(pt.y, size)
			if !okx || !oky {
				have = false
				continue
			}
			if wave.Dots || !have {
				blend(img, x, y, c, wave.Additive)
				if wave.Thick {
					blend(img, x+1, y, c, wave.Additive)
					blend(img, x, y+1, c, wave.Additive)
				}
			} else {
				drawLine(img, px, py, x, y, c, wave.Thick, wave.Additive)
			}
			px, py, have = x, y, true
		}
	}
}

// coord converts a normalized coordinate to pixels. NaN and points far
// outside the texture are dropped.
func coord(v, size float32) (int, bool) {
	if !(v >= -1 && v <= 2) {
		return 0, false
	}
	return int(v * size), true
}
