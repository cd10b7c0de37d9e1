package tmu

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/cwbudde/algo-vj/pfpu"
)

const (
	// FracBits is the number of fractional bits of a vertex coordinate.
	FracBits = 6
	// One is 1.0 in vertex fixed point.
	One = 1 << FracBits
	// MaxBrightness leaves samples unchanged.
	MaxBrightness = 64
	// Opaque replaces the destination.
	Opaque = 64
)

var (
	errNilTexture = errors.New("tmu: nil texture")
	errMesh       = errors.New("tmu: invalid mesh")
)

// Task describes one texture mapping operation.
type Task struct {
	Src *image.RGBA
	Dst *image.RGBA
	// DstRect is the area of Dst covered by the mesh. An empty rectangle
	// covers Dst.
	DstRect image.Rectangle

	// Vertices holds (HMeshLast+1)*(VMeshLast+1) source coordinates,
	// row-major. Both mesh counts must be at least 1.
	Vertices  []pfpu.Vertex
	HMeshLast int
	VMeshLast int

	// Brightness scales the source, 0..MaxBrightness.
	Brightness int
	// Alpha blends the source over the destination, 0..Opaque.
	Alpha int
	// ChromaKey skips source texels of this colour when set.
	ChromaKey *color.RGBA
	// Wrap repeats the source instead of clamping at its edges.
	Wrap bool
}

// Device executes texture mapping tasks.
type Device interface {
	Submit(t *Task) error
}

// Software is a CPU implementation of Device.
type Software struct{}

// Submit implements Device. It completes before returning.
func (Software) Submit(t *Task) error {
	if t.Src == nil || t.Dst == nil {
		return errNilTexture
	}
	if t.HMeshLast < 1 || t.VMeshLast < 1 {
		return fmt.Errorf("%w: %dx%d cells", errMesh, t.HMeshLast, t.VMeshLast)
	}
	cols := t.HMeshLast + 1
	if len(t.Vertices) < cols*(t.VMeshLast+1) {
		return fmt.Errorf("%w: %d vertices for a %dx%d grid", errMesh, len(t.Vertices), cols, t.VMeshLast+1)
	}
	r := t.DstRect
	if r.Empty() {
		r = t.Dst.Bounds()
	}
	r = r.Intersect(t.Dst.Bounds())
	if r.Empty() {
		return nil
	}
	bright := clampInt(t.Brightness, 0, MaxBrightness)
	alpha := clampInt(t.Alpha, 0, Opaque)
	if alpha == 0 {
		return nil
	}

	s := sampler{src: t.Src, wrap: t.Wrap, key: t.ChromaKey}
	full := t.DstRect
	if full.Empty() {
		full = t.Dst.Bounds()
	}
	w, h := float32(full.Dx()), float32(full.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		gy := float32(y-full.Min.Y) * float32(t.VMeshLast) / h
		cy := min(int(gy), t.VMeshLast-1)
		fy := gy - float32(cy)
		row := t.Dst.Pix[t.Dst.PixOffset(r.Min.X, y):]
		for x := r.Min.X; x < r.Max.X; x++ {
			gx := float32(x-full.Min.X) * float32(t.HMeshLast) / w
			cx := min(int(gx), t.HMeshLast-1)
			fx := gx - float32(cx)

			v00 := t.Vertices[cy*cols+cx]
			v10 := t.Vertices[cy*cols+cx+1]
			v01 := t.Vertices[(cy+1)*cols+cx]
			v11 := t.Vertices[(cy+1)*cols+cx+1]
			sx := lerp2(float32(v00.X), float32(v10.X), float32(v01.X), float32(v11.X), fx, fy)
			sy := lerp2(float32(v00.Y), float32(v10.Y), float32(v01.Y), float32(v11.Y), fx, fy)

			c, ok := s.at(sx/One, sy/One)
			if !ok {
				continue
			}
			px := row[(x-r.Min.X)*4 : (x-r.Min.X)*4+4 : (x-r.Min.X)*4+4]
			for i := 0; i < 4; i++ {
				v := int(c[i]) * bright / MaxBrightness
				if alpha < Opaque {
					v = (v*alpha + int(px[i])*(Opaque-alpha)) / Opaque
				}
				px[i] = uint8(v)
			}
		}
	}
	return nil
}

func lerp2(a, b, c, d, fx, fy float32) float32 {
	top := a + (b-a)*fx
	bot := c + (d-c)*fx
	return top + (bot-top)*fy
}

type sampler struct {
	src  *image.RGBA
	wrap bool
	key  *color.RGBA
}

// at samples the source bilinearly at pixel coordinate (x, y). It reports
// false when the nearest texel matches the chroma key.
func (s *sampler) at(x, y float32) ([4]uint8, bool) {
	b := s.src.Bounds()
	x0 := floor(x)
	y0 := floor(y)
	fx := x - float32(x0)
	fy := y - float32(y0)

	if s.key != nil {
		nx, ny := x0, y0
		if fx >= 0.5 {
			nx++
		}
		if fy >= 0.5 {
			ny++
		}
		p := s.texel(b, nx, ny)
		if p[0] == s.key.R && p[1] == s.key.G && p[2] == s.key.B {
			return [4]uint8{}, false
		}
	}
	if fx == 0 && fy == 0 {
		return s.texel(b, x0, y0), true
	}
	p00 := s.texel(b, x0, y0)
	p10 := s.texel(b, x0+1, y0)
	p01 := s.texel(b, x0, y0+1)
	p11 := s.texel(b, x0+1, y0+1)
	var out [4]uint8
	for i := range out {
		v := lerp2(float32(p00[i]), float32(p10[i]), float32(p01[i]), float32(p11[i]), fx, fy)
		out[i] = uint8(min(max(v+0.5, 0), 255))
	}
	return out, true
}

func (s *sampler) texel(b image.Rectangle, x, y int) [4]uint8 {
	if s.wrap {
		x = b.Min.X + mod(x-b.Min.X, b.Dx())
		y = b.Min.Y + mod(y-b.Min.Y, b.Dy())
	} else {
		x = clampInt(x, b.Min.X, b.Max.X-1)
		y = clampInt(y, b.Min.Y, b.Max.Y-1)
	}
	i := s.src.PixOffset(x, y)
	p := s.src.Pix[i : i+4 : i+4]
	return [4]uint8{p[0], p[1], p[2], p[3]}
}

func floor(v float32) int {
	i := int(v)
	if float32(i) > v {
		i--
	}
	return i
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
