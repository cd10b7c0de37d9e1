package tmu

import "github.com/cwbudde/algo-vj/pfpu"

// Identity fills dst with a grid over a w x h source that maps it onto the
// destination unchanged, and returns the used part of dst.
func Identity(dst []pfpu.Vertex, hLast, vLast, w, h int) []pfpu.Vertex {
	n := (hLast + 1) * (vLast + 1)
	if cap(dst) < n {
		dst = make([]pfpu.Vertex, n)
	}
	dst = dst[:n]
	for j := 0; j <= vLast; j++ {
		for i := 0; i <= hLast; i++ {
			dst[j*(hLast+1)+i] = pfpu.Vertex{
				X: int32(i * w * One / hLast),
				Y: int32(j * h * One / vLast),
			}
		}
	}
	return dst
}

// Flip selects the mirrored axes of an echo copy.
type Flip uint8

const (
	FlipNone Flip = iota
	FlipX
	FlipY
	FlipXY
)

// Quad returns the four corners of a single cell that shows the w x h
// source zoomed about its centre and mirrored by f. Zoom values above one
// magnify.
func Quad(w, h int, zoom float32, f Flip) []pfpu.Vertex {
	if zoom <= 0 {
		zoom = 1
	}
	hw := float32(w) * One / (2 * zoom)
	hh := float32(h) * One / (2 * zoom)
	cx := float32(w) * One / 2
	cy := float32(h) * One / 2
	x0, x1 := int32(cx-hw), int32(cx+hw)
	y0, y1 := int32(cy-hh), int32(cy+hh)
	if f == FlipX || f == FlipXY {
		x0, x1 = x1, x0
	}
	if f == FlipY || f == FlipXY {
		y0, y1 = y1, y0
	}
	return []pfpu.Vertex{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}}
}
