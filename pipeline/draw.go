package pipeline

import "image"

// rgba is a colour with components in 0..1.
type rgba struct {
	r, g, b, a float32
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

// blend draws c over the pixel at (x, y). Additive blending adds the
// colour scaled by its alpha instead of mixing.
func blend(img *image.RGBA, x, y int, c rgba, additive bool) {
	if !(image.Point{X: x, Y: y}).In(img.Rect) {
		return
	}
	i := img.PixOffset(x, y)
	px := img.Pix[i : i+4 : i+4]
	for k, s := range [3]float32{c.r, c.g, c.b} {
		d := float32(px[k])
		s *= 255
		var v float32
		if additive {
			v = d + s*c.a
		} else {
			v = d + (s-d)*c.a
		}
		px[k] = uint8(min(max(v+0.5, 0), 255))
	}
	px[3] = 255
}

func fillRect(img *image.RGBA, r image.Rectangle, c rgba, additive bool) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			blend(img, x, y, c, additive)
		}
	}
}

// drawLine draws a line with Bresenham's algorithm. Thick lines are two
// pixels wide.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c rgba, thick, additive bool) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		blend(img, x0, y0, c, additive)
		if thick {
			blend(img, x0+1, y0, c, additive)
			blend(img, x0, y0+1, c, additive)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawBorders draws the outer border along the texture edges and the inner
// border just inside it. Sizes are fractions of the texture edge.
func drawBorders(img *image.RGBA, ob, ib Border) {
	size := img.Rect.Dx()
	outer := min(int(ob.Size*float32(size)+0.5), size/2)
	if ob.A > 0 && outer > 0 {
		frameRect(img, 0, outer, ob)
	}
	inner := min(int(ib.Size*float32(size)+0.5), size/2-outer)
	if ib.A > 0 && inner > 0 {
		frameRect(img, outer, outer+inner, ib)
	}
}

// frameRect fills the ring between inset from and inset to.
func frameRect(img *image.RGBA, from, to int, b Border) {
	c := rgba{clamp01(b.R), clamp01(b.G), clamp01(b.B), clamp01(b.A)}
	r := img.Rect
	w, h := r.Dx(), r.Dy()
	fillRect(img, image.Rect(from, from, w-from, to), c, false)
	fillRect(img, image.Rect(from, h-to, w-from, h-from), c, false)
	fillRect(img, image.Rect(from, to, to, h-to), c, false)
	fillRect(img, image.Rect(w-to, to, w-from, h-to), c, false)
}

// maxMotionVectors bounds the grid in each direction.
const maxMotionVectors = 64

// drawMotionVectors draws a grid of X by Y dots, shifted by (Dx, Dy) cells.
// L is the dot size in pixels.
func drawMotionVectors(img *image.RGBA, mv MotionVectors) {
	if mv.A <= 0 {
		return
	}
	nx := min(int(mv.X), maxMotionVectors)
	ny := min(int(mv.Y), maxMotionVectors)
	if nx <= 0 || ny <= 0 {
		return
	}
	c := rgba{clamp01(mv.R), clamp01(mv.G), clamp01(mv.B), clamp01(mv.A)}
	l := max(int(mv.L), 1)
	w, h := float32(img.Rect.Dx()), float32(img.Rect.Dy())
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			x := int((float32(i) + 0.5 + mv.Dx) / float32(nx) * w)
			y := int((float32(j) + 0.5 + mv.Dy) / float32(ny) * h)
			fillRect(img, image.Rect(x, y, x+l, y+l), c, false)
		}
	}
}
