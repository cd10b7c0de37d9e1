package pipeline

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/cwbudde/algo-vj/images"
	"github.com/cwbudde/algo-vj/input"
	"github.com/cwbudde/algo-vj/logging"
	"github.com/cwbudde/algo-vj/pfpu"
	"github.com/cwbudde/algo-vj/tmu"
)

type rasterizer struct {
	// tex[0] holds the previous frame, tex[1] receives the next one.
	tex       [2]*image.RGBA
	brightErr float32

	quad   []pfpu.Vertex
	layers map[*images.Image]*image.RGBA
	wave   waveBuffer
}

func newRasterizer(cfg *Config) rasterizer {
	r := rasterizer{layers: make(map[*images.Image]*image.RGBA)}
	for i := range r.tex {
		r.tex[i] = image.NewRGBA(image.Rect(0, 0, cfg.TexSize, cfg.TexSize))
	}
	return r
}

// brightness advances the decay accumulator and returns the warp
// brightness for this frame, 0..64.
func (r *rasterizer) brightness(decay float32) int {
	r.brightErr += decay
	level := int(64 * r.brightErr)
	if 64*r.brightErr < 0 {
		level = 0
	}
	level = min(level, tmu.MaxBrightness)
	r.brightErr -= float32(level) / 64
	r.brightErr = min(max(r.brightErr, 0), 1)
	return level
}

func (p *Pipeline) runRaster() {
	defer close(p.rasterDone)
	for {
		f := <-p.rasterIn
		if f == nil {
			return
		}
		p.render(f)
		p.advance(f, StatusUsed)
		p.returned <- f
	}
}

func (p *Pipeline) render(f *Frame) {
	r := &p.raster
	prev, cur := r.tex[0], r.tex[1]
	size := p.cfg.TexSize

	p.submit("warp", &tmu.Task{
		Src:        prev,
		Dst:        cur,
		Vertices:   f.Vertices,
		HMeshLast:  p.cfg.HMeshLast,
		VMeshLast:  p.cfg.VMeshLast,
		Brightness: r.brightness(f.Decay),
		Alpha:      tmu.Opaque,
		Wrap:       f.TexWrap,
	})
	drawBorders(cur, f.OB, f.IB)
	drawMotionVectors(cur, f.MV)
	r.wave.draw(cur, f, p.cfg.Channels)
	p.compositeImages(cur, f)
	p.compositeVideo(cur, f)

	back := p.dev.Screen.Back()
	p.submit("scale", &tmu.Task{
		Src:        cur,
		Dst:        back,
		Vertices:   tmu.Quad(size, size, 1, tmu.FlipNone),
		HMeshLast:  1,
		VMeshLast:  1,
		Brightness: tmu.MaxBrightness,
		Alpha:      tmu.Opaque,
	})
	if f.EchoAlpha > 0 {
		p.submit("echo", &tmu.Task{
			Src:        cur,
			Dst:        back,
			Vertices:   tmu.Quad(size, size, f.EchoZoom, tmu.Flip(f.EchoOrientation)),
			HMeshLast:  1,
			VMeshLast:  1,
			Brightness: tmu.MaxBrightness,
			Alpha:      int(min(f.EchoAlpha, 1) * tmu.Opaque),
		})
	}
	r.tex[0], r.tex[1] = cur, prev

	if err := p.dev.Screen.Present(); err != nil {
		p.fail(&DeviceError{Device: "screen", Op: "present", Err: err})
	}
	if p.dev.DMXOut != nil {
		for i, ch := range p.cfg.DMXOut {
			if ch <= 0 {
				continue
			}
			if err := p.dev.DMXOut.WriteChannel(ch, input.DMXValue(f.DMX[i])); err != nil {
				logging.Logger().Warn("pipeline: dmx write failed", "channel", ch, "err", err)
			}
		}
	}
}

func (p *Pipeline) submit(op string, t *tmu.Task) {
	if err := p.dev.TMU.Submit(t); err != nil {
		p.fail(&DeviceError{Device: "tmu", Op: op, Err: err})
	}
}

// compositeImages draws the image layers centred at their position,
// scaled by their zoom.
func (p *Pipeline) compositeImages(dst *image.RGBA, f *Frame) {
	r := &p.raster
	used := make(map[*images.Image]*image.RGBA, len(f.Images))
	size := float32(p.cfg.TexSize)
	for _, l := range f.Images {
		if l.Image == nil || l.A <= 0 || l.Zoom <= 0 {
			continue
		}
		src := r.layers[l.Image]
		if src == nil {
			src = image.NewRGBA(l.Image.Pix.Bounds())
			draw.Copy(src, src.Rect.Min, l.Image.Pix, l.Image.Pix.Bounds(), draw.Src, nil)
		}
		used[l.Image] = src

		w, h := src.Rect.Dx(), src.Rect.Dy()
		dw, dh := int(float32(w)*l.Zoom), int(float32(h)*l.Zoom)
		if dw < 1 || dh < 1 {
			continue
		}
		cx, cy := int(l.X*size), int(l.Y*size)
		r.quad = tmu.Identity(r.quad, 1, 1, w, h)
		p.submit("image", &tmu.Task{
			Src:        src,
			Dst:        dst,
			DstRect:    image.Rect(cx-dw/2, cy-dh/2, cx-dw/2+dw, cy-dh/2+dh),
			Vertices:   r.quad,
			HMeshLast:  1,
			VMeshLast:  1,
			Brightness: tmu.MaxBrightness,
			Alpha:      int(min(l.A, 1) * tmu.Opaque),
			ChromaKey:  p.cfg.ChromaKey,
		})
	}
	r.layers = used
}

func (p *Pipeline) compositeVideo(dst *image.RGBA, f *Frame) {
	if p.dev.Video == nil || f.VideoAlpha <= 0 {
		return
	}
	src := p.dev.Video.Frame()
	if src == nil {
		return
	}
	r := &p.raster
	r.quad = tmu.Identity(r.quad, 1, 1, src.Rect.Dx(), src.Rect.Dy())
	p.submit("video", &tmu.Task{
		Src:        src,
		Dst:        dst,
		Vertices:   r.quad,
		HMeshLast:  1,
		VMeshLast:  1,
		Brightness: tmu.MaxBrightness,
		Alpha:      int(min(f.VideoAlpha, 1) * tmu.Opaque),
	})
}
