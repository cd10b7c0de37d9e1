// Package display presents rendered frames. A surface is triple buffered:
// the renderer draws into the back buffer while the consumer reads the most
// recently presented frame, and neither waits for the other.
package display

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

var errSize = errors.New("display: invalid surface size")

// Surface is a presentation target.
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (w, h int)
	// Back returns the buffer to draw the next frame into.
	Back() *image.RGBA
	// Present publishes the back buffer and hands out a fresh one.
	Present() error
}

// Memory is an in-memory triple-buffered Surface.
type Memory struct {
	mu     sync.Mutex
	w, h   int
	bufs   [3]*image.RGBA
	back   int
	ready  int
	shown  int
	fresh  bool
	frames uint64
}

// NewMemory returns a w x h surface.
func NewMemory(w, h int) (*Memory, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", errSize, w, h)
	}
	m := &Memory{w: w, h: h, back: 0, ready: 1, shown: 2}
	for i := range m.bufs {
		m.bufs[i] = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return m, nil
}

// Size implements Surface.
func (m *Memory) Size() (int, int) { return m.w, m.h }

// Back implements Surface. Only the renderer may call it.
func (m *Memory) Back() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bufs[m.back]
}

// Present implements Surface.
func (m *Memory) Present() error {
	m.mu.Lock()
	m.back, m.ready = m.ready, m.back
	m.fresh = true
	m.frames++
	m.mu.Unlock()
	return nil
}

// Frames returns the number of presented frames.
func (m *Memory) Frames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Snapshot copies the latest presented frame, and reports whether it is
// newer than the one returned by the previous call. Calls must not overlap.
func (m *Memory) Snapshot() (*image.NRGBA, bool) {
	m.mu.Lock()
	fresh := m.fresh
	if fresh {
		m.ready, m.shown = m.shown, m.ready
		m.fresh = false
	}
	img := m.bufs[m.shown]
	m.mu.Unlock()
	// The shown buffer is never drawn into, so it is read unlocked.
	return imaging.Clone(img), fresh
}

// Scale resizes img to w x h with bilinear filtering.
func Scale(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// SavePNG writes img to path, scaled to w x h when both are positive.
// The format follows the file extension.
func SavePNG(path string, img image.Image, w, h int) error {
	if w > 0 && h > 0 && (img.Bounds().Dx() != w || img.Bounds().Dy() != h) {
		img = Scale(img, w, h)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("display: save %s: %w", path, err)
	}
	return nil
}
