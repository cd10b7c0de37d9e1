package images

import (
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pic.png")
	if err := imaging.Save(imaging.New(w, h, color.NRGBA{R: 200, A: 255}), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

func TestCacheSharesHandles(t *testing.T) {
	path := writePNG(t, 8, 4)
	c := NewCache()

	a, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Fatal("Get returned distinct handles for one file")
	}
	if a.Refs() != 2 {
		t.Fatalf("Refs() = %d, want 2", a.Refs())
	}
	if a.Width() != 8 || a.Height() != 4 {
		t.Fatalf("size = %dx%d, want 8x4", a.Width(), a.Height())
	}
	if got := a.Pix.NRGBAAt(0, 0); got.R != 200 || got.A != 255 {
		t.Fatalf("pixel = %+v, want red", got)
	}

	a.Release()
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after one release, want 1", c.Len())
	}
	b.Release()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after last release, want 0", c.Len())
	}
	b.Release()
	if b.Refs() != 0 {
		t.Fatalf("Refs() = %d after over-release, want 0", b.Refs())
	}
}

func TestCacheMaxSize(t *testing.T) {
	path := writePNG(t, 64, 32)
	c := NewCache(WithMaxSize(16, 16))
	im, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer im.Release()
	if im.Width() != 16 || im.Height() != 8 {
		t.Fatalf("size = %dx%d, want 16x8", im.Width(), im.Height())
	}
}

func TestCacheNotFound(t *testing.T) {
	c := NewCache()
	_, err := c.Get(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestRetain(t *testing.T) {
	im := New(imaging.New(2, 2, color.NRGBA{A: 255}))
	if im.Retain() != im || im.Refs() != 2 {
		t.Fatalf("Refs() = %d after Retain, want 2", im.Refs())
	}
	im.Release()
	im.Release()
	if im.Refs() != 0 {
		t.Fatalf("Refs() = %d, want 0", im.Refs())
	}
}
