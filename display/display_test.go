package display

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestTripleBuffering(t *testing.T) {
	m, err := NewMemory(4, 2)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	seen := make(map[*image.RGBA]bool)
	for i := 0; i < 3; i++ {
		b := m.Back()
		seen[b] = true
		b.SetRGBA(0, 0, color.RGBA{R: uint8(i + 1), A: 255})
		if err := m.Present(); err != nil {
			t.Fatalf("Present: %v", err)
		}
	}
	if m.Frames() != 3 {
		t.Fatalf("Frames() = %d, want 3", m.Frames())
	}

	snap, fresh := m.Snapshot()
	if !fresh {
		t.Fatal("first snapshot not fresh")
	}
	if got := snap.NRGBAAt(0, 0).R; got != 3 {
		t.Fatalf("snapshot shows frame %d, want 3", got)
	}
	if _, fresh := m.Snapshot(); fresh {
		t.Fatal("second snapshot without Present is fresh")
	}

	// Drawing never touches the shown buffer.
	m.Back().SetRGBA(0, 0, color.RGBA{R: 99, A: 255})
	snap, _ = m.Snapshot()
	if got := snap.NRGBAAt(0, 0).R; got != 3 {
		t.Fatalf("snapshot changed to %d while drawing", got)
	}
}

func TestNewMemoryValidation(t *testing.T) {
	if _, err := NewMemory(0, 1); err == nil {
		t.Fatal("NewMemory(0, 1) succeeded")
	}
}

func TestSavePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := SavePNG(path, img, 4, 2); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	got, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b := got.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("saved size = %v, want 4x2", b)
	}
	r, _, _, _ := got.At(1, 1).RGBA()
	if r>>8 != 255 {
		t.Fatalf("scaled pixel R = %d, want 255", r>>8)
	}
}
