package testutil

import (
	"math"
	"testing"
)

func TestDeterministicSine(t *testing.T) {
	s := DeterministicSine(1000, 48000, 1.0, 48)
	if len(s) != 48 {
		t.Fatalf("len = %d, want 48", len(s))
	}
	if math.Abs(s[0]) > 1e-15 {
		t.Fatalf("s[0] = %v, want 0", s[0])
	}
	for i, v := range s {
		if v < -1 || v > 1 {
			t.Fatalf("s[%d] = %v out of range", i, v)
		}
	}
}

func TestSinePCM16(t *testing.T) {
	s := SinePCM16(12000, 48000, 1, 8, 2)
	if len(s) != 16 {
		t.Fatalf("len = %d, want 16", len(s))
	}
	// A quarter-rate sine peaks on the second frame.
	if s[2] != 32767 || s[3] != 32767 {
		t.Fatalf("frame 1 = (%d,%d), want full scale on both channels", s[2], s[3])
	}
	if s[6] != -32767 {
		t.Fatalf("frame 3 = %d, want -32767", s[6])
	}
}

func TestNoisePCM16Reproducible(t *testing.T) {
	a := NoisePCM16(42, 0.5, 64, 1)
	b := NoisePCM16(42, 0.5, 64, 1)
	c := NoisePCM16(43, 0.5, 64, 1)
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise not deterministic at index %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
		if a[i] > 16384 || a[i] < -16384 {
			t.Fatalf("a[%d] = %d exceeds amplitude", i, a[i])
		}
	}
	if same {
		t.Fatal("different seeds produced identical noise")
	}
}
