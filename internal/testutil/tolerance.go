package testutil

import (
	"math"
	"testing"
)

// RequireNear fails t if got and want differ by more than eps.
func RequireNear(t *testing.T, name string, got, want, eps float64) {
	t.Helper()
	if diff := math.Abs(got - want); diff > eps || math.IsNaN(got) {
		t.Fatalf("%s = %v, want %v (diff %v > eps %v)", name, got, want, diff, eps)
	}
}

// RequireBytesNear fails t if got and want differ in length or if any byte
// pair differs by more than eps. Used for pixel buffers.
func RequireBytesNear(t *testing.T, got, want []uint8, eps int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		d := int(got[i]) - int(want[i])
		if d < -eps || d > eps {
			t.Fatalf("index %d: got %d, want %d (diff %d > eps %d)", i, got[i], want[i], d, eps)
		}
	}
}
