package testutil

import "testing"

func TestRequireNear(t *testing.T) {
	RequireNear(t, "x", 1.0, 1.05, 0.1)
}

func TestRequireBytesNear(t *testing.T) {
	RequireBytesNear(t, []uint8{10, 200}, []uint8{12, 199}, 2)
}
