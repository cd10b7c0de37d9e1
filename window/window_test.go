package window

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-vj/internal/testutil"
)

func TestGenerateFamilies(t *testing.T) {
	tests := []struct {
		typ      Type
		enbw     float64
		endpoint float64
	}{
		{TypeRectangular, 1, 1},
		{TypeHann, 1.5, 0},
		{TypeHamming, 1.3628, 0.08},
		{TypeBlackman, 1.7268, 0},
		{TypeBlackmanHarris, 2.0044, 0.00006},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			w, err := Generate(tt.typ, 4096, WithPeriodic())
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(w) != 4096 {
				t.Fatalf("len = %d, want 4096", len(w))
			}
			testutil.RequireNear(t, "w[0]", w[0], tt.endpoint, 1e-9)
			enbw, err := EquivalentNoiseBandwidth(w)
			if err != nil {
				t.Fatalf("EquivalentNoiseBandwidth: %v", err)
			}
			testutil.RequireNear(t, "enbw", enbw, tt.enbw, 1e-3)
		})
	}
}

func TestSymmetricEndpoints(t *testing.T) {
	w, err := Hann(9)
	if err != nil {
		t.Fatalf("Hann: %v", err)
	}
	testutil.RequireNear(t, "w[0]", w[0], 0, 1e-12)
	testutil.RequireNear(t, "w[8]", w[8], 0, 1e-12)
	testutil.RequireNear(t, "w[4]", w[4], 1, 1e-12)

	p, _ := Hann(8, WithPeriodic())
	testutil.RequireNear(t, "periodic w[4]", p[4], 1, 1e-12)
	if p[7] == 0 {
		t.Fatal("periodic window ends at zero")
	}
}

func TestPowerGain(t *testing.T) {
	w, _ := Hann(1024, WithPeriodic())
	got, err := PowerGain(w)
	if err != nil {
		t.Fatalf("PowerGain: %v", err)
	}
	// mean of (0.5 - 0.5cos)^2 over a full period is 3/8.
	testutil.RequireNear(t, "PowerGain", got, 0.375, 1e-12)
	cg, _ := CoherentGain(w)
	testutil.RequireNear(t, "CoherentGain", cg, 0.5, 1e-12)
}

func TestApply(t *testing.T) {
	w, _ := Hann(4)
	buf := []float64{2, 2, 2, 2}
	if err := Apply(buf, w); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i, v := range buf {
		if math.Abs(v-2*w[i]) > 1e-12 {
			t.Fatalf("buf[%d] = %v, want %v", i, v, 2*w[i])
		}
	}
	if err := Apply(buf, w[:3]); err == nil {
		t.Fatal("Apply with mismatched lengths succeeded")
	}
}

func TestValidation(t *testing.T) {
	if _, err := Generate(TypeHann, 0); err == nil {
		t.Fatal("Generate(size 0) succeeded")
	}
	if _, err := Generate(Type(42), 8); err == nil {
		t.Fatal("Generate(unknown type) succeeded")
	}
	if Type(42).String() != "unknown" {
		t.Fatalf("Type(42).String() = %q", Type(42).String())
	}
	if _, err := EquivalentNoiseBandwidth(nil); err == nil {
		t.Fatal("EquivalentNoiseBandwidth(nil) succeeded")
	}
	if _, err := EquivalentNoiseBandwidth([]float64{1, -1}); err == nil {
		t.Fatal("EquivalentNoiseBandwidth with zero gain succeeded")
	}
}
