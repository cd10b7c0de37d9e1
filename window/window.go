package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeBlackmanHarris
	typeCount
)

var (
	rectangularCoeffs    = []float64{1}
	hannCoeffs           = []float64{0.5, -0.5}
	hammingCoeffs        = []float64{0.54, -0.46}
	blackmanCoeffs       = []float64{0.42, -0.5, 0.08}
	blackmanHarrisCoeffs = []float64{0.35875, -0.48829, 0.14128, -0.01168}
)

var names = [typeCount]string{"Rectangular", "Hann", "Hamming", "Blackman", "Blackman-Harris"}

// Valid reports whether t names a window family.
func (t Type) Valid() bool { return t >= 0 && t < typeCount }

func (t Type) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return names[t]
}

func (t Type) coeffs() []float64 {
	switch t {
	case TypeHann:
		return hannCoeffs
	case TypeHamming:
		return hammingCoeffs
	case TypeBlackman:
		return blackmanCoeffs
	case TypeBlackmanHarris:
		return blackmanHarrisCoeffs
	}
	return rectangularCoeffs
}

// Option configures window generation.
type Option func(*config)

type config struct {
	periodic bool
}

// WithPeriodic configures periodic form (FFT framing) instead of symmetric form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// Generate returns window coefficients of the given length.
func Generate(t Type, length int, opts ...Option) ([]float64, error) {
	if err := validateLength(length); err != nil {
		return nil, err
	}
	if err := validateType(t); err != nil {
		return nil, err
	}
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	coeffs := t.coeffs()
	out := make([]float64, length)
	for i := range out {
		out[i] = cosineSum(samplePosition(i, length, cfg.periodic), coeffs)
	}
	return out, nil
}

// Hann returns Hann window coefficients.
func Hann(size int, opts ...Option) ([]float64, error) {
	return Generate(TypeHann, size, opts...)
}

// Apply multiplies buf in place by coeffs.
func Apply(buf, coeffs []float64) error {
	if len(buf) != len(coeffs) {
		return errMismatchedLength
	}
	vecmath.MulBlockInPlace(buf, coeffs)
	return nil
}

// CoherentGain returns sum(w[n]) / N, the DC response of the window.
func CoherentGain(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}
	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}
	return sum / float64(len(coeffs)), nil
}

// EquivalentNoiseBandwidth returns the ENBW in bins for a window.
func EquivalentNoiseBandwidth(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}

	sum := 0.0
	sumSquares := 0.0
	for _, c := range coeffs {
		sum += c
		sumSquares += c * c
	}
	if sum == 0 {
		return 0, errZeroCoherentGain
	}
	return float64(len(coeffs)) * sumSquares / (sum * sum), nil
}

// PowerGain returns the mean of w[n]^2, the factor by which the window
// scales the power of broadband noise. It equals ENBW * CoherentGain^2.
func PowerGain(coeffs []float64) (float64, error) {
	enbw, err := EquivalentNoiseBandwidth(coeffs)
	if err != nil {
		return 0, err
	}
	cg, err := CoherentGain(coeffs)
	if err != nil {
		return 0, err
	}
	return enbw * cg * cg, nil
}

func cosineSum(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x
	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}
	return sum
}

func samplePosition(n, size int, periodic bool) float64 {
	if size <= 1 {
		return 0
	}
	den := float64(size - 1)
	if periodic {
		den = float64(size)
	}
	return float64(n) / den
}
