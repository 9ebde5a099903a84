package dsp

import "math"

// DeciAngle is an angle expressed in turns (1 turn = 360 degrees),
// normalised to the half-open interval [-0.5, 0.5). Storing phases in turns
// keeps additions of small deltas inside the natural range after a single
// NormalizeAngle call.
type DeciAngle = float32

// NormalizeAngle wraps an angle in turns back into [-0.5, 0.5).
func NormalizeAngle(a DeciAngle) DeciAngle {
	return a - DeciAngle(math.Floor(float64(a)+0.5))
}

// Expj returns exp(j*2*pi*turns) as a complex64.
func Expj(turns float64) complex64 {
	s, c := math.Sincos(2 * math.Pi * turns)
	return complex(float32(c), float32(s))
}
