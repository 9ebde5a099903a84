package dsp

import (
	"math"
	"testing"
)

func TestInterpolateParabolic(t *testing.T) {
	tests := []struct {
		name             string
		prev, mid, next  float32
		expected         float32
	}{
		{name: "symmetric", prev: 1, mid: 2, next: 1, expected: 0},
		{name: "toward_next", prev: 1, mid: 2, next: 1.5, expected: 0.16666667},
		{name: "toward_prev", prev: 1.5, mid: 2, next: 1, expected: -0.16666667},
		{name: "flat", prev: 1, mid: 1, next: 1, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpolateParabolic(tt.prev, tt.mid, tt.next)
			if math.Abs(float64(got-tt.expected)) > 1e-5 {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestInterpolateParabolicClamped(t *testing.T) {
	off := InterpolateParabolic(0, 1, 1)
	if off <= -0.5 || off >= 0.5 {
		t.Fatalf("offset %v outside (-0.5, 0.5)", off)
	}
}

func TestPeakInBand(t *testing.T) {
	power := []float32{1, 5, 3, 9, 2}

	peak, bin, ok := PeakInBand(power, 0, 0)
	if !ok || bin != 3 || peak != 9 {
		t.Fatalf("full band: peak %v at %d ok=%v", peak, bin, ok)
	}

	peak, bin, ok = PeakInBand(power, 0, 3)
	if !ok || bin != 1 || peak != 5 {
		t.Fatalf("limited band: peak %v at %d ok=%v", peak, bin, ok)
	}

	if _, _, ok = PeakInBand(nil, 0, 0); ok {
		t.Fatal("empty spectrum should not report a peak")
	}
}

func TestNoiseFloor(t *testing.T) {
	power := []float32{1, 1, 100, 1, 1, 1}
	noise, ok := NoiseFloor(power, 2)
	if !ok {
		t.Fatal("expected a noise estimate")
	}
	// Bins 1..3 are excluded as guard; remaining are all 1.
	if math.Abs(float64(noise)-1) > 1e-6 {
		t.Fatalf("noise %v, want 1", noise)
	}
}
