package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

func tone(n int, bin float64) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		out[i] = Expj(bin * float64(i) / float64(n))
	}
	return out
}

func TestTransformTonePeak(t *testing.T) {
	const n = 64
	f := NewFFT(n)
	out := make([]complex64, n)
	f.Transform(out, tone(n, 5))

	maxIdx := 0
	var maxMag float64
	for i, v := range out {
		mag := cmplx.Abs(complex128(v))
		if mag > maxMag {
			maxMag = mag
			maxIdx = i
		}
	}
	if maxIdx != 5 {
		t.Fatalf("expected peak at bin 5, got %d", maxIdx)
	}
	if math.Abs(maxMag-float64(n)) > 1e-3 {
		t.Fatalf("expected peak magnitude %d, got %v", n, maxMag)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	const n = 128
	f := NewFFT(n)
	src := randomSignal(n, 7)
	freq := make([]complex64, n)
	back := make([]complex64, n)

	f.Transform(freq, src)
	f.Inverse(back, freq)

	for i := range src {
		if cmplx.Abs(complex128(back[i]-src[i])) > 1e-4 {
			t.Fatalf("sample %d: %v != %v", i, back[i], src[i])
		}
	}
}

func TestPowerSpectrum(t *testing.T) {
	const n = 32
	f := NewFFT(n)
	power := make([]float32, n)
	f.PowerSpectrum(power, tone(n, 3))

	for i, p := range power {
		if i == 3 {
			if math.Abs(float64(p)-float64(n*n)) > 1e-2 {
				t.Fatalf("bin 3 power %v, want %d", p, n*n)
			}
			continue
		}
		if p > 1e-3 {
			t.Fatalf("bin %d leakage %v", i, p)
		}
	}
}
