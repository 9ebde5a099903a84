package dsp

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"
)

func randomSignal(n int, seed int64) []complex64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]complex64, n)
	for i := range out {
		out[i] = complex(float32(rng.NormFloat64()), float32(rng.NormFloat64()))
	}
	return out
}

func TestFreqShiftRoundTrip(t *testing.T) {
	const n = 512
	src := randomSignal(n, 1)
	shifted := make([]complex64, n)
	back := make([]complex64, n)

	FreqShift(shifted, src, 13.7, 0.3)
	FreqShift(back, shifted, -13.7, -0.3)

	for i := range src {
		diff := cmplx.Abs(complex128(back[i] - src[i]))
		ref := cmplx.Abs(complex128(src[i]))
		if diff > 1e-5*(1+ref) {
			t.Fatalf("sample %d: round trip error %v", i, diff)
		}
	}
}

func TestFreqShiftInPlace(t *testing.T) {
	const n = 256
	src := randomSignal(n, 2)
	expected := make([]complex64, n)
	FreqShift(expected, src, 5.25, -0.1)

	buf := make([]complex64, n)
	copy(buf, src)
	FreqShift(buf, buf, 5.25, -0.1)

	for i := range buf {
		if buf[i] != expected[i] {
			t.Fatalf("in-place result differs at %d: %v != %v", i, buf[i], expected[i])
		}
	}
}

func TestFFTShiftIdentity(t *testing.T) {
	src := randomSignal(128, 3)
	dst := make([]complex64, len(src))
	FFTShift(dst, src, 0, 0, 0)
	for i := range src {
		diff := cmplx.Abs(complex128(dst[i] - src[i]))
		if diff > 1e-6 {
			t.Fatalf("identity violated at %d: %v", i, diff)
		}
	}
}

func TestFFTShiftSplit(t *testing.T) {
	// With a shift applied, the negative-frequency half must continue the
	// oscillator with its phase rewound by shiftBins turns.
	for _, n := range []int{8, 9} {
		src := make([]complex64, n)
		for i := range src {
			src[i] = 1
		}
		dst := make([]complex64, n)
		const shift = 1.5
		const phase = 0.1
		FFTShift(dst, src, shift, phase, 0)

		posLen := (n + 1) / 2
		for i := 0; i < n; i++ {
			turns := shift*float64(i)/float64(n) + phase
			if i >= posLen {
				turns -= shift
			}
			want := cmplx.Exp(complex(0, 2*math.Pi*turns))
			if cmplx.Abs(complex128(dst[i])-want) > 1e-4 {
				t.Fatalf("n=%d sample %d: got %v, want %v", n, i, dst[i], want)
			}
		}
	}
}

func TestCalculateDC(t *testing.T) {
	sig := []complex64{1 + 2i, 3 - 1i, -0.5 + 0.25i}
	dc := CalculateDC(sig)
	want := complex64(3.5 + 1.25i)
	if cmplx.Abs(complex128(dc-want)) > 1e-6 {
		t.Fatalf("CalculateDC = %v, want %v", dc, want)
	}
}
