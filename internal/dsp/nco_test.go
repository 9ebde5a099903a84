package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestNCOMatchesDirectEvaluation(t *testing.T) {
	const n = 4096
	const step = 0.01371
	const phase = 0.2

	src := make([]complex64, n)
	for i := range src {
		src[i] = 1
	}
	dst := make([]complex64, n)
	nco := NewNCO(phase, step)
	nco.MixInto(dst, src)

	for i := 0; i < n; i += 37 {
		want := cmplx.Exp(complex(0, 2*math.Pi*(phase+step*float64(i))))
		got := complex128(dst[i])
		if cmplx.Abs(got-want) > 1e-4 {
			t.Fatalf("sample %d: got %v, want %v", i, got, want)
		}
	}
}

func TestNCOAmplitudeStaysBounded(t *testing.T) {
	nco := NewNCO(0, 0.1234)
	src := make([]complex64, 1<<14)
	for i := range src {
		src[i] = 1
	}
	dst := make([]complex64, len(src))
	// Run for ~10^6 samples to accumulate drift.
	for iter := 0; iter < 64; iter++ {
		nco.MixInto(dst, src)
	}
	mag := cmplx.Abs(complex128(dst[len(dst)-1]))
	if math.Abs(mag-1) > 1e-4 {
		t.Fatalf("oscillator amplitude drifted to %v", mag)
	}
}
