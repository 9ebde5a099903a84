package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT wraps a gonum complex FFT plan of a fixed size together with scratch
// buffers so repeated transforms allocate nothing. An FFT instance belongs
// to a single pipeline and is not safe for concurrent use.
type FFT struct {
	n    int
	plan *fourier.CmplxFFT
	in   []complex128
	out  []complex128
}

// NewFFT creates a plan for transforms of length n.
func NewFFT(n int) *FFT {
	return &FFT{
		n:    n,
		plan: fourier.NewCmplxFFT(n),
		in:   make([]complex128, n),
		out:  make([]complex128, n),
	}
}

// Size returns the transform length.
func (f *FFT) Size() int { return f.n }

// Transform computes the forward FFT of src into dst. Zero frequency lands
// at index 0. dst and src must both have the plan's length and may alias.
func (f *FFT) Transform(dst, src []complex64) {
	for i, v := range src {
		f.in[i] = complex(float64(real(v)), float64(imag(v)))
	}
	f.plan.Coefficients(f.out, f.in)
	for i, v := range f.out {
		dst[i] = complex(float32(real(v)), float32(imag(v)))
	}
}

// Inverse computes the inverse FFT of src into dst, normalised by 1/n so
// that Inverse(Transform(x)) == x up to rounding.
func (f *FFT) Inverse(dst, src []complex64) {
	for i, v := range src {
		f.in[i] = complex(float64(real(v)), float64(imag(v)))
	}
	f.plan.Sequence(f.out, f.in)
	scale := 1 / float64(f.n)
	for i, v := range f.out {
		dst[i] = complex(float32(real(v)*scale), float32(imag(v)*scale))
	}
}

// PowerSpectrum computes |X[k]|^2 of the forward FFT of src into dst.
func (f *FFT) PowerSpectrum(dst []float32, src []complex64) {
	for i, v := range src {
		f.in[i] = complex(float64(real(v)), float64(imag(v)))
	}
	f.plan.Coefficients(f.out, f.in)
	for i, v := range f.out {
		re := real(v)
		im := imag(v)
		dst[i] = float32(re*re + im*im)
	}
}
