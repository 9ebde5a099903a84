package dsp

// FreqShift computes dst[i] = src[i] * exp(j*2*pi*(shiftBins*i/len + phase))
// for every sample. dst and src may be the same slice for in-place
// operation. shiftBins is the shift expressed in FFT bins of the buffer
// length; phase is the starting phase in turns.
func FreqShift(dst, src []complex64, shiftBins float32, phase DeciAngle) {
	if len(src) == 0 {
		return
	}
	nco := NewNCO(phase, shiftBins/float32(len(src)))
	nco.MixInto(dst, src)
}

// FFTShift applies FreqShift to an FFT-domain buffer, accounting for the
// discontinuity between the positive- and negative-frequency halves of the
// spectrum (zero frequency at index 0). The split sits at
// (len+1)/2 + carrierOffset; across it the oscillator phase is rewound by
// one full cycle of shiftBins.
func FFTShift(dst, src []complex64, shiftBins float32, phase DeciAngle, carrierOffset int) {
	n := len(src)
	if n == 0 {
		return
	}
	posLen := (n+1)/2 + carrierOffset
	if posLen < 0 {
		posLen = 0
	}
	if posLen > n {
		posLen = n
	}
	nco := NewNCO(phase, shiftBins/float32(n))
	nco.MixInto(dst[:posLen], src[:posLen])
	nco.AdjustPhase(-shiftBins)
	nco.MixInto(dst[posLen:], src[posLen:])
}

// CalculateDC returns the unnormalised sum of the signal, i.e. the spectral
// component at 0 Hz scaled by len. Its magnitude and argument track the
// carrier amplitude and phase of a baseband-corrected block.
func CalculateDC(sig []complex64) complex64 {
	var sumRe, sumIm float64
	for _, v := range sig {
		sumRe += float64(real(v))
		sumIm += float64(imag(v))
	}
	return complex(float32(sumRe), float32(sumIm))
}
