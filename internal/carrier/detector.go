// Package carrier acquires and tracks the reference CW carrier. The
// pre-detector finds a coarse spectral peak on raw blocks; the tracker
// keeps a frequency/phase estimate locked and produces baseband-corrected
// blocks.
package carrier

import (
	"github.com/sdr-array/corx/internal/dsp"
)

// Detection is the outcome of running the pre-detector on one raw block.
type Detection struct {
	Detected   bool
	Argmax     int
	MaxPower   float32
	NoisePower float32
	// Power is the full power spectrum backing the detection. It is reused
	// between calls and only valid until the next Process.
	Power []float32
}

// PreDetector reports a coarse carrier peak for a raw sample block.
type PreDetector interface {
	Process(samples []complex64) Detection
}

// Detector is the default PreDetector: a power FFT over the block with a
// peak search window and a constant-plus-SNR threshold.
type Detector struct {
	fft         *dsp.FFT
	power       []float32
	threshConst float32
	threshSNR   float32
	winStart    int
	winEnd      int
}

// NewDetector builds a pre-detector for blocks of blockLen samples. The
// peak is searched in the bin window [winStart, winEnd); winEnd <= 0 runs
// the window to the top of the spectrum, so (0, 0) searches the whole
// spectrum. A peak is declared a carrier when
// power > threshConst + threshSNR*noise.
func NewDetector(blockLen int, threshConst, threshSNR float32, winStart, winEnd int) *Detector {
	return &Detector{
		fft:         dsp.NewFFT(blockLen),
		power:       make([]float32, blockLen),
		threshConst: threshConst,
		threshSNR:   threshSNR,
		winStart:    winStart,
		winEnd:      winEnd,
	}
}

// Process computes the block's power spectrum and applies the detection
// threshold.
func (d *Detector) Process(samples []complex64) Detection {
	d.fft.PowerSpectrum(d.power, samples)

	peak, bin, ok := d.peak()
	if !ok {
		return Detection{Power: d.power}
	}
	noise, _ := dsp.NoiseFloor(d.power, bin)

	return Detection{
		Detected:   peak > d.threshConst+d.threshSNR*noise,
		Argmax:     bin,
		MaxPower:   peak,
		NoisePower: noise,
		Power:      d.power,
	}
}

// peak searches the configured window. A window whose start is at or past
// its end wraps around the top of the spectrum (the DC region spans the
// wrap when the carrier offset is negative).
func (d *Detector) peak() (float32, int, bool) {
	if d.winEnd > 0 && d.winStart >= d.winEnd {
		p1, b1, ok1 := dsp.PeakInBand(d.power, d.winStart, len(d.power))
		p2, b2, ok2 := dsp.PeakInBand(d.power, 0, d.winEnd)
		switch {
		case ok1 && (!ok2 || p1 >= p2):
			return p1, b1, true
		case ok2:
			return p2, b2, true
		default:
			return 0, 0, false
		}
	}
	return dsp.PeakInBand(d.power, d.winStart, d.winEnd)
}
