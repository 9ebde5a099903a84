package beacon

import (
	"testing"

	"github.com/sdr-array/corx/internal/dsp"
)

const (
	testBlockLen   = 1024
	testHistoryLen = 768
)

// blockWithPulse builds a synced block containing the template at sample
// offset m and returns its FFT.
func blockWithPulse(t *testing.T, template []float32, m int) []complex64 {
	t.Helper()
	block := make([]complex64, testBlockLen)
	for k, v := range template {
		block[m+k] = complex(v, 0)
	}
	fft := dsp.NewFFT(testBlockLen)
	out := make([]complex64, testBlockLen)
	fft.Transform(out, block)
	return out
}

func newTestCorr(t *testing.T) (*CorrDetector, []float32) {
	t.Helper()
	template := GenerateTemplate(testBlockLen-testHistoryLen+1, 7)
	det, err := NewCorrDetector(template, testBlockLen, testHistoryLen, 0, 10)
	if err != nil {
		t.Fatalf("NewCorrDetector: %v", err)
	}
	return det, template
}

func TestCorrDetectorFindsPulse(t *testing.T) {
	det, template := newTestCorr(t)

	res := det.Detect(blockWithPulse(t, template, 100), 0)
	if !res.Detected {
		t.Fatalf("pulse not detected: %+v", res)
	}
	if res.PeakIdx != 100 {
		t.Fatalf("peak at %d, want 100", res.PeakIdx)
	}
	if res.PeakOffset <= -0.5 || res.PeakOffset >= 0.5 {
		t.Fatalf("peak offset %v outside (-0.5, 0.5)", res.PeakOffset)
	}
	if res.PeakPower <= res.NoisePower {
		t.Fatalf("peak %v not above noise %v", res.PeakPower, res.NoisePower)
	}
}

func TestCorrDetectorIgnoresOutOfBandPulse(t *testing.T) {
	det, template := newTestCorr(t)

	// A pulse starting past the fresh-sample region belongs to the next
	// block and must not be claimed by this one.
	res := det.Detect(blockWithPulse(t, template, 400), 0)
	if res.Detected {
		t.Fatalf("out-of-band pulse claimed: %+v", res)
	}
}

func TestCorrDetectorNoPulse(t *testing.T) {
	det, _ := newTestCorr(t)

	fft := dsp.NewFFT(testBlockLen)
	out := make([]complex64, testBlockLen)
	fft.Transform(out, make([]complex64, testBlockLen))
	if res := det.Detect(out, 0); res.Detected {
		t.Fatalf("detection on silence: %+v", res)
	}
}

func TestNewCorrDetectorRejectsBadTemplate(t *testing.T) {
	template := make([]float32, 100)
	if _, err := NewCorrDetector(template, testBlockLen, testHistoryLen, 0, 15); err == nil {
		t.Fatal("expected template length error")
	}
}
