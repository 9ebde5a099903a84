package beacon

import (
	"fmt"

	"github.com/sdr-array/corx/internal/dsp"
)

// Detection is the outcome of correlating one synced block against the
// beacon template. PeakOffset is the sub-sample refinement of PeakIdx,
// in (-0.5, 0.5).
type Detection struct {
	Detected   bool
	PeakIdx    int
	PeakOffset float32
	PeakPower  float32
	NoisePower float32
}

// CorrDetector is an FFT-domain matched filter for the beacon pulse. It
// multiplies the synced block's spectrum with the conjugated template
// spectrum and searches the resulting cyclic correlation for a peak inside
// the block's fresh-sample region.
type CorrDetector struct {
	blockLen    int
	historyLen  int
	threshConst float32
	threshSNR   float32

	templateConj []complex64
	ifft         *dsp.FFT
	corrFFT      []complex64
	corr         []complex64
	power        []float32
}

// NewCorrDetector precomputes the template spectrum. The template must
// cover one block advance plus one sample: block_len - history_len + 1.
func NewCorrDetector(template []float32, blockLen, historyLen int, threshConst, threshSNR float32) (*CorrDetector, error) {
	want := blockLen - historyLen + 1
	if len(template) != want {
		return nil, fmt.Errorf("beacon: template length %d, want %d for block %d / history %d",
			len(template), want, blockLen, historyLen)
	}

	fft := dsp.NewFFT(blockLen)
	padded := make([]complex64, blockLen)
	for i, v := range template {
		padded[i] = complex(v, 0)
	}
	tmplFFT := make([]complex64, blockLen)
	fft.Transform(tmplFFT, padded)
	for i, v := range tmplFFT {
		tmplFFT[i] = complex(real(v), -imag(v))
	}

	return &CorrDetector{
		blockLen:     blockLen,
		historyLen:   historyLen,
		threshConst:  threshConst,
		threshSNR:    threshSNR,
		templateConj: tmplFFT,
		ifft:         fft,
		corrFFT:      make([]complex64, blockLen),
		corr:         make([]complex64, blockLen),
		power:        make([]float32, blockLen),
	}, nil
}

// Detect correlates a block_len FFT of the synced signal against the
// template. signalEnergy is subtracted from the correlation noise estimate;
// callers that do not track it pass 0.
func (d *CorrDetector) Detect(signalFFT []complex64, signalEnergy float32) Detection {
	for i, v := range signalFFT {
		d.corrFFT[i] = v * d.templateConj[i]
	}
	d.ifft.Inverse(d.corr, d.corrFFT)
	for i, v := range d.corr {
		d.power[i] = real(v)*real(v) + imag(v)*imag(v)
	}

	// Each stream position must be claimed by exactly one block, so the
	// peak search is limited to the fresh-sample region.
	peak, bin, ok := dsp.PeakInBand(d.power, 0, d.blockLen-d.historyLen)
	if !ok {
		return Detection{}
	}

	noise := d.noisePower(bin)
	noise -= signalEnergy
	if noise < 0 {
		noise = 0
	}

	n := d.blockLen
	offset := dsp.InterpolateParabolic(
		d.power[(bin-1+n)%n],
		d.power[bin],
		d.power[(bin+1)%n],
	)

	return Detection{
		Detected:   peak > d.threshConst+d.threshSNR*noise,
		PeakIdx:    bin,
		PeakOffset: offset,
		PeakPower:  peak,
		NoisePower: noise,
	}
}

// noisePower is the mean correlation power excluding a one-bin guard
// around the peak.
func (d *CorrDetector) noisePower(peakBin int) float32 {
	var sum float64
	var count int
	for i, v := range d.power {
		if i >= peakBin-1 && i <= peakBin+1 {
			continue
		}
		sum += float64(v)
		count++
	}
	if count == 0 {
		return 0
	}
	return float32(sum / float64(count))
}
