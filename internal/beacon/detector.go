package beacon

import (
	"math"
)

// IntervalSec is the nominal beacon repetition period.
const IntervalSec = 1.0

// Result describes one accepted beacon detection.
type Result struct {
	Corr     Detection
	Index    int32
	SOA      float64
	TimeStep float64
}

// Detector wraps the correlator with the beacon timeline: a monotonically
// increasing pulse index and the sample-of-arrival referenced to the first
// block of the stream.
type Detector struct {
	corr       *CorrDetector
	sampleRate float64
	stride     int // block_len - history_len

	index   int32
	soa     float64
	prevSOA float64
}

// NewDetector builds the beacon timeline tracker.
func NewDetector(corr *CorrDetector, sampleRate float64) *Detector {
	return &Detector{
		corr:       corr,
		sampleRate: sampleRate,
		stride:     corr.blockLen - corr.historyLen,
		index:      -1,
	}
}

// Index returns the current beacon index, -1 before the first detection.
func (d *Detector) Index() int32 { return d.index }

// SOA returns the sample-of-arrival of the most recent beacon.
func (d *Detector) SOA() float64 { return d.soa }

// OverrideSOA pins the timeline to an externally chosen position. Used for
// the synthetic noise-capture runs after the preamp is switched off.
func (d *Detector) OverrideSOA(soa float64) { d.soa = soa }

// Detect runs the correlator on the synced block FFT and, on a hit,
// advances the beacon timeline. blockIdx is the pipeline's block counter.
// Pulses missed while tracking was lost are skipped over by estimating the
// elapsed interval count from the sample timeline.
func (d *Detector) Detect(blockIdx int, signalFFT []complex64, signalEnergy float32) (Result, bool) {
	corr := d.corr.Detect(signalFFT, signalEnergy)
	if !corr.Detected {
		return Result{}, false
	}

	d.prevSOA = d.soa
	d.soa = float64(d.stride)*float64(blockIdx) + float64(corr.PeakIdx) + float64(corr.PeakOffset)
	timeStep := (d.soa - d.prevSOA) / d.sampleRate

	if d.index > 0 && timeStep > 1.5*IntervalSec {
		d.index += int32(math.Round(timeStep))
	} else {
		d.index++
	}

	return Result{
		Corr:     corr,
		Index:    d.index,
		SOA:      d.soa,
		TimeStep: timeStep,
	}, true
}
