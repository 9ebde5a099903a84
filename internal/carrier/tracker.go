package carrier

import (
	"math"

	"github.com/sdr-array/corx/internal/dsp"
)

const (
	// Tracking is abandoned when the carrier phase moves by more than this
	// many degrees between consecutive blocks.
	maxTrackingAngleDiffDeg = 50.0
	// First-order loop gain applied to the per-block phase difference.
	trackingAngleDiffFactor = 0.2
	// Exponential smoothing weight for the DC angle and amplitude averages.
	avgWeight = 0.1
)

// State is the tracker's observable state after a Feed call.
type State struct {
	Acquired    bool
	PosBins     float32 // carrier position, signed FFT bins in (-N/2, N/2]
	SamplePhase dsp.DeciAngle
	DCAngle     dsp.DeciAngle
	PrevDCAngle dsp.DeciAngle
	DCAmpl      float32
	AvgDCAngle  float32
	AvgDCAmpl   float32
}

// Config carries the geometry and tuner parameters the tracker needs.
type Config struct {
	BlockLen   int
	HistoryLen int
	SampleRate float64
	// CarrierRef is the nominal carrier offset from the tuner centre in Hz,
	// used as the reference for the clock-error estimate.
	CarrierRef float64
	// SDRFreq is the tuner centre frequency in Hz.
	SDRFreq float64
}

// Tracker acquires the carrier via a PreDetector and then tracks it with a
// first-order phase loop, emitting a baseband-shifted copy of every block
// while locked.
type Tracker struct {
	cfg    Config
	det    PreDetector
	st     State
	synced []complex64
}

// NewTracker builds a tracker that consults det whenever it is not locked.
func NewTracker(cfg Config, det PreDetector) *Tracker {
	return &Tracker{
		cfg:    cfg,
		det:    det,
		synced: make([]complex64, cfg.BlockLen),
	}
}

// Acquired reports whether the tracker currently holds carrier lock.
func (t *Tracker) Acquired() bool { return t.st.Acquired }

// State returns a copy of the tracker state.
func (t *Tracker) State() State { return t.st }

// ClockError estimates the receiver clock offset from the tracked carrier
// position, assuming the downconverter and ADC share a coherent local
// oscillator. The result is a fraction (multiply by 1e6 for ppm).
func (t *Tracker) ClockError() float32 {
	return float32((float64(t.st.PosBins)*t.cfg.SampleRate/float64(t.cfg.BlockLen) -
		t.cfg.CarrierRef) / t.cfg.SDRFreq)
}

// Feed consumes one raw block. While locked it returns the baseband-shifted
// block and refines the carrier estimate; when unlocked it attempts
// acquisition first. ok is false when no carrier could be recovered, which
// is a normal condition rather than an error.
func (t *Tracker) Feed(samples []complex64) (synced []complex64, ok bool) {
	if t.st.Acquired {
		t.shiftAndMeasure(samples)

		angleDiff := dsp.NormalizeAngle(t.st.DCAngle - t.st.PrevDCAngle)
		if math.Abs(float64(angleDiff))*360 > maxTrackingAngleDiffDeg {
			t.st.Acquired = false
		} else {
			t.st.PosBins += float32(angleDiff) * trackingAngleDiffFactor
		}
	}

	if !t.st.Acquired {
		if !t.acquire(samples) {
			return nil, false
		}
	}

	t.advancePhase()
	t.st.AvgDCAngle = float32(t.st.DCAngle)*avgWeight + t.st.AvgDCAngle*(1-avgWeight)
	t.st.AvgDCAmpl = t.st.DCAmpl*avgWeight + t.st.AvgDCAmpl*(1-avgWeight)
	return t.synced, true
}

// Shift produces a baseband-shifted copy of the block using the current
// carrier estimate without touching any tracker state. Used after the
// preamp is switched off, when the loop keeps the last known carrier
// position instead of re-acquiring.
func (t *Tracker) Shift(samples []complex64) []complex64 {
	dsp.FreqShift(t.synced, samples, -t.st.PosBins, t.st.SamplePhase)
	return t.synced
}

// acquire runs the pre-detector and initialises the carrier estimate from
// the reported peak.
func (t *Tracker) acquire(samples []complex64) bool {
	det := t.det.Process(samples)
	if !det.Detected {
		return false
	}

	n := len(det.Power)
	offset := dsp.InterpolateParabolic(
		det.Power[(det.Argmax-1+n)%n],
		det.Power[det.Argmax],
		det.Power[(det.Argmax+1)%n],
	)
	pos := float32(det.Argmax) + offset
	if pos > float32(t.cfg.BlockLen)/2 {
		pos -= float32(t.cfg.BlockLen)
	}
	t.st.PosBins = pos
	t.st.Acquired = true

	t.shiftAndMeasure(samples)
	return true
}

// shiftAndMeasure produces the synced block for the current estimate and
// refreshes the DC measurements.
func (t *Tracker) shiftAndMeasure(samples []complex64) {
	dsp.FreqShift(t.synced, samples, -t.st.PosBins, t.st.SamplePhase)

	t.st.PrevDCAngle = t.st.DCAngle
	dc := dsp.CalculateDC(t.synced)
	t.st.DCAmpl = float32(math.Hypot(float64(real(dc)), float64(imag(dc))))
	t.st.DCAngle = dsp.NormalizeAngle(dsp.DeciAngle(
		math.Atan2(float64(imag(dc)), float64(real(dc))) / (2 * math.Pi)))
}

// advancePhase keeps the oscillator phase continuous across the block
// boundary: the next block starts block_len - history_len samples later.
func (t *Tracker) advancePhase() {
	t.st.SamplePhase = dsp.NormalizeAngle(t.st.SamplePhase -
		dsp.DeciAngle(t.st.PosBins*(1-float32(t.cfg.HistoryLen)/float32(t.cfg.BlockLen))))
}
