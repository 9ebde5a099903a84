package source

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// SimConfig controls the simulated receiver front-end.
type SimConfig struct {
	Config

	// ToneBins places the carrier at this (possibly fractional) FFT bin of
	// a BlockLen transform. Negative values are below the centre frequency.
	ToneBins float64
	// ToneAmpl is the carrier amplitude.
	ToneAmpl float64
	// NoiseStddev is the per-component Gaussian noise level.
	NoiseStddev float64

	// Template is the beacon pulse waveform. Empty disables the beacon.
	Template []float32
	// BeaconStart is the global sample index of the first pulse.
	BeaconStart int
	// BeaconInterval is the pulse spacing in samples; 0 defaults to one
	// second of samples.
	BeaconInterval int
	// BeaconSuppress scales the carrier during a pulse: the reference
	// transmitter keys the beacon instead of the CW tone, so the carrier
	// drops while the pulse is on the air. 0 removes the carrier entirely.
	BeaconSuppress float64
	// BlankLen is how many samples the carrier stays keyed down from the
	// pulse start. Defaults to the template length; longer values model a
	// transmitter that mutes the CW tone around the pulse.
	BlankLen int

	// NumBlocks bounds the stream; 0 means unlimited.
	NumBlocks int
	// PhaseJumpBlock, if > 0, rotates the carrier by PhaseJumpTurns from
	// the start of that block's fresh samples onward. Used to exercise
	// tracking loss.
	PhaseJumpBlock int
	PhaseJumpTurns float64

	Seed int64
}

// SimSource synthesizes a carrier tone plus periodic beacon pulses. It is
// deterministic for a given seed, which makes it usable both as the "sim"
// input of the CLI and as the workhorse of the end-to-end tests.
type SimSource struct {
	cfg    SimConfig
	ov     *overlap
	rng    *rand.Rand
	global int // index of the next fresh sample
	blocks int
	phase  float64 // extra carrier phase in turns
	base   time.Time
	blk    Block
	done   bool
}

// NewSim builds a simulated source.
func NewSim(cfg SimConfig) *SimSource {
	if cfg.BeaconInterval == 0 {
		cfg.BeaconInterval = int(cfg.SampleRate)
	}
	if cfg.BlankLen < len(cfg.Template) {
		cfg.BlankLen = len(cfg.Template)
	}
	if cfg.ToneAmpl == 0 {
		cfg.ToneAmpl = 1
	}
	return &SimSource{
		cfg:  cfg,
		ov:   newOverlap(cfg.BlockLen, cfg.HistoryLen),
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		base: time.Now(),
	}
}

func (s *SimSource) Next(ctx context.Context) (*Block, error) {
	if s.done || (s.cfg.NumBlocks > 0 && s.blocks >= s.cfg.NumBlocks) {
		return nil, ErrExhausted
	}
	select {
	case <-ctx.Done():
		s.done = true
		return nil, ErrExhausted
	default:
	}

	s.blocks++
	if s.cfg.PhaseJumpBlock > 0 && s.blocks == s.cfg.PhaseJumpBlock {
		s.phase += s.cfg.PhaseJumpTurns
	}

	fresh := s.ov.advance()
	first := s.global
	for i := range fresh {
		fresh[i] = s.sample(s.global + i)
	}
	s.global += len(fresh)

	s.blk.Samples = s.ov.buf
	elapsed := time.Duration(float64(first) / s.cfg.SampleRate * float64(time.Second))
	stamp(&s.blk, s.base.Add(elapsed))
	return &s.blk, nil
}

// sample synthesizes the fresh sample at global index n.
func (s *SimSource) sample(n int) complex64 {
	carrierPhase := s.cfg.ToneBins*float64(n)/float64(s.cfg.BlockLen) + s.phase
	carrier := expj128(carrierPhase)

	ampl := s.cfg.ToneAmpl
	if k, on := s.beaconChip(n); on {
		// The pulse amplitude-modulates the carrier while the CW level is
		// keyed down.
		ampl = s.cfg.ToneAmpl * s.cfg.BeaconSuppress
		if k < len(s.cfg.Template) {
			ampl += float64(s.cfg.Template[k])
		}
	}

	v := complex(ampl, 0) * carrier
	if s.cfg.NoiseStddev > 0 {
		v += complex(s.rng.NormFloat64()*s.cfg.NoiseStddev,
			s.rng.NormFloat64()*s.cfg.NoiseStddev)
	}
	return complex64(v)
}

// beaconChip reports whether global sample n falls inside a beacon pulse's
// blanked span and at which offset from the pulse start.
func (s *SimSource) beaconChip(n int) (int, bool) {
	if len(s.cfg.Template) == 0 || n < s.cfg.BeaconStart {
		return 0, false
	}
	k := (n - s.cfg.BeaconStart) % s.cfg.BeaconInterval
	if k < s.cfg.BlankLen {
		return k, true
	}
	return 0, false
}

func (s *SimSource) Close() error {
	s.done = true
	return nil
}

func expj128(turns float64) complex128 {
	sin, cos := math.Sincos(2 * math.Pi * turns)
	return complex(cos, sin)
}
