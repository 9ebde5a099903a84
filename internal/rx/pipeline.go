// Package rx drives the per-receiver capture: one cooperative loop pulls
// sample blocks from the source and runs them through carrier tracking,
// beacon detection, cycle extraction and the CORX writer.
package rx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sdr-array/corx/internal/beacon"
	"github.com/sdr-array/corx/internal/carrier"
	"github.com/sdr-array/corx/internal/corx"
	"github.com/sdr-array/corx/internal/dsp"
	"github.com/sdr-array/corx/internal/logging"
	"github.com/sdr-array/corx/internal/source"
	"github.com/sdr-array/corx/internal/telemetry"
)

const (
	// maxCaptureTime is how long to capture after the first beacon, in
	// seconds.
	maxCaptureTime = 10.1
	// preampOffTime extends the capture with the preamp unpowered so the
	// correlation step can reference the receiver's own noise floor.
	preampOffTime = 2.0
	// preampOffSkip discards data while the bias tee settles.
	preampOffSkip = 0.2
	// beaconCarrierTriggerFactor gates the correlator: a beacon pulse keys
	// the reference transmitter away from the CW carrier, so a dip of the
	// carrier amplitude below this fraction of its running average marks
	// blocks worth correlating.
	beaconCarrierTriggerFactor = 0.8
	// maxPhaseError flags cycles whose corrected DC argument exceeds this
	// many turns.
	maxPhaseError = 0.2
)

// Config fixes the pipeline geometry.
type Config struct {
	BlockLen   int
	HistoryLen int
	SampleRate float64

	// CorrSize is the cycle length in samples.
	CorrSize int
	// SkipBeaconPadding is the gap between a beacon SOA and the first
	// cycle, in samples.
	SkipBeaconPadding int
	// WindowStart/WindowLen select the frequency slice written per cycle;
	// WindowLen <= 0 means the full CorrSize.
	WindowStart int
	WindowLen   int
	// BlocksSkip discards this many blocks before searching.
	BlocksSkip int
	// RxID tags diagnostics output.
	RxID int
}

// Stats accumulates run counters, logged at shutdown.
type Stats struct {
	Blocks      int
	Beacons     int
	Cycles      int
	PhaseErrors uint32
}

// Option customises optional pipeline collaborators.
type Option func(*Pipeline)

// WithReporter attaches a telemetry reporter.
func WithReporter(r telemetry.Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithBeaconLog attaches a parquet diagnostics sidecar.
func WithBeaconLog(l *corx.BeaconLog) Option {
	return func(p *Pipeline) { p.beaconLog = l }
}

// Pipeline owns the full receive chain for the duration of a capture.
type Pipeline struct {
	cfg       Config
	src       source.Source
	tracker   *carrier.Tracker
	beacons   *beacon.Detector
	writer    *corx.Writer
	logger    logging.Logger
	reporter  telemetry.Reporter
	beaconLog *corx.BeaconLog

	state     State
	afterSkip State

	blockIdx       int
	blocksSkip     int
	lastBlock      int
	preampOffBlock int

	fftSynced *dsp.FFT
	fftCycle  *dsp.FFT
	syncedFFT []complex64
	cycleBuf  []complex64
	cycleFFT  []complex64
	corrected []complex64

	cycle          int32 // -1 while not emitting cycles
	numCycles      int
	numPhaseErrors uint32
	clockError     float32
	sliceStart     int
	sliceLen       int

	runHeader corx.BeaconHeader
	runCycles int

	stats Stats
}

// New wires a pipeline. The source, tracker, beacon detector and writer
// are owned by the pipeline for its lifetime.
func New(cfg Config, src source.Source, tracker *carrier.Tracker, beacons *beacon.Detector,
	writer *corx.Writer, logger logging.Logger, opts ...Option) *Pipeline {

	if logger == nil {
		logger = logging.Default()
	}
	if cfg.CorrSize == 0 {
		cfg.CorrSize = 1024
	}
	if cfg.SkipBeaconPadding == 0 {
		cfg.SkipBeaconPadding = 6000
	}

	sliceStart := cfg.WindowStart
	if sliceStart < 0 {
		sliceStart = 0
	}
	if sliceStart > cfg.CorrSize {
		sliceStart = cfg.CorrSize
	}
	sliceLen := cfg.CorrSize
	if cfg.WindowLen > 0 && cfg.WindowLen < cfg.CorrSize {
		sliceLen = cfg.WindowLen
	}
	if sliceStart+sliceLen > cfg.CorrSize {
		sliceLen = cfg.CorrSize - sliceStart
	}

	p := &Pipeline{
		cfg:        cfg,
		src:        src,
		tracker:    tracker,
		beacons:    beacons,
		writer:     writer,
		logger:     logger,
		fftSynced:  dsp.NewFFT(cfg.BlockLen),
		fftCycle:   dsp.NewFFT(cfg.CorrSize),
		syncedFFT:  make([]complex64, cfg.BlockLen),
		cycleBuf:   make([]complex64, cfg.CorrSize),
		cycleFFT:   make([]complex64, cfg.CorrSize),
		corrected:  make([]complex64, cfg.CorrSize),
		cycle:      -1,
		numCycles:  (int(cfg.SampleRate) - 2*cfg.SkipBeaconPadding) / cfg.CorrSize,
		sliceStart: sliceStart,
		sliceLen:   sliceLen,
		blocksSkip: cfg.BlocksSkip,
	}
	for _, o := range opts {
		o(p)
	}
	p.state = StateSearch
	p.afterSkip = StateSearch
	if p.blocksSkip > 0 {
		p.state = StateSkip
	}
	return p
}

// State returns the controller state, for tests and diagnostics.
func (p *Pipeline) State() State { return p.state }

// Stats returns the accumulated run counters.
func (p *Pipeline) Stats() Stats { return p.stats }

// stride is the number of fresh samples per block.
func (p *Pipeline) stride() int { return p.cfg.BlockLen - p.cfg.HistoryLen }

// blocksFor converts a duration in seconds to a block count.
func (p *Pipeline) blocksFor(seconds float64) int {
	return int(seconds * p.cfg.SampleRate / float64(p.stride()))
}

// Run executes the capture until the source is exhausted, the capture
// window ends, or the context is cancelled. The output always terminates
// with a cycle-stop or on a clean cycle boundary.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.writer.WriteFileHeader(corx.FileHeader{
		SliceStart: uint16(p.sliceStart),
		SliceSize:  uint16(p.sliceLen),
	}); err != nil {
		return fmt.Errorf("write file header: %w", err)
	}

	if source.SetBiasTee(p.src, true) {
		p.logger.Info("enabled bias tee")
	}

	for p.state != StateStop {
		blk, err := p.src.Next(ctx)
		if errors.Is(err, source.ErrExhausted) {
			p.stop("source exhausted")
			break
		}
		if err != nil {
			p.stop("source error")
			_ = p.writer.Flush()
			return err
		}

		p.blockIdx++
		p.stats.Blocks++

		if err := p.step(blk); err != nil {
			p.stop("write error")
			_ = p.writer.Flush()
			return err
		}

		if p.preampOffBlock > 0 && p.blockIdx == p.preampOffBlock {
			if err := p.switchPreampOff(); err != nil {
				p.stop("write error")
				_ = p.writer.Flush()
				return err
			}
		}
		if p.lastBlock > 0 && p.blockIdx == p.lastBlock {
			p.stop("capture complete")
		}
	}
	return p.writer.Flush()
}

// step dispatches one block according to the controller state.
func (p *Pipeline) step(blk *source.Block) error {
	switch p.state {
	case StateSkip:
		p.blocksSkip--
		if p.blocksSkip <= 0 {
			p.state = p.afterSkip
		}
		return nil
	case StateSearch, StateCaptureOn:
		return p.stepTracked(blk)
	case StateCaptureOff:
		return p.stepNoiseCapture(blk)
	default:
		return nil
	}
}

// stepTracked runs the carrier loop and, when idle between cycle-runs,
// looks for a beacon pulse.
func (p *Pipeline) stepTracked(blk *source.Block) error {
	wasAcquired := p.tracker.Acquired()
	synced, ok := p.tracker.Feed(blk.Samples)
	if !ok {
		if wasAcquired {
			p.logger.Info("tracking loop failed", logging.Field{Key: "block", Value: p.blockIdx})
		} else {
			p.logger.Debug("no carrier detected", logging.Field{Key: "block", Value: p.blockIdx})
		}
		return nil
	}
	st := p.tracker.State()
	if !wasAcquired {
		p.logger.Info("detected carrier",
			logging.Field{Key: "block", Value: p.blockIdx},
			logging.Field{Key: "pos_bins", Value: st.PosBins})
	}

	if p.cycle == -1 && st.DCAmpl < st.AvgDCAmpl*beaconCarrierTriggerFactor {
		if err := p.searchBeacon(blk, synced); err != nil {
			return err
		}
	}

	if p.cycle >= 0 {
		return p.extractCycles(synced)
	}
	return nil
}

// searchBeacon correlates the synced block against the template and opens
// a cycle-run on a hit.
func (p *Pipeline) searchBeacon(blk *source.Block, synced []complex64) error {
	p.fftSynced.Transform(p.syncedFFT, synced)

	// The correlator's signal-energy input is fixed to zero; the original
	// receiver never computed it.
	res, hit := p.beacons.Detect(p.blockIdx, p.syncedFFT, 0)
	if !hit {
		return nil
	}

	st := p.tracker.State()
	p.clockError = p.tracker.ClockError()
	p.cycle = 0
	p.numPhaseErrors = 0
	p.stats.Beacons++

	p.logger.Info("beacon detected",
		logging.Field{Key: "beacon", Value: res.Index},
		logging.Field{Key: "soa", Value: res.SOA},
		logging.Field{Key: "time_step", Value: res.TimeStep},
		logging.Field{Key: "ppm", Value: p.clockError * 1e6})

	if res.Index == 0 {
		p.lastBlock = p.blocksFor(maxCaptureTime+preampOffTime) + p.blockIdx
		p.preampOffBlock = p.blocksFor(maxCaptureTime) + p.blockIdx
		p.state = StateCaptureOn
		p.logger.Info("found first beacon",
			logging.Field{Key: "block", Value: p.blockIdx},
			logging.Field{Key: "stop_block", Value: p.lastBlock},
			logging.Field{Key: "preamp_off_block", Value: p.preampOffBlock})
	}

	header := corx.BeaconHeader{
		SOA:              res.SOA,
		TimestampSec:     uint64(blk.Sec),
		TimestampMsec:    uint16(blk.Micro / 1000),
		BeaconAmplitude:  uint32(math.Sqrt(float64(res.Corr.PeakPower))),
		BeaconNoise:      uint32(math.Sqrt(float64(res.Corr.NoisePower))),
		ClockError:       p.clockError,
		CarrierPos:       st.PosBins,
		CarrierAmplitude: uint32(st.DCAmpl),
		PreampOn:         1,
	}
	return p.openRun(header, res.Index)
}

// stepNoiseCapture continues with the last known carrier position after
// the preamp has been switched off: no re-acquisition, no beacon search,
// one synthetic cycle-run per beacon interval.
func (p *Pipeline) stepNoiseCapture(blk *source.Block) error {
	synced := p.tracker.Shift(blk.Samples)

	if p.cycle == -1 {
		// The synthetic timeline has no beacon to anchor to; it is pinned
		// to the block grid without padding for compatibility with the
		// established on-disk layout.
		soa := float64(p.stride()) * float64(p.blockIdx)
		p.beacons.OverrideSOA(soa)
		p.cycle = 0
		p.numPhaseErrors = 0
		p.logger.Info("capture noise: next cycle run", logging.Field{Key: "block", Value: p.blockIdx})

		st := p.tracker.State()
		header := corx.BeaconHeader{
			SOA:           soa,
			TimestampSec:  uint64(blk.Sec),
			TimestampMsec: uint16(blk.Micro / 1000),
			ClockError:    p.clockError,
			CarrierPos:    st.PosBins,
			PreampOn:      0,
		}
		if err := p.openRun(header, p.beacons.Index()); err != nil {
			return err
		}
	}

	return p.extractCycles(synced)
}

// openRun writes the cycle-run header and mirrors it to telemetry.
func (p *Pipeline) openRun(header corx.BeaconHeader, index int32) error {
	p.runHeader = header
	p.runCycles = 0
	if err := p.writer.WriteCycleStart(header); err != nil {
		return fmt.Errorf("write cycle start: %w", err)
	}
	if p.reporter != nil {
		p.reporter.Report(telemetry.Event{
			Timestamp:        time.Unix(int64(header.TimestampSec), int64(header.TimestampMsec)*1e6),
			BeaconIndex:      index,
			SOA:              header.SOA,
			ClockErrorPPM:    float64(header.ClockError) * 1e6,
			CarrierPos:       float64(header.CarrierPos),
			CarrierAmplitude: float64(header.CarrierAmplitude),
			BeaconAmplitude:  float64(header.BeaconAmplitude),
			PreampOn:         header.PreampOn != 0,
		})
	}
	return nil
}

// extractCycles slices the synced block into cycles, corrects each in the
// frequency domain and writes the configured slice. A cycle straddling the
// block boundary is deferred to the next block.
func (p *Pipeline) extractCycles(synced []complex64) error {
	st := p.tracker.State()
	soa := p.beacons.SOA()

	for ; int(p.cycle) < p.numCycles; p.cycle++ {
		start := soa +
			float64(p.cfg.SkipBeaconPadding+int(p.cycle)*p.cfg.CorrSize)*(1-float64(p.clockError)) -
			float64(p.blockIdx*p.stride())
		startIdx := int(math.Round(start))

		if startIdx+p.cfg.CorrSize > p.cfg.BlockLen {
			// Resume this cycle when the next block arrives.
			break
		}
		if startIdx < 0 {
			p.logger.Warn("cycle start behind block window",
				logging.Field{Key: "cycle", Value: p.cycle},
				logging.Field{Key: "start", Value: startIdx})
			continue
		}

		copy(p.cycleBuf, synced[startIdx:startIdx+p.cfg.CorrSize])
		p.fftCycle.Transform(p.cycleFFT, p.cycleBuf)

		carrierOffset := -int(math.Round(float64(st.PosBins) * float64(p.cfg.CorrSize) / float64(p.cfg.BlockLen)))
		dsp.FFTShift(p.corrected, p.cycleFFT,
			float32(start-float64(startIdx)),
			-dsp.DeciAngle(st.AvgDCAngle),
			carrierOffset)

		phaseErr := dsp.NormalizeAngle(dsp.DeciAngle(
			math.Atan2(float64(imag(p.corrected[0])), float64(real(p.corrected[0]))) / (2 * math.Pi)))
		if math.Abs(float64(phaseErr)) > maxPhaseError {
			p.numPhaseErrors++
		}
		code := quantizePhaseError(phaseErr)

		if err := p.writer.WriteCycleBlock(code, p.corrected[p.sliceStart:p.sliceStart+p.sliceLen]); err != nil {
			return fmt.Errorf("write cycle block: %w", err)
		}
		p.stats.Cycles++
		p.runCycles++
	}

	if int(p.cycle) >= p.numCycles {
		return p.closeRun()
	}
	return nil
}

// closeRun terminates the current cycle-run and flushes diagnostics.
func (p *Pipeline) closeRun() error {
	p.cycle = -1
	if err := p.writer.WriteCycleStop(); err != nil {
		return fmt.Errorf("write cycle stop: %w", err)
	}
	if p.numPhaseErrors > 0 {
		p.logger.Warn("large phase errors in cycle run",
			logging.Field{Key: "beacon", Value: p.beacons.Index()},
			logging.Field{Key: "errors", Value: p.numPhaseErrors},
			logging.Field{Key: "cycles", Value: p.numCycles})
		p.stats.PhaseErrors += p.numPhaseErrors
	}
	if p.beaconLog != nil {
		rec := corx.BeaconRecord{
			RxID:             int32(p.cfg.RxID),
			BeaconIndex:      p.beacons.Index(),
			SOA:              p.runHeader.SOA,
			TimestampSec:     int64(p.runHeader.TimestampSec),
			ClockErrorPPM:    float64(p.runHeader.ClockError) * 1e6,
			CarrierPos:       float64(p.runHeader.CarrierPos),
			CarrierAmplitude: float64(p.runHeader.CarrierAmplitude),
			BeaconAmplitude:  float64(p.runHeader.BeaconAmplitude),
			BeaconNoise:      float64(p.runHeader.BeaconNoise),
			PreampOn:         p.runHeader.PreampOn != 0,
			Cycles:           int32(p.runCycles),
			PhaseErrors:      int32(p.numPhaseErrors),
		}
		if err := p.beaconLog.Append(rec); err != nil {
			p.logger.Warn("beacon log append", logging.Field{Key: "err", Value: err})
		}
	}
	return nil
}

// switchPreampOff closes any open run, powers the bias tee down and skips
// data while it settles.
func (p *Pipeline) switchPreampOff() error {
	p.logger.Info("switching off preamp", logging.Field{Key: "block", Value: p.blockIdx})
	p.state = StatePreampSwitch

	if p.cycle >= 0 {
		if err := p.closeRun(); err != nil {
			return err
		}
	}

	if source.SetBiasTee(p.src, false) {
		p.logger.Info("disabled bias tee")
	}

	p.blocksSkip = p.blocksFor(preampOffSkip)
	p.afterSkip = StateCaptureOff
	if p.blocksSkip > 0 {
		p.state = StateSkip
	} else {
		p.state = StateCaptureOff
	}
	p.logger.Info("skipping blocks", logging.Field{Key: "blocks", Value: p.blocksSkip})
	return nil
}

// stop closes any open cycle-run and logs the run counters.
func (p *Pipeline) stop(reason string) {
	if p.cycle >= 0 {
		if err := p.closeRun(); err != nil {
			p.logger.Error("close cycle run", logging.Field{Key: "err", Value: err})
		}
	}
	p.state = StateStop
	p.logger.Info("pipeline stopped",
		logging.Field{Key: "reason", Value: reason},
		logging.Field{Key: "blocks", Value: p.stats.Blocks},
		logging.Field{Key: "beacons", Value: p.stats.Beacons},
		logging.Field{Key: "cycles", Value: p.stats.Cycles},
		logging.Field{Key: "phase_errors", Value: p.stats.PhaseErrors})
}

// quantizePhaseError maps a phase error in turns to the int8 code written
// per cycle. The stop sentinel -128 is never produced.
func quantizePhaseError(err dsp.DeciAngle) int8 {
	v := math.Round(float64(err) * 254)
	if v > 127 {
		v = 127
	}
	if v < -127 {
		v = -127
	}
	return int8(v)
}
