package source

import (
	"context"
	"time"

	rtl "github.com/jpoirier/gortlsdr"
)

// RTLSource streams from an RTL-SDR dongle via librtlsdr. It is the only
// source that can drive the antenna bias tee.
type RTLSource struct {
	dev     *rtl.Context
	cfg     Config
	ov      *overlap
	raw     []byte
	blk     Block
	stopped bool
}

// OpenRTL opens RTL-SDR device index 0 and configures it for the given
// sample rate, centre frequency and gain.
func OpenRTL(cfg Config) (*RTLSource, error) {
	if rtl.GetDeviceCount() == 0 {
		return nil, &Error{Code: CodeOpen, Op: "open", Err: errNoDevice}
	}
	dev, err := rtl.Open(0)
	if err != nil {
		return nil, &Error{Code: CodeOpen, Op: "open", Err: err}
	}

	if err := dev.SetCenterFreq(int(cfg.CenterFreq)); err != nil {
		dev.Close()
		return nil, &Error{Code: CodeOpen, Op: "set center freq", Err: err}
	}
	if err := dev.SetSampleRate(int(cfg.SampleRate)); err != nil {
		dev.Close()
		return nil, &Error{Code: CodeOpen, Op: "set sample rate", Err: err}
	}
	if cfg.Gain == 0 {
		if err := dev.SetTunerGainMode(false); err != nil {
			dev.Close()
			return nil, &Error{Code: CodeOpen, Op: "set auto gain", Err: err}
		}
	} else {
		if err := dev.SetTunerGainMode(true); err != nil {
			dev.Close()
			return nil, &Error{Code: CodeOpen, Op: "set manual gain", Err: err}
		}
		if err := dev.SetTunerGain(cfg.Gain); err != nil {
			dev.Close()
			return nil, &Error{Code: CodeOpen, Op: "set gain", Err: err}
		}
	}
	if err := dev.ResetBuffer(); err != nil {
		dev.Close()
		return nil, &Error{Code: CodeOpen, Op: "reset buffer", Err: err}
	}

	ov := newOverlap(cfg.BlockLen, cfg.HistoryLen)
	return &RTLSource{
		dev: dev,
		cfg: cfg,
		ov:  ov,
		raw: make([]byte, 2*ov.stride()),
	}, nil
}

func (s *RTLSource) Next(ctx context.Context) (*Block, error) {
	if s.stopped {
		return nil, ErrExhausted
	}
	select {
	case <-ctx.Done():
		s.stopped = true
		return nil, ErrExhausted
	default:
	}

	fresh := s.ov.advance()
	readStart := time.Now()
	filled := 0
	for filled < len(s.raw) {
		n, err := s.dev.ReadSync(s.raw[filled:], len(s.raw)-filled)
		if err != nil {
			s.stopped = true
			return nil, &Error{Code: CodeRead, Op: "read", Err: err}
		}
		if n == 0 {
			s.stopped = true
			return nil, ErrExhausted
		}
		filled += n
	}
	convertIQ(fresh, s.raw)

	s.blk.Samples = s.ov.buf
	stamp(&s.blk, readStart)
	return &s.blk, nil
}

// SetBiasTee switches the dongle's antenna bias tee. Requires the
// rtlsdrblog librtlsdr fork; on stock librtlsdr the call fails and the
// capability degrades to a no-op.
func (s *RTLSource) SetBiasTee(on bool) bool {
	level := 0
	if on {
		level = 1
	}
	if err := s.dev.SetBiasTee(level); err != nil {
		return false
	}
	return true
}

func (s *RTLSource) Close() error {
	s.stopped = true
	return s.dev.Close()
}

type stringError string

func (e stringError) Error() string { return string(e) }

const errNoDevice = stringError("no RTL-SDR devices found")
