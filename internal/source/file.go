package source

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// FileSource reads interleaved unsigned 8-bit IQ samples (the RTL-SDR
// capture format) from a file or stdin.
type FileSource struct {
	cfg     Config
	r       io.Reader
	closer  io.Closer
	ov      *overlap
	raw     []byte
	blk     Block
	stopped bool
}

// OpenFile creates a source reading from path; "-" selects stdin.
func OpenFile(path string, cfg Config) (*FileSource, error) {
	var r io.Reader
	var closer io.Closer
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, &Error{Code: CodeOpen, Op: "open", Err: err}
		}
		r = f
		closer = f
	}
	return NewFileSource(r, closer, cfg), nil
}

// NewFileSource wraps an arbitrary reader of raw IQ bytes. closer may be
// nil.
func NewFileSource(r io.Reader, closer io.Closer, cfg Config) *FileSource {
	ov := newOverlap(cfg.BlockLen, cfg.HistoryLen)
	return &FileSource{
		cfg:    cfg,
		r:      r,
		closer: closer,
		ov:     ov,
		raw:    make([]byte, 2*ov.stride()),
	}
}

func (s *FileSource) Next(ctx context.Context) (*Block, error) {
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
	if _, err := io.ReadFull(s.r, s.raw); err != nil {
		s.stopped = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrExhausted
		}
		return nil, &Error{Code: CodeRead, Op: "read", Err: err}
	}
	convertIQ(fresh, s.raw)

	s.blk.Samples = s.ov.buf
	stamp(&s.blk, readStart)
	return &s.blk, nil
}

func (s *FileSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
