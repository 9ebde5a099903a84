package corx

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Cycle is one decoded cycle block.
type Cycle struct {
	PhaseError int8
	Slice      []complex64
}

// Run is one decoded cycle-run. Closed reports whether the stop sentinel
// was present; an interrupted capture may leave the final run open.
type Run struct {
	Beacon BeaconHeader
	Cycles []Cycle
	Closed bool
}

// File is a fully decoded CORX stream.
type File struct {
	Header FileHeader
	Runs   []Run
}

// ReadFile decodes a complete CORX stream. It is intended for inspection
// tooling and tests, not for the capture path.
func ReadFile(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("corx: read signature: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("corx: bad signature %q", magic[:])
	}
	version, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("corx: read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("corx: unsupported version %#x", version)
	}

	f := &File{}
	if err := binary.Read(br, binary.LittleEndian, &f.Header); err != nil {
		return nil, fmt.Errorf("corx: read file header: %w", err)
	}

	for {
		run, err := readRun(br, int(f.Header.SliceSize))
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return nil, err
		}
		f.Runs = append(f.Runs, *run)
		if !run.Closed {
			return f, nil
		}
	}
}

func readRun(br *bufio.Reader, sliceSize int) (*Run, error) {
	run := &Run{}
	if err := binary.Read(br, binary.LittleEndian, &run.Beacon); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("corx: read beacon header: %w", err)
	}

	for {
		code, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			// Interrupted before the stop sentinel.
			return run, nil
		}
		if err != nil {
			return nil, fmt.Errorf("corx: read cycle code: %w", err)
		}
		if int8(code) == CycleStopSentinel {
			run.Closed = true
			return run, nil
		}

		slice := make([]complex64, sliceSize)
		if err := binary.Read(br, binary.LittleEndian, slice); err != nil {
			return nil, fmt.Errorf("corx: read cycle slice: %w", err)
		}
		run.Cycles = append(run.Cycles, Cycle{PhaseError: int8(code), Slice: slice})
	}
}
