package corx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer frames CORX records onto an output stream. A nil sink produces a
// void writer: every operation is a no-op, which lets the pipeline run
// without persisting anything.
type Writer struct {
	w         *bufio.Writer
	sliceSize int
}

// NewWriter wraps out in a buffered CORX writer. Pass nil for a void sink.
func NewWriter(out io.Writer) *Writer {
	if out == nil {
		return &Writer{}
	}
	return &Writer{w: bufio.NewWriter(out)}
}

// Void reports whether the writer discards everything.
func (w *Writer) Void() bool { return w.w == nil }

// WriteFileHeader emits the signature, version byte and file header, and
// fixes the slice size every subsequent cycle block must carry.
func (w *Writer) WriteFileHeader(h FileHeader) error {
	w.sliceSize = int(h.SliceSize)
	if w.Void() {
		return nil
	}
	if _, err := w.w.Write(Magic[:]); err != nil {
		return err
	}
	if err := w.w.WriteByte(Version); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, h)
}

// WriteCycleStart opens a cycle-run with its beacon header.
func (w *Writer) WriteCycleStart(h BeaconHeader) error {
	if w.Void() {
		return nil
	}
	return binary.Write(w.w, binary.LittleEndian, h)
}

// WriteCycleBlock emits one cycle record: the int8 phase-error code and the
// frequency slice. The slice length must match the file header and the
// code must not collide with the stop sentinel.
func (w *Writer) WriteCycleBlock(phaseError int8, data []complex64) error {
	if w.Void() {
		return nil
	}
	if len(data) != w.sliceSize {
		return fmt.Errorf("corx: cycle block has %d samples, file header declares %d",
			len(data), w.sliceSize)
	}
	if phaseError == CycleStopSentinel {
		return fmt.Errorf("corx: phase error code %d is reserved", CycleStopSentinel)
	}
	if err := w.w.WriteByte(byte(phaseError)); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, data)
}

// WriteCycleStop closes the current cycle-run.
func (w *Writer) WriteCycleStop() error {
	if w.Void() {
		return nil
	}
	sentinel := CycleStopSentinel
	return w.w.WriteByte(byte(sentinel))
}

// Flush drains the buffer to the underlying stream.
func (w *Writer) Flush() error {
	if w.Void() {
		return nil
	}
	return w.w.Flush()
}
