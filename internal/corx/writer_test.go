package corx

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriterFileHeaderBytes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteFileHeader(FileHeader{SliceStart: 0x0102, SliceSize: 0x0304}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	want := []byte{'C', 'O', 'R', 'X', 0x01, 0x02, 0x01, 0x04, 0x03}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("header bytes % x, want % x", buf.Bytes(), want)
	}
}

func TestWriterCycleRunFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteFileHeader(FileHeader{SliceStart: 0, SliceSize: 2}); err != nil {
		t.Fatalf("file header: %v", err)
	}
	header := BeaconHeader{
		SOA:              1234.5,
		TimestampSec:     1700000000,
		TimestampMsec:    250,
		BeaconAmplitude:  100,
		BeaconNoise:      10,
		ClockError:       2e-5,
		CarrierPos:       -42.25,
		CarrierAmplitude: 900,
		PreampOn:         1,
	}
	if err := w.WriteCycleStart(header); err != nil {
		t.Fatalf("cycle start: %v", err)
	}
	if err := w.WriteCycleBlock(7, []complex64{1 + 2i, 3 + 4i}); err != nil {
		t.Fatalf("cycle block: %v", err)
	}
	if err := w.WriteCycleStop(); err != nil {
		t.Fatalf("cycle stop: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	data := buf.Bytes()
	// signature+version+file header, then the packed beacon header.
	const headerEnd = 9 + beaconHeaderSize
	if len(data) != headerEnd+1+2*8+1 {
		t.Fatalf("stream length %d", len(data))
	}
	if binary.Size(header) != beaconHeaderSize {
		t.Fatalf("beacon header packs to %d bytes, want %d", binary.Size(header), beaconHeaderSize)
	}
	if data[headerEnd] != 7 {
		t.Fatalf("phase error byte %d, want 7", data[headerEnd])
	}
	if data[len(data)-1] != 0xFF {
		t.Fatalf("missing stop sentinel, last byte %#x", data[len(data)-1])
	}
}

func TestWriterEnforcesSliceSize(t *testing.T) {
	w := NewWriter(&bytes.Buffer{})
	if err := w.WriteFileHeader(FileHeader{SliceSize: 4}); err != nil {
		t.Fatalf("file header: %v", err)
	}
	if err := w.WriteCycleBlock(0, make([]complex64, 3)); err == nil {
		t.Fatal("expected slice size mismatch error")
	}
	if err := w.WriteCycleBlock(CycleStopSentinel, make([]complex64, 4)); err == nil {
		t.Fatal("expected reserved code error")
	}
}

func TestVoidWriter(t *testing.T) {
	w := NewWriter(nil)
	if !w.Void() {
		t.Fatal("writer with nil sink is not void")
	}
	if err := w.WriteFileHeader(FileHeader{SliceSize: 8}); err != nil {
		t.Fatalf("void file header: %v", err)
	}
	if err := w.WriteCycleStart(BeaconHeader{}); err != nil {
		t.Fatalf("void cycle start: %v", err)
	}
	if err := w.WriteCycleBlock(1, make([]complex64, 8)); err != nil {
		t.Fatalf("void cycle block: %v", err)
	}
	if err := w.WriteCycleStop(); err != nil {
		t.Fatalf("void cycle stop: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("void flush: %v", err)
	}
}

func TestReadFileRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteFileHeader(FileHeader{SliceStart: 3, SliceSize: 2}); err != nil {
		t.Fatalf("file header: %v", err)
	}
	if err := w.WriteCycleStart(BeaconHeader{SOA: 100, PreampOn: 1}); err != nil {
		t.Fatalf("cycle start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.WriteCycleBlock(int8(i-1), []complex64{complex(float32(i), 0), 1i}); err != nil {
			t.Fatalf("cycle block %d: %v", i, err)
		}
	}
	if err := w.WriteCycleStop(); err != nil {
		t.Fatalf("cycle stop: %v", err)
	}
	if err := w.WriteCycleStart(BeaconHeader{SOA: 200}); err != nil {
		t.Fatalf("second cycle start: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	f, err := ReadFile(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Header.SliceStart != 3 || f.Header.SliceSize != 2 {
		t.Fatalf("file header %+v", f.Header)
	}
	if len(f.Runs) != 2 {
		t.Fatalf("runs %d, want 2", len(f.Runs))
	}
	first := f.Runs[0]
	if !first.Closed || len(first.Cycles) != 3 || first.Beacon.SOA != 100 {
		t.Fatalf("first run %+v", first)
	}
	for i, c := range first.Cycles {
		if c.PhaseError != int8(i-1) {
			t.Fatalf("cycle %d code %d", i, c.PhaseError)
		}
		if len(c.Slice) != 2 {
			t.Fatalf("cycle %d slice %d samples", i, len(c.Slice))
		}
	}
	second := f.Runs[1]
	if second.Closed || len(second.Cycles) != 0 || second.Beacon.SOA != 200 {
		t.Fatalf("second run %+v", second)
	}
}
