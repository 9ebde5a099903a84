// Package corx frames the receiver output: a CORX stream is a file header
// followed by beacon cycle-runs, each a beacon header, a number of cycle
// blocks, and a one-byte stop sentinel. All integers are little-endian,
// floats are IEEE-754, records are packed with no padding.
package corx

// Magic is the four-byte file signature.
var Magic = [4]byte{'C', 'O', 'R', 'X'}

// Version is the current format version byte.
const Version uint8 = 0x01

// CycleStopSentinel terminates a cycle-run. It is reserved: a real cycle
// block never carries this phase-error code.
const CycleStopSentinel int8 = -128

// FileHeader follows the signature and version byte. SliceStart/SliceSize
// describe the frequency slice each cycle block carries.
type FileHeader struct {
	SliceStart uint16
	SliceSize  uint16
}

// BeaconHeader opens a cycle-run.
type BeaconHeader struct {
	SOA              float64
	TimestampSec     uint64
	TimestampMsec    uint16
	BeaconAmplitude  uint32
	BeaconNoise      uint32
	ClockError       float32
	CarrierPos       float32
	CarrierAmplitude uint32
	PreampOn         uint8
}

// beaconHeaderSize is the packed size of BeaconHeader on the wire.
const beaconHeaderSize = 8 + 8 + 2 + 4 + 4 + 4 + 4 + 4 + 1
