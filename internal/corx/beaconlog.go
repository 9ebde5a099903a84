package corx

import (
	"fmt"
	"io"

	"github.com/segmentio/parquet-go"
)

// BeaconRecord is one diagnostics row per cycle-run, written to an
// optional parquet sidecar so a capture can be sanity-checked without
// parsing the CORX stream itself.
type BeaconRecord struct {
	RxID             int32   `parquet:"rx_id"`
	BeaconIndex      int32   `parquet:"beacon_index"`
	SOA              float64 `parquet:"soa"`
	TimestampSec     int64   `parquet:"timestamp_sec"`
	ClockErrorPPM    float64 `parquet:"clock_error_ppm"`
	CarrierPos       float64 `parquet:"carrier_pos"`
	CarrierAmplitude float64 `parquet:"carrier_amplitude"`
	BeaconAmplitude  float64 `parquet:"beacon_amplitude"`
	BeaconNoise      float64 `parquet:"beacon_noise"`
	PreampOn         bool    `parquet:"preamp_on"`
	Cycles           int32   `parquet:"cycles"`
	PhaseErrors      int32   `parquet:"phase_errors"`
}

// BeaconLog appends BeaconRecord rows to a parquet stream.
type BeaconLog struct {
	writer *parquet.GenericWriter[BeaconRecord]
	closer io.Closer
}

// NewBeaconLog builds a diagnostics log writing to w. closer may be nil.
func NewBeaconLog(w io.Writer, closer io.Closer, rxID int32) *BeaconLog {
	return &BeaconLog{
		writer: parquet.NewGenericWriter[BeaconRecord](w,
			parquet.KeyValueMetadata("rx_id", fmt.Sprintf("%d", rxID)),
		),
		closer: closer,
	}
}

// Append writes one row.
func (l *BeaconLog) Append(rec BeaconRecord) error {
	_, err := l.writer.Write([]BeaconRecord{rec})
	return err
}

// Close flushes the parquet footer and closes the underlying file.
func (l *BeaconLog) Close() error {
	if err := l.writer.Close(); err != nil {
		if l.closer != nil {
			l.closer.Close()
		}
		return err
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
