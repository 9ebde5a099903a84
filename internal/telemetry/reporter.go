// Package telemetry publishes receiver progress (beacon detections and
// cycle-run summaries) to log output and, optionally, to a small web hub.
package telemetry

import (
	"time"

	"github.com/sdr-array/corx/internal/logging"
)

// Event summarises one cycle-run.
type Event struct {
	Timestamp        time.Time `json:"timestamp"`
	BeaconIndex      int32     `json:"beaconIndex"`
	SOA              float64   `json:"soa"`
	ClockErrorPPM    float64   `json:"clockErrorPpm"`
	CarrierPos       float64   `json:"carrierPos"`
	CarrierAmplitude float64   `json:"carrierAmplitude"`
	BeaconAmplitude  float64   `json:"beaconAmplitude"`
	PreampOn         bool      `json:"preampOn"`
}

// Reporter consumes telemetry events.
type Reporter interface {
	Report(ev Event)
}

// LogReporter routes events to the structured logger.
type LogReporter struct {
	logger logging.Logger
}

// NewLogReporter builds a reporter backed by logger.
func NewLogReporter(logger logging.Logger) LogReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return LogReporter{logger: logger}
}

func (r LogReporter) Report(ev Event) {
	r.logger.Info("cycle run",
		logging.Field{Key: "subsystem", Value: "telemetry"},
		logging.Field{Key: "beacon", Value: ev.BeaconIndex},
		logging.Field{Key: "soa", Value: ev.SOA},
		logging.Field{Key: "ppm", Value: ev.ClockErrorPPM},
		logging.Field{Key: "carrier_pos", Value: ev.CarrierPos},
		logging.Field{Key: "preamp_on", Value: ev.PreampOn},
	)
}

// MultiReporter fans out telemetry to multiple destinations.
type MultiReporter []Reporter

func (m MultiReporter) Report(ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ev)
		}
	}
}
