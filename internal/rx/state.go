package rx

// State enumerates the pipeline phases. The controller moves strictly
// forward through skip -> search -> capture-on -> preamp-switch ->
// (skip) -> capture-off -> stop, except that search and capture-on share
// the tracking path and re-acquisition can happen inside either.
type State int

const (
	// StateSkip discards blocks, then resumes at afterSkip.
	StateSkip State = iota
	// StateSearch tracks the carrier and waits for the first beacon.
	StateSearch
	// StateCaptureOn extracts cycles with the preamp powered.
	StateCaptureOn
	// StatePreampSwitch closes the open run and powers the preamp down.
	StatePreampSwitch
	// StateCaptureOff extracts noise-reference cycles, preamp unpowered.
	StateCaptureOff
	// StateStop terminates the pipeline.
	StateStop
)

func (s State) String() string {
	switch s {
	case StateSkip:
		return "skip"
	case StateSearch:
		return "search"
	case StateCaptureOn:
		return "capture_on"
	case StatePreampSwitch:
		return "preamp_switch"
	case StateCaptureOff:
		return "capture_off"
	case StateStop:
		return "stop"
	default:
		return "unknown"
	}
}
