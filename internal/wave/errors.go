package wave

import "errors"

var (
	// ErrIndeterminateLevel is returned when a sample lies inside the threshold band
	ErrIndeterminateLevel = errors.New("indeterminate level")
	// ErrPositionOutOfRange is returned for search origins or lookups outside the capture
	ErrPositionOutOfRange = errors.New("position out of range")
	// ErrInvalidStartType is returned for a search origin that is not a position, Point or LevelEntry
	ErrInvalidStartType = errors.New("find pulse: start must be a position, Point or LevelEntry")
	// ErrPulseNotFound is returned by strict pulse searches that exhaust the level sequence
	ErrPulseNotFound = errors.New("pulse not found")
	// ErrNoSamples is returned when a capture has no sample lines
	ErrNoSamples = errors.New("capture contains no samples")
	// ErrBadSamplingRate is returned when the Sampling Rate header cannot be interpreted
	ErrBadSamplingRate = errors.New("unrecognised sampling rate")
)
