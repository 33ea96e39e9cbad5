package audio

import "errors"

// Error taxonomy. All other anomalies are in-band
// observable state changes (overruns, underruns, Ajb state transitions)
// and never returned as errors.
var (
	ErrInvalidArgument = errors.New("audio: invalid argument")
	ErrOutOfMemory     = errors.New("audio: out of memory")
	ErrTimeout         = errors.New("audio: timeout")
)
