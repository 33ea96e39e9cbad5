package audio

import "math"

// AudioTimebase is the unit all timestamps in this package are expressed
// in: microseconds.
const AudioTimebase = 1_000_000

// Format identifies the sample encoding of a Descriptor's PCM payload.
// Format 0 (FormatUnknown) is tolerated with a byte-granular
// interpretation.
type Format int

const (
	FormatUnknown Format = iota
	FormatS16
	FormatF32
)

// SampleSize returns the number of bytes occupied by one sample in the
// given format, or 0 for FormatUnknown.
func SampleSize(f Format) int {
	switch f {
	case FormatS16:
		return 2
	case FormatF32:
		return 4
	default:
		return 0
	}
}

// LevelUndef marks a Descriptor whose LevelDBov has not been computed yet.
var LevelUndef = math.NaN()

// Descriptor is the writer/reader-facing audio frame descriptor. It is a
// passive record: ownership and lifecycle of the underlying sample bytes
// are the caller's responsibility, not this package's.
type Descriptor struct {
	Format      Format
	SampleRate  uint32
	Channels    uint8
	SamplePtr   []byte
	SampleCount int
	TimestampUS uint64
	LevelDBov   float64
}

// Size returns the byte size of the descriptor's payload: SampleCount
// times the format's sample size and channel count, or SampleCount bytes
// verbatim when the format is unknown. This documents the byte-count
// fallback rather than rejecting unknown formats outright.
func (d Descriptor) Size() int {
	sz := SampleSize(d.Format)
	if sz == 0 {
		return d.SampleCount
	}
	return d.SampleCount * sz * int(d.Channels)
}

// FrameLevelDBov returns the audio level of the descriptor's payload in
// dBov (decibels relative to overload). A LevelDBov that is already set
// (not LevelUndef) is returned as is; otherwise the level is computed from
// the PCM samples on every call and not stored (callers that need caching
// should snapshot LevelDBov themselves, matching the passive-record
// contract). A silent/empty payload, or an unknown format, reports -120.
func FrameLevelDBov(d Descriptor) float64 {
	if !math.IsNaN(d.LevelDBov) {
		return d.LevelDBov
	}

	switch d.Format {
	case FormatS16:
		return dbovS16(d.SamplePtr)
	case FormatF32:
		return dbovF32(d.SamplePtr)
	default:
		return -120
	}
}

func dbovS16(b []byte) float64 {
	n := len(b) / 2
	if n == 0 {
		return -120
	}
	var sumSq float64
	for i := 0; i < n; i++ {
		v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		f := float64(v) / 32768.0
		sumSq += f * f
	}
	rms := math.Sqrt(sumSq / float64(n))
	if rms <= 0 {
		return -120
	}
	return 20 * math.Log10(rms)
}

func dbovF32(b []byte) float64 {
	n := len(b) / 4
	if n == 0 {
		return -120
	}
	var sumSq float64
	for i := 0; i < n; i++ {
		bits := uint32(b[4*i]) | uint32(b[4*i+1])<<8 | uint32(b[4*i+2])<<16 | uint32(b[4*i+3])<<24
		f := float64(math.Float32frombits(bits))
		sumSq += f * f
	}
	rms := math.Sqrt(sumSq / float64(n))
	if rms <= 0 {
		return -120
	}
	return 20 * math.Log10(rms)
}
