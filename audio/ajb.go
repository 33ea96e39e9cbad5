package audio

import "sync"

// State is the classification Ajb hands back to AuBuf on every Get call.
type State int

const (
	StateGood State = iota
	StateEmpty
	StateLow
	StateHigh
)

func (s State) String() string {
	switch s {
	case StateGood:
		return "GOOD"
	case StateEmpty:
		return "EMPTY"
	case StateLow:
		return "LOW"
	case StateHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// EMA tuning constants. Fixed, part of the contract; never refactor the
// asymmetric jitter EMA into a symmetric filter, it is deliberately so.
const (
	jitterEMACoeff  = 512
	jitterUpSpeed   = 64
	buftimeEMACoeff = 128
	buftimeLo       = 125
	buftimeHi       = 175
)

// Ajb is the adaptive jitter estimator and state machine.
// It tracks an EMA of inter-frame arrival jitter and of buffered duration,
// and classifies the buffer as GOOD, LOW, or HIGH. Ajb never enters
// StateEmpty itself — that classification is reserved for AuBuf to signal
// starvation externally.
type Ajb struct {
	mu sync.Mutex

	clock Clock

	jitterUS    int64
	avbuftimeUS int64
	ts0         uint64
	tr0         uint64
	ptimeUS     uint32
	bufminUS    uint32
	state       State
	started     bool
	silenceDBov float64
}

// NewAjb allocates an Ajb with State GOOD and all numeric fields zero.
func NewAjb(c Clock, silenceDBov float64) *Ajb {
	return &Ajb{
		clock:       c,
		state:       StateGood,
		silenceDBov: silenceDBov,
	}
}

// Reset clears the arrival-timing anchors and returns to StateGood.
// jitterUS and avbuftimeUS are left untouched; they are re-seeded on the
// next Calc.
func (a *Ajb) Reset() {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.ts0 = 0
	a.tr0 = 0
	a.started = false
	a.state = StateGood
	a.mu.Unlock()
}

// Calc is called on every write. It updates the jitter and
// average-buffered-time EMAs and re-classifies the buffer state. A zero
// sample rate aborts with no state change.
func (a *Ajb) Calc(desc Descriptor, curSzBytes int) {
	if a == nil || desc.SampleRate == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tr := nowUS(a.clock)
	ts := desc.TimestampUS

	if a.ts0 == 0 {
		a.ts0 = ts
		a.tr0 = tr
		return
	}

	d := (int64(tr) - int64(a.tr0)) - (int64(ts) - int64(a.ts0))
	da := d
	if da < 0 {
		da = -da
	}

	sampleSize := int64(SampleSize(desc.Format))
	if sampleSize == 0 {
		sampleSize = 1
	}
	denom := int64(desc.SampleRate) * int64(desc.Channels) * sampleSize
	var buftime int64
	if denom > 0 {
		buftime = int64(curSzBytes) * AudioTimebase / denom
	}

	if a.started {
		a.avbuftimeUS += (buftime - a.avbuftimeUS) / buftimeEMACoeff
		if a.avbuftimeUS < 0 {
			a.avbuftimeUS = 0
		}
	} else {
		a.avbuftimeUS = buftime
		a.jitterUS = a.avbuftimeUS * 200 / (buftimeLo + buftimeHi)
		a.started = true
	}

	if a.ptimeUS == 0 {
		a.ts0 = ts
		a.tr0 = tr
		return
	}

	s := int64(1)
	if da > a.jitterUS {
		s = jitterUpSpeed
	}
	a.jitterUS += (da - a.jitterUS) * s / jitterEMACoeff
	if a.jitterUS < 0 {
		a.jitterUS = 0
	}

	bufmin := max(a.jitterUS*buftimeLo/100, int64(a.ptimeUS)*2/3)
	bufmax := max(a.jitterUS*buftimeHi/100, bufmin+7*int64(a.ptimeUS)/6)
	a.bufminUS = uint32(bufmin)

	switch {
	case a.avbuftimeUS < bufmin:
		a.state = StateLow
	case a.avbuftimeUS > bufmax:
		a.state = StateHigh
	default:
		a.state = StateGood
	}

	a.ts0 = ts
	a.tr0 = tr
}

// Drop informs Ajb that desc is being discarded upstream without being
// appended, so the next Calc still sees a coherent inter-arrival gap.
func (a *Ajb) Drop(desc Descriptor) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.ts0 = desc.TimestampUS
	a.mu.Unlock()
}

// Get is called on every read. It returns the classification the caller
// must obey now, and advances avbuftimeUS/state accordingly.
func (a *Ajb) Get(desc Descriptor) State {
	if a == nil || desc.SampleRate == 0 || desc.SampleCount == 0 {
		return StateGood
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.ptimeUS = uint32(int64(desc.SampleCount) * AudioTimebase / int64(desc.SampleRate))

	if a.avbuftimeUS == 0 {
		return StateGood
	}

	// The audibility gate: adaptation only acts during near-silence,
	// unless silence detection is disabled (silenceDBov >= 0), in which
	// case this clause is always false and adaptation is never gated.
	if a.state == StateGood || (a.silenceDBov < 0 && FrameLevelDBov(desc) > a.silenceDBov) {
		return StateGood
	}

	state := a.state
	switch state {
	case StateHigh:
		a.avbuftimeUS -= int64(a.ptimeUS)
		a.state = StateGood
	case StateLow:
		a.avbuftimeUS += int64(a.ptimeUS)
		a.state = StateGood
	}

	return state
}

// Debug returns the current jitter and average buffered time, in
// microseconds, for diagnostics (mirrors the original ajb_debug).
func (a *Ajb) Debug() (jitterUS, avbuftimeUS int64) {
	if a == nil {
		return 0, 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.jitterUS, a.avbuftimeUS
}

