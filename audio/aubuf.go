package audio

import (
	"fmt"
	"sort"
	"sync"
)

// Mode selects whether AuBuf consults an Ajb while reading.
type Mode int

const (
	ModeFixed Mode = iota
	ModeAdaptive
)

// AuBuf is the frame-structured audio buffer. It owns a
// pool of reusable Frame slots (PFL), keeps an active sorted list (AFL)
// of slots carrying undelivered PCM, enforces wish/max size bounds, and
// consults an optional, lazily-created Ajb while reading.
type AuBuf struct {
	mu sync.RWMutex

	clock Clock

	pool             []*frame
	aflHead, aflTail int

	wishSz, maxSz, curSz uint

	filling bool
	started bool
	ts      int64 // read_timed cadence cursor, in milliseconds

	mode        Mode
	silenceDBov float64
	ajb         *Ajb

	lastFormat     Format
	lastSampleRate uint32
	lastChannels   uint8

	overrunCount, underrunCount uint64
}

// NewAuBuf allocates an audio buffer with the given soft target
// (wishSz) and hard ceiling (maxSz, 0 = unbounded). minSz must be > 0.
// Ten frame slots sized for 20ms of 48kHz stereo S16 audio are
// pre-allocated to avoid startup allocation.
func NewAuBuf(c Clock, minSz, maxSz uint) (*AuBuf, error) {
	if minSz == 0 {
		return nil, ErrInvalidArgument
	}

	return &AuBuf{
		clock:    c,
		pool:     newFramePool(defaultPoolFrames, defaultFrameCap),
		aflHead:  noSlot,
		aflTail:  noSlot,
		wishSz:   minSz,
		maxSz:    maxSz,
		filling:  true,
		mode:     ModeFixed,
	}, nil
}

// SetMode configures whether Read consults an adaptive jitter estimator.
// The Ajb itself is created lazily on the first Read in ModeAdaptive.
func (b *AuBuf) SetMode(mode Mode) {
	b.mu.Lock()
	b.mode = mode
	b.mu.Unlock()
}

// SetSilence sets the dBov threshold below which audio is considered
// silent. Only takes effect for an Ajb created after this call — an
// already-lazily-created Ajb keeps the threshold it was built with,
// matching the upstream behavior this package is ported from.
func (b *AuBuf) SetSilence(dbov float64) {
	b.mu.Lock()
	b.silenceDBov = dbov
	b.mu.Unlock()
}

// Resize atomically updates the soft target and hard ceiling, then
// flushes the buffer.
func (b *AuBuf) Resize(minSz, maxSz uint) error {
	if minSz == 0 {
		return ErrInvalidArgument
	}

	b.mu.Lock()
	b.wishSz = minSz
	b.maxSz = maxSz
	b.mu.Unlock()

	b.Flush()
	return nil
}

// Write copies PCM from desc.SamplePtr into a pooled Frame, inserts it
// into the active list in ascending timestamp order, enforces the
// overrun policy, and — once the buffer is no longer filling — feeds the
// frame to the adaptive jitter estimator.
func (b *AuBuf) Write(desc Descriptor) error {
	if desc.SamplePtr == nil || desc.SampleCount <= 0 {
		return ErrInvalidArgument
	}

	sz := desc.Size()
	if sz <= 0 {
		return ErrInvalidArgument
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.obtainFrame(sz)
	f := b.pool[idx]

	n := copy(f.buf, desc.SamplePtr[:sz])
	f.remainingBytes = n
	f.desc = desc
	f.desc.SamplePtr = nil
	f.free = false

	b.insertSorted(idx)
	b.curSz += uint(n)

	b.lastFormat = desc.Format
	b.lastSampleRate = desc.SampleRate
	b.lastChannels = desc.Channels

	limit := b.maxSz
	if !b.started {
		limit = b.wishSz + 1
	}
	if b.maxSz > 0 && b.curSz > limit {
		b.dropOldest()
	}

	if b.filling && b.curSz >= b.wishSz {
		b.filling = false
	}

	if !b.filling && b.ajb != nil {
		b.ajb.Calc(desc, int(b.curSz))
	}

	return nil
}

// dropOldest evicts the head (oldest-timestamp) frame. Called with the
// lock held. At most one frame is dropped per Write; the bound's integer
// slack (wish_sz+1 before the buffer has started) is intentional.
func (b *AuBuf) dropOldest() {
	head := b.aflHead
	if head == noSlot {
		return
	}
	f := b.pool[head]
	b.curSz -= uint(f.remainingBytes)
	b.unlinkAFL(head)
	f.free = true
	f.remainingBytes = 0
	f.pos = 0
	b.overrunCount++
}

// Read fills out.SamplePtr (out.Size() bytes) with PCM, consulting the
// Ajb classification first. LOW leaves the output untouched and does not
// advance state; underrun zeroes the output and re-enters filling; HIGH
// drains an extra frame's worth during silence.
func (b *AuBuf) Read(out *Descriptor) {
	if out == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == ModeAdaptive && b.ajb == nil {
		b.ajb = NewAjb(b.clock, b.silenceDBov)
	}

	levelDesc := *out
	levelDesc.LevelDBov = LevelUndef
	state := b.ajb.Get(levelDesc)

	if state == StateLow {
		return
	}

	outSize := out.Size()
	threshold := uint(outSize)
	if b.filling {
		threshold = b.wishSz
	}

	if b.curSz < threshold {
		zero(out.SamplePtr, outSize)
		if !b.filling {
			b.underrunCount++
			b.ajb.Reset()
		}
		b.filling = true
		return
	}

	b.started = true
	b.drainInto(out, outSize)
	if state == StateHigh {
		b.drainInto(out, outSize)
	}
}

// ReadTimed is a cadence-gated read used by consumers that poll faster
// than their output cadence. It fails with ErrTimeout if called before
// the next tick is due.
func (b *AuBuf) ReadTimed(ptimeMs uint32, buf []byte) error {
	if ptimeMs == 0 {
		return ErrInvalidArgument
	}

	b.mu.Lock()
	now := nowMS(b.clock)
	if b.ts == 0 {
		b.ts = now
	}
	if now < b.ts {
		b.mu.Unlock()
		return ErrTimeout
	}
	b.ts += int64(ptimeMs)

	format := b.lastFormat
	srate := b.lastSampleRate
	ch := b.lastChannels
	b.mu.Unlock()

	sampleSize := SampleSize(format)
	sampleCount := len(buf)
	if sampleSize > 0 && ch > 0 {
		sampleCount = len(buf) / (sampleSize * int(ch))
	}

	out := Descriptor{
		Format:      format,
		SampleRate:  srate,
		Channels:    ch,
		SamplePtr:   buf,
		SampleCount: sampleCount,
		LevelDBov:   LevelUndef,
	}
	b.Read(&out)
	return nil
}

// drainInto consumes up to sz bytes from the head of the active list
// into out.SamplePtr, draining fully-consumed frames back to the pool.
// Called with the lock held.
func (b *AuBuf) drainInto(out *Descriptor, sz int) {
	remaining := sz
	offset := 0
	idx := b.aflHead

	for idx != noSlot && remaining > 0 {
		f := b.pool[idx]
		next := f.aflNext

		n := min(f.remainingBytes, remaining)
		if n > 0 {
			copy(out.SamplePtr[offset:offset+n], f.buf[f.pos:f.pos+n])
			f.pos += n
			f.remainingBytes -= n
			b.curSz -= uint(n)
			offset += n
			remaining -= n
		}

		out.SampleRate = f.desc.SampleRate
		out.Channels = f.desc.Channels
		out.TimestampUS = f.desc.TimestampUS

		if f.remainingBytes == 0 {
			b.unlinkAFL(idx)
			f.free = true
			f.pos = 0
		} else {
			sampleSize := SampleSize(f.desc.Format)
			if sampleSize == 0 {
				sampleSize = 1
			}
			denom := uint64(f.desc.SampleRate) * uint64(f.desc.Channels) * uint64(sampleSize)
			if denom > 0 {
				f.desc.TimestampUS += uint64(n) * AudioTimebase / denom
			}
		}

		idx = next
	}
}

// Flush clears the active list back to the pool, resets size/cadence
// state, and resets the Ajb.
func (b *AuBuf) Flush() {
	b.mu.Lock()
	idx := b.aflHead
	for idx != noSlot {
		f := b.pool[idx]
		next := f.aflNext
		f.aflPrev, f.aflNext = noSlot, noSlot
		f.inAFL = false
		f.free = true
		f.remainingBytes = 0
		f.pos = 0
		idx = next
	}
	b.aflHead, b.aflTail = noSlot, noSlot
	b.filling = true
	b.curSz = 0
	b.ts = 0
	ajb := b.ajb
	b.mu.Unlock()

	ajb.Reset()
}

// CurSize returns the current number of buffered bytes.
func (b *AuBuf) CurSize() uint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.curSz
}

// Stats is a clean, mutex-free snapshot of AuBuf's counters, safe to pass
// around or log after GetStats returns.
type Stats struct {
	WishSize      uint
	CurSize       uint
	Filling       bool
	OverrunCount  uint64
	UnderrunCount uint64
	JitterUS      int64
	AvbuftimeUS   int64
}

// GetStats takes a snapshot of the buffer's counters under a single read
// lock, mirroring the pattern of pairing an internal mutex-guarded struct
// with a clean exported copy.
func (b *AuBuf) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		WishSize:      b.wishSz,
		CurSize:       b.curSz,
		Filling:       b.filling,
		OverrunCount:  b.overrunCount,
		UnderrunCount: b.underrunCount,
	}
	if b.ajb != nil {
		s.JitterUS, s.AvbuftimeUS = b.ajb.Debug()
	}
	return s
}

// Debug returns a human-readable snapshot, mirroring the original
// aubuf_debug handler.
func (b *AuBuf) Debug() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := fmt.Sprintf("wish_sz=%d cur_sz=%d filling=%t [overrun=%d underrun=%d]",
		b.wishSz, b.curSz, b.filling, b.overrunCount, b.underrunCount)

	if b.ajb != nil {
		jitter, avbuftime := b.ajb.Debug()
		s += fmt.Sprintf(" ajb_jitter_us=%d ajb_avbuftime_us=%d", jitter, avbuftime)
	}

	return s
}

// Sort re-sorts the active list by timestamp. Idempotent if already
// sorted.
func (b *AuBuf) Sort() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var idxs []int
	for i := b.aflHead; i != noSlot; i = b.pool[i].aflNext {
		idxs = append(idxs, i)
	}

	sort.SliceStable(idxs, func(i, j int) bool {
		return b.pool[idxs[i]].desc.TimestampUS < b.pool[idxs[j]].desc.TimestampUS
	})

	b.aflHead, b.aflTail = noSlot, noSlot
	prev := noSlot
	for _, idx := range idxs {
		f := b.pool[idx]
		f.aflPrev = prev
		if prev == noSlot {
			b.aflHead = idx
		} else {
			b.pool[prev].aflNext = idx
		}
		prev = idx
	}
	if prev != noSlot {
		b.pool[prev].aflNext = noSlot
	}
	b.aflTail = prev
}

// DropFrame informs the Ajb that desc is being discarded upstream
// without ever being written.
func (b *AuBuf) DropFrame(desc Descriptor) {
	b.mu.RLock()
	ajb := b.ajb
	b.mu.RUnlock()
	ajb.Drop(desc)
}

// obtainFrame returns the index of a free pool slot sized for at least
// sz bytes, growing the pool if none is free. Called with the lock held.
func (b *AuBuf) obtainFrame(sz int) int {
	for i, f := range b.pool {
		if f.free {
			if len(f.buf) < sz {
				f.buf = make([]byte, sz)
			}
			return i
		}
	}

	f := &frame{
		buf:     make([]byte, sz),
		free:    true,
		aflPrev: noSlot,
		aflNext: noSlot,
	}
	b.pool = append(b.pool, f)
	return len(b.pool) - 1
}

// insertSorted links slot idx into the active list in ascending
// timestamp order, stable for equal keys. Called with the lock held.
func (b *AuBuf) insertSorted(idx int) {
	f := b.pool[idx]
	f.inAFL = true
	ts := f.desc.TimestampUS

	if b.aflHead == noSlot {
		f.aflPrev, f.aflNext = noSlot, noSlot
		b.aflHead, b.aflTail = idx, idx
		return
	}

	cur := b.aflHead
	for cur != noSlot && b.pool[cur].desc.TimestampUS <= ts {
		cur = b.pool[cur].aflNext
	}

	if cur == noSlot {
		tail := b.aflTail
		b.pool[tail].aflNext = idx
		f.aflPrev = tail
		f.aflNext = noSlot
		b.aflTail = idx
		return
	}

	prev := b.pool[cur].aflPrev
	f.aflPrev = prev
	f.aflNext = cur
	b.pool[cur].aflPrev = idx
	if prev == noSlot {
		b.aflHead = idx
	} else {
		b.pool[prev].aflNext = idx
	}
}

// unlinkAFL removes slot idx from the active list. Called with the lock
// held.
func (b *AuBuf) unlinkAFL(idx int) {
	f := b.pool[idx]
	if !f.inAFL {
		return
	}

	if f.aflPrev != noSlot {
		b.pool[f.aflPrev].aflNext = f.aflNext
	} else {
		b.aflHead = f.aflNext
	}
	if f.aflNext != noSlot {
		b.pool[f.aflNext].aflPrev = f.aflPrev
	} else {
		b.aflTail = f.aflPrev
	}

	f.aflPrev, f.aflNext = noSlot, noSlot
	f.inAFL = false
}

func zero(b []byte, n int) {
	n = min(n, len(b))
	clear(b[:n])
}
