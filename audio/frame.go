package audio

// frame is one pool slot. It belongs to the buffer's permanent pool
// (PFL) for its entire life and, while carrying undelivered PCM, is also
// linked into the active list (AFL) via aflPrev/aflNext. Slots are
// indexed by stable integer position in AuBuf.pool rather than addressed
// by pointer, which keeps unlink-in-place safe without aliasing a freed
// slot's address.
type frame struct {
	buf            []byte
	pos            int
	remainingBytes int
	desc           Descriptor
	free           bool

	inAFL            bool
	aflPrev, aflNext int
}

const noSlot = -1

// defaultFrameCap sizes pre-allocated slots for 20ms of 48kHz stereo S16
// audio: 48000 * 2ch * 2B * 20ms/1000ms.
const defaultFrameCap = 48000 * 2 * 2 * 20 / 1000

const defaultPoolFrames = 10

func newFramePool(n, cap int) []*frame {
	pool := make([]*frame, n)
	for i := range pool {
		pool[i] = &frame{
			buf:     make([]byte, cap),
			free:    true,
			aflPrev: noSlot,
			aflNext: noSlot,
		}
	}
	return pool
}
