package audio

import "github.com/benbjohnson/clock"

// Clock is the monotonic time source this package assumes. Production
// code uses clock.New(); tests use clock.NewMock() and Add/Set the mock
// clock to drive test scenarios deterministically.
type Clock = clock.Clock

func nowUS(c Clock) uint64 {
	return uint64(c.Now().UnixMicro())
}

func nowMS(c Clock) int64 {
	return c.Now().UnixMilli()
}
