package audio

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func silentDesc(ts uint64) Descriptor {
	return Descriptor{
		Format:      FormatS16,
		SampleRate:  48000,
		Channels:    2,
		SampleCount: 960,
		TimestampUS: ts,
		LevelDBov:   -120,
	}
}

func loudDesc(ts uint64) Descriptor {
	return Descriptor{
		Format:      FormatS16,
		SampleRate:  48000,
		Channels:    2,
		SampleCount: 960,
		TimestampUS: ts,
		LevelDBov:   0,
	}
}

func TestAjb_New_StartsGood(t *testing.T) {
	a := NewAjb(clock.NewMock(), -45)
	require.Equal(t, StateGood, a.state)
	jitter, avbuftime := a.Debug()
	assert.Zero(t, jitter)
	assert.Zero(t, avbuftime)
}

func TestAjb_Calc_FirstCallOnlySeedsAnchors(t *testing.T) {
	c := clock.NewMock()
	a := NewAjb(c, -45)

	a.Calc(silentDesc(1000), 3840)
	assert.Equal(t, StateGood, a.state)
	assert.EqualValues(t, 1000, a.ts0)
}

func TestAjb_Calc_NilReceiverIsNoop(t *testing.T) {
	var a *Ajb
	assert.NotPanics(t, func() {
		a.Calc(silentDesc(0), 0)
		a.Drop(silentDesc(0))
		a.Reset()
	})
	assert.Equal(t, StateGood, a.Get(silentDesc(0)))
	jitter, avbuftime := a.Debug()
	assert.Zero(t, jitter)
	assert.Zero(t, avbuftime)
}

// Invariant 6: Ajb.jitter_us >= 0 and Ajb.avbuftime_us >= 0 always, no
// matter how erratic the simulated arrival timing is.
func TestAjb_Calc_JitterAndAvbuftimeNeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := clock.NewMock()
		a := NewAjb(c, -45)

		n := rapid.IntRange(1, 40).Draw(t, "n")
		tsStep := rapid.IntRange(5000, 60000).Draw(t, "tsStep")
		curSz := rapid.IntRange(0, 48000).Draw(t, "curSz")

		var ts uint64
		for i := 0; i < n; i++ {
			clockJitterUS := rapid.IntRange(-20000, 20000).Draw(t, "clockJitter")
			advance := tsStep + clockJitterUS
			if advance < 0 {
				advance = 0
			}
			c.Add(durationUS(advance))
			ts += uint64(tsStep)

			a.Calc(silentDesc(ts), curSz)

			jitter, avbuftime := a.Debug()
			if jitter < 0 || avbuftime < 0 {
				t.Fatalf("negative EMA state: jitter_us=%d avbuftime_us=%d", jitter, avbuftime)
			}
		}
	})
}

// Invariant 7: a LOW/HIGH state is consumed by the next silent Get and
// does not survive a second consecutive silent Get.
func TestAjb_Get_SilentConsumesLowOrHighWithinOneCall(t *testing.T) {
	for _, forced := range []State{StateLow, StateHigh} {
		a := NewAjb(clock.NewMock(), -45)
		a.avbuftimeUS = 10000
		a.state = forced

		got := a.Get(silentDesc(0))
		assert.Equal(t, forced, got, "first silent get reports the pending state")
		assert.Equal(t, StateGood, a.state, "state is consumed after one get")

		got2 := a.Get(silentDesc(0))
		assert.Equal(t, StateGood, got2, "second consecutive silent get is always GOOD")
	}
}

// When silence detection is enabled (silenceDBov < 0) and the frame is
// loud, Get must report GOOD without consuming a pending LOW/HIGH state —
// adaptation only happens during silence.
func TestAjb_Get_LoudFrameNeverConsumesPendingState(t *testing.T) {
	a := NewAjb(clock.NewMock(), -45)
	a.avbuftimeUS = 10000
	a.state = StateLow

	got := a.Get(loudDesc(0))
	assert.Equal(t, StateGood, got)
	assert.Equal(t, StateLow, a.state, "pending state survives an audible frame")
}

func TestAjb_Get_ZeroAvbuftimeAlwaysGood(t *testing.T) {
	a := NewAjb(clock.NewMock(), -45)
	a.state = StateHigh
	a.avbuftimeUS = 0

	assert.Equal(t, StateGood, a.Get(silentDesc(0)))
}

func TestAjb_Drop_UpdatesTs0ForNextCalc(t *testing.T) {
	c := clock.NewMock()
	a := NewAjb(c, -45)

	a.Calc(silentDesc(1000), 3840)
	a.Drop(silentDesc(21000))

	c.Add(20 * msAsDuration)
	a.Calc(silentDesc(41000), 3840)

	assert.EqualValues(t, 41000, a.ts0)
}

func TestAjb_Reset_ClearsAnchorsButKeepsEMAs(t *testing.T) {
	c := clock.NewMock()
	a := NewAjb(c, -45)
	a.Calc(silentDesc(1000), 3840)
	c.Add(20 * msAsDuration)
	a.Calc(silentDesc(21000), 3840)

	a.jitterUS = 500
	a.avbuftimeUS = 9000
	a.Reset()

	assert.Zero(t, a.ts0)
	assert.Zero(t, a.tr0)
	assert.Equal(t, StateGood, a.state)
	jitter, avbuftime := a.Debug()
	assert.EqualValues(t, 500, jitter)
	assert.EqualValues(t, 9000, avbuftime)
}

const msAsDuration = time.Millisecond

func durationUS(us int) time.Duration {
	return time.Duration(us) * time.Microsecond
}
