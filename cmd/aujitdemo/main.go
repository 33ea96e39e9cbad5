// Command aujitdemo drives an audio.AuBuf end to end: a simulated jittery
// network feeds it PCM frames, and a device- or ticker-driven consumer
// reads fixed-size frames back out. It is a caller of the audio
// package's public contract, not part of that contract itself.
package main

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/pflag"

	"github.com/aujit/aujit/audio"
	"github.com/aujit/aujit/common/logger"
)

const (
	sampleRate = 48000
	channels   = 2
	ptimeMS    = 20
	samplesPer = sampleRate * ptimeMS / 1000
)

func main() {
	var (
		debug     = pflag.BoolP("debug", "d", false, "enable debug logging")
		adaptive  = pflag.Bool("adaptive", true, "enable adaptive jitter buffer mode")
		wishMS    = pflag.Int("wish-ms", 100, "soft target buffer size, in milliseconds")
		maxMS     = pflag.Int("max-ms", 400, "hard ceiling buffer size, in milliseconds (0 = unbounded)")
		silence   = pflag.Float64("silence-dbov", -45, "silence threshold in dBov (adaptation only acts below this)")
		duration  = pflag.Duration("duration", 5*time.Second, "how long to run the simulated session")
		useDevice = pflag.Bool("device", false, "play audio out through a real PortAudio device instead of a software ticker")
		dashboard = pflag.Bool("dashboard", false, "render a live tview stats dashboard instead of logging")
		jitterMS  = pflag.Float64("jitter-ms", 15, "standard deviation of simulated network jitter, in milliseconds")
		dropPct   = pflag.Float64("drop-pct", 0, "fraction of frames the simulated network drops, 0..1")
	)
	pflag.Parse()

	logger.Init("aujitdemo")
	logger.SetDebugMode(*debug)

	bytesPerFrame := samplesPer * audio.SampleSize(audio.FormatS16) * channels
	wishSz := uint(*wishMS * sampleRate * channels * audio.SampleSize(audio.FormatS16) / 1000)
	maxSz := uint(0)
	if *maxMS > 0 {
		maxSz = uint(*maxMS * sampleRate * channels * audio.SampleSize(audio.FormatS16) / 1000)
	}

	realClock := clock.New()
	buf, err := audio.NewAuBuf(realClock, wishSz, maxSz)
	if err != nil {
		logger.Fatal("failed to create jitter buffer: %v", err)
	}
	buf.SetSilence(*silence)
	if *adaptive {
		buf.SetMode(audio.ModeAdaptive)
	}

	net := newSimulatedNetwork(realClock, *jitterMS, *dropPct)
	stop := make(chan struct{})

	go runProducer(net, buf, stop)

	if *dashboard {
		if *useDevice {
			go runDevicePlayback(buf, bytesPerFrame, *duration)
		} else {
			go runTickerPlayback(buf, bytesPerFrame, *duration)
		}
		runDashboard(buf, *duration)
	} else if *useDevice {
		runDevicePlayback(buf, bytesPerFrame, *duration)
	} else {
		runTickerPlayback(buf, bytesPerFrame, *duration)
	}

	close(stop)
	fmt.Println(buf.Debug())
}
