package main

import (
	"encoding/binary"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/aujit/aujit/audio"
	"github.com/aujit/aujit/common/logger"
)

// runDevicePlayback drains buf on a real PortAudio output stream, one
// frame per stream tick, using the blocking stream Write API. Falls
// back to runTickerPlayback if the device can't be opened.
func runDevicePlayback(buf *audio.AuBuf, bytesPerFrame int, duration time.Duration) {
	if err := portaudio.Initialize(); err != nil {
		logger.Error("portaudio init failed, falling back to ticker playback: %v", err)
		runTickerPlayback(buf, bytesPerFrame, duration)
		return
	}
	defer portaudio.Terminate()

	out := make([]int16, samplesPer*channels)
	outStream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), len(out), &out)
	if err != nil {
		logger.Error("portaudio stream open failed, falling back to ticker playback: %v", err)
		runTickerPlayback(buf, bytesPerFrame, duration)
		return
	}
	defer outStream.Close()

	if err := outStream.Start(); err != nil {
		logger.Error("portaudio stream start failed, falling back to ticker playback: %v", err)
		runTickerPlayback(buf, bytesPerFrame, duration)
		return
	}
	defer outStream.Stop()

	raw := make([]byte, bytesPerFrame)
	desc := &audio.Descriptor{
		Format:      audio.FormatS16,
		SampleRate:  sampleRate,
		Channels:    channels,
		SampleCount: samplesPer,
		SamplePtr:   raw,
		LevelDBov:   audio.LevelUndef,
	}

	logger.Info("playing through portaudio device for %s", duration)
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		buf.Read(desc)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(raw[2*i : 2*i+2]))
		}
		if err := outStream.Write(); err != nil {
			logger.Error("portaudio write failed: %v", err)
			return
		}
	}
}

// runTickerPlayback drives buf with a plain time.Ticker standing in for
// an audio device's callback cadence, logging each frame's occupancy.
func runTickerPlayback(buf *audio.AuBuf, bytesPerFrame int, duration time.Duration) {
	raw := make([]byte, bytesPerFrame)
	desc := &audio.Descriptor{
		Format:      audio.FormatS16,
		SampleRate:  sampleRate,
		Channels:    channels,
		SampleCount: samplesPer,
		SamplePtr:   raw,
		LevelDBov:   audio.LevelUndef,
	}

	ticker := time.NewTicker(ptimeMS * time.Millisecond)
	defer ticker.Stop()

	deadline := time.Now().Add(duration)
	logger.Info("playing through software ticker for %s", duration)

	for time.Now().Before(deadline) {
		<-ticker.C
		buf.Read(desc)
		logger.Debug("read frame, cur_sz=%d", buf.CurSize())
	}
}
