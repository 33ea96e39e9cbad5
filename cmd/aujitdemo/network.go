package main

import (
	"encoding/binary"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/aujit/aujit/audio"
	"github.com/aujit/aujit/common/logger"
)

// simulatedNetwork stands in for the "unreliable network" of the frame
// source the buffer is fed from: a loopback WebSocket connection that
// delays and drops frames before they reach AuBuf.Write, so the demo
// exercises the same arrival-jitter path a real RTP receiver would feed
// into Ajb.Calc.
type simulatedNetwork struct {
	clock    clock.Clock
	jitterMS float64
	dropPct  float64

	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server

	conn *websocket.Conn
}

func newSimulatedNetwork(c clock.Clock, jitterMS, dropPct float64) *simulatedNetwork {
	return &simulatedNetwork{
		clock:    c,
		jitterMS: jitterMS,
		dropPct:  dropPct,
		upgrader: websocket.Upgrader{ReadBufferSize: 8192, WriteBufferSize: 8192},
	}
}

// start listens on a random loopback port, installs serveTo as its single
// handler, and dials it back as the producer's write side. Returns the
// dialed connection the producer writes frames into.
func (n *simulatedNetwork) start(buf *audio.AuBuf) (*websocket.Conn, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	n.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", n.serveTo(buf))
	n.server = &http.Server{Handler: mux}
	go func() {
		if err := n.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("simulated network server exited: %v", err)
		}
	}()

	url := "ws://" + ln.Addr().String() + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		ln.Close()
		return nil, err
	}
	n.conn = conn
	return conn, nil
}

func (n *simulatedNetwork) close() {
	if n.conn != nil {
		n.conn.Close()
	}
	if n.server != nil {
		n.server.Close()
	}
}

// serveTo upgrades the inbound connection and forwards every received
// binary frame into buf, after sleeping a jittered, occasionally-dropped
// delay — the simulated network's contribution to arrival jitter.
func (n *simulatedNetwork) serveTo(buf *audio.AuBuf) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := n.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			if n.dropPct > 0 && rand.Float64() < n.dropPct {
				continue
			}

			delay := time.Duration(rand.NormFloat64() * n.jitterMS * float64(time.Millisecond))
			if delay > 0 {
				time.Sleep(delay)
			}

			desc, ok := decodeFrame(data)
			if !ok {
				continue
			}
			if err := buf.Write(desc); err != nil {
				logger.Debug("buf.Write rejected frame: %v", err)
			}
		}
	}
}

// runProducer dials net, then generates a steady stream of synthetic PCM
// frames at the nominal frame cadence and ships each one as a binary
// WebSocket message. It stops when stop is closed.
func runProducer(n *simulatedNetwork, buf *audio.AuBuf, stop <-chan struct{}) {
	conn, err := n.start(buf)
	if err != nil {
		logger.Fatal("simulated network failed to start: %v", err)
		return
	}
	defer n.close()

	ticker := time.NewTicker(ptimeMS * time.Millisecond)
	defer ticker.Stop()

	var seq uint64
	pcm := make([]byte, samplesPer*channels*audio.SampleSize(audio.FormatS16))
	startUS := uint64(n.clock.Now().UnixMicro())

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			fillTone(pcm, seq)
			ts := startUS + seq*ptimeMS*1000
			msg := encodeFrame(ts, samplesPer, pcm)
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				logger.Debug("producer write failed: %v", err)
				return
			}
			seq++
		}
	}
}

// fillTone writes a quiet, deterministic sawtooth pattern into pcm so the
// demo has something other than silence to push through the buffer.
func fillTone(pcm []byte, seq uint64) {
	for i := 0; i < len(pcm)/2; i++ {
		v := int16((int64(seq)*7 + int64(i)*3) % 2000 - 1000)
		pcm[2*i] = byte(v)
		pcm[2*i+1] = byte(v >> 8)
	}
}

// frame wire format: [8 bytes timestamp_us][4 bytes sample_count][PCM...].
func encodeFrame(ts uint64, sampleCount int, pcm []byte) []byte {
	out := make([]byte, 12+len(pcm))
	binary.LittleEndian.PutUint64(out[0:8], ts)
	binary.LittleEndian.PutUint32(out[8:12], uint32(sampleCount))
	copy(out[12:], pcm)
	return out
}

func decodeFrame(data []byte) (audio.Descriptor, bool) {
	if len(data) < 12 {
		return audio.Descriptor{}, false
	}
	ts := binary.LittleEndian.Uint64(data[0:8])
	sampleCount := int(binary.LittleEndian.Uint32(data[8:12]))
	pcm := data[12:]

	return audio.Descriptor{
		Format:      audio.FormatS16,
		SampleRate:  sampleRate,
		Channels:    channels,
		SamplePtr:   pcm,
		SampleCount: sampleCount,
		TimestampUS: ts,
		LevelDBov:   audio.LevelUndef,
	}, true
}
