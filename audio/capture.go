/*
NAME
  capture.go

DESCRIPTION
  capture.go implements the bounded concurrent queue of captured audio
  chunks shared by every Device backend, built on
  github.com/ausocean/utils/pool.Buffer the same way device/alsa/alsa.go
  uses it for its long-recording ring buffer. Each chunk is tagged with
  its arrival time so Gate.ShouldDiscard can apply the echo guard at
  consumption time.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package audio

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ausocean/utils/pool"
)

const (
	ringLen     = 200              // Number of chunks held by the ring buffer.
	ringTimeout = 2 * time.Second  // How long Write blocks for a free slot.
	maxChunkLen = 4096             // Samples per chunk; bounds allocation per push.
)

// captureBuffer is a lock-protected ring buffer of timestamped float32
// sample chunks. The capture callback of a real backend only ever calls
// push; it never blocks on protocol logic, per spec's design note that
// the capture callback must never call into the protocol layers.
type captureBuffer struct {
	buf *pool.Buffer
}

func newCaptureBuffer() *captureBuffer {
	chunkBytes := 8 + maxChunkLen*4 // Timestamp prefix + float32 samples.
	pool.MaxAlloc(chunkBytes * ringLen * 2)
	return &captureBuffer{buf: pool.NewBuffer(ringLen, chunkBytes, ringTimeout)}
}

// push encodes samples with the arrival timestamp t and writes them to
// the ring buffer, dropping the chunk (logging is the caller's job) if
// the buffer is full.
func (c *captureBuffer) push(samples []float32, t time.Time) error {
	_, err := c.buf.Write(encodeChunk(samples, t))
	return err
}

// next blocks up to timeout for the next chunk, returning its samples
// and arrival timestamp.
func (c *captureBuffer) next(timeout time.Duration) ([]float32, time.Time, error) {
	chunk, err := c.buf.Next(timeout)
	if err != nil {
		return nil, time.Time{}, err
	}
	samples, ts := decodeChunk(chunk)
	return samples, ts, nil
}

// clear drains any chunks currently queued, discarding them. Called
// before a transmission starts and again once it ends, per spec's
// transmit-gating design.
func (c *captureBuffer) clear() {
	for {
		if _, err := c.buf.Next(0); err != nil {
			return
		}
	}
}

// close shuts the ring buffer down; subsequent push/next calls fail.
func (c *captureBuffer) close() error {
	return c.buf.Close()
}

func encodeChunk(samples []float32, t time.Time) []byte {
	out := make([]byte, 8+len(samples)*4)
	binary.LittleEndian.PutUint64(out[:8], uint64(t.UnixNano()))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[8+i*4:12+i*4], math.Float32bits(s))
	}
	return out
}

func decodeChunk(b []byte) ([]float32, time.Time) {
	if len(b) < 8 {
		return nil, time.Time{}
	}
	ts := time.Unix(0, int64(binary.LittleEndian.Uint64(b[:8])))
	n := (len(b) - 8) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[8+i*4 : 12+i*4]))
	}
	return samples, ts
}
