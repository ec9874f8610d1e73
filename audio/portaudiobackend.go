/*
NAME
  portaudiobackend.go

DESCRIPTION
  portaudiobackend.go implements the Device backend for platforms other
  than Linux (or Linux hosts without a usable ALSA device), using
  github.com/gordonklaus/portaudio. It follows the same
  receiveLoop/Gate/captureBuffer shape as the ALSA backend so the two
  are interchangeable from the perspective of every layer above audio.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/ausocean/utils/logging"
)

// portaudioInitOnce guards portaudio.Initialize, which must only be
// called once per process.
var (
	portaudioInitOnce sync.Once
	portaudioInitErr  error
)

// PortAudio is the Device backend built on the cross-platform PortAudio
// library: a single full-duplex stream shared between Play and the
// continuous capture callback.
type PortAudio struct {
	receiveLoop
	gate *Gate

	rate   int
	stream *portaudio.Stream

	mu      sync.Mutex
	playing []float32 // Outstanding samples awaiting the next callback.
}

// OpenPortAudio opens the default input/output devices at rate and
// starts streaming immediately; capture is delivered to the shared
// buffer via a callback, and Play enqueues samples for the same
// callback to drain.
func OpenPortAudio(rate int, l logging.Logger) (*PortAudio, error) {
	portaudioInitOnce.Do(func() { portaudioInitErr = portaudio.Initialize() })
	if portaudioInitErr != nil {
		return nil, fmt.Errorf("portaudio: initialize failed: %w", portaudioInitErr)
	}

	gate := NewGate(DefaultEchoGuard)
	p := &PortAudio{
		receiveLoop: receiveLoop{l: l, gate: gate, cb: newCaptureBuffer(), rate: rate, filterEcho: true},
		gate:        gate,
		rate:        rate,
	}

	stream, err := portaudio.OpenDefaultStream(1, 1, float64(rate), 0, p.streamCallback)
	if err != nil {
		return nil, fmt.Errorf("portaudio: opening default stream: %w", err)
	}
	p.stream = stream

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("portaudio: starting stream: %w", err)
	}
	return p, nil
}

// streamCallback is invoked by PortAudio's audio thread. It must never
// block: it drains whatever is queued by Play into out, zero-filling
// any remainder, and pushes the captured in samples into the shared
// capture buffer.
func (p *PortAudio) streamCallback(in, out []float32) {
	now := time.Now()

	p.mu.Lock()
	n := copy(out, p.playing)
	p.playing = p.playing[n:]
	p.mu.Unlock()
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	captured := make([]float32, len(in))
	copy(captured, in)
	if err := p.cb.push(captured, now); err != nil && p.l != nil {
		p.l.Debug("portaudio: capture buffer full, dropping chunk", "error", err)
	}
}

// Play implements Device. It enqueues samples for the stream callback
// and blocks for their playback duration (len(samples)/rate); it does
// not wait on the callback itself.
func (p *PortAudio) Play(samples []float32) error {
	p.ClearReceiveBuffer()
	p.gate.BeginTX()
	defer func() {
		p.gate.EndTX()
		p.ClearReceiveBuffer()
	}()

	p.mu.Lock()
	p.playing = append([]float32(nil), samples...)
	p.mu.Unlock()

	duration := time.Duration(float64(len(samples)) / float64(p.rate) * float64(time.Second))
	time.Sleep(duration)
	return nil
}

// ReceiveUntilSilence implements Device.
func (p *PortAudio) ReceiveUntilSilence(ctx context.Context, opts SilenceOptions) ([]float32, error) {
	return p.receiveUntilSilence(ctx, opts)
}

// ClearReceiveBuffer implements Device.
func (p *PortAudio) ClearReceiveBuffer() { p.receiveLoop.clear() }

// IsTransmitting implements Device.
func (p *PortAudio) IsTransmitting() bool { return p.gate.IsTransmitting() }

// SampleRate implements Device.
func (p *PortAudio) SampleRate() int { return p.rate }

// Close implements Device.
func (p *PortAudio) Close() error {
	if err := p.stream.Close(); err != nil {
		return err
	}
	return p.cb.close()
}
