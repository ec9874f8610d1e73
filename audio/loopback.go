/*
NAME
  loopback.go

DESCRIPTION
  loopback.go implements the alternative audio backend of spec's L0
  design: it pipes playback samples directly into a capture buffer (its
  own, for a single-ended "talk to yourself" test, or a connected peer's,
  for a two-party handshake/transfer test), so the entire stack above it
  is testable with no audio hardware. Setting Audible also plays to a
  real Device, for audible loopback.

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
	"time"

	"github.com/ausocean/utils/logging"
)

// Loopback is the in-process Device backend used by tests and by any
// application that wants the stack to run without a sound card.
type Loopback struct {
	receiveLoop
	gate *Gate

	// dest is where this Loopback's Play delivers samples: its own
	// captureBuffer for a self-loop, or a peer's for a cross-wired pair.
	dest *captureBuffer

	// audible, if set, additionally receives every Play call, for
	// "audible loopback" (hearing the link on real speakers while still
	// decoding from the direct digital pipe).
	audible Device
}

// NewLoopback returns a self-looped Device: everything it plays, it
// immediately makes available to receive, exactly as spec's loopback
// mode describes.
func NewLoopback(sampleRate int, l logging.Logger) *Loopback {
	cb := newCaptureBuffer()
	gate := NewGate(DefaultEchoGuard)
	lo := &Loopback{
		receiveLoop: receiveLoop{l: l, gate: gate, cb: cb, rate: sampleRate},
		gate:        gate,
		dest:        cb,
	}
	return lo
}

// ConnectLoopbacks cross-wires a and b so that each one's Play delivers
// to the other's receive buffer, modeling two peers sharing one acoustic
// channel. Use this for the handshake and transfer scenarios of spec §8;
// use a single NewLoopback for the single-party ping scenario.
func ConnectLoopbacks(a, b *Loopback) {
	a.dest = b.receiveLoop.cb
	b.dest = a.receiveLoop.cb
}

// SetAudible routes every Play call additionally to a real device.
func (lo *Loopback) SetAudible(d Device) {
	lo.audible = d
}

// Play delivers samples to lo.dest after simulating the wall-clock time
// a real device would take to drain them, per spec's blocking-playback
// contract. The receive buffer is cleared beforehand to drop stale
// captures, and the gate's last-transmission timestamp is stamped on
// completion. A self-loop (dest is this Loopback's own buffer) skips the
// post-push clear, since that would otherwise discard the very samples
// just delivered for spec §8 scenario 1's single-device loopback.
func (lo *Loopback) Play(samples []float32) error {
	selfLoop := lo.dest == lo.receiveLoop.cb

	lo.ClearReceiveBuffer()
	lo.gate.BeginTX()

	duration := time.Duration(float64(len(samples)) / float64(lo.rate) * float64(time.Second))
	time.Sleep(duration)

	if lo.audible != nil {
		if err := lo.audible.Play(samples); err != nil && lo.l != nil {
			lo.l.Warning("audio: audible loopback playback failed", "error", err)
		}
	}

	if err := lo.dest.push(samples, time.Now()); err != nil && lo.l != nil {
		lo.l.Warning("audio: loopback delivery dropped samples", "error", err)
	}

	lo.gate.EndTX()
	if !selfLoop {
		lo.ClearReceiveBuffer()
	}
	return nil
}

// ReceiveUntilSilence implements Device.
func (lo *Loopback) ReceiveUntilSilence(ctx context.Context, opts SilenceOptions) ([]float32, error) {
	return lo.receiveUntilSilence(ctx, opts)
}

// ClearReceiveBuffer implements Device.
func (lo *Loopback) ClearReceiveBuffer() {
	lo.receiveLoop.clear()
}

// IsTransmitting implements Device.
func (lo *Loopback) IsTransmitting() bool {
	return lo.gate.IsTransmitting()
}

// SampleRate implements Device.
func (lo *Loopback) SampleRate() int {
	return lo.rate
}

// Close releases the loopback's capture buffer.
func (lo *Loopback) Close() error {
	return lo.receiveLoop.cb.close()
}
