/*
NAME
  receive.go

DESCRIPTION
  receive.go implements the silence-terminated receive loop shared by
  every Device backend: poll the capture buffer, apply the echo guard,
  and stop once enough samples are in hand and the trailing edge of the
  capture has gone quiet.

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

// pollInterval bounds how long a single captureBuffer.next call waits,
// so the loop can still notice ctx cancellation or an expired deadline
// promptly.
const pollInterval = 50 * time.Millisecond

// receiveLoop is embedded by every Device implementation; it owns the
// polling/echo-guard/silence-detection logic so backends differ only in
// how chunks are produced (direct delivery for Loopback, a capture
// callback for ALSA/PortAudio).
type receiveLoop struct {
	l    logging.Logger
	gate *Gate
	cb   *captureBuffer
	rate int

	// filterEcho applies Gate.ShouldDiscard to arriving chunks. Real
	// hardware backends (ALSA, PortAudio) need this: their capture
	// callback runs continuously and will otherwise hand the protocol
	// layers a recording of the device's own speaker. Loopback is the
	// explicit bypass harness of spec's "Loopback mode" -- it pipes
	// playback directly into the capture buffer with no real self-echo
	// hazard to guard against, so it leaves this false.
	filterEcho bool
}

func (r *receiveLoop) clear() {
	r.cb.clear()
}

func (r *receiveLoop) isTransmitting() bool {
	return r.gate.IsTransmitting()
}

// receiveUntilSilence is the shared implementation of
// Device.ReceiveUntilSilence.
func (r *receiveLoop) receiveUntilSilence(ctx context.Context, opts SilenceOptions) ([]float32, error) {
	deadline := time.Now().Add(opts.Timeout)
	silenceWindow := int(opts.SilenceDuration.Seconds() * float64(r.rate))

	var collected []float32
	lastArrival := time.Now()

	for {
		select {
		case <-ctx.Done():
			return collected, ctx.Err()
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}

		samples, ts, err := r.cb.next(wait)
		if err != nil {
			// No chunk arrived within wait; check whether we've already
			// satisfied the silence condition by elapsed idle time.
			if len(collected) >= opts.MinSamples && time.Since(lastArrival) >= opts.SilenceDuration {
				break
			}
			continue
		}

		if r.filterEcho && r.gate.ShouldDiscard(ts) {
			if r.l != nil {
				r.l.Debug("audio: discarding self-echo samples", "count", len(samples))
			}
			continue
		}

		collected = append(collected, samples...)
		lastArrival = ts

		if len(collected) >= opts.MinSamples && trailingIsSilent(collected, silenceWindow) {
			break
		}
	}

	// A short or silent capture is still handed up: the frame decoder's
	// preamble sync and CRC are the authority on whether it contains a
	// real frame, not a fixed sample count. Only a wholly empty capture
	// is a genuine timeout.
	if len(collected) == 0 {
		return nil, ErrTimeout
	}
	return collected, nil
}

// trailingIsSilent reports whether the last window samples of collected
// read as below-threshold energy. A window of zero or more than the
// buffer's length is treated permissively (too short a trailing window
// to judge, so don't block on it).
func trailingIsSilent(collected []float32, window int) bool {
	if window <= 0 || window > len(collected) {
		return true
	}
	tail := collected[len(collected)-window:]
	return rms(tail) < DefaultSilenceRMS
}
