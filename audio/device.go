/*
NAME
  device.go

DESCRIPTION
  device.go defines Device, the mono sample stream contract every audio
  backend (loopback, ALSA, PortAudio) implements, per spec's L0 Audio I/O
  component: blocking play, silence-terminated receive, and the
  transmit-gating/echo-guard discipline that makes the two safe to share
  one physical device.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package audio implements the L0 physical audio layer: a mono sample
// stream with blocking play, silence-terminated receive, and the
// transmit-gate/echo-guard arbitration that keeps a single sound device
// half-duplex safe.
package audio

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Default silence-detection parameters, per spec.
const (
	DefaultMinSampleDuration = 200 * time.Millisecond // Scaled to the device's rate by MinSamplesForRate.
	DefaultSilenceDuration   = 300 * time.Millisecond
	DefaultSilenceRMS        = 0.01 // Below this RMS, a window counts as silent.
)

// MinSamplesForRate scales DefaultMinSampleDuration to a device's native
// sample rate, per spec §4.1's requirement that the physical layer query
// and rescale to the device's rate rather than assume one.
func MinSamplesForRate(rate int) int {
	return int(DefaultMinSampleDuration.Seconds() * float64(rate))
}

// ErrTimeout is returned by ReceiveUntilSilence when Timeout elapses
// before a single sample has been captured.
var ErrTimeout = errors.New("audio: receive timed out")

// ErrClosed is returned by Device methods after Close.
var ErrClosed = errors.New("audio: device is closed")

// SilenceOptions parameterizes ReceiveUntilSilence.
type SilenceOptions struct {
	// MinSamples is the minimum number of samples that must be captured
	// before silence termination is considered.
	MinSamples int

	// SilenceDuration is how long the trailing edge of the capture must
	// read as below-threshold energy before returning.
	SilenceDuration time.Duration

	// Timeout bounds the whole call regardless of silence detection.
	Timeout time.Duration
}

// DefaultSilenceOptions returns spec's defaults for MinSamples (scaled to
// rate) and SilenceDuration; Timeout is left to the caller, since it is a
// per-call budget, not a physical-layer constant.
func DefaultSilenceOptions(rate int, timeout time.Duration) SilenceOptions {
	return SilenceOptions{
		MinSamples:      MinSamplesForRate(rate),
		SilenceDuration: DefaultSilenceDuration,
		Timeout:         timeout,
	}
}

// Device is a mono sample stream: blocking playback, continuous capture
// exposed through a silence-terminated read, and the arbitration state
// the ARQ and session layers never touch directly.
type Device interface {
	// Play blocks until every sample has left the device (or, for
	// Loopback, until the simulated playback duration has elapsed).
	Play(samples []float32) error

	// ReceiveUntilSilence returns a contiguous buffer of captured
	// samples once at least opts.MinSamples have arrived and the
	// trailing opts.SilenceDuration reads as silence, or once
	// opts.Timeout elapses. A timeout still returns whatever was
	// captured so the framer and CRC can judge it; ErrTimeout is
	// returned only when nothing at all was captured.
	ReceiveUntilSilence(ctx context.Context, opts SilenceOptions) ([]float32, error)

	// ClearReceiveBuffer discards any samples queued for consumption.
	ClearReceiveBuffer()

	// IsTransmitting reports whether Play is currently in progress.
	IsTransmitting() bool

	// SampleRate returns the device's native sample rate in Hz.
	SampleRate() int

	// Close releases the device. Idempotent.
	Close() error
}

// rms returns the root-mean-square amplitude of samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}
