/*
NAME
  link.go

DESCRIPTION
  link.go implements Link, the glue between one audio.Device and the
  frame format: SendFrame modulates and plays a frame, RecvFrame listens
  until silence and decodes whatever frames arrive. Transport (arq.go)
  is built entirely on this narrow interface so it never touches audio
  or AFSK details directly, the same separation of concerns
  device/alsa/alsa.go draws between the ring buffer and its Read method.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package arq implements the Stop-and-Wait reliable transport that
// carries frame.Frame segments over one audio.Device, retrying on
// timeout and discarding duplicate deliveries.
package arq

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ausocean/gitmodem/afsk"
	"github.com/ausocean/gitmodem/audio"
	"github.com/ausocean/gitmodem/frame"
	"github.com/ausocean/utils/logging"
)

// Link sends and receives frame.Frame values over one audio.Device via
// AFSK modulation/demodulation.
type Link struct {
	dev audio.Device
	mod *afsk.Modulator
	dem *afsk.Demodulator
	dec *frame.Decoder
	l   logging.Logger

	recvTimeout time.Duration
}

// NewLink builds a Link over dev using cfg for both modulation and
// demodulation.
func NewLink(dev audio.Device, cfg afsk.Config, recvTimeout time.Duration, l logging.Logger) (*Link, error) {
	dem, err := afsk.NewDemodulator(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "arq: build demodulator")
	}
	return &Link{
		dev:         dev,
		mod:         afsk.NewModulator(cfg),
		dem:         dem,
		dec:         frame.NewDecoder(l),
		l:           l,
		recvTimeout: recvTimeout,
	}, nil
}

// SendFrame encodes, modulates and plays f.
func (lk *Link) SendFrame(f frame.Frame) error {
	wire, err := frame.Encode(f)
	if err != nil {
		return errors.Wrap(err, "arq: encode frame")
	}
	samples := lk.mod.Modulate(wire)
	if lk.l != nil {
		lk.l.Debug("arq: sending frame", "type", f.Type, "seq", f.Seq, "payload_len", len(f.Payload))
	}
	return lk.dev.Play(samples)
}

// RecvFrame runs one silence-terminated capture, bounded by ctx and the
// link's receive timeout, and decodes it. If the capture yields no frame
// it returns ErrNoFrame rather than capturing again. Only the first
// decoded frame is returned; any further frames present in the same
// capture are discarded, since Stop-and-Wait never has more than one
// frame in flight.
func (lk *Link) RecvFrame(ctx context.Context) (frame.Frame, error) {
	opts := audio.DefaultSilenceOptions(lk.dev.SampleRate(), lk.recvTimeout)
	samples, err := lk.dev.ReceiveUntilSilence(ctx, opts)
	if err != nil {
		return frame.Frame{}, err
	}

	bits := lk.dem.Demodulate(samples)
	lk.dec.Reset()
	frames := lk.dec.PushBytes(bits)
	if len(frames) == 0 {
		if lk.l != nil {
			lk.l.Debug("arq: capture yielded no frame",
				"dominant_hz", afsk.DominantFrequency(samples, lk.dev.SampleRate()))
		}
		return frame.Frame{}, ErrNoFrame
	}
	if lk.l != nil {
		lk.l.Debug("arq: received frame", "type", frames[0].Type, "seq", frames[0].Seq, "payload_len", len(frames[0].Payload))
	}
	return frames[0], nil
}

// ErrNoFrame is returned by RecvFrame when a capture yielded no
// successfully decoded frame (silence, noise, or a CRC failure).
var ErrNoFrame = errors.New("arq: no frame decoded from capture")
