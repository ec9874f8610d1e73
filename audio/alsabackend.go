/*
NAME
  alsabackend.go

DESCRIPTION
  alsabackend.go implements the Device backend for Linux ALSA sound
  cards, adapted from device/alsa/alsa.go's open/negotiate sequence and
  continuous-capture goroutine. Unlike the teacher's capture-only ALSA
  device, this one also opens a playback handle, since the modem needs
  to both send and receive tones on the same card.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

//go:build linux

package audio

import (
	"context"
	"fmt"
	"time"

	yalsa "github.com/yobert/alsa"

	"github.com/ausocean/utils/logging"
)

// ALSA is the Device backend for a Linux sound card, using
// github.com/yobert/alsa the same way device/alsa/alsa.go does.
type ALSA struct {
	receiveLoop
	gate *Gate

	title   string
	rate    int
	capture *yalsa.Device
	play    *yalsa.Device
}

// OpenALSA opens a capture and a playback handle on the named card (or
// the first suitable card, if title is empty), negotiates mono
// 16-bit PCM at rate, and starts the continuous capture goroutine.
func OpenALSA(title string, rate int, l logging.Logger) (*ALSA, error) {
	capture, err := openDirection(title, true)
	if err != nil {
		return nil, fmt.Errorf("alsa: opening capture device: %w", err)
	}
	play, err := openDirection(title, false)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("alsa: opening playback device: %w", err)
	}

	if err := negotiate(capture, rate, l); err != nil {
		capture.Close()
		play.Close()
		return nil, fmt.Errorf("alsa: negotiating capture params: %w", err)
	}
	if err := negotiate(play, rate, l); err != nil {
		capture.Close()
		play.Close()
		return nil, fmt.Errorf("alsa: negotiating playback params: %w", err)
	}

	gate := NewGate(DefaultEchoGuard)
	cb := newCaptureBuffer()
	a := &ALSA{
		receiveLoop: receiveLoop{l: l, gate: gate, cb: cb, rate: rate, filterEcho: true},
		gate:        gate,
		title:       title,
		rate:        rate,
		capture:     capture,
		play:        play,
	}
	go a.captureLoop()
	return a, nil
}

func openDirection(title string, record bool) (*yalsa.Device, error) {
	cards, err := yalsa.OpenCards()
	if err != nil {
		return nil, err
	}
	defer yalsa.CloseCards(cards)

	var found *yalsa.Device
	for _, card := range cards {
		devices, err := card.Devices()
		if err != nil {
			continue
		}
		for _, dev := range devices {
			if dev.Type != yalsa.PCM {
				continue
			}
			wantDirection := dev.Record
			if !record {
				wantDirection = dev.Play
			}
			if !wantDirection {
				continue
			}
			if dev.Title == title || title == "" {
				found = dev
				break
			}
		}
		if found != nil {
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no matching ALSA device found (record=%v)", record)
	}
	return found, found.Open()
}

func negotiate(dev *yalsa.Device, rate int, l logging.Logger) error {
	channels, err := dev.NegotiateChannels(1)
	if err != nil {
		return fmt.Errorf("negotiating mono channel: %w", err)
	}
	l.Debug("alsa: channels negotiated", "channels", channels)

	negRate, err := dev.NegotiateRate(rate)
	if err != nil {
		return fmt.Errorf("negotiating sample rate: %w", err)
	}
	if negRate != rate {
		l.Warning("alsa: device does not support requested sample rate", "requested", rate, "actual", negRate)
	}

	fmt_, err := dev.NegotiateFormat(yalsa.S16_LE)
	if err != nil {
		return fmt.Errorf("negotiating sample format: %w", err)
	}
	l.Debug("alsa: format negotiated", "format", fmt_)

	periodSize, err := dev.NegotiatePeriodSize(nearestPowerOfTwo(rate / 20))
	if err != nil {
		return fmt.Errorf("negotiating period size: %w", err)
	}
	if _, err := dev.NegotiateBufferSize(periodSize * 4); err != nil {
		return fmt.Errorf("negotiating buffer size: %w", err)
	}
	return dev.Prepare()
}

// captureLoop continuously reads PCM frames from the capture handle and
// pushes them into the shared capture buffer, never blocking on
// anything but the ALSA read itself, per spec's capture-callback rule.
func (a *ALSA) captureLoop() {
	buf := a.capture.NewBufferDuration(100 * time.Millisecond)
	for {
		if err := a.capture.Read(buf.Data); err != nil {
			if a.l != nil {
				a.l.Warning("alsa: capture read failed", "error", err)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		samples := pcm16ToFloat32(buf.Data)
		if err := a.cb.push(samples, time.Now()); err != nil && a.l != nil {
			a.l.Debug("alsa: capture buffer full, dropping chunk", "error", err)
		}
	}
}

// Play implements Device.
func (a *ALSA) Play(samples []float32) error {
	a.ClearReceiveBuffer()
	a.gate.BeginTX()
	defer func() {
		a.gate.EndTX()
		a.ClearReceiveBuffer()
	}()

	if err := a.play.Write(float32ToPCM16(samples)); err != nil {
		return fmt.Errorf("alsa: playback write failed: %w", err)
	}
	return nil
}

// ReceiveUntilSilence implements Device.
func (a *ALSA) ReceiveUntilSilence(ctx context.Context, opts SilenceOptions) ([]float32, error) {
	return a.receiveUntilSilence(ctx, opts)
}

// ClearReceiveBuffer implements Device.
func (a *ALSA) ClearReceiveBuffer() { a.receiveLoop.clear() }

// IsTransmitting implements Device.
func (a *ALSA) IsTransmitting() bool { return a.gate.IsTransmitting() }

// SampleRate implements Device.
func (a *ALSA) SampleRate() int { return a.rate }

// Close implements Device.
func (a *ALSA) Close() error {
	a.capture.Close()
	a.play.Close()
	return a.cb.close()
}

// pcm16ToFloat32 converts little-endian signed 16-bit PCM to the
// [-1, 1] float32 samples the rest of the stack operates on.
func pcm16ToFloat32(p []byte) []float32 {
	out := make([]float32, len(p)/2)
	for i := range out {
		v := int16(uint16(p[2*i]) | uint16(p[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out
}

// float32ToPCM16 is the inverse of pcm16ToFloat32.
func float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(s * 32767.0)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

// nearestPowerOfTwo finds the nearest power of two to n, matching
// device/alsa/alsa.go's period-size negotiation heuristic.
func nearestPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	if n == 1 {
		return 2
	}
	v := n
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	x := v >> 1
	if (v - n) > (n - x) {
		return x
	}
	return v
}
