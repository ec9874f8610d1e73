/*
NAME
  wavcapture.go

DESCRIPTION
  wavcapture.go implements an optional diagnostic: a Device wrapper that
  additionally dumps every played and received sample to a WAV file, for
  offline inspection of a session's audio with a standard player. Built
  on github.com/go-audio/wav the same way exp/flac/decode.go drives its
  encoder.

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
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth = 16
	wavChannels = 1
)

// WAVCapture wraps a Device, mirroring every sample that passes through
// Play and ReceiveUntilSilence into a WAV file for later playback.
// Intended for bench debugging, not production use.
type WAVCapture struct {
	Device
	f   *os.File
	enc *wav.Encoder
}

// NewWAVCapture creates path and wraps d so all of its audio is also
// recorded there as a mono 16-bit PCM WAV file.
func NewWAVCapture(d Device, path string) (*WAVCapture, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc := wav.NewEncoder(f, d.SampleRate(), wavBitDepth, wavChannels, 1)
	return &WAVCapture{Device: d, f: f, enc: enc}, nil
}

func (w *WAVCapture) write(samples []float32) error {
	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s * 32767.0)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: wavChannels, SampleRate: w.Device.SampleRate()},
		Data:           ints,
		SourceBitDepth: wavBitDepth,
	}
	return w.enc.Write(buf)
}

// Play implements Device, recording samples before forwarding to the
// wrapped device.
func (w *WAVCapture) Play(samples []float32) error {
	_ = w.write(samples)
	return w.Device.Play(samples)
}

// ReceiveUntilSilence implements Device, recording whatever was
// received before returning it to the caller.
func (w *WAVCapture) ReceiveUntilSilence(ctx context.Context, opts SilenceOptions) ([]float32, error) {
	samples, err := w.Device.ReceiveUntilSilence(ctx, opts)
	if len(samples) > 0 {
		_ = w.write(samples)
	}
	return samples, err
}

// Close flushes and closes the WAV file, then closes the wrapped device.
func (w *WAVCapture) Close() error {
	encErr := w.enc.Close()
	fileErr := w.f.Close()
	devErr := w.Device.Close()
	if devErr != nil {
		return devErr
	}
	if encErr != nil {
		return encErr
	}
	return fileErr
}
