/*
NAME
  demodulator.go

DESCRIPTION
  demodulator.go implements AFSK demodulation: two band-pass filters
  separate the mark and space tones, an envelope detector measures each
  band's energy, bit-timing recovery locates the sampling instant, and
  the greater envelope at each bit center decides the bit value.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package afsk

import "github.com/pkg/errors"

// Demodulator recovers a byte stream from an AFSK audio signal. It is
// total but lossy under noise: the caller validates the result via the
// frame layer's CRC, never the demodulator itself.
type Demodulator struct {
	cfg         Config
	markFilter  *bandpassFilter
	spaceFilter *bandpassFilter
}

// NewDemodulator builds the mark and space band-pass filters for cfg and
// returns a ready Demodulator.
func NewDemodulator(cfg Config) (*Demodulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "afsk: invalid config")
	}
	mf, err := newBandpass(cfg.MarkFreq, cfg.Bandwidth, cfg.SampleRate, cfg.FilterTaps)
	if err != nil {
		return nil, errors.Wrap(err, "afsk: build mark filter")
	}
	sf, err := newBandpass(cfg.SpaceFreq, cfg.Bandwidth, cfg.SampleRate, cfg.FilterTaps)
	if err != nil {
		return nil, errors.Wrap(err, "afsk: build space filter")
	}
	return &Demodulator{cfg: cfg, markFilter: mf, spaceFilter: sf}, nil
}

// preambleSearchBits bounds how many bit intervals of a capture the
// boundary search scans: a 16-byte preamble is 128 bits, so searching
// 200 bit intervals covers it and tolerates up to 72 bit intervals of
// capture padding before the true preamble begins.
const preambleSearchBits = 200

// Demodulate recovers the byte stream carried by samples. It returns as
// many whole bytes as it could recover; a short trailing run of bits that
// doesn't fill a byte is discarded, since the frame layer's CRC will
// reject anything that was actually cut short.
func (d *Demodulator) Demodulate(samples []float32) []byte {
	spb := d.cfg.SamplesPerBit()
	if spb < 1 || len(samples) < spb {
		return nil
	}

	x := make([]float64, len(samples))
	for i, v := range samples {
		x[i] = float64(v)
	}

	markEnv := envelope(d.markFilter.apply(x), spb)
	spaceEnv := envelope(d.spaceFilter.apply(x), spb)

	total := make([]float64, len(x))
	for i := range total {
		total[i] = markEnv[i] + spaceEnv[i]
	}

	start := findBitBoundary(total, spb, spb*preambleSearchBits)

	var bits []byte
	for pos := start + spb/2; pos < len(x); pos += spb {
		if markEnv[pos] >= spaceEnv[pos] {
			bits = append(bits, 1)
		} else {
			bits = append(bits, 0)
		}
	}

	out := make([]byte, len(bits)/DefaultBitsPerByte)
	for i := range out {
		var v byte
		for j := 0; j < DefaultBitsPerByte; j++ {
			v |= bits[i*DefaultBitsPerByte+j] << uint(j)
		}
		out[i] = v
	}
	return out
}
