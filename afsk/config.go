/*
NAME
  config.go

DESCRIPTION
  config.go defines the tightly coupled set of AFSK parameters. Per
  spec's design note on "parameter tuning as first-class data", these
  values are never scattered across the codec: the baud rate, sample
  rate, tone frequencies, filter bandwidth and bits-per-byte are derived
  from one Config so that changing one forces the others to be
  re-derived deliberately, not by accident.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package afsk implements the continuous-phase audio frequency-shift
// keying physical layer: byte stream to/from audio samples via Bell-202
// style mark/space tones, with matched band-pass filtering and bit-timing
// recovery on receive.
package afsk

import "github.com/pkg/errors"

// Default physical-layer parameters. These are the values named in spec;
// changing any one without re-deriving the others will desynchronize the
// link (see Config.Validate).
const (
	DefaultSampleRate     = 48000
	DefaultBaudRate       = 300
	DefaultMarkFreq       = 1200.0 // Binary 1.
	DefaultSpaceFreq      = 2200.0 // Binary 0.
	DefaultBandwidth      = 400.0  // Band-pass width around each tone, Hz.
	DefaultVolume         = 0.08   // Fraction of full scale, to avoid clipping cheap hardware.
	DefaultFilterTaps     = 128
	DefaultBitsPerByte    = 8
)

// Config is the single coherent set of AFSK parameters used by both
// Modulator and Demodulator.
type Config struct {
	// SampleRate is the audio device's sample rate in Hz. The
	// demodulator and modulator both scale their tables to this value;
	// it need not be 48000 so long as SampleRate/SamplesPerBit (the
	// effective bit rate, since SamplesPerBit is truncated to an integer)
	// stays close enough to BaudRate for bit-timing recovery to lock.
	SampleRate int

	// BaudRate is the symbol rate; one bit per symbol (no multi-bit
	// symbols), so this is also the bit rate.
	BaudRate int

	// MarkFreq and SpaceFreq are the two Bell-202-style tone
	// frequencies, in Hz, for binary 1 and binary 0 respectively.
	MarkFreq  float64
	SpaceFreq float64

	// Bandwidth is the band-pass filter's passband width, in Hz,
	// centered on each tone. 400 Hz is the minimum that reliably
	// recovers a 64-byte payload under 0.1%-class clock skew; narrower
	// rejects off-center energy under drift, wider lets mark and space
	// bands overlap.
	Bandwidth float64

	// Volume scales modulated output amplitude, 0.0-1.0.
	Volume float64

	// FilterTaps is the number of FIR taps used to build the mark and
	// space band-pass filters.
	FilterTaps int
}

// DefaultConfig returns the parameter set named in spec: 300 baud,
// 48 kHz, 1200/2200 Hz tones, 400 Hz bandwidth, 0.08 volume.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		BaudRate:   DefaultBaudRate,
		MarkFreq:   DefaultMarkFreq,
		SpaceFreq:  DefaultSpaceFreq,
		Bandwidth:  DefaultBandwidth,
		Volume:     DefaultVolume,
		FilterTaps: DefaultFilterTaps,
	}
}

// SamplesPerBit is the (possibly fractional, truncated) number of audio
// samples making up one bit interval at this Config's rates.
func (c Config) SamplesPerBit() int {
	return c.SampleRate / c.BaudRate
}

// Validate checks that the coupled parameters are mutually consistent and
// returns a descriptive error if not. It does not mutate c.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("afsk: sample rate must be positive")
	}
	if c.BaudRate <= 0 {
		return errors.New("afsk: baud rate must be positive")
	}
	if c.SamplesPerBit() < 4 {
		return errors.Errorf("afsk: sample rate %d too low for baud rate %d (need >=4 samples/bit)", c.SampleRate, c.BaudRate)
	}
	if c.MarkFreq <= 0 || c.SpaceFreq <= 0 {
		return errors.New("afsk: tone frequencies must be positive")
	}
	if c.MarkFreq == c.SpaceFreq {
		return errors.New("afsk: mark and space frequencies must differ")
	}
	nyquist := float64(c.SampleRate) / 2
	if c.MarkFreq >= nyquist || c.SpaceFreq >= nyquist {
		return errors.Errorf("afsk: tone frequency exceeds Nyquist limit %.1f Hz", nyquist)
	}
	separation := c.SpaceFreq - c.MarkFreq
	if separation < 0 {
		separation = -separation
	}
	if c.Bandwidth*2 >= separation {
		return errors.Errorf("afsk: bandwidth %.1f too wide for tone separation %.1f, must be less than half the separation", c.Bandwidth, separation)
	}
	if c.Volume <= 0 || c.Volume > 1 {
		return errors.New("afsk: volume must be in (0, 1]")
	}
	if c.FilterTaps <= 0 {
		return errors.New("afsk: filter taps must be positive")
	}
	return nil
}
