/*
NAME
  modulator.go

DESCRIPTION
  modulator.go implements continuous-phase Bell-202 style AFSK
  modulation: each bit selects one of two tones, and the phase
  accumulator carries across bit boundaries so the instantaneous
  frequency switches without a phase discontinuity (no spectral splatter).

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

import "math"

// Modulator converts a byte stream into a continuous-phase AFSK audio
// signal. A Modulator is stateless between calls to Modulate; each call
// starts its own phase accumulator at zero, since every call corresponds
// to one independently transmitted frame.
type Modulator struct {
	cfg Config
}

// NewModulator returns a Modulator using cfg's sample rate, baud rate,
// tone frequencies and volume.
func NewModulator(cfg Config) *Modulator {
	return &Modulator{cfg: cfg}
}

// Modulate serializes data LSB-first, one bit per symbol, mark (1) at
// cfg.MarkFreq and space (0) at cfg.SpaceFreq, and returns the resulting
// audio samples scaled by cfg.Volume.
func (m *Modulator) Modulate(data []byte) []float32 {
	spb := m.cfg.SamplesPerBit()
	out := make([]float32, 0, len(data)*DefaultBitsPerByte*spb)

	var phase float64
	rate := float64(m.cfg.SampleRate)
	for _, b := range data {
		for bit := 0; bit < DefaultBitsPerByte; bit++ {
			freq := m.cfg.SpaceFreq
			if (b>>uint(bit))&1 == 1 {
				freq = m.cfg.MarkFreq
			}
			phaseInc := 2 * math.Pi * freq / rate
			for s := 0; s < spb; s++ {
				out = append(out, float32(m.cfg.Volume*math.Sin(phase)))
				phase += phaseInc
				if phase > 2*math.Pi {
					phase -= 2 * math.Pi
				}
			}
		}
	}
	return out
}

// SampleCount returns the number of samples Modulate would produce for n
// bytes of input, useful for sizing receive buffers and timing budgets.
func (m *Modulator) SampleCount(n int) int {
	return n * DefaultBitsPerByte * m.cfg.SamplesPerBit()
}
