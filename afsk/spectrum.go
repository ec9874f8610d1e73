/*
NAME
  spectrum.go

DESCRIPTION
  spectrum.go provides a diagnostic-only dominant-frequency estimate,
  used by arq.Link.RecvFrame to report what tone a capture actually
  carried when it failed to yield a decoded frame. It plays no role in
  demodulation itself.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package afsk

import "gonum.org/v1/gonum/dsp/fourier"

// DominantFrequency returns the frequency, in Hz, of the largest
// magnitude bin in samples' discrete Fourier transform. It is a coarse
// diagnostic (resolution is sampleRate/len(samples)), intended for
// logging, not for the demodulation path.
func DominantFrequency(samples []float32, sampleRate int) float64 {
	if len(samples) == 0 || sampleRate <= 0 {
		return 0
	}
	x := make([]float64, len(samples))
	for i, v := range samples {
		x[i] = float64(v)
	}

	fft := fourier.NewFFT(len(x))
	coeffs := fft.Coefficients(nil, x)

	bestBin := 0
	bestMag := -1.0
	// For a real input, Coefficients returns only the len(x)/2+1
	// non-negative-frequency bins; bin 0 (DC) is skipped.
	for i := 1; i < len(coeffs); i++ {
		mag := real(coeffs[i])*real(coeffs[i]) + imag(coeffs[i])*imag(coeffs[i])
		if mag > bestMag {
			bestMag = mag
			bestBin = i
		}
	}
	return float64(bestBin) * float64(sampleRate) / float64(len(x))
}
