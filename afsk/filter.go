/*
NAME
  filter.go

DESCRIPTION
  filter.go builds the windowed-sinc FIR band-pass filters used to
  separate the mark and space tones on receive, the same way
  codec/pcm.NewBandPass builds a band-pass filter: a highpass and a
  lowpass FIR, convolved together via an FFT-based fast convolution.

AUTHOR
  David Sutton <davidsutton@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package afsk

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/pkg/errors"
)

// bandpassFilter holds the coefficients of a windowed-sinc FIR band-pass
// filter centered on a single tone.
type bandpassFilter struct {
	coeffs []float64
}

// newBandpass builds a band-pass filter over [centerHz-bw/2, centerHz+bw/2]
// at the given sample rate, with the requested number of FIR taps.
func newBandpass(centerHz, bw float64, sampleRate int, taps int) (*bandpassFilter, error) {
	lowHz := centerHz - bw/2
	highHz := centerHz + bw/2
	if lowHz <= 0 || highHz >= float64(sampleRate)/2 {
		return nil, errors.Errorf("afsk: band [%.1f, %.1f] out of bounds for sample rate %d", lowHz, highHz, sampleRate)
	}

	hp, err := newSincFilter(lowHz, float64(sampleRate), taps, true)
	if err != nil {
		return nil, errors.Wrap(err, "afsk: build highpass leg")
	}
	lp, err := newSincFilter(highHz, float64(sampleRate), taps, false)
	if err != nil {
		return nil, errors.Wrap(err, "afsk: build lowpass leg")
	}

	coeffs, err := fastConvolve(hp, lp)
	if err != nil {
		return nil, errors.Wrap(err, "afsk: convolve band edges")
	}
	return &bandpassFilter{coeffs: coeffs}, nil
}

// newSincFilter builds a windowed-sinc lowpass (highpass=false) or
// highpass (highpass=true) FIR filter with a cutoff at fc Hz, the same
// windowed-sinc construction codec/pcm.newLoHiFilter uses.
func newSincFilter(fc, rate float64, taps int, highpass bool) ([]float64, error) {
	if fc <= 0 || fc >= rate/2 {
		return nil, errors.New("afsk: cutoff frequency out of bounds")
	}
	if taps <= 0 {
		return nil, errors.New("afsk: filter must have a positive number of taps")
	}

	fd := fc / rate
	factor1, factor2 := 1.0, 2*fd
	if highpass {
		factor1, factor2 = -1.0, 1-2*fd
	}

	size := taps + 1
	coeffs := make([]float64, size)
	b := 2 * math.Pi * fd
	win := window.FlatTop(size)
	for n := 0; n < taps/2; n++ {
		c := float64(n) - float64(taps)/2
		y := math.Sin(c*b) / (math.Pi * c)
		coeffs[n] = factor1 * y * win[n]
		coeffs[size-1-n] = coeffs[n]
	}
	coeffs[taps/2] = factor2 * win[taps/2]
	return coeffs, nil
}

// apply convolves x with the filter's coefficients using the same
// FFT-based fast convolution as codec/pcm.convolveFromBytes, and trims
// the result back to len(x) by dropping the filter's startup transient.
func (f *bandpassFilter) apply(x []float64) []float64 {
	y, err := fastConvolve(x, f.coeffs)
	if err != nil || len(y) == 0 {
		return make([]float64, len(x))
	}
	half := len(f.coeffs) / 2
	out := make([]float64, len(x))
	for i := range out {
		j := i + half
		if j < len(y) {
			out[i] = y[j]
		}
	}
	return out
}

// fastConvolve computes the linear convolution of x and h in O(n log n)
// time via zero-padded FFT multiplication, exactly as
// codec/pcm.fastConvolve does.
func fastConvolve(x, h []float64) ([]float64, error) {
	if len(x) == 0 || len(h) == 0 {
		return nil, errors.New("afsk: convolution requires non-empty inputs")
	}

	convLen := len(x) + len(h) - 1
	padLen := int(math.Pow(2, math.Ceil(math.Log2(float64(convLen)))))

	xPad := make([]float64, padLen)
	copy(xPad, x)
	hPad := make([]float64, padLen)
	copy(hPad, h)

	xFFT, hFFT := fft.FFTReal(xPad), fft.FFTReal(hPad)
	yFFT := make([]complex128, padLen)
	for i := range xFFT {
		yFFT[i] = xFFT[i] * hFFT[i]
	}
	iy := fft.IFFT(yFFT)

	y := make([]float64, convLen)
	for i := range y {
		y[i] = real(iy[i])
	}
	return y, nil
}
