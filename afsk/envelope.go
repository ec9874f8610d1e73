/*
NAME
  envelope.go

DESCRIPTION
  envelope.go computes the per-sample envelope of a filtered tone (squared
  magnitude smoothed over one bit interval) and locates the bit boundary
  at which the receiver should start sampling: the largest rise in total
  filter energy, which in a capture that opens with silence is the start
  of the transmission (the first preamble bit).

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

import "gonum.org/v1/gonum/floats"

// envelope returns the squared-magnitude envelope of x, smoothed by a
// sliding window of window samples (one bit interval). It runs in O(n):
// floats.Sum seeds the first window, then each subsequent value is
// derived by adding the incoming sample and dropping the outgoing one.
func envelope(x []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	sq := make([]float64, len(x))
	for i, v := range x {
		sq[i] = v * v
	}

	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}

	end := window
	if end > len(sq) {
		end = len(sq)
	}
	sum := floats.Sum(sq[:end])
	out[0] = sum / float64(window)
	for i := 1; i < len(x); i++ {
		if i+window-1 < len(sq) {
			sum += sq[i+window-1]
		}
		if i-1 >= 0 {
			sum -= sq[i-1]
		}
		out[i] = sum / float64(window)
	}
	return out
}

// findBitBoundary scans total (the sum of the mark and space envelopes)
// for the sharpest rise within its first searchSamples samples, which
// marks the silence-to-signal transition at the start of a transmission,
// and returns the sample index of that rise. Demodulate centres its first
// bit sample half a bit interval after this index.
func findBitBoundary(total []float64, samplesPerBit, searchSamples int) int {
	if searchSamples > len(total) {
		searchSamples = len(total)
	}
	bestIdx := 0
	bestDelta := -1.0
	for i := 1; i < searchSamples; i++ {
		delta := total[i] - total[i-1]
		if delta > bestDelta {
			bestDelta = delta
			bestIdx = i
		}
	}
	return bestIdx
}
