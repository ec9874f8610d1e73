//go:build linux

package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPCM16RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999, -0.999}
	got := pcm16ToFloat32(float32ToPCM16(samples))
	require.Len(t, got, len(samples))
	for i, s := range samples {
		require.InDelta(t, float64(s), float64(got[i]), 0.001)
	}
}

func TestNearestPowerOfTwo(t *testing.T) {
	cases := map[int]int{
		0:    1,
		1:    2,
		3:    4,
		5:    4,
		6:    8,
		1000: 1024,
	}
	for in, want := range cases {
		require.Equal(t, want, nearestPowerOfTwo(in), "input %d", in)
	}
}
