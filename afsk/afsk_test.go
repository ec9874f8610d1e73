package afsk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// leadingSilence pads the start of a capture with zero samples, modeling
// the silence a real receive_until_silence call would include before the
// peer's transmission begins.
func leadingSilence(cfg Config, seconds float64) []float32 {
	return make([]float32, int(float64(cfg.SampleRate)*seconds))
}

func TestModulateDemodulateRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	mod := NewModulator(cfg)
	demod, err := NewDemodulator(cfg)
	require.NoError(t, err)

	data := []byte{0xAA, 0xAA, 0xAA, 0x7E, 0x7E, 0x01, 0x02, 0x03}
	signal := mod.Modulate(data)

	capture := append(leadingSilence(cfg, 0.05), signal...)
	got := demod.Demodulate(capture)

	require.GreaterOrEqual(t, len(got), len(data))
	// The decoded stream should contain data as a contiguous run
	// somewhere after the boundary search locks on.
	require.Contains(t, string(got), string(data))
}

func TestConfigValidateRejectsOverlappingBands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bandwidth = 2000 // Would make the mark/space bands overlap.
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsLowSampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 100
	require.Error(t, cfg.Validate())
}

func TestSampleCountMatchesModulate(t *testing.T) {
	cfg := DefaultConfig()
	mod := NewModulator(cfg)
	data := make([]byte, 42)
	require.Len(t, mod.Modulate(data), mod.SampleCount(len(data)))
}
