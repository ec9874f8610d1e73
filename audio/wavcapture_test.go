package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/require"
)

type discardLogger struct{ logging.Logger }

func (discardLogger) Debug(string, ...interface{})   {}
func (discardLogger) Info(string, ...interface{})    {}
func (discardLogger) Warning(string, ...interface{}) {}
func (discardLogger) Error(string, ...interface{})   {}
func (discardLogger) Fatal(string, ...interface{})   {}

func TestWAVCaptureWritesFile(t *testing.T) {
	lo := NewLoopback(8000, discardLogger{})
	path := filepath.Join(t.TempDir(), "capture.wav")
	wc, err := NewWAVCapture(lo, path)
	require.NoError(t, err)

	samples := make([]float32, 800)
	for i := range samples {
		samples[i] = 0.1
	}
	require.NoError(t, wc.Play(samples))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	opts := SilenceOptions{MinSamples: 100, SilenceDuration: 10 * time.Millisecond, Timeout: 500 * time.Millisecond}
	_, _ = wc.ReceiveUntilSilence(ctx, opts)

	require.NoError(t, wc.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(44)) // more than just a WAV header.
}
