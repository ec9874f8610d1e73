package arq_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ausocean/gitmodem/afsk"
	"github.com/ausocean/gitmodem/arq"
	"github.com/ausocean/gitmodem/audio"
	"github.com/ausocean/utils/logging"
)

type nopLogger struct{ logging.Logger }

func (nopLogger) Debug(string, ...interface{})   {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{})   {}
func (nopLogger) Fatal(string, ...interface{})   {}

func newPair(t *testing.T) (*arq.Transport, *arq.Transport) {
	t.Helper()
	cfg := afsk.DefaultConfig()
	cfg.SampleRate = 8000 // Faster tests; still >=4 samples/bit at 300 baud.

	a := audio.NewLoopback(cfg.SampleRate, nopLogger{})
	b := audio.NewLoopback(cfg.SampleRate, nopLogger{})
	audio.ConnectLoopbacks(a, b)

	linkA, err := arq.NewLink(a, cfg, 2*time.Second, nopLogger{})
	require.NoError(t, err)
	linkB, err := arq.NewLink(b, cfg, 2*time.Second, nopLogger{})
	require.NoError(t, err)

	return arq.NewTransport(linkA, nopLogger{}), arq.NewTransport(linkB, nopLogger{})
}

// faultyDevice wraps a Loopback so tests can simulate a physical link
// dropping a transmission outright (lost ACK/DATA) or corrupting one
// (garbled tone energy in the payload region, a CRC-breaking channel
// error) without touching the AFSK or frame layers themselves.
type faultyDevice struct {
	*audio.Loopback

	mu      sync.Mutex
	drop    int
	corrupt int
	calls   int
}

func newFaultyDevice(rate int, l logging.Logger) *faultyDevice {
	return &faultyDevice{Loopback: audio.NewLoopback(rate, l)}
}

// dropNext makes the next n Play calls vanish as if never transmitted.
func (f *faultyDevice) dropNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drop = n
}

// corruptNext makes the next n Play calls deliver a frame with the
// samples from 60% to 80% of its length zeroed, which lands in the
// payload region of a long DATA frame, so the peer's CRC check fails on
// arrival.
func (f *faultyDevice) corruptNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrupt = n
}

func (f *faultyDevice) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *faultyDevice) Play(samples []float32) error {
	f.mu.Lock()
	f.calls++
	drop := f.drop > 0
	if drop {
		f.drop--
	}
	corrupt := !drop && f.corrupt > 0
	if corrupt {
		f.corrupt--
	}
	f.mu.Unlock()

	if drop {
		return nil
	}
	if corrupt {
		samples = append([]float32(nil), samples...)
		lo, hi := len(samples)*6/10, len(samples)*8/10
		for i := lo; i < hi; i++ {
			samples[i] = 0
		}
	}
	return f.Loopback.Play(samples)
}

// newFaultyPair mirrors newPair but returns the fault-injecting devices
// alongside the transports, so a test can arrange a drop or corruption
// on either side of the link before exercising Send/Recv.
func newFaultyPair(t *testing.T, recvTimeout time.Duration) (sender, receiver *arq.Transport, devA, devB *faultyDevice) {
	t.Helper()
	cfg := afsk.DefaultConfig()
	cfg.SampleRate = 8000

	devA = newFaultyDevice(cfg.SampleRate, nopLogger{})
	devB = newFaultyDevice(cfg.SampleRate, nopLogger{})
	audio.ConnectLoopbacks(devA.Loopback, devB.Loopback)

	linkA, err := arq.NewLink(devA, cfg, recvTimeout, nopLogger{})
	require.NoError(t, err)
	linkB, err := arq.NewLink(devB, cfg, recvTimeout, nopLogger{})
	require.NoError(t, err)

	return arq.NewTransport(linkA, nopLogger{}), arq.NewTransport(linkB, nopLogger{}), devA, devB
}

func TestSendRecvRoundTrip(t *testing.T) {
	sender, receiver := newPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	payload := []byte("hello modem")
	done := make(chan error, 1)
	go func() { done <- sender.Send(ctx, payload) }()

	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, <-done)
}

func TestSequenceAlternation(t *testing.T) {
	sender, receiver := newPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		payload := []byte{byte(i)}
		done := make(chan error, 1)
		go func() { done <- sender.Send(ctx, payload) }()

		got, err := receiver.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, payload, got)
		require.NoError(t, <-done)
	}
}

// TestACKLossRecovered covers a lost ACK: the receiver delivers and
// acks a frame normally, but the ACK itself never reaches the sender.
// The sender's retransmission is a duplicate by sequence bit, so the
// receiver re-acks it without redelivering, and both sides' subsequent
// round trip proceeds as if nothing were lost.
func TestACKLossRecovered(t *testing.T) {
	sender, receiver, _, devB := newFaultyPair(t, 300*time.Millisecond)
	devB.dropNext(1) // The first ACK devB plays (for the first DATA frame) is lost.

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var received [][]byte
	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		for i := 0; i < 2; i++ {
			got, err := receiver.Recv(ctx)
			if err != nil {
				return
			}
			received = append(received, got)
		}
	}()

	payloads := [][]byte{[]byte("first"), []byte("second")}
	for _, p := range payloads {
		require.NoError(t, sender.Send(ctx, p))
	}

	<-recvDone
	require.Equal(t, payloads, received)
}

// TestCorruptFrameRetransmitted covers a channel error scrambling a
// DATA frame's payload region in transit: the CRC check fails, the
// receiver never acks it, and the sender's timeout-driven retransmit
// (uncorrupted this time) completes the transfer.
func TestCorruptFrameRetransmitted(t *testing.T) {
	sender, receiver, devA, _ := newFaultyPair(t, 300*time.Millisecond)
	devA.corruptNext(1) // The first DATA frame devA plays arrives scrambled.

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload := []byte("this payload is long enough that zeroing 60-80% of its first frame lands inside the payload region")
	sendErr := make(chan error, 1)
	go func() { sendErr <- sender.Send(ctx, payload) }()

	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, <-sendErr)
}

// TestRetryExhaustionReturnsLinkFailure covers a link that never
// completes a round trip: every ACK is lost, so the sender exhausts
// DefaultRetries and gives up with ErrLinkFailure. The receiver still
// sees the same DATA frame delivered only once, despite being handed
// it (and re-acking it) on every one of the sender's attempts.
func TestRetryExhaustionReturnsLinkFailure(t *testing.T) {
	sender, receiver, _, devB := newFaultyPair(t, 300*time.Millisecond)
	devB.dropNext(1000) // No ACK from devB ever reaches the sender.

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deliveries := 0
	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		for {
			if _, err := receiver.Recv(ctx); err != nil {
				return
			}
			deliveries++
		}
	}()

	err := sender.Send(ctx, []byte("never-acked"))
	require.ErrorIs(t, err, arq.ErrLinkFailure)

	cancel() // Unblock the receiver goroutine, still waiting on a frame that won't arrive.
	<-recvDone

	require.Equal(t, 1, deliveries)
	// One genuine delivery plus at most DefaultRetries duplicate re-acks.
	require.LessOrEqual(t, devB.playCount()-1, arq.DefaultRetries)
}
