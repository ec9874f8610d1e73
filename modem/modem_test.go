package modem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ausocean/gitmodem/afsk"
	"github.com/ausocean/gitmodem/modem"
	"github.com/ausocean/gitmodem/session"
	"github.com/ausocean/utils/logging"
)

type nopLogger struct{ logging.Logger }

func (nopLogger) Debug(string, ...interface{})   {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{})   {}
func (nopLogger) Fatal(string, ...interface{})   {}

func testConfig() modem.Config {
	cfg := afsk.DefaultConfig()
	cfg.SampleRate = 8000
	return modem.Config{AFSK: cfg, RecvTimeout: 3 * time.Second}
}

// TestNewModemStartsClosed checks a freshly constructed Modem has not
// jumped ahead of the CLOSED initial state spec requires.
func TestNewModemStartsClosed(t *testing.T) {
	cfg := testConfig()
	m, err := modem.New(cfg, nopLogger{})
	require.NoError(t, err)
	defer m.Close(context.Background())

	require.Equal(t, session.CLOSED, m.State())
}

func TestHandshakeAndTransfer(t *testing.T) {
	cfg := testConfig()
	initiator, responder, err := modem.NewLoopback(cfg, nopLogger{})
	require.NoError(t, err)
	defer initiator.Close(context.Background())
	defer responder.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	responder.Listen()
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- responder.Accept(ctx) }()
	require.NoError(t, initiator.Connect(ctx))
	require.NoError(t, <-acceptErr)

	payload := []byte("Hello from acoustic modem! Testing 1-2-3.")
	sendErr := make(chan error, 1)
	go func() { sendErr <- initiator.Send(ctx, payload) }()

	got, err := responder.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, <-sendErr)
}

func TestStreamReadWrite(t *testing.T) {
	cfg := testConfig()
	initiator, responder, err := modem.NewLoopback(cfg, nopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	responder.Listen()
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- responder.Accept(ctx) }()
	require.NoError(t, initiator.Connect(ctx))
	require.NoError(t, <-acceptErr)

	writer := modem.NewStream(initiator, ctx)
	reader := modem.NewStream(responder, ctx)

	payload := []byte("git-upload-pack output")
	writeErr := make(chan error, 1)
	go func() {
		_, err := writer.Write(payload)
		writeErr <- err
	}()

	buf := make([]byte, len(payload))
	n, err := reader.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])
	require.NoError(t, <-writeErr)
}
