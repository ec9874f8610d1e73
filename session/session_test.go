package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ausocean/gitmodem/afsk"
	"github.com/ausocean/gitmodem/arq"
	"github.com/ausocean/gitmodem/audio"
	"github.com/ausocean/gitmodem/session"
	"github.com/ausocean/utils/logging"
)

type nopLogger struct{ logging.Logger }

func (nopLogger) Debug(string, ...interface{})   {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{})   {}
func (nopLogger) Fatal(string, ...interface{})   {}

func newSessionPair(t *testing.T) (*session.Session, *session.Session) {
	t.Helper()
	cfg := afsk.DefaultConfig()
	cfg.SampleRate = 8000

	a := audio.NewLoopback(cfg.SampleRate, nopLogger{})
	b := audio.NewLoopback(cfg.SampleRate, nopLogger{})
	audio.ConnectLoopbacks(a, b)

	linkA, err := arq.NewLink(a, cfg, 2*time.Second, nopLogger{})
	require.NoError(t, err)
	linkB, err := arq.NewLink(b, cfg, 2*time.Second, nopLogger{})
	require.NoError(t, err)

	return session.New(linkA, nopLogger{}), session.New(linkB, nopLogger{})
}

func TestHandshakeEstablishes(t *testing.T) {
	initiator, responder := newSessionPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	responder.Listen()

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- responder.Accept(ctx) }()

	require.NoError(t, initiator.Connect(ctx))
	require.NoError(t, <-acceptErr)

	require.Equal(t, session.Established, initiator.State())
	require.Equal(t, session.Established, responder.State())
}

func TestSendRecvAfterHandshake(t *testing.T) {
	initiator, responder := newSessionPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	responder.Listen()
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- responder.Accept(ctx) }()
	require.NoError(t, initiator.Connect(ctx))
	require.NoError(t, <-acceptErr)

	payload := []byte("git-upload-pack request")
	sendErr := make(chan error, 1)
	go func() { sendErr <- initiator.Send(ctx, payload) }()

	got, err := responder.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoError(t, <-sendErr)
}

func TestCloseIsIdempotent(t *testing.T) {
	initiator, responder := newSessionPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	responder.Listen()
	acceptErr := make(chan error, 1)
	go func() { acceptErr <- responder.Accept(ctx) }()
	require.NoError(t, initiator.Connect(ctx))
	require.NoError(t, <-acceptErr)

	closeErr := make(chan error, 1)
	go func() { closeErr <- initiator.Close(ctx) }()
	waitErr := make(chan error, 1)
	go func() { waitErr <- responder.WaitClose(ctx) }()
	require.NoError(t, <-closeErr)
	require.NoError(t, <-waitErr)
	require.Equal(t, session.CLOSED, initiator.State())
	require.Equal(t, session.CLOSED, responder.State())

	require.NoError(t, initiator.Close(ctx))
	require.Equal(t, session.CLOSED, initiator.State())
}
