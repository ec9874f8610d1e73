/*
DESCRIPTION
  gitmodem is the command-line entry point for the acoustic Git modem: it
  opens a session as either the connecting or listening side, then
  copies os.Stdin to the link and the link to os.Stdout, leaving the
  actual Git Smart HTTP plumbing to whatever shell wrapper invokes it (a
  remote-helper script, typically), per spec's scoping of that glue out
  of the core modem.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main is the gitmodem CLI: connect or listen, then pipe
// stdin/stdout through the acoustic link.
package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/gitmodem/afsk"
	"github.com/ausocean/gitmodem/modem"
	"github.com/ausocean/utils/logging"
)

// Logging configuration, matching cmd/speaker's file-rotation policy.
const (
	logPath      = "gitmodem.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

func main() {
	var (
		listen      = pflag.Bool("listen", false, "Act as the responder: wait for a peer to connect.")
		connect     = pflag.Bool("connect", false, "Act as the initiator: connect to a waiting peer.")
		backendName = pflag.String("backend", "loopback", "Audio backend: loopback, alsa, or portaudio.")
		audible     = pflag.Bool("audible", false, "With -backend=loopback, also emit audio to a real device.")
		wavPath     = pflag.String("wav-capture", "", "If set, record all TX/RX audio to this WAV file.")
		verbose     = pflag.BoolP("verbose", "v", false, "Enable debug-level logging.")
		timeout     = pflag.Duration("recv-timeout", 6*time.Second, "Per-capture receive timeout.")
	)
	pflag.Parse()

	level := logging.Info
	if *verbose {
		level = logging.Debug
	}
	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	l := logging.New(level, fileLog, true)

	if *listen == *connect {
		l.Fatal("exactly one of -listen or -connect is required")
	}

	backend, err := parseBackend(*backendName)
	if err != nil {
		l.Fatal("invalid backend", "error", err)
	}

	cfg := modem.Config{
		Backend:        backend,
		Audible:        *audible,
		AFSK:           afsk.DefaultConfig(),
		RecvTimeout:    *timeout,
		WAVCapturePath: *wavPath,
	}

	m, err := modem.New(cfg, l)
	if err != nil {
		l.Fatal("could not open modem", "error", err)
	}
	defer m.Close(context.Background())

	ctx := context.Background()
	if *connect {
		l.Info("connecting...")
		if err := m.Connect(ctx); err != nil {
			l.Fatal("connect failed", "error", err)
		}
	} else {
		l.Info("listening...")
		m.Listen()
		if err := m.Accept(ctx); err != nil {
			l.Fatal("accept failed", "error", err)
		}
	}
	l.Info("session established")

	stream := modem.NewStream(m, ctx)

	done := make(chan error, 2)
	go func() {
		_, err := io.Copy(stream, os.Stdin)
		done <- err
	}()
	go func() {
		_, err := io.Copy(os.Stdout, stream)
		done <- err
	}()

	if err := <-done; err != nil && err != io.EOF {
		l.Error("stream copy ended with error", "error", err)
	}
}

func parseBackend(name string) (modem.Backend, error) {
	switch name {
	case "loopback":
		return modem.BackendLoopback, nil
	case "alsa":
		return modem.BackendALSA, nil
	case "portaudio":
		return modem.BackendPortAudio, nil
	default:
		return 0, errUnknownBackend(name)
	}
}

type errUnknownBackend string

func (e errUnknownBackend) Error() string {
	return "unknown backend " + string(e)
}
