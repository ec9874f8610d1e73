/*
NAME
  modem.go

DESCRIPTION
  modem.go implements Modem, the top-level object wiring one
  audio.Device through an arq.Link into a session.Session, and exposing
  exactly spec §6's upper boundary: Connect, Listen+Accept, Send, Recv,
  Close. Wiring mirrors the way the playok-audio-modem protocol.Session
  reference wires audio.AudioIO, its modulator/demodulator and a
  Transport together, adapted so modulation/demodulation and session
  bookkeeping are separate packages instead of one struct.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package modem

import (
	"context"
	"fmt"

	"github.com/ausocean/gitmodem/arq"
	"github.com/ausocean/gitmodem/audio"
	"github.com/ausocean/gitmodem/session"
	"github.com/ausocean/utils/logging"
)

// Modem is an application's handle onto one acoustic link: open a
// device, negotiate a session, then Send/Recv in-order reliable bytes.
type Modem struct {
	cfg     Config
	l       logging.Logger
	dev     audio.Device
	link    *arq.Link
	session *session.Session
}

// New opens cfg.Backend's audio.Device, builds the arq.Link and session
// over it, and returns a CLOSED Modem ready for Connect or Listen.
func New(cfg Config, l logging.Logger) (*Modem, error) {
	if err := cfg.Setup(l); err != nil {
		if l != nil {
			l.Warning("modem: configuration had defaulted fields", "error", err)
		}
	}

	dev, err := openDevice(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("modem: open audio device: %w", err)
	}
	if cfg.WAVCapturePath != "" {
		wc, err := audio.NewWAVCapture(dev, cfg.WAVCapturePath)
		if err != nil {
			return nil, fmt.Errorf("modem: open WAV capture: %w", err)
		}
		dev = wc
	}

	link, err := arq.NewLink(dev, cfg.AFSK, cfg.RecvTimeout, l)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("modem: build link: %w", err)
	}

	return &Modem{
		cfg:     cfg,
		l:       l,
		dev:     dev,
		link:    link,
		session: session.New(link, l),
	}, nil
}

func openDevice(cfg Config, l logging.Logger) (audio.Device, error) {
	switch cfg.Backend {
	case BackendLoopback:
		lo := audio.NewLoopback(cfg.AFSK.SampleRate, l)
		if cfg.Audible {
			pa, err := audio.OpenPortAudio(cfg.AFSK.SampleRate, l)
			if err != nil {
				return nil, fmt.Errorf("audible loopback: open output device: %w", err)
			}
			lo.SetAudible(pa)
		}
		return lo, nil
	case BackendALSA:
		return openALSA(cfg, l)
	case BackendPortAudio:
		return audio.OpenPortAudio(cfg.AFSK.SampleRate, l)
	default:
		return nil, fmt.Errorf("unknown backend %v", cfg.Backend)
	}
}

// Connect performs the initiator side of the session handshake.
func (m *Modem) Connect(ctx context.Context) error {
	return m.session.Connect(ctx)
}

// Listen marks this modem as the responder and waits for Accept to
// complete the handshake.
func (m *Modem) Listen() {
	m.session.Listen()
}

// Accept completes the responder side of the handshake begun by Listen.
func (m *Modem) Accept(ctx context.Context) error {
	return m.session.Accept(ctx)
}

// Send delivers payload reliably over an ESTABLISHED session.
func (m *Modem) Send(ctx context.Context, payload []byte) error {
	return m.session.Send(ctx, payload)
}

// Recv returns the next delivered payload from an ESTABLISHED session.
func (m *Modem) Recv(ctx context.Context) ([]byte, error) {
	return m.session.Recv(ctx)
}

// Close gracefully shuts down the session and releases the audio device.
// Idempotent, per spec's close()-twice requirement.
func (m *Modem) Close(ctx context.Context) error {
	_ = m.session.Close(ctx)
	return m.dev.Close()
}

// State reports the underlying session's current state.
func (m *Modem) State() session.State {
	return m.session.State()
}

// NewLoopback builds two Modems sharing a connected pair of loopback
// devices, for the end-to-end scenarios of spec §8: handshake, transfer,
// ACK-loss recovery, and so on, with no audio hardware required.
func NewLoopback(cfg Config, l logging.Logger) (initiator, responder *Modem, err error) {
	cfg.Backend = BackendLoopback
	if err := cfg.Setup(l); err != nil && l != nil {
		l.Warning("modem: configuration had defaulted fields", "error", err)
	}

	a := audio.NewLoopback(cfg.AFSK.SampleRate, l)
	b := audio.NewLoopback(cfg.AFSK.SampleRate, l)
	audio.ConnectLoopbacks(a, b)

	linkA, err := arq.NewLink(a, cfg.AFSK, cfg.RecvTimeout, l)
	if err != nil {
		return nil, nil, fmt.Errorf("modem: build initiator link: %w", err)
	}
	linkB, err := arq.NewLink(b, cfg.AFSK, cfg.RecvTimeout, l)
	if err != nil {
		return nil, nil, fmt.Errorf("modem: build responder link: %w", err)
	}

	initiator = &Modem{cfg: cfg, l: l, dev: a, link: linkA, session: session.New(linkA, l)}
	responder = &Modem{cfg: cfg, l: l, dev: b, link: linkB, session: session.New(linkB, l)}
	return initiator, responder, nil
}
