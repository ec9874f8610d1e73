/*
NAME
  stream.go

DESCRIPTION
  stream.go adapts a Modem into a standard io.ReadWriteCloser, so the
  remote-helper glue that pipes a Git transfer through this link (out of
  core scope per spec) can use a familiar Go I/O contract instead of the
  explicit Send/Recv calls. Recv's whole-payload delivery is buffered
  across Read calls that ask for fewer bytes than one delivery contains.

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
)

// Stream wraps a Modem as an io.ReadWriteCloser. Modem.Send (via
// arq.Transport.Send) already segments an arbitrarily large datagram
// into frame.MaxPayload-sized frames internally, so Write hands p to
// Send whole; Read mirrors this by buffering a delivered datagram
// across calls that ask for fewer bytes than it contains.
type Stream struct {
	m   *Modem
	ctx context.Context

	pending []byte // Undelivered remainder of the last Recv.
}

// NewStream returns a Stream bound to ctx: every Read/Write call uses
// ctx for cancellation and deadlines, since io.ReadWriteCloser has no
// per-call context parameter of its own.
func NewStream(m *Modem, ctx context.Context) *Stream {
	return &Stream{m: m, ctx: ctx}
}

// Write sends p reliably as a single datagram.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.m.Send(s.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read fills p from previously delivered payloads, requesting a new one
// via Recv when the buffer is empty.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		payload, err := s.m.Recv(s.ctx)
		if err != nil {
			return 0, err
		}
		s.pending = payload
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close shuts down the underlying Modem.
func (s *Stream) Close() error {
	return s.m.Close(s.ctx)
}
