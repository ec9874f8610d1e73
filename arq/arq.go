/*
NAME
  arq.go

DESCRIPTION
  arq.go implements the Stop-and-Wait reliable transport: one frame
  outstanding at a time, sequence-bit alternation to tell a fresh
  delivery from a retransmission, and duplicate re-ACK without
  re-delivery. The constants below are a single coherent set, per
  spec's "parameter tuning as first-class data" note: DefaultTimeout is
  long enough for a 64-byte frame.MaxPayload frame at afsk's default
  300 baud to round-trip with margin, and TurnaroundGuard gives the
  peer's Device time to flip from receive to transmit before the ACK is
  expected to start arriving.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package arq

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ausocean/gitmodem/frame"
	"github.com/ausocean/utils/logging"
)

// Default Stop-and-Wait parameters.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultRetries  = 5
	TurnaroundGuard = 50 * time.Millisecond
)

// ErrLinkFailure is returned by Send once DefaultRetries have all timed
// out without a matching ACK.
var ErrLinkFailure = errors.New("arq: link failure, retries exhausted")

// Transport implements Stop-and-Wait ARQ over a Link.
type Transport struct {
	link    *Link
	l       logging.Logger
	retries int
	timeout time.Duration

	seqOut byte // Sequence bit of the next frame this side sends.
	seqIn  byte // Sequence bit expected of the next frame this side accepts.
}

// NewTransport returns a Transport with spec's default retry count and
// per-attempt timeout. Both sides of a link start with sequence bit 0.
func NewTransport(link *Link, l logging.Logger) *Transport {
	return &Transport{
		link:    link,
		l:       l,
		retries: DefaultRetries,
		timeout: DefaultTimeout,
	}
}

// Send delivers payload exactly once to a correctly-operating peer. Per
// spec's datagram/segment split, payload is broken here into
// frame.MaxPayload-sized segments, each carried by its own DATA frame
// and individually retransmitted on timeout, NAK, or a mismatched ACK
// up to t.retries times before giving up with ErrLinkFailure. Callers
// (Session.Send, Modem.Send) are not bound by frame.MaxPayload.
func (t *Transport) Send(ctx context.Context, payload []byte) error {
	for _, seg := range segmentPayload(payload) {
		if err := t.sendSegment(ctx, seg); err != nil {
			return err
		}
	}
	return nil
}

// segmentPayload splits payload into frame.MaxPayload-sized pieces. A
// payload whose length is a non-zero multiple of frame.MaxPayload gets
// an extra empty trailing segment appended, since otherwise its last
// full-sized segment would be indistinguishable from "more to follow"
// once Recv reassembles them (a segment shorter than frame.MaxPayload
// is what signals the end of a datagram).
func segmentPayload(payload []byte) [][]byte {
	if len(payload) == 0 {
		return [][]byte{payload}
	}
	var segs [][]byte
	for off := 0; off < len(payload); off += frame.MaxPayload {
		end := off + frame.MaxPayload
		if end > len(payload) {
			end = len(payload)
		}
		segs = append(segs, payload[off:end])
	}
	if len(segs[len(segs)-1]) == frame.MaxPayload {
		segs = append(segs, nil)
	}
	return segs
}

// sendSegment delivers one frame.MaxPayload-or-smaller segment exactly
// once, retransmitting on timeout, NAK, or a mismatched ACK.
func (t *Transport) sendSegment(ctx context.Context, payload []byte) error {
	f := frame.Frame{Type: frame.DATA, Seq: t.seqOut, Payload: payload}

	for attempt := 0; attempt <= t.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.link.SendFrame(f); err != nil {
			return errors.Wrap(err, "arq: send data frame")
		}

		time.Sleep(TurnaroundGuard)

		ackCtx, cancel := context.WithTimeout(ctx, t.timeout)
		reply, err := t.link.RecvFrame(ackCtx)
		cancel()
		if err != nil {
			if t.l != nil {
				t.l.Debug("arq: no reply, retrying", "attempt", attempt, "seq", f.Seq)
			}
			continue
		}

		switch {
		case reply.Type == frame.ACK && reply.Seq == f.Seq:
			t.seqOut ^= 1
			return nil
		case reply.Type == frame.NAK:
			// NAK is never emitted by this implementation's own receiver,
			// but a peer that does emit it is treated exactly like a
			// timeout: retransmit immediately rather than waiting out the
			// rest of this attempt's timer.
			if t.l != nil {
				t.l.Debug("arq: received NAK, retrying immediately", "seq", f.Seq)
			}
			continue
		default:
			// Stale ACK (peer re-acking our previous frame) or noise
			// decoded into something unrelated; ignore and retry.
			if t.l != nil {
				t.l.Debug("arq: unexpected reply, retrying", "got_type", reply.Type, "got_seq", reply.Seq, "want_seq", f.Seq)
			}
		}
	}
	return ErrLinkFailure
}

// Recv blocks until a complete datagram has arrived, reassembling it
// from one or more segment-carrying DATA frames: a segment shorter than
// frame.MaxPayload ends the datagram, matching how Send's
// segmentPayload lays them out.
func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	var out []byte
	for {
		seg, err := t.recvSegment(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, seg...)
		if len(seg) < frame.MaxPayload {
			return out, nil
		}
	}
}

// recvSegment blocks until a DATA frame with the expected sequence bit
// arrives, ACKing it and returning its payload. A DATA frame carrying
// the previous sequence bit is a retransmission of a frame already
// delivered: recvSegment re-ACKs it without returning it to the caller,
// then keeps waiting.
func (t *Transport) recvSegment(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, err := t.link.RecvFrame(ctx)
		if err != nil {
			continue
		}
		if f.Type != frame.DATA {
			continue
		}

		if f.Seq != t.seqIn {
			// Duplicate: our previous ACK was lost. Re-ACK with the
			// peer's sequence bit, but do not deliver the payload again.
			if t.l != nil {
				t.l.Debug("arq: re-acking duplicate frame", "seq", f.Seq)
			}
			t.ack(f.Seq)
			continue
		}

		t.ack(f.Seq)
		t.seqIn ^= 1
		return f.Payload, nil
	}
}

func (t *Transport) ack(seq byte) {
	if err := t.link.SendFrame(frame.Frame{Type: frame.ACK, Seq: seq}); err != nil && t.l != nil {
		t.l.Warning("arq: failed to send ACK", "error", err)
	}
}
