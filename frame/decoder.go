/*
NAME
  decoder.go

DESCRIPTION
  decoder.go implements a generator-style frame scanner: an explicit
  state machine over an incoming byte stream that yields frames one at a
  time, per spec's "parameter tuning as first-class data" /
  "generator-style frame scanning" design note. Replaying a failed
  candidate (resync) is recursive: resync feeds bytes back through
  PushByte, which calls resync again if a nested candidate also fails.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package frame

import (
	"github.com/ausocean/utils/logging"
)

// decodeState is the Decoder's scan position within a candidate frame.
type decodeState int

const (
	scanningSync decodeState = iota
	readingHeader
	readingPayload
	readingCRC
)

// Decoder scans a byte stream for sync-delimited frames. It holds exactly
// one working frame buffer, pre-allocated and reused across frames. On a
// failed candidate (bad header length or CRC mismatch) it resumes
// scanning one byte after the failed sync word, by replaying every byte
// from that point through the state machine again, so a genuine sync
// word that happened to fall inside the discarded candidate is not
// skipped over.
type Decoder struct {
	l logging.Logger

	state  decodeState
	syncAt int // number of SyncWord bytes matched so far.

	header  [headerSize]byte
	headerN int

	ftype    Type
	seq      byte
	length   int
	payload  []byte
	payloadN int

	crc  [crcSize]byte
	crcN int

	// raw accumulates every byte consumed from one byte after the sync
	// word's first byte (i.e. starting at the sync word's second byte)
	// through the current candidate, so a failed candidate can be
	// replayed through the state machine instead of simply discarded.
	raw []byte
}

// NewDecoder returns a Decoder that logs CRC-mismatch diagnostics to l.
func NewDecoder(l logging.Logger) *Decoder {
	return &Decoder{l: l}
}

// Reset returns the Decoder to scanningSync, discarding any partially
// read candidate frame. Used between independent receive attempts (e.g.
// one per silence-terminated audio capture).
func (d *Decoder) Reset() {
	d.state = scanningSync
	d.syncAt = 0
	d.headerN = 0
	d.payloadN = 0
	d.crcN = 0
	d.raw = nil
}

// PushByte advances the state machine by one byte. It returns a decoded
// Frame and true only when a CRC-valid frame has just completed.
// Truncated candidates (stream ends mid-frame) simply never complete;
// the caller detects this by exhausting its input, not through an error.
func (d *Decoder) PushByte(b byte) (Frame, bool) {
	switch d.state {
	case scanningSync:
		if b == SyncWord[d.syncAt] {
			d.syncAt++
			if d.syncAt == len(SyncWord) {
				d.state = readingHeader
				d.headerN = 0
				d.raw = append(d.raw[:0], SyncWord[1])
			}
			return Frame{}, false
		}
		// No match at the current position. A spurious sync byte inside
		// noise may still start a new candidate, so check whether b
		// itself restarts the pattern rather than resetting blindly.
		if b == SyncWord[0] {
			d.syncAt = 1
		} else {
			d.syncAt = 0
		}
		return Frame{}, false

	case readingHeader:
		d.raw = append(d.raw, b)
		d.header[d.headerN] = b
		d.headerN++
		if d.headerN < headerSize {
			return Frame{}, false
		}
		d.ftype = Type(d.header[0])
		d.seq = d.header[1]
		d.length = int(d.header[2])
		if d.length > MaxPayload {
			// Not a legal frame; this sync match was spurious. Resume
			// scanning one byte after the failed sync by replaying
			// everything read since then, in case a real sync word
			// starts somewhere inside it.
			if d.l != nil {
				d.l.Debug("frame: header length exceeds maximum, discarding candidate",
					"length", d.length, "max", MaxPayload)
			}
			return d.resync()
		}
		if d.length == 0 {
			d.payload = nil
			d.state = readingCRC
			d.crcN = 0
			return Frame{}, false
		}
		d.payload = make([]byte, d.length)
		d.payloadN = 0
		d.state = readingPayload
		return Frame{}, false

	case readingPayload:
		d.raw = append(d.raw, b)
		d.payload[d.payloadN] = b
		d.payloadN++
		if d.payloadN < d.length {
			return Frame{}, false
		}
		d.state = readingCRC
		d.crcN = 0
		return Frame{}, false

	case readingCRC:
		d.raw = append(d.raw, b)
		d.crc[d.crcN] = b
		d.crcN++
		if d.crcN < crcSize {
			return Frame{}, false
		}
		received := uint16(d.crc[0])<<8 | uint16(d.crc[1])
		computed := checksum(append(append([]byte{}, d.header[:]...), d.payload...))
		ftype, seq, payload := d.ftype, d.seq, d.payload
		if received != computed {
			if d.l != nil {
				n := len(payload)
				if n > 8 {
					n = 8
				}
				d.l.Debug("frame: crc mismatch, discarding frame",
					"received", received, "computed", computed,
					"length", len(payload), "payload_prefix", payload[:n])
			}
			return d.resync()
		}
		d.Reset()
		return Frame{Type: ftype, Seq: seq, Payload: payload}, true

	default:
		d.Reset()
		return Frame{}, false
	}
}

// resync resets the state machine, then replays every byte collected
// since one byte after the just-failed sync word back through it. A
// genuine sync word that started inside the discarded candidate is
// found this way instead of skipped; recursion terminates because each
// replay starts strictly later in a strictly shorter byte span.
func (d *Decoder) resync() (Frame, bool) {
	raw := append([]byte{}, d.raw...)
	d.Reset()
	for _, rb := range raw {
		if f, ok := d.PushByte(rb); ok {
			return f, true
		}
	}
	return Frame{}, false
}

// PushBytes feeds p through PushByte and returns every frame that
// completed while doing so, in order.
func (d *Decoder) PushBytes(p []byte) []Frame {
	var out []Frame
	for _, b := range p {
		if f, ok := d.PushByte(b); ok {
			out = append(out, f)
		}
	}
	return out
}
