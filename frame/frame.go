/*
NAME
  frame.go

DESCRIPTION
  frame.go defines the on-wire frame layout shared by every acoustic modem
  link: a preamble, a two-byte sync word, a three-byte header, an opaque
  payload and a CRC-16-CCITT trailer.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package frame implements the preamble-synchronized, length-delimited,
// CRC-protected frame format that carries the reliable transport's
// segments over the AFSK physical layer.
package frame

import (
	"github.com/pkg/errors"
)

// Type identifies the role a frame plays in the reliable transport and
// session state machines.
type Type byte

// Frame types, in the order they appear in spec.
const (
	DATA Type = iota
	ACK
	NAK
	SYN
	SYNACK
	FIN
	RST
)

// String gives the frame type a readable name for logging.
func (t Type) String() string {
	switch t {
	case DATA:
		return "DATA"
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	case SYN:
		return "SYN"
	case SYNACK:
		return "SYN-ACK"
	case FIN:
		return "FIN"
	case RST:
		return "RST"
	default:
		return "UNKNOWN"
	}
}

// Wire layout constants. MaxPayload, the header width and the preamble and
// sync patterns are a single coherent configuration: changing MaxPayload
// without re-deriving the ARQ timeout in package arq and the AFSK
// bandwidth in package afsk will desynchronize the link.
const (
	// MaxPayload is the largest payload, in bytes, a single frame may
	// carry. Length is encoded in one byte, so this is also the largest
	// value Length may legally hold.
	MaxPayload = 64

	// headerSize is Type + Sequence + Length, in bytes.
	headerSize = 3

	// crcSize is the width of the CRC-16 trailer, in bytes.
	crcSize = 2

	// PreambleLen is the number of alternating-bit synchronization bytes
	// sent before every frame, giving the receiver's bit clock time to
	// lock on.
	PreambleLen = 16

	// PreambleByte alternates 1 and 0 bits (10101010) so that, once
	// mark/space-modulated, it produces a clean alternating tone for
	// clock recovery.
	PreambleByte = 0xAA
)

// SyncWord marks the start of a frame immediately after the preamble.
var SyncWord = [2]byte{0x7E, 0x7E}

// errPayloadTooLong is returned by Encode when a caller supplies more than
// MaxPayload bytes of payload.
var errPayloadTooLong = errors.New("frame: payload exceeds maximum length")

// Frame is the decoded representation of one frame: header fields plus
// payload. Preamble and sync are wire-only artifacts of Encode/the
// Decoder and are never represented here.
type Frame struct {
	Type    Type
	Seq     byte
	Payload []byte
}

// Encode serializes f as preamble || sync || header || payload || crc. It
// returns errPayloadTooLong if len(f.Payload) > MaxPayload; the encoder
// never truncates or splits -- that is the reliable transport's job.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, errors.Wrapf(errPayloadTooLong, "length %d > %d", len(f.Payload), MaxPayload)
	}

	out := make([]byte, 0, PreambleLen+2+headerSize+len(f.Payload)+crcSize)
	for i := 0; i < PreambleLen; i++ {
		out = append(out, PreambleByte)
	}
	out = append(out, SyncWord[0], SyncWord[1])

	header := []byte{byte(f.Type), f.Seq, byte(len(f.Payload))}
	out = append(out, header...)
	out = append(out, f.Payload...)

	crc := checksum(append(append([]byte{}, header...), f.Payload...))
	out = append(out, byte(crc>>8), byte(crc))

	return out, nil
}
