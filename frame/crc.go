/*
NAME
  crc.go

DESCRIPTION
  CRC-16-CCITT (poly 0x1021, init 0xFFFF, no final XOR) as used to protect
  frame headers and payloads. The wire layout is described in frame.go.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package frame

// crc16Poly and crc16Init are the CCITT parameters specified by the wire
// format: polynomial 0x1021, initial value 0xFFFF, no final XOR.
const (
	crc16Poly = 0x1021
	crc16Init = 0xFFFF
)

var crc16Table = crc16MakeTable(crc16Poly)

// crc16MakeTable builds the byte-indexed lookup table for poly, bit-by-bit,
// the same way psi.crc32_MakeTable builds its CRC-32 table.
func crc16MakeTable(poly uint16) *[256]uint16 {
	var t [256]uint16
	for i := range t {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// crc16Update runs the table-driven CRC-16-CCITT over p, starting from crc.
func crc16Update(crc uint16, tab *[256]uint16, p []byte) uint16 {
	for _, v := range p {
		crc = tab[byte(crc>>8)^v] ^ (crc << 8)
	}
	return crc
}

// checksum computes the CRC-16-CCITT of header||payload, per the wire
// format in spec: covers Type, Sequence, Length and Payload, not the
// preamble or sync word.
func checksum(p []byte) uint16 {
	return crc16Update(crc16Init, crc16Table, p)
}
