// Package transport encodes function updates into the simulator's 5-byte
// UDP packet and delivers them best-effort.
package transport

import "encoding/binary"

// Wire packet layout, big-endian:
//
//	byte 0    header, 0xE0 with the audio/priority flag, 0x60 without
//	byte 1-2  function id (uint16)
//	byte 3    value
//	byte 4    XOR checksum of bytes 0-3
const (
	HeaderPriority byte = 0xE0
	HeaderNormal   byte = 0x60

	PacketSize = 5
)

// Encode builds the wire packet for one function update.
func Encode(functionID uint16, value uint8, highPriority bool) [PacketSize]byte {
	var p [PacketSize]byte
	if highPriority {
		p[0] = HeaderPriority
	} else {
		p[0] = HeaderNormal
	}
	binary.BigEndian.PutUint16(p[1:3], functionID)
	p[3] = value
	p[4] = p[0] ^ p[1] ^ p[2] ^ p[3]
	return p
}
