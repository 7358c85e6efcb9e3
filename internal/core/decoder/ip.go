// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/siemtap/internal/core"
)

const ipv4HeaderMinLen = 20

// decodeIPv4 decodes an IPv4 header including options.
// The header length comes from the 4-bit IHL field, so at most 60 bytes are
// consumed. An IHL below 5 is rejected with core.ErrMalformedHeader.
func decodeIPv4(c Cursor) (core.IPv4Header, Cursor, error) {
	first, err := c.Peek(1)
	if err != nil {
		return core.IPv4Header{}, c, err
	}

	// IHL (Internet Header Length) - lower 4 bits of first byte
	headerLen := int(first[0]&0x0F) * 4 // IHL is in 32-bit words
	if headerLen < ipv4HeaderMinLen {
		return core.IPv4Header{}, c, core.ErrMalformedHeader
	}

	b, err := c.Take(headerLen)
	if err != nil {
		return core.IPv4Header{}, c, err
	}

	ip := core.IPv4Header{
		Version:   b[0] >> 4,
		HeaderLen: headerLen,
	}

	// Total Length (2 bytes at offset 2)
	ip.TotalLen = binary.BigEndian.Uint16(b[2:4])

	// TTL (1 byte at offset 8)
	ip.TTL = b[8]

	// Protocol (1 byte at offset 9)
	ip.Protocol = b[9]

	// Source IP (4 bytes at offset 12)
	ip.SrcIP = netip.AddrFrom4([4]byte(b[12:16]))

	// Destination IP (4 bytes at offset 16)
	ip.DstIP = netip.AddrFrom4([4]byte(b[16:20]))

	return ip, c, nil
}
