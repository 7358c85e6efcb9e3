// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/siemtap/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// decodeTransport decodes the transport layer header (TCP/UDP).
// Other protocols report ok=false and leave the cursor where it was.
func decodeTransport(c Cursor, protocol uint8) (th core.TransportHeader, next Cursor, ok bool, err error) {
	switch protocol {
	case core.ProtocolTCP:
		th, next, err = decodeTCP(c)
	case core.ProtocolUDP:
		th, next, err = decodeUDP(c)
	default:
		// ICMP, SCTP, GRE, ... are classified but not decoded
		return core.TransportHeader{Protocol: protocol}, c, false, nil
	}
	return th, next, err == nil, err
}

// decodeUDP decodes the fixed 8-byte UDP header.
func decodeUDP(c Cursor) (core.TransportHeader, Cursor, error) {
	b, err := c.Take(udpHeaderLen)
	if err != nil {
		return core.TransportHeader{}, c, err
	}

	return core.TransportHeader{
		Protocol:  core.ProtocolUDP,
		HeaderLen: udpHeaderLen,
		SrcPort:   binary.BigEndian.Uint16(b[0:2]),
		DstPort:   binary.BigEndian.Uint16(b[2:4]),
		UDPLength: binary.BigEndian.Uint16(b[4:6]), // includes header and data
		Checksum:  binary.BigEndian.Uint16(b[6:8]),
	}, c, nil
}

// decodeTCP decodes a TCP header including options.
// A data offset below 5 is rejected with core.ErrMalformedHeader; the whole
// header announced by the data offset must be present.
func decodeTCP(c Cursor) (core.TransportHeader, Cursor, error) {
	fixed, err := c.Peek(tcpHeaderMinLen)
	if err != nil {
		return core.TransportHeader{}, c, err
	}

	// Data Offset (4 bits at offset 12, upper 4 bits)
	headerLen := int(fixed[12]>>4) * 4 // Data offset is in 32-bit words
	if headerLen < tcpHeaderMinLen {
		return core.TransportHeader{}, c, core.ErrMalformedHeader
	}

	b, err := c.Take(headerLen)
	if err != nil {
		return core.TransportHeader{}, c, err
	}

	return core.TransportHeader{
		Protocol:  core.ProtocolTCP,
		HeaderLen: headerLen,
		SrcPort:   binary.BigEndian.Uint16(b[0:2]),
		DstPort:   binary.BigEndian.Uint16(b[2:4]),
		SeqNum:    binary.BigEndian.Uint32(b[4:8]),
		AckNum:    binary.BigEndian.Uint32(b[8:12]),
		TCPFlags:  b[13],
	}, c, nil
}
