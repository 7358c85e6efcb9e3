// Package decoder implements protocol decoding.
package decoder

import (
	"encoding/binary"

	"firestige.xyz/siemtap/internal/core"
)

// ethernetHeaderLen is the size of an untagged Ethernet II header.
const ethernetHeaderLen = 14

// decodeEthernet decodes the Ethernet frame header.
// VLAN tags are not unwrapped: a tagged frame reports EtherType 0x8100.
func decodeEthernet(c Cursor) (core.EthernetHeader, Cursor, error) {
	b, err := c.Take(ethernetHeaderLen)
	if err != nil {
		return core.EthernetHeader{}, c, err
	}

	eth := core.EthernetHeader{}

	// Destination MAC (6 bytes)
	copy(eth.DstMAC[:], b[0:6])

	// Source MAC (6 bytes)
	copy(eth.SrcMAC[:], b[6:12])

	// EtherType (2 bytes)
	eth.EtherType = binary.BigEndian.Uint16(b[12:14])

	return eth, c, nil
}
