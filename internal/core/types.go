// Package core defines core types with zero external dependencies.
package core

import "net/netip"

// EthernetHeader represents the fixed 14-byte L2 Ethernet header.
type EthernetHeader struct {
	DstMAC    [6]byte
	SrcMAC    [6]byte
	EtherType uint16 // 0x0800=IPv4, 0x86DD=IPv6, 0x0806=ARP
}

// IPv4Header represents the L3 IPv4 header fields the record needs.
type IPv4Header struct {
	Version   uint8
	HeaderLen int // IHL * 4, always within [20, 60]
	TotalLen  uint16
	TTL       uint8
	Protocol  uint8 // ICMP=1, TCP=6, UDP=17
	SrcIP     netip.Addr
	DstIP     netip.Addr
}

// TransportHeader represents the L4 transport header (TCP/UDP).
type TransportHeader struct {
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8 // Redundant storage for convenience
	HeaderLen int   // 8 for UDP, data offset * 4 for TCP

	// TCP-specific fields (only populated for TCP)
	TCPFlags uint8
	SeqNum   uint32
	AckNum   uint32

	// UDP-specific fields (only populated for UDP)
	UDPLength uint16
	Checksum  uint16
}

// TCP flag masks.
const (
	TCPFlagFIN uint8 = 0x01
	TCPFlagSYN uint8 = 0x02
	TCPFlagRST uint8 = 0x04
	TCPFlagPSH uint8 = 0x08
	TCPFlagACK uint8 = 0x10
)

// Well-known EtherType and IP protocol numbers.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeIPv6 uint16 = 0x86DD

	ProtocolICMP uint8 = 1
	ProtocolTCP  uint8 = 6
	ProtocolUDP  uint8 = 17
)
