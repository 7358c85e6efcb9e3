// Package decoder implements Ethernet/IPv4/TCP/UDP decoding of captured frames
// into core.PacketRecord values.
package decoder

import (
	"encoding/hex"
	"net"

	"firestige.xyz/siemtap/internal/core"
)

// Decoder decodes captured frames into records.
type Decoder interface {
	Decode(meta core.CaptureMetadata, data []byte) core.PacketRecord
}

// StandardDecoder is the stateless Ethernet → IPv4 → TCP/UDP decoder.
// It is safe for concurrent use.
type StandardDecoder struct{}

// NewStandardDecoder creates a new decoder.
func NewStandardDecoder() *StandardDecoder {
	return &StandardDecoder{}
}

// Decode implements Decoder.
func (d *StandardDecoder) Decode(meta core.CaptureMetadata, data []byte) core.PacketRecord {
	return Decode(meta, data)
}

// Decode walks Ethernet, IPv4 and TCP/UDP headers of data and returns the
// record. It never fails: decoding stops at the first layer that is missing,
// truncated, malformed or unsupported, and the record keeps whatever was
// decoded before that point.
//
// Only the first meta.CaptureLen bytes of data are considered.
func Decode(meta core.CaptureMetadata, data []byte) core.PacketRecord {
	if int(meta.CaptureLen) < len(data) {
		data = data[:meta.CaptureLen]
	}
	rec := core.PacketRecord{Meta: meta}

	// Stage 1: Ethernet
	c := NewCursor(data)
	eth, c, err := decodeEthernet(c)
	if err != nil {
		return rec
	}
	rec.DstMAC = net.HardwareAddr(eth.DstMAC[:]).String()
	rec.SrcMAC = net.HardwareAddr(eth.SrcMAC[:]).String()
	rec.EtherType = eth.EtherType

	if eth.EtherType != core.EtherTypeIPv4 {
		// IPv6, ARP, VLAN-tagged frames: recorded, not decoded further
		return rec
	}

	// Stage 2: IPv4
	ip, c, err := decodeIPv4(c)
	if err != nil {
		return rec
	}
	rec.IPVersion = ip.Version
	rec.Protocol = ip.Protocol
	rec.TTL = ip.TTL
	rec.SrcIP = ip.SrcIP.String()
	rec.DstIP = ip.DstIP.String()

	// Stage 3: Transport
	th, c, ok, err := decodeTransport(c, ip.Protocol)
	if err != nil {
		return rec
	}
	if ok {
		rec.SrcPort = th.SrcPort
		rec.DstPort = th.DstPort
		if th.Protocol == core.ProtocolTCP {
			rec.TCPSyn = th.TCPFlags&core.TCPFlagSYN != 0
			rec.TCPAck = th.TCPFlags&core.TCPFlagACK != 0
			rec.TCPFin = th.TCPFlags&core.TCPFlagFIN != 0
			rec.TCPRst = th.TCPFlags&core.TCPFlagRST != 0
			rec.TCPPsh = th.TCPFlags&core.TCPFlagPSH != 0
		}
		setPayload(&rec, c)
	}

	// Stage 4: Classification
	rec.AppProtocol = Classify(ip.Protocol, rec.SrcPort, rec.DstPort)
	return rec
}

// setPayload records the bytes left after the transport header.
func setPayload(rec *core.PacketRecord, c Cursor) {
	payload := c.Rest()
	if len(payload) == 0 {
		return
	}
	rec.PayloadLength = uint32(len(payload))
	if len(payload) > core.PayloadPreviewMax {
		payload = payload[:core.PayloadPreviewMax]
	}
	rec.PayloadPreview = hex.EncodeToString(payload)
}
