// Package core defines core data structures with zero external dependencies.
package core

import "time"

// CaptureMetadata is produced by the capture layer for every frame.
// CaptureLen never exceeds the length of the accompanying buffer.
type CaptureMetadata struct {
	TimestampSec  int64
	TimestampUsec int64
	CaptureLen    uint32 // Bytes actually captured
	WireLen       uint32 // Bytes the frame occupied on the wire
}

// NewCaptureMetadata builds metadata from a capture timestamp and lengths.
func NewCaptureMetadata(ts time.Time, captureLen, wireLen int) CaptureMetadata {
	return CaptureMetadata{
		TimestampSec:  ts.Unix(),
		TimestampUsec: int64(ts.Nanosecond() / 1000),
		CaptureLen:    uint32(captureLen),
		WireLen:       uint32(wireLen),
	}
}

// Time returns the capture timestamp.
func (m CaptureMetadata) Time() time.Time {
	return time.Unix(m.TimestampSec, m.TimestampUsec*1000)
}

// PacketRecord is the decoder's only output. It holds no references into the
// capture buffer. Fields of layers that were not fully decoded keep their
// zero value.
type PacketRecord struct {
	Meta CaptureMetadata

	// Link layer
	SrcMAC    string // lowercase colon hex
	DstMAC    string
	EtherType uint16

	// Network layer (IPv4 only)
	IPVersion uint8
	Protocol  uint8
	TTL       uint8
	SrcIP     string // dotted decimal
	DstIP     string

	// Transport layer (TCP/UDP only)
	SrcPort uint16
	DstPort uint16
	TCPSyn  bool
	TCPAck  bool
	TCPFin  bool
	TCPRst  bool
	TCPPsh  bool

	// Payload after the known headers
	PayloadLength  uint32
	PayloadPreview string // hex of at most PayloadPreviewMax bytes

	AppProtocol AppProtocol
}

// PayloadPreviewMax is the number of payload bytes kept in PayloadPreview.
const PayloadPreviewMax = 64

// Depth reports the deepest layer present in the record. A transport header
// with both ports zero and no payload reads as the network layer.
func (r PacketRecord) Depth() Layer {
	switch {
	case r.SrcPort != 0 || r.DstPort != 0 || r.PayloadLength != 0 || r.TCPSyn || r.TCPAck || r.TCPFin || r.TCPRst || r.TCPPsh:
		return LayerTransport
	case r.SrcIP != "":
		return LayerNetwork
	case r.SrcMAC != "":
		return LayerLink
	default:
		return LayerNone
	}
}

// Layer identifies how far decoding of a frame got.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerLink
	LayerNetwork
	LayerTransport
)

func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "ethernet"
	case LayerNetwork:
		return "ipv4"
	case LayerTransport:
		return "transport"
	default:
		return "none"
	}
}

// OutputRecord is what reporters receive: the decoded record plus its
// rendering in the configured output format.
type OutputRecord struct {
	SessionID string
	Hostname  string // capturing node
	Record    PacketRecord
	Format    string // json | text | hex
	Line      string // rendered record, without trailing newline for json
}

// Bytes returns Line terminated by exactly one trailing newline, the unit
// written by stream reporters.
func (r *OutputRecord) Bytes() []byte {
	n := len(r.Line)
	if n > 0 && r.Line[n-1] == '\n' {
		return []byte(r.Line)
	}
	b := make([]byte, n+1)
	copy(b, r.Line)
	b[n] = '\n'
	return b
}
