package render

import (
	"bytes"
	"encoding/json"
	"sync"

	"firestige.xyz/siemtap/internal/core"
)

// jsonRecord fixes the key set and key order of the JSON rendering. Every key
// is always present; absent layers render as "", 0 or false.
type jsonRecord struct {
	Timestamp      int64  `json:"timestamp"`
	Microseconds   int64  `json:"microseconds"`
	CaptureLength  uint32 `json:"capture_length"`
	WireLength     uint32 `json:"wire_length"`
	SrcMAC         string `json:"src_mac"`
	DstMAC         string `json:"dst_mac"`
	EtherType      uint16 `json:"ether_type"`
	SrcIP          string `json:"src_ip"`
	DstIP          string `json:"dst_ip"`
	IPVersion      uint8  `json:"ip_version"`
	Protocol       uint8  `json:"protocol"`
	ProtocolName   string `json:"protocol_name"`
	TTL            uint8  `json:"ttl"`
	SrcPort        uint16 `json:"src_port"`
	DstPort        uint16 `json:"dst_port"`
	TCPSyn         bool   `json:"tcp_syn"`
	TCPAck         bool   `json:"tcp_ack"`
	TCPFin         bool   `json:"tcp_fin"`
	TCPRst         bool   `json:"tcp_rst"`
	TCPPsh         bool   `json:"tcp_psh"`
	PayloadLength  uint32 `json:"payload_length"`
	PayloadPreview string `json:"payload_preview"`
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// JSON renders rec as a single-line JSON object without a trailing newline.
//
// String values are escaped by encoding/json: quote, backslash and the
// control characters \b \f \n \r \t use their short escapes, other bytes
// below 0x20 become \u00XX. HTML characters are left as-is.
func JSON(rec *core.PacketRecord) string {
	out := jsonRecord{
		Timestamp:      rec.Meta.TimestampSec,
		Microseconds:   rec.Meta.TimestampUsec,
		CaptureLength:  rec.Meta.CaptureLen,
		WireLength:     rec.Meta.WireLen,
		SrcMAC:         rec.SrcMAC,
		DstMAC:         rec.DstMAC,
		EtherType:      rec.EtherType,
		SrcIP:          rec.SrcIP,
		DstIP:          rec.DstIP,
		IPVersion:      rec.IPVersion,
		Protocol:       rec.Protocol,
		ProtocolName:   core.ProtocolName(rec.Protocol),
		TTL:            rec.TTL,
		SrcPort:        rec.SrcPort,
		DstPort:        rec.DstPort,
		TCPSyn:         rec.TCPSyn,
		TCPAck:         rec.TCPAck,
		TCPFin:         rec.TCPFin,
		TCPRst:         rec.TCPRst,
		TCPPsh:         rec.TCPPsh,
		PayloadLength:  rec.PayloadLength,
		PayloadPreview: rec.PayloadPreview,
	}

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&out); err != nil {
		// jsonRecord holds only strings, integers and booleans
		panic("render: encode json record: " + err.Error())
	}

	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
}
