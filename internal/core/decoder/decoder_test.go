package decoder

import (
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/siemtap/internal/core"
)

// makeTCPSynFrame builds a 54-byte Ethernet/IPv4/TCP SYN towards port 80.
func makeTCPSynFrame() []byte {
	return []byte{
		// Ethernet header (14 bytes)
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Dst MAC
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, // Src MAC
		0x08, 0x00, // EtherType: IPv4

		// IPv4 header (20 bytes)
		0x45, 0x00, // Version 4, IHL 5, DSCP/ECN
		0x00, 0x28, // Total Length: 40
		0x00, 0x01, // Identification
		0x40, 0x00, // Flags: DF
		0x40,       // TTL: 64
		0x06,       // Protocol: TCP
		0x00, 0x00, // Checksum
		192, 168, 1, 100, // Src IP
		8, 8, 8, 8, // Dst IP

		// TCP header (20 bytes)
		0xD4, 0x31, // Src Port: 54321
		0x00, 0x50, // Dst Port: 80
		0x00, 0x00, 0x00, 0x00, // Seq
		0x00, 0x00, 0x00, 0x00, // Ack
		0x50,       // Data offset 5
		0x02,       // Flags: SYN
		0xFF, 0xFF, // Window
		0x00, 0x00, // Checksum
		0x00, 0x00, // Urgent
	}
}

// makeSimpleUDPPacket builds an Ethernet/IPv4/UDP DNS query with a 4-byte payload.
func makeSimpleUDPPacket() []byte {
	return []byte{
		// Ethernet header (14 bytes)
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, // Dst MAC
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, // Src MAC
		0x08, 0x00, // EtherType: IPv4

		// IPv4 header (20 bytes)
		0x45, 0x00, 0x00, 0x20, // Version, IHL, DSCP, ECN, Total Length: 32
		0x00, 0x00, 0x00, 0x00, // Identification, Flags, Fragment Offset
		0x40, 0x11, 0x00, 0x00, // TTL: 64, Protocol: UDP, Checksum
		10, 0, 0, 1, // Src IP
		10, 0, 0, 2, // Dst IP

		// UDP header (8 bytes)
		0x13, 0x88, // Src Port: 5000
		0x00, 0x35, // Dst Port: 53
		0x00, 0x0C, // Length: 12
		0x00, 0x00, // Checksum

		// Payload
		0x01, 0x02, 0x03, 0x04,
	}
}

func metaFor(data []byte) core.CaptureMetadata {
	return core.CaptureMetadata{
		TimestampSec:  1700000000,
		TimestampUsec: 123456,
		CaptureLen:    uint32(len(data)),
		WireLen:       uint32(len(data)),
	}
}

func TestDecodeTCPSyn(t *testing.T) {
	data := makeTCPSynFrame()
	rec := Decode(metaFor(data), data)

	if rec.DstMAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Expected DstMAC aa:bb:cc:dd:ee:ff, got %s", rec.DstMAC)
	}
	if rec.SrcMAC != "11:22:33:44:55:66" {
		t.Errorf("Expected SrcMAC 11:22:33:44:55:66, got %s", rec.SrcMAC)
	}
	if rec.EtherType != 0x0800 {
		t.Errorf("Expected EtherType 0x0800, got 0x%04x", rec.EtherType)
	}
	if rec.IPVersion != 4 {
		t.Errorf("Expected IPVersion 4, got %d", rec.IPVersion)
	}
	if rec.SrcIP != "192.168.1.100" || rec.DstIP != "8.8.8.8" {
		t.Errorf("Expected 192.168.1.100 -> 8.8.8.8, got %s -> %s", rec.SrcIP, rec.DstIP)
	}
	if rec.TTL != 64 {
		t.Errorf("Expected TTL 64, got %d", rec.TTL)
	}
	if rec.Protocol != 6 {
		t.Errorf("Expected protocol 6, got %d", rec.Protocol)
	}
	if rec.SrcPort != 54321 || rec.DstPort != 80 {
		t.Errorf("Expected ports 54321 -> 80, got %d -> %d", rec.SrcPort, rec.DstPort)
	}
	if !rec.TCPSyn || rec.TCPAck || rec.TCPFin || rec.TCPRst || rec.TCPPsh {
		t.Errorf("Expected SYN only, got syn=%v ack=%v fin=%v rst=%v psh=%v",
			rec.TCPSyn, rec.TCPAck, rec.TCPFin, rec.TCPRst, rec.TCPPsh)
	}
	if rec.PayloadLength != 0 || rec.PayloadPreview != "" {
		t.Errorf("Expected empty payload, got %d %q", rec.PayloadLength, rec.PayloadPreview)
	}
	if rec.AppProtocol != core.AppHTTP {
		t.Errorf("Expected HTTP, got %v", rec.AppProtocol)
	}
	if rec.Meta != metaFor(data) {
		t.Errorf("Expected metadata to be carried through, got %+v", rec.Meta)
	}
}

func TestDecodeUDPDNS(t *testing.T) {
	data := makeSimpleUDPPacket()
	rec := Decode(metaFor(data), data)

	if rec.Protocol != core.ProtocolUDP {
		t.Errorf("Expected protocol 17, got %d", rec.Protocol)
	}
	if rec.SrcPort != 5000 || rec.DstPort != 53 {
		t.Errorf("Expected ports 5000 -> 53, got %d -> %d", rec.SrcPort, rec.DstPort)
	}
	if rec.AppProtocol != core.AppDNS {
		t.Errorf("Expected DNS, got %v", rec.AppProtocol)
	}
	if rec.PayloadLength != 4 {
		t.Errorf("Expected payload length 4, got %d", rec.PayloadLength)
	}
	if rec.PayloadPreview != "01020304" {
		t.Errorf("Expected preview 01020304, got %s", rec.PayloadPreview)
	}
	if rec.TCPSyn || rec.TCPAck {
		t.Error("Expected no TCP flags on UDP")
	}
}

func TestDecodePayloadPreviewCapped(t *testing.T) {
	data := append(makeSimpleUDPPacket()[:42], make([]byte, 100)...)
	for i := 42; i < len(data); i++ {
		data[i] = 0xAB
	}

	rec := Decode(metaFor(data), data)
	if rec.PayloadLength != 100 {
		t.Errorf("Expected payload length 100, got %d", rec.PayloadLength)
	}
	if len(rec.PayloadPreview) != 2*core.PayloadPreviewMax {
		t.Errorf("Expected preview of %d hex chars, got %d", 2*core.PayloadPreviewMax, len(rec.PayloadPreview))
	}
}

func TestDecodeRespectsCaptureLen(t *testing.T) {
	data := makeSimpleUDPPacket()
	meta := metaFor(data)
	meta.CaptureLen = 40 // cuts the UDP header

	rec := Decode(meta, data)
	if rec.SrcIP != "10.0.0.1" {
		t.Errorf("Expected IPv4 layer decoded, got %q", rec.SrcIP)
	}
	if rec.SrcPort != 0 || rec.DstPort != 0 {
		t.Errorf("Expected no ports beyond CaptureLen, got %d %d", rec.SrcPort, rec.DstPort)
	}
	if rec.AppProtocol != core.AppUnknown {
		t.Errorf("Expected unclassified record, got %v", rec.AppProtocol)
	}
}

func TestDecodeShortBuffers(t *testing.T) {
	for n := 0; n < 14; n++ {
		data := makeTCPSynFrame()[:n]
		rec := Decode(metaFor(data), data)
		if rec.SrcMAC != "" || rec.DstMAC != "" || rec.EtherType != 0 {
			t.Errorf("len=%d: expected empty link layer, got %+v", n, rec)
		}
		if rec.Depth() != core.LayerNone {
			t.Errorf("len=%d: expected depth none, got %v", n, rec.Depth())
		}
	}
}

// assertFieldSubset checks that every header field set in part holds the
// same value in full. The payload of part may only be a prefix of full's.
func assertFieldSubset(t *testing.T, full, part core.PacketRecord, n int) {
	t.Helper()
	fv := reflect.ValueOf(full)
	pv := reflect.ValueOf(part)
	for i := 0; i < pv.NumField(); i++ {
		name := pv.Type().Field(i).Name
		switch name {
		case "Meta", "PayloadLength", "PayloadPreview":
			continue
		}
		if pv.Field(i).IsZero() {
			continue
		}
		assert.Equal(t, fv.Field(i).Interface(), pv.Field(i).Interface(), "len=%d field %s", n, name)
	}
	assert.LessOrEqual(t, part.PayloadLength, full.PayloadLength, "len=%d", n)
	assert.True(t, strings.HasPrefix(full.PayloadPreview, part.PayloadPreview), "len=%d preview %q", n, part.PayloadPreview)
}

// TestDecodeTruncationMonotonic checks every prefix of a valid frame: the
// decoded depth never decreases as more bytes are captured, and whatever a
// prefix decodes matches the full frame.
func TestDecodeTruncationMonotonic(t *testing.T) {
	frames := map[string][]byte{
		"tcp":         makeTCPSynFrame(),
		"udp":         makeSimpleUDPPacket(),
		"udp-payload": buildUDPWithPayload(t),
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			full := Decode(metaFor(frame), frame)
			prev := core.LayerNone
			for n := 0; n <= len(frame); n++ {
				data := frame[:n]
				rec := Decode(metaFor(data), data)
				depth := rec.Depth()
				if depth < prev {
					t.Fatalf("len=%d: depth dropped from %v to %v", n, prev, depth)
				}
				prev = depth
				assertFieldSubset(t, full, rec, n)

				switch {
				case n < 14:
					assert.Equal(t, core.LayerNone, depth, "len=%d", n)
				case n < 34:
					assert.Equal(t, core.LayerLink, depth, "len=%d", n)
					assert.Empty(t, rec.SrcIP, "len=%d", n)
				}
				if rec.SrcPort == 0 {
					assert.Equal(t, core.AppUnknown, rec.AppProtocol, "len=%d", n)
				}
			}
			assert.Equal(t, core.LayerTransport, prev)
		})
	}
}

func TestDecodeMalformedIHL(t *testing.T) {
	data := makeTCPSynFrame()
	data[14] = 0x44 // IHL 4

	rec := Decode(metaFor(data), data)
	if rec.EtherType != 0x0800 {
		t.Errorf("Expected link layer decoded, got EtherType 0x%04x", rec.EtherType)
	}
	if rec.SrcIP != "" || rec.Protocol != 0 || rec.TTL != 0 {
		t.Errorf("Expected no network layer, got %+v", rec)
	}
	if rec.Depth() != core.LayerLink {
		t.Errorf("Expected depth ethernet, got %v", rec.Depth())
	}
}

func TestDecodeMalformedDataOffset(t *testing.T) {
	data := makeTCPSynFrame()
	data[46] = 0x40 // Data offset 4

	rec := Decode(metaFor(data), data)
	if rec.SrcIP != "192.168.1.100" {
		t.Errorf("Expected network layer decoded, got %q", rec.SrcIP)
	}
	if rec.SrcPort != 0 || rec.DstPort != 0 || rec.TCPSyn {
		t.Errorf("Expected no transport fields, got %+v", rec)
	}
	if rec.AppProtocol != core.AppUnknown {
		t.Errorf("Expected no classification, got %v", rec.AppProtocol)
	}
}

func TestDecodeNonIPv4EtherType(t *testing.T) {
	for _, et := range []uint16{core.EtherTypeIPv6, core.EtherTypeARP, 0x8100} {
		data := makeTCPSynFrame()
		data[12] = byte(et >> 8)
		data[13] = byte(et)

		rec := Decode(metaFor(data), data)
		if rec.EtherType != et {
			t.Errorf("Expected EtherType 0x%04x, got 0x%04x", et, rec.EtherType)
		}
		if rec.SrcMAC != "11:22:33:44:55:66" {
			t.Errorf("Expected SrcMAC decoded, got %q", rec.SrcMAC)
		}
		if rec.SrcIP != "" || rec.IPVersion != 0 {
			t.Errorf("EtherType 0x%04x: expected no network layer, got %+v", et, rec)
		}
	}
}

func TestDecodeICMP(t *testing.T) {
	data := makeTCPSynFrame()[:34]
	data[23] = core.ProtocolICMP
	data = append(data, 0x08, 0x00, 0xF7, 0xFF, 0x00, 0x01, 0x00, 0x01) // echo request

	rec := Decode(metaFor(data), data)
	if rec.Protocol != core.ProtocolICMP {
		t.Errorf("Expected protocol 1, got %d", rec.Protocol)
	}
	if rec.AppProtocol != core.AppICMP {
		t.Errorf("Expected ICMP, got %v", rec.AppProtocol)
	}
	if rec.SrcPort != 0 || rec.PayloadLength != 0 {
		t.Errorf("Expected no ports or payload for ICMP, got %d %d", rec.SrcPort, rec.PayloadLength)
	}
}

func TestDecodeUnsupportedProtocol(t *testing.T) {
	data := makeTCPSynFrame()
	data[23] = 47 // GRE

	rec := Decode(metaFor(data), data)
	if rec.Protocol != 47 {
		t.Errorf("Expected protocol 47, got %d", rec.Protocol)
	}
	if rec.AppProtocol != core.AppUnknown {
		t.Errorf("Expected Unknown, got %v", rec.AppProtocol)
	}
}

func TestStandardDecoder(t *testing.T) {
	var d Decoder = NewStandardDecoder()
	data := makeSimpleUDPPacket()

	assert.Equal(t, Decode(metaFor(data), data), d.Decode(metaFor(data), data))
}

// TestDecodeMatchesGopacket builds frames with gopacket's serializer and
// compares the decoded record with gopacket's own view of the same bytes.
func TestDecodeMatchesGopacket(t *testing.T) {
	srcMAC, _ := net.ParseMAC("02:00:5e:10:00:01")
	dstMAC, _ := net.ParseMAC("02:00:5e:10:00:02")

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      57,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(172, 16, 0, 9),
		DstIP:    net.IPv4(93, 184, 216, 34),
	}
	tcp := &layers.TCP{
		SrcPort: 41000,
		DstPort: 443,
		PSH:     true,
		ACK:     true,
		Window:  502,
		Options: []layers.TCPOption{
			{OptionType: layers.TCPOptionKindNop},
			{OptionType: layers.TCPOptionKindNop},
			{OptionType: layers.TCPOptionKindTimestamps, OptionLength: 10, OptionData: make([]byte, 8)},
		},
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	payload := []byte("\x16\x03\x01\x02\x00\x01\x00\x01\xfc\x03\x03")
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	data := buf.Bytes()

	ref := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	refIP, _ := ref.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	refTCP, _ := ref.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.NotNil(t, refIP)
	require.NotNil(t, refTCP)

	meta := core.NewCaptureMetadata(time.Unix(1700000000, 0), len(data), len(data))
	rec := Decode(meta, data)

	assert.Equal(t, srcMAC.String(), rec.SrcMAC)
	assert.Equal(t, dstMAC.String(), rec.DstMAC)
	assert.Equal(t, uint16(layers.EthernetTypeIPv4), rec.EtherType)
	assert.Equal(t, refIP.SrcIP.String(), rec.SrcIP)
	assert.Equal(t, refIP.DstIP.String(), rec.DstIP)
	assert.Equal(t, refIP.TTL, rec.TTL)
	assert.Equal(t, uint8(refIP.Protocol), rec.Protocol)
	assert.Equal(t, uint16(refTCP.SrcPort), rec.SrcPort)
	assert.Equal(t, uint16(refTCP.DstPort), rec.DstPort)
	assert.Equal(t, refTCP.SYN, rec.TCPSyn)
	assert.Equal(t, refTCP.ACK, rec.TCPAck)
	assert.Equal(t, refTCP.PSH, rec.TCPPsh)
	assert.Equal(t, refTCP.FIN, rec.TCPFin)
	assert.Equal(t, refTCP.RST, rec.TCPRst)
	assert.Equal(t, uint32(len(refTCP.Payload)), rec.PayloadLength)
	assert.Equal(t, core.AppHTTPS, rec.AppProtocol)
}

func BenchmarkDecode(b *testing.B) {
	data := makeTCPSynFrame()
	meta := metaFor(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := Decode(meta, data)
		if rec.DstPort != 80 {
			b.Fatal("unexpected decode result")
		}
	}
}

func BenchmarkDecodeUDP(b *testing.B) {
	data := makeSimpleUDPPacket()
	meta := metaFor(data)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Decode(meta, data)
	}
}

// buildUDPWithPayload serializes a UDP datagram with a 24-byte payload using
// gopacket so the truncation walk also covers a partial payload.
func buildUDPWithPayload(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      32,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(172, 16, 0, 1),
		DstIP:    net.IPv4(172, 16, 0, 2),
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	payload := make([]byte, 24)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}
