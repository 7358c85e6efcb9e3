package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// Test zero values of core structs
func TestStructZeroValues(t *testing.T) {
	t.Run("PacketRecord", func(t *testing.T) {
		var rec PacketRecord
		if rec.SrcMAC != "" || rec.DstMAC != "" {
			t.Errorf("expected empty MACs, got %q %q", rec.SrcMAC, rec.DstMAC)
		}
		if rec.AppProtocol != AppUnknown {
			t.Errorf("expected AppUnknown, got %v", rec.AppProtocol)
		}
		if rec.Depth() != LayerNone {
			t.Errorf("expected LayerNone, got %v", rec.Depth())
		}
	})

	t.Run("IPv4Header", func(t *testing.T) {
		var ip IPv4Header
		if ip.SrcIP.IsValid() || ip.DstIP.IsValid() {
			t.Errorf("expected invalid addresses, got %v %v", ip.SrcIP, ip.DstIP)
		}
	})

	t.Run("TransportHeader", func(t *testing.T) {
		var th TransportHeader
		if th.SrcPort != 0 || th.DstPort != 0 {
			t.Errorf("expected zero ports, got src=%d dst=%d", th.SrcPort, th.DstPort)
		}
	})
}

func TestCaptureMetadataTime(t *testing.T) {
	ts := time.Unix(1700000000, 123456789)
	meta := NewCaptureMetadata(ts, 54, 60)

	if meta.TimestampSec != 1700000000 {
		t.Errorf("expected seconds 1700000000, got %d", meta.TimestampSec)
	}
	if meta.TimestampUsec != 123456 {
		t.Errorf("expected microseconds 123456, got %d", meta.TimestampUsec)
	}
	if meta.CaptureLen != 54 || meta.WireLen != 60 {
		t.Errorf("expected lengths 54/60, got %d/%d", meta.CaptureLen, meta.WireLen)
	}
	if !meta.Time().Equal(time.Unix(1700000000, 123456000)) {
		t.Errorf("unexpected round-trip time %v", meta.Time())
	}
}

func TestRecordDepth(t *testing.T) {
	tests := []struct {
		name string
		rec  PacketRecord
		want Layer
	}{
		{"empty", PacketRecord{}, LayerNone},
		{"ethernet", PacketRecord{SrcMAC: "aa:bb:cc:dd:ee:ff"}, LayerLink},
		{"ipv4", PacketRecord{SrcMAC: "aa:bb:cc:dd:ee:ff", SrcIP: "10.0.0.1"}, LayerNetwork},
		{"ports", PacketRecord{SrcMAC: "aa:bb:cc:dd:ee:ff", SrcIP: "10.0.0.1", DstPort: 53}, LayerTransport},
		{"flags only", PacketRecord{SrcMAC: "aa:bb:cc:dd:ee:ff", SrcIP: "10.0.0.1", TCPRst: true}, LayerTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Depth(); got != tt.want {
				t.Errorf("Depth() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppProtocolString(t *testing.T) {
	want := map[AppProtocol]string{
		AppUnknown: "Unknown",
		AppICMP:    "ICMP",
		AppTCP:     "TCP",
		AppUDP:     "UDP",
		AppHTTP:    "HTTP",
		AppHTTPS:   "HTTPS",
		AppDNS:     "DNS",
		AppSSH:     "SSH",
		AppFTP:     "FTP",
		AppSMTP:    "SMTP",
		200:        "Unknown",
	}
	for p, name := range want {
		if p.String() != name {
			t.Errorf("AppProtocol(%d).String() = %q, want %q", p, p.String(), name)
		}
	}
}

func TestProtocolName(t *testing.T) {
	tests := map[uint8]string{
		0: "Unknown", 1: "ICMP", 2: "IGMP", 6: "TCP", 17: "UDP", 41: "IPv6",
		47: "GRE", 50: "ESP", 51: "AH", 58: "ICMPv6", 89: "OSPF", 132: "SCTP", 255: "Unknown",
	}
	for proto, name := range tests {
		if got := ProtocolName(proto); got != name {
			t.Errorf("ProtocolName(%d) = %q, want %q", proto, got, name)
		}
	}
}

// Test sentinel errors
func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrInsufficientData,
		ErrMalformedHeader,
		ErrCaptureTimeout,
		ErrCaptureNotFound,
		ErrCaptureClosed,
		ErrReporterNotFound,
		ErrNotConnected,
		ErrConfigInvalid,
	}

	for _, err := range errs {
		wrapped := fmt.Errorf("context: %w", err)
		if !errors.Is(wrapped, err) {
			t.Errorf("errors.Is failed for wrapped %v", err)
		}
	}
}

func TestOutputRecordBytes(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`{"a":1}`, "{\"a\":1}\n"},
		{"0000  aa\n", "0000  aa\n"},
		{"", "\n"},
	}
	for _, tt := range tests {
		rec := &OutputRecord{Line: tt.line}
		if got := string(rec.Bytes()); got != tt.want {
			t.Errorf("Bytes(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
