package render

import (
	"fmt"
	"strings"

	"firestige.xyz/siemtap/internal/core"
)

const (
	textSeparator  = "========================================"
	textPreviewMax = 32 // hex characters
)

// Text renders rec as a labelled block framed by separator lines. Network
// fields are printed only when an IPv4 header was decoded, TCP flags only for
// TCP. The block has no trailing newline.
func Text(rec *core.PacketRecord) string {
	var sb strings.Builder
	sb.Grow(512)

	line := func(label, format string, args ...any) {
		fmt.Fprintf(&sb, "%-17s", label+":")
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}

	sb.WriteString(textSeparator)
	sb.WriteByte('\n')
	line("Timestamp", "%d.%06d", rec.Meta.TimestampSec, rec.Meta.TimestampUsec)
	line("Length", "%d bytes (wire: %d)", rec.Meta.CaptureLen, rec.Meta.WireLen)
	line("Source MAC", "%s", rec.SrcMAC)
	line("Dest MAC", "%s", rec.DstMAC)
	line("EtherType", "0x%04x", rec.EtherType)

	if rec.SrcIP != "" {
		line("Source IP", "%s", hostPort(rec.SrcIP, rec.SrcPort))
		line("Dest IP", "%s", hostPort(rec.DstIP, rec.DstPort))
		line("Protocol", "%s (%d)", core.ProtocolName(rec.Protocol), rec.Protocol)
		line("TTL", "%d", rec.TTL)

		if rec.Protocol == core.ProtocolTCP {
			line("TCP Flags", "%s", tcpFlags(rec))
		}

		if rec.PayloadLength > 0 {
			line("Payload", "%d bytes", rec.PayloadLength)
			preview := rec.PayloadPreview
			if len(preview) > textPreviewMax {
				preview = preview[:textPreviewMax] + "..."
			}
			line("Preview (hex)", "%s", preview)
		}

		line("Application", "%s", rec.AppProtocol)
	}

	sb.WriteString(textSeparator)
	return sb.String()
}

func hostPort(ip string, port uint16) string {
	if port == 0 {
		return ip
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

func tcpFlags(rec *core.PacketRecord) string {
	flags := make([]string, 0, 5)
	if rec.TCPSyn {
		flags = append(flags, "SYN")
	}
	if rec.TCPAck {
		flags = append(flags, "ACK")
	}
	if rec.TCPFin {
		flags = append(flags, "FIN")
	}
	if rec.TCPRst {
		flags = append(flags, "RST")
	}
	if rec.TCPPsh {
		flags = append(flags, "PSH")
	}
	return strings.Join(flags, " ")
}
