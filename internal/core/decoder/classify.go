// Package decoder implements protocol decoding.
package decoder

import "firestige.xyz/siemtap/internal/core"

// tcpWellKnown is checked in order; the first port found on either side wins.
var tcpWellKnown = []struct {
	port  uint16
	proto core.AppProtocol
}{
	{80, core.AppHTTP},
	{443, core.AppHTTPS},
	{22, core.AppSSH},
	{21, core.AppFTP},
	{25, core.AppSMTP},
}

const dnsPort = 53

// Classify maps an IP protocol number and transport ports to an application
// protocol. The protocol number gates the port checks, so port 80 over UDP is
// plain UDP.
func Classify(protocol uint8, srcPort, dstPort uint16) core.AppProtocol {
	switch protocol {
	case core.ProtocolTCP:
		for _, wk := range tcpWellKnown {
			if dstPort == wk.port || srcPort == wk.port {
				return wk.proto
			}
		}
		return core.AppTCP
	case core.ProtocolUDP:
		if dstPort == dnsPort || srcPort == dnsPort {
			return core.AppDNS
		}
		return core.AppUDP
	case core.ProtocolICMP:
		return core.AppICMP
	default:
		return core.AppUnknown
	}
}
