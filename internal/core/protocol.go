package core

// AppProtocol is the application protocol identified for a record.
type AppProtocol uint8

const (
	AppUnknown AppProtocol = iota
	AppICMP
	AppTCP
	AppUDP
	AppHTTP
	AppHTTPS
	AppDNS
	AppSSH
	AppFTP
	AppSMTP
)

var appProtocolNames = [...]string{
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
}

func (p AppProtocol) String() string {
	if int(p) < len(appProtocolNames) {
		return appProtocolNames[p]
	}
	return appProtocolNames[AppUnknown]
}

// ProtocolName returns the name of an IP protocol number, "Unknown" for
// numbers outside the table.
func ProtocolName(protocol uint8) string {
	switch protocol {
	case 1:
		return "ICMP"
	case 2:
		return "IGMP"
	case 6:
		return "TCP"
	case 17:
		return "UDP"
	case 41:
		return "IPv6"
	case 47:
		return "GRE"
	case 50:
		return "ESP"
	case 51:
		return "AH"
	case 58:
		return "ICMPv6"
	case 89:
		return "OSPF"
	case 132:
		return "SCTP"
	default:
		return "Unknown"
	}
}
