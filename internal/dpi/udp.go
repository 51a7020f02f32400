package dpi

const udpHeaderLen = 8

// UdpLayer is the 8-byte UDP header. Length includes the header itself.
type UdpLayer struct {
	SourcePort uint16
	DestPort   uint16
	Length     uint16
	Checksum   uint16
}

func (UdpLayer) Identifier() Identifier { return IdentUDP }

func decodeUDP(data []byte) (Layer, []byte, error) {
	fixed, rest, err := takeN(data, udpHeaderLen)
	if err != nil {
		return nil, nil, shortErr(IdentUDP)
	}
	return &UdpLayer{
		SourcePort: uint16(fixed[0])<<8 | uint16(fixed[1]),
		DestPort:   uint16(fixed[2])<<8 | uint16(fixed[3]),
		Length:     uint16(fixed[4])<<8 | uint16(fixed[5]),
		Checksum:   uint16(fixed[6])<<8 | uint16(fixed[7]),
	}, rest, nil
}

func childrenUDP() []Identifier { return nil }

func bestChildUDP(meta *FrameMetadata) (Identifier, bool) {
	udp, ok := meta.Last().(*UdpLayer)
	if !ok {
		return 0, false
	}
	switch {
	case udp.SourcePort == 53 || udp.DestPort == 53:
		return IdentDNS, true
	case udp.SourcePort == 67 || udp.DestPort == 67 || udp.SourcePort == 68 || udp.DestPort == 68:
		return IdentDHCPv4, true
	case udp.SourcePort == 546 || udp.DestPort == 546 || udp.SourcePort == 547 || udp.DestPort == 547:
		return IdentDHCPv6, true
	default:
		return 0, false
	}
}
