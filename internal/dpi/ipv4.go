package dpi

import "net"

// Ipv4Layer is an IPv4 header; IHL is expressed in bytes (already ×4).
type Ipv4Layer struct {
	Version        uint8
	IHL            uint8 // header length in bytes
	DSCP           uint8
	ECN            uint8
	TotalLength    uint16
	Identification uint16
	Flags          uint8 // 3 bits
	FragmentOffset uint16 // 13 bits
	TTL            uint8
	Protocol       uint8
	Checksum       uint16
	Source         net.IP
	Destination    net.IP
}

func (Ipv4Layer) Identifier() Identifier { return IdentIPv4 }

func decodeIPv4(data []byte) (Layer, []byte, error) {
	if len(data) < 20 {
		return nil, nil, shortErr(IdentIPv4)
	}
	versionIHL := data[0]
	version := versionIHL >> 4
	ihlWords := versionIHL & 0x0F
	if version != 4 || ihlWords != 5 {
		return nil, nil, verifyErr(IdentIPv4)
	}
	ihl := int(ihlWords) * 4

	dscpEcn := data[1]
	dscp := dscpEcn >> 2
	ecn := dscpEcn & 0x03

	totalLength := uint16(data[2])<<8 | uint16(data[3])
	if int(totalLength) < ihl {
		return nil, nil, verifyErr(IdentIPv4)
	}
	identification := uint16(data[4])<<8 | uint16(data[5])

	flagsFrag := uint16(data[6])<<8 | uint16(data[7])
	flags := uint8(flagsFrag >> 13)
	fragOffset := flagsFrag & 0x1FFF

	ttl := data[8]
	protocol := data[9]
	checksum := uint16(data[10])<<8 | uint16(data[11])

	src := net.IP(append([]byte(nil), data[12:16]...))
	dst := net.IP(append([]byte(nil), data[16:20]...))

	if len(data) < ihl {
		return nil, nil, shortErr(IdentIPv4)
	}
	rest := data[ihl:]

	return &Ipv4Layer{
		Version:        version,
		IHL:            uint8(ihl),
		DSCP:           dscp,
		ECN:            ecn,
		TotalLength:    totalLength,
		Identification: identification,
		Flags:          flags,
		FragmentOffset: fragOffset,
		TTL:            ttl,
		Protocol:       protocol,
		Checksum:       checksum,
		Source:         src,
		Destination:    dst,
	}, rest, nil
}

// childrenIP is always empty: the IP layers dispatch purely through
// bestChild, per spec.md's "Next-level dispatch from IP" rule (an
// unrecognized protocol number has no fallback search).
func childrenIP() []Identifier { return nil }

func bestChildIP(meta *FrameMetadata) (Identifier, bool) {
	var proto uint8
	switch l := meta.Last().(type) {
	case *Ipv4Layer:
		proto = l.Protocol
	case *Ipv6Layer:
		proto = l.NextHeader
	default:
		return 0, false
	}
	switch proto {
	case 1:
		return IdentICMPv4, true
	case 6:
		return IdentTCP, true
	case 17:
		return IdentUDP, true
	case 4:
		return IdentIPv4, true
	case 41:
		return IdentIPv6, true
	case 58:
		return IdentICMPv6, true
	default:
		return 0, false
	}
}
