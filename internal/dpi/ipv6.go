package dpi

import "net"

const ipv6HeaderLen = 40

// Ipv6Layer is a fixed 40-byte IPv6 header. PayloadLength trims the
// residual to exactly that many bytes, which is how Ethernet padding is
// stripped on v6 flows.
type Ipv6Layer struct {
	Version       uint8
	TrafficClass  uint8
	FlowLabel     uint32 // 20 bits
	PayloadLength uint16
	NextHeader    uint8
	HopLimit      uint8
	Source        net.IP
	Destination   net.IP
}

func (Ipv6Layer) Identifier() Identifier { return IdentIPv6 }

func decodeIPv6(data []byte) (Layer, []byte, error) {
	fixed, rest, err := takeN(data, ipv6HeaderLen)
	if err != nil {
		return nil, nil, shortErr(IdentIPv6)
	}

	bs := newBitSession(fixed[:4])
	version, _ := bs.take(4)
	trafficClass, _ := bs.take(8)
	flowLabel, _ := bs.take(20)
	if _, err := bs.close(); err != nil {
		return nil, nil, verifyErr(IdentIPv6)
	}
	if version != 6 {
		return nil, nil, verifyErr(IdentIPv6)
	}

	payloadLength := uint16(fixed[4])<<8 | uint16(fixed[5])
	nextHeader := fixed[6]
	hopLimit := fixed[7]
	src := net.IP(append([]byte(nil), fixed[8:24]...))
	dst := net.IP(append([]byte(nil), fixed[24:40]...))

	if len(rest) < int(payloadLength) {
		return nil, nil, verifyErr(IdentIPv6)
	}
	rest = rest[:payloadLength]

	return &Ipv6Layer{
		Version:       uint8(version),
		TrafficClass:  uint8(trafficClass),
		FlowLabel:     flowLabel,
		PayloadLength: payloadLength,
		NextHeader:    nextHeader,
		HopLimit:      hopLimit,
		Source:        src,
		Destination:   dst,
	}, rest, nil
}
