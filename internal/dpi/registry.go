package dpi

import "github.com/google/gopacket/layers"

// decodeFunc is a pure byte-to-layer transformation: consume a prefix of
// data, return the decoded layer and whatever bytes remain.
type decodeFunc func(data []byte) (Layer, []byte, error)

// childrenFunc returns the ordered, static list of candidate children tried
// in sequence when bestChild yields none.
type childrenFunc func() []Identifier

// bestChildFunc deterministically selects the expected child by reading the
// most recently pushed layer.
type bestChildFunc func(meta *FrameMetadata) (Identifier, bool)

type protoEntry struct {
	id        Identifier
	decode    decodeFunc
	children  childrenFunc
	bestChild bestChildFunc
}

// registry is the static protocol-identifier table. There is no dynamic
// registration: adding a protocol means adding one entry here.
var registry = map[Identifier]*protoEntry{
	IdentEthernet: {IdentEthernet, decodeEthernet, childrenEthernet, bestChildEthernet},
	IdentArp:      {IdentArp, decodeArp, noChildren, noBestChild},
	IdentIPv4:     {IdentIPv4, decodeIPv4, childrenIP, bestChildIP},
	IdentIPv6:     {IdentIPv6, decodeIPv6, childrenIP, bestChildIP},
	IdentICMPv4:   {IdentICMPv4, decodeICMPv4, noChildren, noBestChild},
	IdentICMPv6:   {IdentICMPv6, decodeICMPv6, noChildren, noBestChild},
	IdentTCP:      {IdentTCP, decodeTCP, childrenTCP, bestChildTCP},
	IdentUDP:      {IdentUDP, decodeUDP, childrenUDP, bestChildUDP},
	IdentDNS:      {IdentDNS, decodeDNS, noChildren, noBestChild},
	IdentDHCPv4:   {IdentDHCPv4, decodeDHCPv4, noChildren, noBestChild},
	IdentDHCPv6:   {IdentDHCPv6, decodeDHCPv6, noChildren, noBestChild},
	IdentHTTP:     {IdentHTTP, decodeHTTP, noChildren, noBestChild},
}

func noChildren() []Identifier { return nil }

func noBestChild(*FrameMetadata) (Identifier, bool) { return 0, false }

// rootIdentifier maps a capture link type to the top-level identifier,
// grounded directly on decoder.go's NewDecoder(datalink layers.LinkType)
// switch. An unrecognized link type yields (0, false): the traversal engine
// preserves the header rather than dropping it (see DESIGN.md, Open
// Question 3).
func rootIdentifier(linkType layers.LinkType) (Identifier, bool) {
	switch linkType {
	case layers.LinkTypeEthernet, layers.LinkTypeLinuxSLL:
		return IdentEthernet, true
	default:
		return 0, false
	}
}
