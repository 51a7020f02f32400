package dpi

import (
	"time"

	"github.com/google/gopacket"
)

// Identifier is the closed enumeration of protocols the DPI core knows how
// to decode. It is never extended at runtime: adding a protocol means
// adding one entry here and one registry row in registry.go.
type Identifier int

const (
	IdentEthernet Identifier = iota
	IdentArp
	IdentIPv4
	IdentIPv6
	IdentICMPv4
	IdentICMPv6
	IdentTCP
	IdentUDP
	IdentDNS
	IdentDHCPv4
	IdentDHCPv6
	IdentHTTP
)

var identNames = map[Identifier]string{
	IdentEthernet: "Ethernet",
	IdentArp:      "Arp",
	IdentIPv4:     "IPv4",
	IdentIPv6:     "IPv6",
	IdentICMPv4:   "ICMPv4",
	IdentICMPv6:   "ICMPv6",
	IdentTCP:      "TCP",
	IdentUDP:      "UDP",
	IdentDNS:      "DNS",
	IdentDHCPv4:   "DHCPv4",
	IdentDHCPv6:   "DHCPv6",
	IdentHTTP:     "HTTP",
}

func (i Identifier) String() string {
	if n, ok := identNames[i]; ok {
		return n
	}
	return "Unknown"
}

// Layer is implemented by every decoded protocol layer. The method exists
// only to close the union: callers type-switch on the concrete type.
type Layer interface {
	Identifier() Identifier
}

// FrameHeader is the capture metadata for one frame, immutable once built.
type FrameHeader struct {
	TvSec  int64
	TvUsec int64
	Caplen uint32
	Len    uint32
}

// Time returns the wall-clock timestamp this header describes.
func (h FrameHeader) Time() time.Time {
	return time.Unix(h.TvSec, h.TvUsec*1000)
}

// FrameHeaderFromCaptureInfo adapts a gopacket.CaptureInfo, the shape the
// external capture collaborator delivers, into a FrameHeader.
func FrameHeaderFromCaptureInfo(ci gopacket.CaptureInfo) FrameHeader {
	return FrameHeader{
		TvSec:  ci.Timestamp.Unix(),
		TvUsec: int64(ci.Timestamp.Nanosecond() / 1000),
		Caplen: uint32(ci.CaptureLength),
		Len:    uint32(ci.Length),
	}
}

// FrameMetadata is a fully or partially decoded frame: a header plus an
// ordered, outermost-first list of decoded layers.
type FrameMetadata struct {
	Header FrameHeader
	Layers []Layer
}

func newFrameMetadata(h FrameHeader) *FrameMetadata {
	return &FrameMetadata{Header: h, Layers: make([]Layer, 0, 4)}
}

func (m *FrameMetadata) push(l Layer) {
	m.Layers = append(m.Layers, l)
}

// Last returns the most recently pushed layer, or nil if none.
func (m *FrameMetadata) Last() Layer {
	if len(m.Layers) == 0 {
		return nil
	}
	return m.Layers[len(m.Layers)-1]
}

// FrameType is the tagged outcome of a traversal: exactly one of
// MetadataFrame, HeaderFrame, RawFrame.
type FrameType interface {
	frameType()
}

// MetadataFrame is a complete or acceptable partial parse.
type MetadataFrame struct {
	Metadata *FrameMetadata
}

// HeaderFrame means parsing failed at or near the link layer; only the
// capture header survives.
type HeaderFrame struct {
	Header FrameHeader
}

// RawFrame retains the raw captured bytes, either because retention was
// requested or because the parse could not complete.
type RawFrame struct {
	Header FrameHeader
	Data   []byte
}

func (MetadataFrame) frameType() {}
func (HeaderFrame) frameType()   {}
func (RawFrame) frameType()      {}
