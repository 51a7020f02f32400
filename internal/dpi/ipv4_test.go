package dpi

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ipv4Bytes builds a minimal 20-byte IPv4 header (no options) carrying
// protocol proto and payload, with TotalLength set correctly.
func ipv4Bytes(proto byte, payload []byte) []byte {
	b := make([]byte, 20+len(payload))
	b[0] = 0x45 // version 4, IHL 5
	totalLen := uint16(20 + len(payload))
	b[2] = byte(totalLen >> 8)
	b[3] = byte(totalLen)
	b[8] = 64 // TTL
	b[9] = proto
	copy(b[12:16], net.IPv4(192, 168, 1, 1).To4())
	copy(b[16:20], net.IPv4(192, 168, 1, 2).To4())
	copy(b[20:], payload)
	return b
}

func TestDecodeIPv4Success(t *testing.T) {
	layer, rest, err := decodeIPv4(ipv4Bytes(6, []byte{1, 2, 3, 4}))
	require.NoError(t, err)
	ip := layer.(*Ipv4Layer)
	assert.EqualValues(t, 4, ip.Version)
	assert.EqualValues(t, 20, ip.IHL)
	assert.EqualValues(t, 6, ip.Protocol)
	assert.Equal(t, net.IPv4(192, 168, 1, 1).To4(), ip.Source)
	assert.Equal(t, []byte{1, 2, 3, 4}, rest)
}

func TestDecodeIPv4RejectsOptions(t *testing.T) {
	b := ipv4Bytes(6, nil)
	b[0] = 0x46 // IHL 6 words: options present, unsupported
	_, _, err := decodeIPv4(b)
	assert.ErrorIs(t, err, ErrVerify)
}

func TestDecodeIPv4RejectsWrongVersion(t *testing.T) {
	b := ipv4Bytes(6, nil)
	b[0] = 0x65 // version 6
	_, _, err := decodeIPv4(b)
	assert.ErrorIs(t, err, ErrVerify)
}

func TestDecodeIPv4ShortBuffer(t *testing.T) {
	_, _, err := decodeIPv4(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestBestChildIPDispatchesByProtocolNumber(t *testing.T) {
	cases := map[uint8]Identifier{1: IdentICMPv4, 6: IdentTCP, 17: IdentUDP, 4: IdentIPv4, 41: IdentIPv6, 58: IdentICMPv6}
	for proto, want := range cases {
		meta := newFrameMetadata(FrameHeader{})
		meta.push(&Ipv4Layer{Protocol: proto})
		got, ok := bestChildIP(meta)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestBestChildIPUnknownProtocol(t *testing.T) {
	meta := newFrameMetadata(FrameHeader{})
	meta.push(&Ipv4Layer{Protocol: 200})
	_, ok := bestChildIP(meta)
	assert.False(t, ok)
}

func TestBestChildIPv6UsesNextHeader(t *testing.T) {
	meta := newFrameMetadata(FrameHeader{})
	meta.push(&Ipv6Layer{NextHeader: 17})
	id, ok := bestChildIP(meta)
	require.True(t, ok)
	assert.Equal(t, IdentUDP, id)
}
