package dpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpBytes(srcPort, dstPort uint16, payload []byte) []byte {
	b := make([]byte, 20+len(payload))
	b[0], b[1] = byte(srcPort>>8), byte(srcPort)
	b[2], b[3] = byte(dstPort>>8), byte(dstPort)
	b[12] = 5 << 4 // data offset: 5 words = 20 bytes
	b[13] = 0x02   // SYN
	copy(b[20:], payload)
	return b
}

func TestDecodeTCPSuccess(t *testing.T) {
	layer, rest, err := decodeTCP(tcpBytes(1234, 80, []byte{1, 2}))
	require.NoError(t, err)
	tcp := layer.(*TcpLayer)
	assert.EqualValues(t, 1234, tcp.SourcePort)
	assert.EqualValues(t, 80, tcp.DestPort)
	assert.True(t, tcp.Flags.SYN)
	assert.False(t, tcp.Flags.ACK)
	assert.Equal(t, []byte{1, 2}, rest)
}

func TestDecodeTCPWithOptions(t *testing.T) {
	b := tcpBytes(1, 2, []byte{0xDE, 0xAD})
	b[12] = 6 << 4 // data offset 6 words = 24 bytes: 4 bytes of options
	full := append(b[:20], append(make([]byte, 4), b[20:]...)...)
	layer, rest, err := decodeTCP(full)
	require.NoError(t, err)
	tcp := layer.(*TcpLayer)
	assert.Len(t, tcp.Options, 4)
	assert.Equal(t, []byte{0xDE, 0xAD}, rest)
}

func TestDecodeTCPRejectsShortDataOffset(t *testing.T) {
	b := tcpBytes(1, 2, nil)
	b[12] = 4 << 4 // data offset 16 bytes, less than the 20-byte fixed header
	_, _, err := decodeTCP(b)
	assert.ErrorIs(t, err, ErrVerify)
}

func TestDecodeTCPShortBuffer(t *testing.T) {
	_, _, err := decodeTCP(make([]byte, 19))
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestBestChildTCPDNSAndHTTP(t *testing.T) {
	meta := newFrameMetadata(FrameHeader{})
	meta.push(&TcpLayer{SourcePort: 4000, DestPort: 53})
	id, ok := bestChildTCP(meta)
	require.True(t, ok)
	assert.Equal(t, IdentDNS, id)

	meta2 := newFrameMetadata(FrameHeader{})
	meta2.push(&TcpLayer{SourcePort: 80, DestPort: 4000})
	id, ok = bestChildTCP(meta2)
	require.True(t, ok)
	assert.Equal(t, IdentHTTP, id)
}

func TestBestChildTCPNoMatch(t *testing.T) {
	meta := newFrameMetadata(FrameHeader{})
	meta.push(&TcpLayer{SourcePort: 4000, DestPort: 4001})
	_, ok := bestChildTCP(meta)
	assert.False(t, ok)
}
