package dpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeDNSName(name string) []byte {
	if name == "" {
		return []byte{0}
	}
	var b []byte
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			label := name[start:i]
			b = append(b, byte(len(label)))
			b = append(b, label...)
			start = i + 1
		}
	}
	b = append(b, 0)
	return b
}

func dnsHeaderBytes(id uint16, qd, an, ns, ar uint16) []byte {
	b := make([]byte, 12)
	b[0], b[1] = byte(id>>8), byte(id)
	b[2] = 0x01 // RD=1
	b[4], b[5] = byte(qd>>8), byte(qd)
	b[6], b[7] = byte(an>>8), byte(an)
	b[8], b[9] = byte(ns>>8), byte(ns)
	b[10], b[11] = byte(ar>>8), byte(ar)
	return b
}

func TestDecodeDNSQuerySuccess(t *testing.T) {
	msg := dnsHeaderBytes(0x1234, 1, 0, 0, 0)
	msg = append(msg, encodeDNSName("example.com")...)
	msg = append(msg, 0x00, 0x01, 0x00, 0x01) // QTYPE=A, QCLASS=IN

	layer, rest, err := decodeDNS(msg)
	require.NoError(t, err)
	assert.Nil(t, rest)
	dns := layer.(*DnsLayer)
	assert.EqualValues(t, 0x1234, dns.Header.ID)
	assert.True(t, dns.Header.RD)
	require.Len(t, dns.Questions, 1)
	assert.Equal(t, "example.com", dns.Questions[0].Name)
	assert.EqualValues(t, dnsTypeA, dns.Questions[0].QType)
}

func TestDecodeDNSAnswerWithPointerCompression(t *testing.T) {
	msg := dnsHeaderBytes(1, 1, 1, 0, 0)
	questionNameOffset := len(msg)
	msg = append(msg, encodeDNSName("example.com")...)
	msg = append(msg, 0x00, 0x01, 0x00, 0x01)

	pointer := []byte{0xC0 | byte(questionNameOffset>>8), byte(questionNameOffset)}
	msg = append(msg, pointer...)              // answer name: pointer back to question name
	msg = append(msg, 0x00, 0x01)               // TYPE=A
	msg = append(msg, 0x00, 0x01)               // CLASS=IN
	msg = append(msg, 0x00, 0x00, 0x00, 0x3C)    // TTL=60
	msg = append(msg, 0x00, 0x04)                // RDLENGTH=4
	msg = append(msg, 93, 184, 216, 34)           // RDATA

	layer, rest, err := decodeDNS(msg)
	require.NoError(t, err)
	assert.Nil(t, rest)
	dns := layer.(*DnsLayer)
	require.Len(t, dns.Answers, 1)
	assert.Equal(t, "example.com", dns.Answers[0].Name)
	a, ok := dns.Answers[0].Data.(DnsA)
	require.True(t, ok)
	assert.Equal(t, "93.184.216.34", a.Address.String())
}

func TestParseDNSNameExceedsPointerDepth(t *testing.T) {
	// A chain of pointers, each pointing at the previous one: dnsMaxPointerDepth+1
	// jumps are required to reach the terminator at offset 0, one more than
	// dnsMaxPointerDepth allows.
	message := make([]byte, 2*(dnsMaxPointerDepth+2))
	message[0], message[1] = 0, 0 // terminator
	for i := 1; i <= dnsMaxPointerDepth+1; i++ {
		off := i * 2
		target := off - 2
		message[off] = 0xC0 | byte(target>>8)
		message[off+1] = byte(target)
	}
	start := (dnsMaxPointerDepth + 1) * 2
	_, _, err := parseDNSName(message, start, 0)
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestDecodeDNSRejectsNonZeroReservedBits(t *testing.T) {
	msg := dnsHeaderBytes(1, 0, 0, 0, 0)
	msg[3] |= 0x40 // sets a Z bit
	_, _, err := decodeDNS(msg)
	assert.ErrorIs(t, err, ErrVerify)
}

func TestDecodeDNSShortBuffer(t *testing.T) {
	_, _, err := decodeDNS(make([]byte, 4))
	assert.ErrorIs(t, err, ErrShortBuffer)
}
