package dpi

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMacAddressString(t *testing.T) {
	mac := MacAddress{0x00, 0x1A, 0x2B, 0x3C, 0x4D, 0x5E}
	assert.Equal(t, "00:1A:2B:3C:4D:5E", mac.String())
}

func TestMacAddressBits(t *testing.T) {
	mac := MacAddress{0xFF, 0, 0, 0, 0, 0}
	bits := mac.Bits()
	require.Len(t, bits, 48)
	assert.Equal(t, "11111111", bits[:8])
	assert.Equal(t, "00000000", bits[8:16])
}

func TestParseMacAddressSeparators(t *testing.T) {
	want := MacAddress{0x00, 0x1A, 0x2B, 0x3C, 0x4D, 0x5E}
	for _, s := range []string{"00:1A:2B:3C:4D:5E", "00-1A-2B-3C-4D-5E", "001A2B3C4D5E", "00.1A.2B.3C.4D.5E"} {
		got, err := ParseMacAddress(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
}

func TestParseMacAddressRejectsWrongLength(t *testing.T) {
	_, err := ParseMacAddress("00:1A:2B")
	assert.Error(t, err)
}

func TestIsPrivateIPv4(t *testing.T) {
	cases := map[string]bool{
		"10.0.0.1":      true,
		"172.16.0.1":    true,
		"172.31.255.1":  true,
		"172.32.0.1":    false,
		"192.168.1.1":   true,
		"8.8.8.8":       false,
		"192.169.1.1":   false,
	}
	for s, want := range cases {
		assert.Equal(t, want, IsPrivateIPv4(net.ParseIP(s)), s)
	}
}

func TestIsUniqueLocalIPv6(t *testing.T) {
	assert.True(t, IsUniqueLocalIPv6(net.ParseIP("fc00::1")))
	assert.True(t, IsUniqueLocalIPv6(net.ParseIP("fd00::1")))
	assert.False(t, IsUniqueLocalIPv6(net.ParseIP("fe80::1")))
	assert.False(t, IsUniqueLocalIPv6(net.ParseIP("10.0.0.1")))
}

func TestIsPrivateAddrDispatchesByFamily(t *testing.T) {
	assert.True(t, IsPrivateAddr(net.ParseIP("192.168.1.1")))
	assert.True(t, IsPrivateAddr(net.ParseIP("fd00::1")))
	assert.False(t, IsPrivateAddr(net.ParseIP("1.1.1.1")))
}
