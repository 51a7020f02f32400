package dpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeICMPv4(t *testing.T) {
	data := []byte{8, 0, 0xAB, 0xCD, 'p', 'i', 'n', 'g'}
	layer, rest, err := decodeICMPv4(data)
	require.NoError(t, err)
	icmp := layer.(*Icmpv4Layer)
	assert.EqualValues(t, 8, icmp.Type)
	assert.EqualValues(t, 0, icmp.Code)
	assert.Equal(t, []byte("ping"), icmp.Data)
	assert.Nil(t, rest)
}

func TestDecodeICMPv4ShortBuffer(t *testing.T) {
	_, _, err := decodeICMPv4([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeICMPv6(t *testing.T) {
	data := []byte{128, 0, 0, 0}
	layer, rest, err := decodeICMPv6(data)
	require.NoError(t, err)
	icmp := layer.(*Icmpv6Layer)
	assert.EqualValues(t, 128, icmp.Type)
	assert.Nil(t, rest)
}
