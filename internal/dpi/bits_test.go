package dpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeN(t *testing.T) {
	taken, rest, err := takeN([]byte{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, taken)
	assert.Equal(t, []byte{3, 4}, rest)
}

func TestTakeNShortBuffer(t *testing.T) {
	_, _, err := takeN([]byte{1}, 2)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestTakeU16BigEndian(t *testing.T) {
	v, rest, err := takeU16([]byte{0x01, 0x02, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v)
	assert.Equal(t, []byte{0xFF}, rest)
}

func TestTakeU32BigEndian(t *testing.T) {
	v, _, err := takeU32([]byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), v)
}

func TestTakeU24BigEndian(t *testing.T) {
	v, _, err := takeU24([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x010203), v)
}

func TestBitSessionReadsMSBFirst(t *testing.T) {
	// 0xA0 == 1010_0000
	s := newBitSession([]byte{0xA0})
	v, err := s.take(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	v, err = s.take(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b010), v)
}

func TestBitSessionCloseRequiresByteAlignment(t *testing.T) {
	s := newBitSession([]byte{0xFF})
	_, err := s.take(4)
	require.NoError(t, err)
	_, err = s.close()
	assert.ErrorIs(t, err, ErrVerify)
}

func TestBitSessionCloseReturnsRemainder(t *testing.T) {
	s := newBitSession([]byte{0xFF, 0xAA})
	_, err := s.take(8)
	require.NoError(t, err)
	rest, err := s.close()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, rest)
}

func TestBitSessionOverrunIsShortBuffer(t *testing.T) {
	s := newBitSession([]byte{0xFF})
	_, err := s.take(9)
	assert.ErrorIs(t, err, ErrShortBuffer)
}
