package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToBitsOrder(t *testing.T) {
	// 0xA5 = 1010 0101, MSB first.
	bits := BytesToBits([]byte{0xA5})
	want := []bool{true, false, true, false, false, true, false, true}
	assert.Equal(t, want, bits)
}

func TestBitsRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xFF},
		[]byte("Hello BlindWatermark!"),
		{0x01, 0x80, 0x7F, 0xAA, 0x55},
	}
	for _, data := range cases {
		assert.Equal(t, data, append([]byte{}, BitsToBytes(BytesToBits(data))...))
	}
}

func TestBitsToBytesDiscardsTrailingBits(t *testing.T) {
	bits := BytesToBits([]byte{0xDE, 0xAD})
	// Chop off three bits: the partial trailing group is dropped, the full
	// bytes survive. Truncated data is a signal, not an error.
	got := BitsToBytes(bits[:13])
	assert.Equal(t, []byte{0xDE}, got)

	assert.Empty(t, BitsToBytes(bits[:7]))
	assert.Empty(t, BitsToBytes(nil))
}

func TestLengthHeaderRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 8, 255, 256, 65535} {
		bits, err := EncodeLength(n)
		require.NoError(t, err)
		require.Len(t, bits, HeaderBits)
		assert.Equal(t, n, DecodeLength(bits))
	}
}

func TestLengthHeaderBigEndian(t *testing.T) {
	bits, err := EncodeLength(0x0102)
	require.NoError(t, err)
	want := BytesToBits([]byte{0x01, 0x02})
	assert.Equal(t, want, bits)
}

func TestEncodeLengthRejectsOverflow(t *testing.T) {
	_, err := EncodeLength(65536)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	_, err = EncodeLength(-1)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestPackUnpack(t *testing.T) {
	payload := Pack(TypeText, []byte("hi"))
	wmType, data, err := Unpack(payload)
	require.NoError(t, err)
	assert.Equal(t, TypeText, wmType)
	assert.Equal(t, []byte("hi"), data)

	_, _, err = Unpack(nil)
	assert.ErrorIs(t, err, ErrPayloadTooShort)
}

func TestPackEmptyData(t *testing.T) {
	wmType, data, err := Unpack(Pack(TypeQRCode, nil))
	require.NoError(t, err)
	assert.Equal(t, TypeQRCode, wmType)
	assert.Empty(t, data)
}
