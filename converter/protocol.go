package converter

import (
	"errors"
)

// WatermarkType tags the kind of payload carried by a watermark.
type WatermarkType byte

const (
	TypeText   WatermarkType = 0x01
	TypeImage  WatermarkType = 0x02
	TypeQRCode WatermarkType = 0x03
)

const (
	// HeaderBits is the width of the length header preceding the payload
	// bits: a big-endian bit count of the payload.
	HeaderBits = 16
	// MaxPayloadBits is the largest payload the length header can frame.
	MaxPayloadBits = 1<<HeaderBits - 1
)

var (
	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadBits.
	ErrPayloadTooLarge = errors.New("payload exceeds 65535 bits")
	// ErrPayloadTooShort is returned by Unpack for payloads missing the
	// type byte.
	ErrPayloadTooShort = errors.New("payload too short for type header")
)

// Pack prefixes data with its one-byte watermark type. The bit-level length
// framing is applied separately by the embedder.
func Pack(wmType WatermarkType, data []byte) []byte {
	buf := make([]byte, 1+len(data))
	buf[0] = byte(wmType)
	copy(buf[1:], data)
	return buf
}

// Unpack splits a typed payload back into its type and data.
func Unpack(payload []byte) (WatermarkType, []byte, error) {
	if len(payload) < 1 {
		return 0, nil, ErrPayloadTooShort
	}
	return WatermarkType(payload[0]), payload[1:], nil
}

// BytesToBits expands data into bits, most-significant bit first within each
// byte, in byte order.
func BytesToBits(data []byte) []bool {
	bits := make([]bool, 0, len(data)*8)
	for _, b := range data {
		for j := 7; j >= 0; j-- {
			bits = append(bits, (b>>uint(j))&1 == 1)
		}
	}
	return bits
}

// BitsToBytes packs bits back into bytes, MSB first. A trailing group of
// fewer than eight bits is discarded: it signals truncated data, not an
// error.
func BitsToBytes(bits []bool) []byte {
	n := len(bits) / 8
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		var b byte
		for j := 0; j < 8; j++ {
			if bits[i*8+j] {
				b |= 1 << uint(7-j)
			}
		}
		data[i] = b
	}
	return data
}

// EncodeLength renders a payload bit count as the 16-bit big-endian length
// header.
func EncodeLength(bitCount int) ([]bool, error) {
	if bitCount < 0 || bitCount > MaxPayloadBits {
		return nil, ErrPayloadTooLarge
	}
	bits := make([]bool, HeaderBits)
	for i := 0; i < HeaderBits; i++ {
		bits[i] = (bitCount>>uint(HeaderBits-1-i))&1 == 1
	}
	return bits, nil
}

// DecodeLength reads the 16-bit big-endian length header. The caller must
// supply at least HeaderBits bits.
func DecodeLength(bits []bool) int {
	n := 0
	for i := 0; i < HeaderBits; i++ {
		n <<= 1
		if bits[i] {
			n |= 1
		}
	}
	return n
}
