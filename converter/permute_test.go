package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermuterRoundTrip(t *testing.T) {
	p := NewPermuter("secret key")
	bits := BytesToBits([]byte("scrambled eggs"))
	scrambled := p.Scramble(bits)
	assert.Equal(t, bits, p.Unscramble(scrambled))
}

func TestPermuterActuallyPermutes(t *testing.T) {
	p := NewPermuter("k1")
	bits := BytesToBits([]byte{0xF0, 0xF0, 0xF0, 0xF0})
	scrambled := p.Scramble(bits)
	assert.NotEqual(t, bits, scrambled)

	// Bit population is preserved: it is a permutation, not a cipher.
	count := func(bs []bool) int {
		n := 0
		for _, b := range bs {
			if b {
				n++
			}
		}
		return n
	}
	assert.Equal(t, count(bits), count(scrambled))
}

func TestPermuterWrongKey(t *testing.T) {
	bits := BytesToBits([]byte("the right order"))
	scrambled := NewPermuter("right").Scramble(bits)
	garbled := NewPermuter("wrong").Unscramble(scrambled)
	assert.NotEqual(t, bits, garbled)
}

func TestPermuterDeterministic(t *testing.T) {
	bits := BytesToBits([]byte{0xCA, 0xFE})
	a := NewPermuter("k").Scramble(bits)
	b := NewPermuter("k").Scramble(bits)
	assert.Equal(t, a, b)
}

func TestPermuterShortInputs(t *testing.T) {
	p := NewPermuter("k")
	assert.Empty(t, p.Scramble(nil))
	one := []bool{true}
	assert.Equal(t, one, p.Unscramble(p.Scramble(one)))
}
