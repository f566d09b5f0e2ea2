package converter

import (
	"hash/crc32"
	"math/rand"
)

// Permuter scrambles the order of payload bits with a keyed Fisher-Yates
// shuffle. The shuffle is seeded with the CRC32-IEEE of the key, so this is
// bit-permutation obfuscation only: it hides the payload from a casual
// extractor but provides no cryptographic confidentiality. The length header
// is never permuted; blind extraction has to frame the payload before it can
// unscramble it.
type Permuter struct {
	seed int64
}

// NewPermuter derives a Permuter from an arbitrary key string.
func NewPermuter(key string) *Permuter {
	return &Permuter{seed: int64(crc32.ChecksumIEEE([]byte(key)))}
}

// permutation returns the keyed shuffle of [0,n): position i of the scrambled
// stream holds source bit perm[i].
func (p *Permuter) permutation(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewSource(p.seed))
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Scramble reorders bits under the key. The input is not modified.
func (p *Permuter) Scramble(bits []bool) []bool {
	perm := p.permutation(len(bits))
	out := make([]bool, len(bits))
	for i, src := range perm {
		out[i] = bits[src]
	}
	return out
}

// Unscramble inverts Scramble for the same key and bit count.
func (p *Permuter) Unscramble(bits []bool) []bool {
	perm := p.permutation(len(bits))
	out := make([]bool, len(bits))
	for i, src := range perm {
		out[src] = bits[i]
	}
	return out
}
