/*
 * Vesper VM - A Java virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package bitset implements the dual-representation compressed bitset
// spec.md calls for: bitsets of 63 bits or fewer are stored inline (no
// allocation at all); larger ones fall back to a heap word slice. The
// verifier uses this for per-PC reference bitmaps.
package bitset

import "math/bits"

const inlineBits = 63

// Bitset is deliberately a value type: the zero value is a valid empty
// inline bitset, so callers never need a constructor for the common case.
type Bitset struct {
	inline uint64 // bit i is stored at bit i+1; used while words is empty (the inline representation)
	words  []uint64
}

// New returns an empty bitset sized to hold at least n bits. If n fits in
// the inline representation, no heap allocation occurs.
func New(n int) Bitset {
	if n <= inlineBits {
		return Bitset{inline: 1}
	}
	return Bitset{words: make([]uint64, (n+63)/64)}
}

func (b *Bitset) isInline() bool {
	return len(b.words) == 0
}

// Set marks bit i.
func (b *Bitset) Set(i int) {
	if b.isInline() {
		if i < inlineBits {
			b.inline |= 1 << uint(i+1)
			return
		}
		b.promote(i + 1)
	}
	word, bit := i/64, uint(i%64)
	if word >= len(b.words) {
		grown := make([]uint64, word+1)
		copy(grown, b.words)
		b.words = grown
	}
	b.words[word] |= 1 << bit
}

// Reset clears bit i.
func (b *Bitset) Reset(i int) {
	if b.isInline() {
		if i < inlineBits {
			b.inline &^= 1 << uint(i+1)
		}
		return
	}
	word, bit := i/64, uint(i%64)
	if word < len(b.words) {
		b.words[word] &^= 1 << bit
	}
}

// Test reports whether bit i is set.
func (b *Bitset) Test(i int) bool {
	if b.isInline() {
		if i < 0 || i >= inlineBits {
			return false
		}
		return b.inline&(1<<uint(i+1)) != 0
	}
	word, bit := i/64, uint(i%64)
	if word >= len(b.words) {
		return false
	}
	return b.words[word]&(1<<bit) != 0
}

// promote converts an inline bitset to the heap representation, preserving
// every bit already set, when a set index no longer fits inline.
func (b *Bitset) promote(minBits int) {
	nWords := (minBits + 63) / 64
	if nWords < 1 {
		nWords = 1
	}
	words := make([]uint64, nWords)
	bits := b.inline >> 1 // drop the inline tag bit
	words[0] = bits
	b.inline = 0
	b.words = words
}

// ListBits returns the sorted indices of every set bit.
func (b *Bitset) ListBits() []int {
	var out []int
	if b.isInline() {
		bits64 := b.inline >> 1
		for bits64 != 0 {
			i := bits.TrailingZeros64(bits64)
			out = append(out, i)
			bits64 &^= 1 << uint(i)
		}
		return out
	}
	for w, word := range b.words {
		for word != 0 {
			i := bits.TrailingZeros64(word)
			out = append(out, w*64+i)
			word &^= 1 << uint(i)
		}
	}
	return out
}

// IsInlineRepresentation reports whether the bitset is presently using the
// tagged-inline representation (exposed for the property test in spec.md
// §8.4: "enclosed <=63-bit bitsets use the inline representation").
func (b *Bitset) IsInlineRepresentation() bool {
	return b.isInline()
}
