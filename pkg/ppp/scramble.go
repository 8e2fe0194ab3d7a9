package ppp

import (
	"crypto/rand"
	"time"
)

// KeyTableSize is the length of KeyTable.
const KeyTableSize = 64

// SeedMask keeps the top bit of a seed clear.
const SeedMask byte = 0x7f

// KeyTable is the pad shared with the accessory firmware.
var KeyTable = [KeyTableSize]byte{
	0xB8, 0x02, 0xD9, 0x57, 0xC6, 0x48, 0xC2, 0x13, 0xD7, 0xA6, 0x30, 0xBF, 0x40, 0xD3, 0x07, 0xCE,
	0xC3, 0xAB, 0xFA, 0x51, 0x62, 0x18, 0xBD, 0x84, 0x7D, 0xCA, 0xE0, 0xCF, 0xF2, 0xAC, 0xBC, 0x12,
	0xF5, 0x14, 0xD0, 0x72, 0xDC, 0x1A, 0x50, 0x00, 0x00, 0x32, 0xD1, 0x7B, 0x33, 0xB6, 0x10, 0xDD,
	0x6A, 0x21, 0xEB, 0x7E, 0x52, 0x5B, 0x3D, 0x9F, 0x85, 0xCB, 0x1F, 0x66, 0x73, 0x96, 0xA1, 0x60,
}

// NewSeed draws a random seed in [0, 127].
func NewSeed() byte {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		b[0] = byte(time.Now().UnixNano())
	}
	return b[0] & SeedMask
}

// Scramble scrambles src into dst with a fresh seed and returns the seed.
// dst must be at least as long as src, and may be src itself.
func Scramble(dst, src []byte) byte {
	seed := NewSeed()
	ScrambleWithSeed(dst, src, seed)
	return seed
}

// ScrambleWithSeed scrambles src into dst using the given seed.
func ScrambleWithSeed(dst, src []byte, seed byte) {
	offset := int(seed)
	for i, b := range src {
		dst[i] = b ^ KeyTable[(offset+i)%KeyTableSize]
	}
}

// Descramble reverses ScrambleWithSeed for the same seed.
func Descramble(dst, src []byte, seed byte) {
	ScrambleWithSeed(dst, src, seed)
}
