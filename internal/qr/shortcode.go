package qr

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// ShortCodeLength is the fixed length of every generated short code.
const ShortCodeLength = 8

const shortCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ShortCodeGenerator draws URL-safe random short codes for dynamic QR
// codes. The randomness source is injectable so tests can supply a
// deterministic reader.
type ShortCodeGenerator struct {
	rand io.Reader
}

// NewShortCodeGenerator creates a generator backed by crypto/rand.
func NewShortCodeGenerator() *ShortCodeGenerator {
	return &ShortCodeGenerator{rand: rand.Reader}
}

// NewShortCodeGeneratorWithSource creates a generator reading randomness
// from the given source.
func NewShortCodeGeneratorWithSource(src io.Reader) *ShortCodeGenerator {
	return &ShortCodeGenerator{rand: src}
}

// Generate draws 8 characters independently and uniformly from
// [0-9A-Za-z]. Uniqueness against existing rows is the caller's job.
func (g *ShortCodeGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(shortCodeAlphabet)))
	code := make([]byte, ShortCodeLength)
	for i := range code {
		n, err := rand.Int(g.rand, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random short code character: %w", err)
		}
		code[i] = shortCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
