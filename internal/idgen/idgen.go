// Package idgen produces opaque conversation identifiers.
// Callers should treat identifiers as opaque strings.
package idgen

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/aretw0/pageflow/pkg/ports"
)

// SeedSize is the number of random bytes hashed into one identifier.
const SeedSize = 24

// CryptoSource reads from crypto/rand.
type CryptoSource struct{}

// NextBytes returns n bytes from the operating system CSPRNG.
func (CryptoSource) NextBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Generator hashes secure random seeds into 40 character hex identifiers.
type Generator struct {
	source ports.RandomSource
}

// New creates a generator. A nil source defaults to CryptoSource.
func New(source ports.RandomSource) *Generator {
	if source == nil {
		source = CryptoSource{}
	}
	return &Generator{source: source}
}

// Next returns a fresh identifier.
func (g *Generator) Next() (string, error) {
	seed, err := g.source.NextBytes(SeedSize)
	if err != nil {
		return "", fmt.Errorf("failed to read random seed: %w", err)
	}
	if len(seed) != SeedSize {
		return "", fmt.Errorf("random source returned %d bytes, want %d", len(seed), SeedSize)
	}
	sum := sha1.Sum(seed)
	return hex.EncodeToString(sum[:]), nil
}
