// Package random seeds the deterministic PRNG behind sabotage trials.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ResolveSeed returns configured when it is non-zero, otherwise a seed
// from gen. Logging the result makes a competition replayable.
func ResolveSeed(configured int64, gen func() (int64, error)) (int64, error) {
	if configured != 0 {
		return configured, nil
	}
	if gen == nil {
		gen = NewSeed
	}
	return gen()
}

// New returns a PRNG for one competition. It is not safe for concurrent use.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
