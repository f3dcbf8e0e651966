// Package pick implements the deterministic variant selector.
//
// Every "random" choice in a rendered message flows through Pick, keyed by
// an explicit seed plus a per-slot tag. No global random state is ever
// consulted, so identical inputs produce identical picks across calls,
// processes and platforms.
package pick

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"rtrgen/internal/model"
)

// Pick selects one element of options, keyed by the exact string
// seed + ":" + tag. Distinct (seed, tag) pairs derive independent streams;
// the same pair always yields the same pick for the same options ordering.
//
// Selection is uniform over the index range. An empty options slice fails
// with model.ErrEmptyPool.
func Pick[T any](seed, tag string, options []T) (T, error) {
	var zero T
	if len(options) == 0 {
		return zero, fmt.Errorf("pick %q: %w", tag, model.ErrEmptyPool)
	}
	return options[Index(seed, tag, len(options))], nil
}

// Index returns the deterministic index Pick would choose for a pool of the
// given size. n must be > 0.
//
// The key string is hashed with SHA-256 and the digest seeds a PCG
// generator. PCG output is specified independently of platform word size,
// which is what makes the cross-process determinism guarantee hold.
func Index(seed, tag string, n int) int {
	sum := sha256.Sum256([]byte(seed + ":" + tag))
	hi := binary.BigEndian.Uint64(sum[0:8])
	lo := binary.BigEndian.Uint64(sum[8:16])

	rng := rand.New(rand.NewPCG(hi, lo))
	return rng.IntN(n)
}
