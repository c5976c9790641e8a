package testutil

import "math/rand/v2"

// NewTestRand returns a deterministic PCG-backed generator for shuffle tests.
func NewTestRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
