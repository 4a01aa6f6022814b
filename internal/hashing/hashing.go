// Package hashing maps feature windows to embedding table rows.
//
// A window is the raw bytes of one row of the input buffer. Each hash slot h
// in [0, num_hash) seeds XXH64 with h, which yields num_hash independent hash
// functions from one primitive. The table row is the hash modulo mod_by.
package hashing

import "github.com/cespare/xxhash/v2"

// Sum64 returns the XXH64 digest of window seeded with seed.
func Sum64(window []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(window) // Digest.Write never fails
	return d.Sum64()
}

// RowIndex returns the table row selected by window under hash slot seed.
// The result is always in [0, modBy); modBy must be positive.
func RowIndex(window []byte, seed, modBy int) int64 {
	return int64(Sum64(window, uint64(seed)) % uint64(modBy)) //nolint:gosec // modBy > 0, result < modBy fits int64
}

// Hasher reuses one digest across windows. It is not safe for concurrent use;
// parallel loops keep one Hasher per worker.
type Hasher struct {
	d     *xxhash.Digest
	modBy uint64
}

// NewHasher returns a Hasher reducing into [0, modBy).
func NewHasher(modBy int) *Hasher {
	return &Hasher{d: xxhash.NewWithSeed(0), modBy: uint64(modBy)}
}

// RowIndex is the allocation-free form of the package-level RowIndex.
func (h *Hasher) RowIndex(window []byte, seed int) int64 {
	h.d.ResetWithSeed(uint64(seed))
	_, _ = h.d.Write(window)
	return int64(h.d.Sum64() % h.modBy) //nolint:gosec // result < modBy fits int64
}
