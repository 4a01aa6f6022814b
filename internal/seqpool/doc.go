// Package seqpool implements the fused hashed-embedding sequence pooling
// kernels.
//
// Instead of one table row per vocabulary id, every feature window (one row
// of a ragged input batch) is hashed into a fixed-size table with NumHash
// seeded hash functions, and the selected rows are summed per sequence.
// Forward produces one pooled vector per sequence; Backward expands the
// pooled gradient into a sparse row gradient of the table.
//
// Both kernels are single synchronous calls. They never mutate the table and
// keep no state between calls.
package seqpool
