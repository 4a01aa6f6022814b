// Package serialization saves and restores embedding tables and optimizer
// state in the SafeTensors format.
//
// Layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw little-endian bytes, tensors in name order]
//
// The header maps each tensor name to its dtype, shape and data offsets.
// The "__metadata__" entry carries string metadata; Write stores a SHA-256
// checksum of the data section under MetaChecksum and Read verifies it.
package serialization
