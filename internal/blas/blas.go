// Package blas exposes the two vector primitives the embedding kernels need,
// backed by gonum's BLAS implementations:
//
//	Axpy: dst += alpha * src
//	Copy: dst = src
//
// Both operate on contiguous vectors (unit stride) of equal length.
package blas

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Float lists the element types with a BLAS implementation.
type Float interface {
	float32 | float64
}

// Provider performs row-level linear algebra for one element type.
type Provider[T Float] interface {
	// Axpy accumulates alpha*src into dst.
	Axpy(alpha T, src, dst []T)
	// Copy overwrites dst with src.
	Copy(src, dst []T)
}

// For returns the Provider for T.
func For[T Float]() Provider[T] {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(single{}).(Provider[T])
	default:
		return any(double{}).(Provider[T])
	}
}

type single struct{}

func (single) Axpy(alpha float32, src, dst []float32) {
	checkLen(len(src), len(dst))
	blas32.Axpy(alpha, vec32(src), vec32(dst))
}

func (single) Copy(src, dst []float32) {
	checkLen(len(src), len(dst))
	blas32.Copy(vec32(src), vec32(dst))
}

type double struct{}

func (double) Axpy(alpha float64, src, dst []float64) {
	checkLen(len(src), len(dst))
	blas64.Axpy(alpha, vec64(src), vec64(dst))
}

func (double) Copy(src, dst []float64) {
	checkLen(len(src), len(dst))
	blas64.Copy(vec64(src), vec64(dst))
}

func vec32(x []float32) blas32.Vector {
	return blas32.Vector{N: len(x), Data: x, Inc: 1}
}

func vec64(x []float64) blas64.Vector {
	return blas64.Vector{N: len(x), Data: x, Inc: 1}
}

func checkLen(src, dst int) {
	if src != dst {
		panic("blas: vector length mismatch")
	}
}
