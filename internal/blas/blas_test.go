package blas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAxpy(t *testing.T) {
	t.Run("float32", func(t *testing.T) {
		dst := []float32{1, 2, 3}
		For[float32]().Axpy(2, []float32{1, 1, 1}, dst)
		assert.Equal(t, []float32{3, 4, 5}, dst)
	})

	t.Run("float64", func(t *testing.T) {
		dst := []float64{1, 2, 3}
		For[float64]().Axpy(1, []float64{0.5, -2, 4}, dst)
		assert.Equal(t, []float64{1.5, 0, 7}, dst)
	})
}

func TestAxpy_Accumulates(t *testing.T) {
	p := For[float32]()
	dst := make([]float32, 2)
	for i := 0; i < 3; i++ {
		p.Axpy(1, []float32{1, 2}, dst)
	}
	assert.Equal(t, []float32{3, 6}, dst)
}

func TestCopy(t *testing.T) {
	src := []float64{7, 8}
	dst := []float64{1, 1}
	For[float64]().Copy(src, dst)
	assert.Equal(t, src, dst)

	src[0] = 0
	assert.Equal(t, 7.0, dst[0], "copy must not alias")
}

func TestLengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		For[float32]().Copy([]float32{1, 2}, []float32{1})
	})
}
