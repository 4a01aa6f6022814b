package optim

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
	"gorgonia.org/vecf64"

	"github.com/born-ml/hashembed/internal/tensor"
)

// SparseSGD implements Stochastic Gradient Descent over sparse row gradients,
// with optional momentum and gradient clipping.
//
// Update rule for every touched row (duplicates summed first):
//
//	velocity[row] = momentum * velocity[row] + grad[row]
//	table[row]    = table[row] - lr * velocity[row]
//
// Without momentum the velocity is the gradient itself. Rows absent from the
// gradient are left alone, including their velocity ("lazy" momentum).
type SparseSGD[T tensor.Float] struct {
	lr       float64
	momentum float64
	clipNorm float64
	velocity *tensor.RawTensor
	ops      rowOps[T]
}

// SGDConfig holds configuration for SparseSGD.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
	ClipNorm float64 // Clip the merged gradient to this L2 norm; 0 disables.
}

// NewSparseSGD creates a new SparseSGD optimizer.
func NewSparseSGD[T tensor.Float](config SGDConfig) *SparseSGD[T] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SparseSGD[T]{
		lr:       config.LR,
		momentum: config.Momentum,
		clipNorm: config.ClipNorm,
		ops:      newRowOps[T](),
	}
}

// Step merges duplicate rows of grad and applies one update to table.
func (s *SparseSGD[T]) Step(table *tensor.RawTensor, grad *tensor.SelectedRows) error {
	if err := checkStep[T](table, grad); err != nil {
		return err
	}
	merged, err := tensor.Merge[T](grad)
	if err != nil {
		return errors.WithStack(err)
	}

	width := merged.Width()
	values := tensor.View[T](merged.Value)
	if s.clipNorm > 0 {
		if norm := float64(s.ops.norm(values)); norm > s.clipNorm {
			s.ops.scale(values, T(s.clipNorm/norm))
		}
	}

	if s.momentum != 0 && s.velocity == nil {
		s.velocity, err = tensor.NewRaw(table.Shape(), table.DType(), table.Device())
		if err != nil {
			return errors.WithStack(err)
		}
	}

	if s.velocity != nil && !s.velocity.Shape().Equal(table.Shape()) {
		return errors.Errorf("optim: velocity is %v, table is %v", s.velocity.Shape(), table.Shape())
	}

	params := tensor.View[T](table)
	for k, r := range merged.Rows {
		row := params[int(r)*width : int(r+1)*width]
		g := values[k*width : (k+1)*width]
		if s.velocity != nil {
			v := tensor.View[T](s.velocity)[int(r)*width : int(r+1)*width]
			s.ops.scale(v, T(s.momentum))
			s.ops.add(v, g)
			g = v
		}
		s.ops.scaleAdd(row, g, T(-s.lr))
	}
	return nil
}

// GetLR returns the current learning rate.
func (s *SparseSGD[T]) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SparseSGD[T]) SetLR(lr float64) {
	s.lr = lr
}

// StateDict returns the optimizer state for serialization. Only momentum
// keeps state: the velocity matrix under "velocity".
func (s *SparseSGD[T]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.velocity != nil {
		state["velocity"] = s.velocity
	}
	return state
}

// LoadStateDict restores a velocity matrix saved by StateDict.
func (s *SparseSGD[T]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	v, ok := state["velocity"]
	if !ok {
		s.velocity = nil
		return nil
	}
	if v.DType() != tensor.DataTypeOf[T]() || len(v.Shape()) != 2 {
		return errors.Errorf("velocity must be a 2-D %s matrix, got %s %v", tensor.DataTypeOf[T](), v.DType(), v.Shape())
	}
	s.velocity = v
	return nil
}

// rowOps are the in-place vector kernels used by the update, backed by
// gorgonia's vecf32/vecf64.
type rowOps[T tensor.Float] interface {
	scale(x []T, alpha T)
	add(dst, src []T)
	scaleAdd(dst, src []T, alpha T) // dst += alpha * src
	norm(x []T) T
}

func newRowOps[T tensor.Float]() rowOps[T] {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(&ops32{}).(rowOps[T])
	default:
		return any(&ops64{}).(rowOps[T])
	}
}

type ops32 struct{ scratch []float32 }

func (o *ops32) scale(x []float32, alpha float32) { vecf32.Scale(x, alpha) }
func (o *ops32) add(dst, src []float32)           { vecf32.Add(dst, src) }

func (o *ops32) scaleAdd(dst, src []float32, alpha float32) {
	o.scratch = append(o.scratch[:0], src...)
	vecf32.Scale(o.scratch, alpha)
	vecf32.Add(dst, o.scratch)
}

func (o *ops32) norm(x []float32) float32 {
	o.scratch = append(o.scratch[:0], x...)
	vecf32.Mul(o.scratch, x)
	return math32.Sqrt(vecf32.Sum(o.scratch))
}

type ops64 struct{ scratch []float64 }

func (o *ops64) scale(x []float64, alpha float64) { vecf64.Scale(x, alpha) }
func (o *ops64) add(dst, src []float64)           { vecf64.Add(dst, src) }

func (o *ops64) scaleAdd(dst, src []float64, alpha float64) {
	o.scratch = append(o.scratch[:0], src...)
	vecf64.Scale(o.scratch, alpha)
	vecf64.Add(dst, o.scratch)
}

func (o *ops64) norm(x []float64) float64 {
	o.scratch = append(o.scratch[:0], x...)
	vecf64.Mul(o.scratch, x)
	return math.Sqrt(vecf64.Sum(o.scratch))
}
