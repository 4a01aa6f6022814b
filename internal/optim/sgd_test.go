package optim

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/hashembed/internal/tensor"
)

func table32() *tensor.RawTensor {
	return tensor.MustFromSlice([]float32{
		1, 1,
		2, 2,
		3, 3,
	}, tensor.Shape{3, 2})
}

func TestSparseSGD_Defaults(t *testing.T) {
	sgd := NewSparseSGD[float32](SGDConfig{})
	assert.InDelta(t, 0.01, sgd.GetLR(), 1e-12)

	sgd.SetLR(0.5)
	assert.InDelta(t, 0.5, sgd.GetLR(), 1e-12)

	var _ SparseOptimizer = sgd
}

func TestSparseSGD_StepAccumulatesDuplicates(t *testing.T) {
	table := table32()
	grad := &tensor.SelectedRows{
		Rows:   []int64{2, 0, 2},
		Value:  tensor.MustFromSlice([]float32{1, 1, 2, 2, 1, 1}, tensor.Shape{3, 2}),
		Height: 3,
	}

	sgd := NewSparseSGD[float32](SGDConfig{LR: 0.5})
	require.NoError(t, sgd.Step(table, grad))

	assert.Equal(t, []float32{
		0, 0, // 1 - 0.5*2
		2, 2, // untouched
		2, 2, // 3 - 0.5*(1+1)
	}, table.AsFloat32())
	assert.Equal(t, []int64{2, 0, 2}, grad.Rows, "input gradient must not be modified")
}

func TestSparseSGD_Momentum(t *testing.T) {
	table := tensor.MustFromSlice([]float64{0, 0}, tensor.Shape{1, 2})
	grad := &tensor.SelectedRows{
		Rows:   []int64{0},
		Value:  tensor.MustFromSlice([]float64{1, 2}, tensor.Shape{1, 2}),
		Height: 1,
	}

	sgd := NewSparseSGD[float64](SGDConfig{LR: 1, Momentum: 0.5})
	require.NoError(t, sgd.Step(table, grad))
	assert.Equal(t, []float64{-1, -2}, table.AsFloat64())

	// velocity = 0.5*[1,2] + [1,2] = [1.5, 3]
	require.NoError(t, sgd.Step(table, grad))
	assert.Equal(t, []float64{-2.5, -5}, table.AsFloat64())

	state := sgd.StateDict()
	require.Contains(t, state, "velocity")
	assert.Equal(t, []float64{1.5, 3}, state["velocity"].AsFloat64())

	fresh := NewSparseSGD[float64](SGDConfig{LR: 1, Momentum: 0.5})
	require.NoError(t, fresh.LoadStateDict(state))
	assert.Same(t, state["velocity"], fresh.StateDict()["velocity"])
}

func TestSparseSGD_ClipNorm(t *testing.T) {
	table := tensor.MustFromSlice([]float32{0, 0}, tensor.Shape{1, 2})
	grad := &tensor.SelectedRows{
		Rows:   []int64{0},
		Value:  tensor.MustFromSlice([]float32{3, 4}, tensor.Shape{1, 2}),
		Height: 1,
	}

	sgd := NewSparseSGD[float32](SGDConfig{LR: 1, ClipNorm: 1})
	require.NoError(t, sgd.Step(table, grad))

	got := table.AsFloat32()
	assert.InDelta(t, -0.6, got[0], 1e-6)
	assert.InDelta(t, -0.8, got[1], 1e-6)
	assert.InDelta(t, 1, math32.Hypot(got[0], got[1]), 1e-6)
}

func TestSparseSGD_Errors(t *testing.T) {
	sgd := NewSparseSGD[float32](SGDConfig{LR: 1})
	value := tensor.MustFromSlice([]float32{1, 1}, tensor.Shape{1, 2})

	tests := []struct {
		name  string
		table *tensor.RawTensor
		grad  *tensor.SelectedRows
	}{
		{"nil gradient", table32(), nil},
		{"height mismatch", table32(), &tensor.SelectedRows{Rows: []int64{0}, Value: value, Height: 4}},
		{"row out of range", table32(), &tensor.SelectedRows{Rows: []int64{3}, Value: value, Height: 3}},
		{"dtype", tensor.MustFromSlice([]float64{1, 1}, tensor.Shape{1, 2}), &tensor.SelectedRows{Rows: []int64{0}, Value: value, Height: 1}},
		{"width mismatch", tensor.MustFromSlice([]float32{1, 1, 1}, tensor.Shape{1, 3}), &tensor.SelectedRows{Rows: []int64{0}, Value: value, Height: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, sgd.Step(tt.table, tt.grad))
		})
	}
}

func TestSparseSGD_LoadStateDictRejectsBadShape(t *testing.T) {
	sgd := NewSparseSGD[float32](SGDConfig{Momentum: 0.9})
	err := sgd.LoadStateDict(map[string]*tensor.RawTensor{
		"velocity": tensor.MustFromSlice([]float64{1}, tensor.Shape{1}),
	})
	assert.Error(t, err)
}

func TestSparseSGD_VelocityMustMatchTable(t *testing.T) {
	sgd := NewSparseSGD[float32](SGDConfig{Momentum: 0.9})
	require.NoError(t, sgd.LoadStateDict(map[string]*tensor.RawTensor{
		"velocity": tensor.MustFromSlice([]float32{0, 0}, tensor.Shape{1, 2}),
	}))

	grad := &tensor.SelectedRows{Rows: []int64{0}, Value: tensor.MustFromSlice([]float32{1, 1}, tensor.Shape{1, 2}), Height: 3}
	assert.Error(t, sgd.Step(table32(), grad))
}
