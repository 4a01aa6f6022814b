package nn_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/hashembed/internal/logging"
	"github.com/born-ml/hashembed/internal/nn"
	"github.com/born-ml/hashembed/internal/operators"
	"github.com/born-ml/hashembed/internal/optim"
	"github.com/born-ml/hashembed/internal/parallel"
	"github.com/born-ml/hashembed/internal/seqpool"
	"github.com/born-ml/hashembed/internal/tensor"
)

func config(numHash, modBy int) seqpool.Config {
	cfg := seqpool.DefaultConfig()
	cfg.NumHash = numHash
	cfg.ModBy = modBy
	return cfg
}

func TestNewHashEmbedding(t *testing.T) {
	embed, err := nn.NewHashEmbedding(32, 4, config(2, 32), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{32, 4}, embed.Weight.Shape())
	assert.Equal(t, 8, embed.OutputWidth())

	_, err = nn.NewHashEmbedding(32, 4, config(1, 33), rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, seqpool.ErrInvalidAttribute)
}

func TestNewHashEmbeddingWithWeight_Rejects(t *testing.T) {
	_, err := nn.NewHashEmbeddingWithWeight(tensor.MustFromSlice([]float64{1, 2}, tensor.Shape{1, 2}), config(1, 1))
	assert.Error(t, err)

	_, err = nn.NewHashEmbeddingWithWeight(tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{2}), config(1, 1))
	assert.Error(t, err)
}

func TestHashEmbedding_ForwardBackward(t *testing.T) {
	embed, err := nn.NewHashEmbedding(16, 3, config(2, 16), rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	x := tensor.MustFromSlice([]int64{1, 2, 3, 4, 5}, tensor.Shape{5, 1})
	x.SetLoD(tensor.LoD{0, 3, 5})

	out, ids, err := embed.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 6}, out.Shape())
	require.Len(t, ids, 1)
	assert.Equal(t, 10, ids[0].NumElements())

	grad, err := embed.Backward(ids[0], out)
	require.NoError(t, err)
	assert.Equal(t, ids[0].AsInt64(), grad.Rows)
	assert.Equal(t, 16, grad.Height)
}

// One SGD step on loss = 0.5*||out||^2 (so dOut = out) must reduce the loss.
func TestHashEmbedding_TrainingStepReducesLoss(t *testing.T) {
	embed, err := nn.NewHashEmbedding(64, 4, config(2, 64), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	embed.WithContext(&operators.Context{
		Logger:   logging.New(&bytes.Buffer{}, 0, false),
		Parallel: parallel.Sequential(),
	})

	x := tensor.MustFromSlice([]int64{10, 11, 12, 13, 14, 15}, tensor.Shape{6, 1})
	x.SetLoD(tensor.LoD{0, 2, 6})

	out, ids, err := embed.Forward(x)
	require.NoError(t, err)
	before := halfSquaredNorm(out.AsFloat32())

	grad, err := embed.Backward(ids[0], out)
	require.NoError(t, err)
	require.NoError(t, optim.NewSparseSGD[float32](optim.SGDConfig{LR: 0.05}).Step(embed.Weight, grad))

	out, _, err = embed.Forward(x)
	require.NoError(t, err)
	assert.Less(t, halfSquaredNorm(out.AsFloat32()), before)
}

func TestHashEmbedding_ErrorsAreLogged(t *testing.T) {
	var logs bytes.Buffer
	embed, err := nn.NewHashEmbedding(8, 2, config(1, 8), rand.New(rand.NewSource(4)))
	require.NoError(t, err)
	embed.WithContext(&operators.Context{Logger: logging.New(&logs, 0, false)})

	x := tensor.MustFromSlice([]int64{1, 2}, tensor.Shape{2, 1})
	x.SetLoD(tensor.LoD{0, 1}) // covers only one of two rows

	_, _, err = embed.Forward(x)
	assert.ErrorIs(t, err, seqpool.ErrShapeMismatch)
	assert.Contains(t, logs.String(), "operator failed")
}

func halfSquaredNorm(x []float32) float64 {
	var s float64
	for _, v := range x {
		s += float64(v) * float64(v)
	}
	return s / 2
}

func TestHashEmbedding_StateDict(t *testing.T) {
	src, err := nn.NewHashEmbedding(16, 3, config(1, 16), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	dst, err := nn.NewHashEmbedding(16, 3, config(1, 16), rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Weight.AsFloat32(), dst.Weight.AsFloat32())

	small, err := nn.NewHashEmbedding(8, 3, config(1, 8), rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Error(t, dst.LoadStateDict(small.StateDict()))
	assert.Error(t, dst.LoadStateDict(map[string]*tensor.RawTensor{}))
}
