// Package nn provides the hashed embedding layer built on the seqpool
// kernels and the operator registry.
package nn

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/operators"
	"github.com/born-ml/hashembed/internal/seqpool"
	"github.com/born-ml/hashembed/internal/tensor"
)

// HashEmbedding is a sum-pooled embedding over hashed feature windows.
//
// Architecture:
//   - Weight: [Rows, Width] learnable parameter
//   - Forward: ragged windows [total_rows, window] -> pooled [batch, NumHash*Width]
//   - Backward: pooled gradient -> sparse row gradient of Weight
//
// Example:
//
//	cfg := seqpool.DefaultConfig()
//	cfg.ModBy = 10000
//	embed, _ := nn.NewHashEmbedding(10000, 64, cfg, rand.New(rand.NewSource(1)))
//
//	out, ids, _ := embed.Forward(x)      // x carries segment offsets
//	grad, _ := embed.Backward(ids[0], dOut)
type HashEmbedding struct {
	Weight *tensor.RawTensor // Table [Rows, Width]
	Rows   int
	Width  int
	Config seqpool.Config

	registry *operators.Registry
	ctx      *operators.Context
}

// NewHashEmbedding creates a layer whose table is initialized from N(0, 1).
func NewHashEmbedding(rows, width int, cfg seqpool.Config, rng *rand.Rand) (*HashEmbedding, error) {
	weight, err := tensor.NewRaw(tensor.Shape{rows, width}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding weight")
	}
	data := weight.AsFloat32()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return NewHashEmbeddingWithWeight(weight, cfg)
}

// NewHashEmbeddingWithWeight creates a layer over a pre-initialized float32
// table.
func NewHashEmbeddingWithWeight(weight *tensor.RawTensor, cfg seqpool.Config) (*HashEmbedding, error) {
	shape := weight.Shape()
	if len(shape) != 2 || weight.DType() != tensor.Float32 {
		return nil, errors.Errorf("embedding weight must be a 2-D float32 matrix, got %s %v", weight.DType(), shape)
	}
	if err := cfg.Validate(shape[0]); err != nil {
		return nil, err
	}

	return &HashEmbedding{
		Weight:   weight,
		Rows:     shape[0],
		Width:    shape[1],
		Config:   cfg,
		registry: operators.NewRegistry(),
		ctx:      operators.NewContext(),
	}, nil
}

// WithContext replaces the execution context (logger, parallelism).
func (e *HashEmbedding) WithContext(ctx *operators.Context) *HashEmbedding {
	e.ctx = ctx
	return e
}

func (e *HashEmbedding) attributes() []operators.Attribute {
	return []operators.Attribute{
		operators.IntAttr("num_hash", int64(e.Config.NumHash)),
		operators.IntAttr("mod_by", int64(e.Config.ModBy)),
		operators.StringAttr("combiner", e.Config.Combiner),
		operators.BoolAttr("is_sparse", e.Config.IsSparse),
	}
}

// Forward pools the inputs and returns the output together with one selector
// per input for Backward.
func (e *HashEmbedding) Forward(inputs ...*tensor.RawTensor) (*tensor.RawTensor, []*tensor.RawTensor, error) {
	xs := make([]any, len(inputs))
	for i, x := range inputs {
		xs[i] = x
	}
	node := operators.NewNode("hash_embedding", operators.OpHashEmbeddingSeqPool,
		append(e.attributes(), operators.BoolAttr("output_ids", true))...).
		SetInput(operators.SlotW, e.Weight).
		SetInput(operators.SlotX, xs...)
	if err := e.registry.Execute(e.ctx, node); err != nil {
		return nil, nil, err
	}

	out := node.Output(operators.SlotOut).(*tensor.RawTensor)
	ids := make([]*tensor.RawTensor, len(node.Outputs[operators.SlotIDs]))
	for i, v := range node.Outputs[operators.SlotIDs] {
		ids[i] = v.(*tensor.RawTensor)
	}
	return out, ids, nil
}

// Backward returns the sparse Weight gradient for one input's selector.
// With several inputs, call it per selector and Append the results.
func (e *HashEmbedding) Backward(ids, dOut *tensor.RawTensor) (*tensor.SelectedRows, error) {
	node := operators.NewNode("hash_embedding_grad", operators.OpHashEmbeddingSeqPoolGrad, e.attributes()...).
		SetInput(operators.SlotW, e.Weight).
		SetInput(operators.SlotIDs, ids).
		SetInput(operators.SlotOutGrad, dOut)
	if err := e.registry.Execute(e.ctx, node); err != nil {
		return nil, err
	}
	return node.Output(operators.SlotWGrad).(*tensor.SelectedRows), nil
}

// OutputWidth is the width of one pooled vector.
func (e *HashEmbedding) OutputWidth() int {
	return e.Config.NumHash * e.Width
}

// StateDict returns the layer parameters keyed by name.
func (e *HashEmbedding) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{"weight": e.Weight}
}

// LoadStateDict copies a saved "weight" into the layer. The saved table must
// have the layer's shape and element type.
func (e *HashEmbedding) LoadStateDict(state map[string]*tensor.RawTensor) error {
	w, ok := state["weight"]
	if !ok {
		return errors.New("state dict has no \"weight\"")
	}
	if w.DType() != e.Weight.DType() || !w.Shape().Equal(e.Weight.Shape()) {
		return errors.Errorf("weight mismatch: saved %s %v, layer %s %v",
			w.DType(), w.Shape(), e.Weight.DType(), e.Weight.Shape())
	}
	copy(e.Weight.Data(), w.Data())
	return nil
}
