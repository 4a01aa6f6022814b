package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/seqpool"
	"github.com/born-ml/hashembed/internal/tensor"
)

// Operator types.
const (
	OpHashEmbeddingSeqPool     = "fused_hash_embedding_seq_pool"
	OpHashEmbeddingSeqPoolGrad = "fused_hash_embedding_seq_pool_grad"
)

func (r *Registry) registerHashEmbedding() {
	r.Register(OpHashEmbeddingSeqPool, tensor.Float32, hashEmbeddingSeqPool[float32])
	r.Register(OpHashEmbeddingSeqPool, tensor.Float64, hashEmbeddingSeqPool[float64])
	r.Register(OpHashEmbeddingSeqPoolGrad, tensor.Float32, hashEmbeddingSeqPoolGrad[float32])
	r.Register(OpHashEmbeddingSeqPoolGrad, tensor.Float64, hashEmbeddingSeqPoolGrad[float64])
}

// hashEmbeddingSeqPool: W, X... -> Out (and Ids... when output_ids is set).
func hashEmbeddingSeqPool[T tensor.Float](ctx *Context, node *Node) error {
	cfg := ParseConfig(node)
	xs, err := node.rawInputs(SlotX)
	if err != nil {
		return err
	}
	opt := seqpool.WithParallel(ctx.parallel())

	if !GetAttrBool(node, "output_ids", false) {
		out, err := seqpool.Forward[T](node.Input(SlotW), xs, cfg, opt)
		if err != nil {
			return err
		}
		node.setOutput(SlotOut, out)
		return nil
	}

	out, ids, err := seqpool.ForwardWithIDs[T](node.Input(SlotW), xs, cfg, opt)
	if err != nil {
		return err
	}
	node.setOutput(SlotOut, out)
	selectors := make([]any, len(ids))
	for i, id := range ids {
		selectors[i] = id
	}
	node.setOutput(SlotIDs, selectors...)
	return nil
}

// hashEmbeddingSeqPoolGrad: W, Ids, Out@GRAD [, Offsets] -> W@GRAD.
func hashEmbeddingSeqPoolGrad[T tensor.Float](ctx *Context, node *Node) error {
	cfg := ParseConfig(node)
	ids, err := node.rawInput(SlotIDs)
	if err != nil {
		return err
	}
	dOut, err := node.rawInput(SlotOutGrad)
	if err != nil {
		return err
	}
	offsets, err := segmentOffsets(node, ids, cfg.NumHash)
	if err != nil {
		return err
	}

	grad, err := seqpool.Backward[T](node.Input(SlotW), ids, dOut, offsets, cfg, seqpool.WithParallel(ctx.parallel()))
	if err != nil {
		return err
	}
	node.setOutput(SlotWGrad, grad)
	return nil
}

// segmentOffsets returns the forward offsets: the Offsets input when given,
// otherwise the selector's own offsets divided by num_hash.
func segmentOffsets(node *Node, ids *tensor.RawTensor, numHash int) (tensor.LoD, error) {
	if v := node.Input(SlotOffsets); v != nil {
		lod, ok := v.(tensor.LoD)
		if !ok {
			return nil, errors.Wrapf(seqpool.ErrShapeMismatch, "input %s must be segment offsets, got %T", SlotOffsets, v)
		}
		return lod, nil
	}

	idsLoD := ids.LoD()
	if numHash <= 0 || len(idsLoD) == 0 {
		return nil, errors.Wrap(seqpool.ErrShapeMismatch, "selector Ids carries no segment offsets and no Offsets input was given")
	}
	lod := make(tensor.LoD, len(idsLoD))
	for i, v := range idsLoD {
		if v%numHash != 0 {
			return nil, errors.Wrapf(seqpool.ErrShapeMismatch,
				"selector offset %d is not a multiple of num_hash %d", v, numHash)
		}
		lod[i] = v / numHash
	}
	return lod, nil
}
