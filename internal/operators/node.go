package operators

import (
	"github.com/pkg/errors"
	gtensor "gorgonia.org/tensor"

	"github.com/born-ml/hashembed/internal/seqpool"
	"github.com/born-ml/hashembed/internal/tensor"
)

// Slot names used by the hashed embedding operators.
const (
	SlotW       = "W"        // Embedding table.
	SlotX       = "X"        // Ragged input windows (one or more).
	SlotIDs     = "Ids"      // Hashed row selector.
	SlotOut     = "Out"      // Pooled output.
	SlotOutGrad = "Out@GRAD" // Gradient of Out.
	SlotWGrad   = "W@GRAD"   // Sparse gradient of W.
	SlotOffsets = "Offsets"  // Forward segment offsets (tensor.LoD).
)

// AttrType tags the value held by an Attribute.
type AttrType int

// Attribute value types.
const (
	AttrInt AttrType = iota
	AttrString
	AttrBool
)

// Attribute is a named operator attribute.
type Attribute struct {
	Name string
	Type AttrType
	I    int64  // INT value
	S    string // STRING value
	B    bool   // BOOL value
}

// IntAttr builds an INT attribute.
func IntAttr(name string, v int64) Attribute { return Attribute{Name: name, Type: AttrInt, I: v} }

// StringAttr builds a STRING attribute.
func StringAttr(name, v string) Attribute { return Attribute{Name: name, Type: AttrString, S: v} }

// BoolAttr builds a BOOL attribute.
func BoolAttr(name string, v bool) Attribute { return Attribute{Name: name, Type: AttrBool, B: v} }

// Node is one operator invocation: its type, named input and output slots
// and attributes. A slot holds one or more values; tables may be any variant
// accepted by the seqpool package.
type Node struct {
	Name       string
	OpType     string
	Inputs     map[string][]any
	Outputs    map[string][]any
	Attributes []Attribute
}

// NewNode creates a node with empty slots.
func NewNode(name, opType string, attrs ...Attribute) *Node {
	return &Node{
		Name:       name,
		OpType:     opType,
		Inputs:     make(map[string][]any),
		Outputs:    make(map[string][]any),
		Attributes: attrs,
	}
}

// SetInput fills an input slot.
func (n *Node) SetInput(slot string, values ...any) *Node {
	n.Inputs[slot] = values
	return n
}

// Input returns the single value in an input slot, or nil.
func (n *Node) Input(slot string) any {
	if v := n.Inputs[slot]; len(v) > 0 {
		return v[0]
	}
	return nil
}

// Output returns the single value in an output slot, or nil.
func (n *Node) Output(slot string) any {
	if v := n.Outputs[slot]; len(v) > 0 {
		return v[0]
	}
	return nil
}

func (n *Node) setOutput(slot string, values ...any) {
	if n.Outputs == nil {
		n.Outputs = make(map[string][]any)
	}
	n.Outputs[slot] = values
}

// rawInputs returns every value in slot as a RawTensor.
func (n *Node) rawInputs(slot string) ([]*tensor.RawTensor, error) {
	values := n.Inputs[slot]
	out := make([]*tensor.RawTensor, len(values))
	for i, v := range values {
		raw, ok := v.(*tensor.RawTensor)
		if !ok {
			return nil, errors.Wrapf(seqpool.ErrShapeMismatch, "input %s[%d] must be a tensor, got %T", slot, i, v)
		}
		out[i] = raw
	}
	return out, nil
}

// rawInput returns the single RawTensor in slot.
func (n *Node) rawInput(slot string) (*tensor.RawTensor, error) {
	raw, ok := n.Input(slot).(*tensor.RawTensor)
	if !ok || raw == nil {
		return nil, errors.Wrapf(seqpool.ErrShapeMismatch, "input %s must be a tensor, got %T", slot, n.Input(slot))
	}
	return raw, nil
}

// GetAttrInt returns an integer attribute or default value.
func GetAttrInt(node *Node, name string, defaultVal int64) int64 {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name && node.Attributes[i].Type == AttrInt {
			return node.Attributes[i].I
		}
	}
	return defaultVal
}

// GetAttrString returns a string attribute or default value.
func GetAttrString(node *Node, name, defaultVal string) string {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name && node.Attributes[i].Type == AttrString {
			return node.Attributes[i].S
		}
	}
	return defaultVal
}

// GetAttrBool returns a bool attribute or default value.
func GetAttrBool(node *Node, name string, defaultVal bool) bool {
	for i := range node.Attributes {
		if node.Attributes[i].Name == name && node.Attributes[i].Type == AttrBool {
			return node.Attributes[i].B
		}
	}
	return defaultVal
}

// ParseConfig reads num_hash, mod_by, combiner and is_sparse from the node.
// Missing attributes take seqpool.DefaultConfig values; mod_by has none and
// stays zero, which the kernels reject.
func ParseConfig(node *Node) seqpool.Config {
	def := seqpool.DefaultConfig()
	return seqpool.Config{
		NumHash:  int(GetAttrInt(node, "num_hash", int64(def.NumHash))),
		ModBy:    int(GetAttrInt(node, "mod_by", 0)),
		Combiner: GetAttrString(node, "combiner", def.Combiner),
		IsSparse: GetAttrBool(node, "is_sparse", def.IsSparse),
	}
}

// kernelDType returns the element type of the node's table, which selects
// the kernel instantiation.
func kernelDType(node *Node) (tensor.DataType, error) {
	switch w := node.Input(SlotW).(type) {
	case *tensor.RawTensor:
		if w != nil {
			return w.DType(), nil
		}
	case *tensor.SelectedRows:
		if w != nil && w.Value != nil {
			return w.Value.DType(), nil
		}
	case *gtensor.Dense:
		if w == nil {
			break
		}
		switch w.Dtype() {
		case gtensor.Float32:
			return tensor.Float32, nil
		case gtensor.Float64:
			return tensor.Float64, nil
		}
		return 0, errors.Wrapf(seqpool.ErrDTypeMismatch, "table W has unsupported dtype %v", w.Dtype())
	}
	return 0, errors.Wrapf(seqpool.ErrUnsupportedTableVariant,
		"table W must be a dense matrix or selected rows, got %T", node.Input(SlotW))
}
