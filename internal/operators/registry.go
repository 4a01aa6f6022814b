package operators

import (
	"log/slog"
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/parallel"
	"github.com/born-ml/hashembed/internal/tensor"
)

// Kernel computes one operator invocation, reading the node's inputs and
// attributes and filling its outputs.
type Kernel func(ctx *Context, node *Node) error

// Key selects a kernel by operator type and table element type.
type Key struct {
	OpType string
	DType  tensor.DataType
}

// Context carries execution settings shared by all kernels.
type Context struct {
	Logger   *slog.Logger
	Parallel parallel.Config
}

// NewContext returns a Context logging to slog.Default and running loops in
// parallel with default settings.
func NewContext() *Context {
	return &Context{
		Logger:   slog.Default(),
		Parallel: parallel.DefaultConfig(),
	}
}

func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Context) parallel() parallel.Config {
	if c == nil {
		return parallel.Sequential()
	}
	return c.Parallel
}

// Registry maps (operator type, element type) to kernels.
type Registry struct {
	kernels map[Key]Kernel
}

// NewRegistry creates a registry with the hashed embedding operators
// registered for float32 and float64.
func NewRegistry() *Registry {
	r := &Registry{
		kernels: make(map[Key]Kernel),
	}

	r.registerHashEmbedding()

	return r
}

// Register adds or replaces a kernel.
func (r *Registry) Register(opType string, dtype tensor.DataType, kernel Kernel) {
	r.kernels[Key{OpType: opType, DType: dtype}] = kernel
}

// Get returns the kernel for an operator type and element type.
func (r *Registry) Get(opType string, dtype tensor.DataType) (Kernel, bool) {
	k, ok := r.kernels[Key{OpType: opType, DType: dtype}]
	return k, ok
}

// Execute dispatches node to its kernel. It is the error-reporting boundary
// for the kernels: every failure is logged once here and returned.
func (r *Registry) Execute(ctx *Context, node *Node) error {
	err := r.execute(ctx, node)
	if err != nil {
		ctx.logger().Error("operator failed",
			slog.String("op", node.OpType),
			slog.String("node", node.Name),
			slog.String("err", err.Error()))
	}
	return err
}

func (r *Registry) execute(ctx *Context, node *Node) error {
	dtype, err := kernelDType(node)
	if err != nil {
		return err
	}
	kernel, ok := r.Get(node.OpType, dtype)
	if !ok {
		return errors.Errorf("unsupported operator: %s[%s]", node.OpType, dtype)
	}
	return kernel(ctx, node)
}

// SupportedOps returns the sorted, de-duplicated operator types.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.kernels))
	for k := range r.kernels {
		ops = append(ops, k.OpType)
	}
	slices.Sort(ops)
	return slices.Compact(ops)
}
