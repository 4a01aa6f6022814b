package seqpool

import (
	"github.com/pkg/errors"

	"github.com/born-ml/hashembed/internal/parallel"
)

// CombinerSum is the only supported pooling combiner.
const CombinerSum = "sum"

// Config holds the operator attributes.
type Config struct {
	NumHash  int    // Number of independent hash functions (> 0).
	ModBy    int    // Table row modulus, 0 < ModBy <= row_number.
	Combiner string // Pooling combiner; only "sum".
	IsSparse bool   // Backward produces a sparse row gradient; only true.
}

// DefaultConfig returns the attribute defaults. ModBy has no default and must
// be set by the caller.
func DefaultConfig() Config {
	return Config{
		NumHash:  1,
		Combiner: CombinerSum,
		IsSparse: true,
	}
}

// checkCombiner runs before any other validation so that a bad combiner is
// always reported first.
func (c Config) checkCombiner() error {
	if c.Combiner != CombinerSum {
		return errors.Wrapf(ErrUnsupportedCombiner, "combiner %q (only %q is supported)", c.Combiner, CombinerSum)
	}
	return nil
}

func (c Config) checkHash(rowNumber int) error {
	if c.NumHash <= 0 {
		return errors.Wrapf(ErrInvalidAttribute, "num_hash must be positive, got %d", c.NumHash)
	}
	if c.ModBy <= 0 {
		return errors.Wrapf(ErrInvalidAttribute, "mod_by must be positive, got %d", c.ModBy)
	}
	if rowNumber >= 0 && c.ModBy > rowNumber {
		return errors.Wrapf(ErrInvalidAttribute, "mod_by %d exceeds table rows %d", c.ModBy, rowNumber)
	}
	return nil
}

// Validate checks the forward attributes against a table of rowNumber rows.
func (c Config) Validate(rowNumber int) error {
	if err := c.checkCombiner(); err != nil {
		return err
	}
	return c.checkHash(rowNumber)
}

// Option tunes kernel execution without changing results.
type Option func(*options)

type options struct {
	parallel parallel.Config
}

// WithParallel sets how the per-sequence loops are spread across goroutines.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) {
		o.parallel = cfg
	}
}

func buildOptions(opts []Option) options {
	o := options{parallel: parallel.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
