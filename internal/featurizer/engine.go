// Package featurizer implements the batched descriptor kernels:
//
//   - Featurize: per-atom descriptors scattered into per-element buffers
//   - FeaturizeGrad: coordinate gradients, J^T·g for per-element feature gradients g
//   - FeaturizeGradInverse: per-element feature gradients, J·v for coordinate directions v
//
// FeaturizeGrad is the exact adjoint of Featurize's Jacobian, and
// FeaturizeGradInverse is the exact transpose of FeaturizeGrad. All three
// enumerate neighbors with the same molecule-local rule.
package featurizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/born-ml/ani/internal/basis"
	"github.com/born-ml/ani/internal/layout"
	"github.com/born-ml/ani/internal/logutil"
	"github.com/born-ml/ani/internal/parallel"
	"github.com/born-ml/ani/internal/tensor"
)

// Engine runs the featurizer kernels for one basis.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	basis  *basis.Basis
	cfg    parallel.Config
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel sets the parallel execution config.
func WithParallel(cfg parallel.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger used for per-call debug summaries.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine.
func New(b *basis.Basis, opts ...Option) *Engine {
	e := &Engine{
		basis:  b,
		cfg:    parallel.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Basis returns the descriptor basis.
func (e *Engine) Basis() *basis.Basis { return e.basis }

// FeatureSize is the descriptor length per atom.
func (e *Engine) FeatureSize() int { return e.basis.FeatureSize() }

// Parallel returns the engine's parallel config.
func (e *Engine) Parallel() parallel.Config { return e.cfg }

// Features holds one flat row-major buffer per element class.
// Buffer e has ElementCounts[e]*FeatureSize entries.
type Features[T tensor.Float] [layout.NumElements][]T

// Plan is a validated batch bound to an engine. The layout is resolved
// once and reused by all three kernels.
type Plan[T tensor.Float] struct {
	engine *Engine
	batch  *layout.Batch[T]
	res    *layout.Resolved
}

// Prepare validates the batch layout. No kernel runs on a batch that
// fails here, and no output buffer is touched.
func Prepare[T tensor.Float](e *Engine, b *layout.Batch[T]) (*Plan[T], error) {
	res, err := layout.Resolve(b)
	if err != nil {
		return nil, fmt.Errorf("featurizer: %w", err)
	}
	e.logger.Log(context.TODO(), logutil.LevelTrace, "resolved batch",
		"atoms", res.NumAtoms, "molecules", len(res.Molecules), "element_counts", res.ElementCounts)
	return &Plan[T]{engine: e, batch: b, res: res}, nil
}

// Layout returns the resolved batch layout.
func (p *Plan[T]) Layout() *layout.Resolved { return p.res }

// Batch returns the batch the plan was prepared for.
func (p *Plan[T]) Batch() *layout.Batch[T] { return p.batch }

// NewFeatures allocates zeroed per-element buffers sized for this plan.
func (p *Plan[T]) NewFeatures() Features[T] {
	var out Features[T]
	f := p.engine.FeatureSize()
	for e := range out {
		out[e] = make([]T, p.res.BufferLen(layout.Element(e), f))
	}
	return out
}

// Featurize computes descriptors for every atom of b.
func Featurize[T tensor.Float](e *Engine, b *layout.Batch[T]) (Features[T], error) {
	p, err := Prepare(e, b)
	if err != nil {
		return Features[T]{}, err
	}
	return p.Featurize(), nil
}

// FeaturizeGrad computes coordinate gradients from per-element feature gradients.
func FeaturizeGrad[T tensor.Float](e *Engine, b *layout.Batch[T], featGrads Features[T]) (xg, yg, zg []T, err error) {
	p, err := Prepare(e, b)
	if err != nil {
		return nil, nil, nil, err
	}
	return p.Grad(featGrads)
}

// FeaturizeGradInverse computes per-element feature gradients from coordinate gradients.
func FeaturizeGradInverse[T tensor.Float](e *Engine, b *layout.Batch[T], xg, yg, zg []T) (Features[T], error) {
	p, err := Prepare(e, b)
	if err != nil {
		return Features[T]{}, err
	}
	return p.GradInverse(xg, yg, zg)
}
