package enrich

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/ragbench/telemetry"
)

// DefaultWorkers bounds the parallel pool.
const DefaultWorkers = 100

// Parallel fires one call per key on a bounded pool. Failed keys are not
// retried.
type Parallel struct {
	workers int
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

var _ Strategy = (*Parallel)(nil)

type ParallelOption func(*Parallel)

// WithWorkers sets the pool size. Values below one are ignored.
func WithWorkers(n int) ParallelOption {
	return func(p *Parallel) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithParallelLogger(l *slog.Logger) ParallelOption {
	return func(p *Parallel) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithParallelMetrics(m *telemetry.Metrics) ParallelOption {
	return func(p *Parallel) {
		p.metrics = m
	}
}

func NewParallel(opts ...ParallelOption) *Parallel {
	p := &Parallel{workers: DefaultWorkers, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "enrich_parallel")
	return p
}

func (p *Parallel) Resolve(ctx context.Context, resolver KeyResolver, groups *Groups) (map[Key]Resolution, error) {
	keys := groups.Keys
	slots := make([]Resolution, len(keys))
	done := make([]bool, len(keys))

	// A plain group: one failed key must not cancel the others.
	var g errgroup.Group
	g.SetLimit(p.workers)

	p.logger.InfoContext(ctx, "Resolving keys in parallel", "keys", len(keys), "workers", p.workers)
	for i, key := range keys {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			id, err := resolver.Resolve(ctx, key)
			if err != nil {
				p.logger.WarnContext(ctx, "Key lookup failed", "key", key, "error", err)
			}
			slots[i] = resolutionFrom(id, 1, err)
			done[i] = true
			p.metrics.IncKey(err == nil)
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[Key]Resolution, len(keys))
	for i, key := range keys {
		if done[i] {
			results[key] = slots[i]
		}
	}
	return results, ctx.Err()
}

func (p *Parallel) Complete(context.Context, map[Key]Resolution) error {
	return nil
}
