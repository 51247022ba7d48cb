// Package replay serves recorded comparison responses from disk and records
// live ones, so evaluations can run without the endpoint.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sevigo/ragbench/compare"
)

// Comparer answers every query with the response stored at path.
type Comparer struct {
	path   string
	logger *slog.Logger

	once   sync.Once
	cached *compare.Comparison
	err    error
}

var _ compare.Comparer = (*Comparer)(nil)

func New(path string, logger *slog.Logger) *Comparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparer{path: path, logger: logger.With("component", "compare_replay", "path", path)}
}

func (c *Comparer) Compare(ctx context.Context, q compare.Query) (*compare.Comparison, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.once.Do(func() {
		data, err := os.ReadFile(c.path)
		if err != nil {
			c.err = fmt.Errorf("replay: %w", err)
			return
		}
		c.cached, c.err = compare.Decode(data)
		if c.err == nil {
			c.logger.Info("Using recorded comparison response")
		}
	})
	if c.err != nil {
		return nil, c.err
	}
	c.logger.DebugContext(ctx, "Replaying response", "product_id", q.ProductID)
	return clone(c.cached), nil
}

func clone(c *compare.Comparison) *compare.Comparison {
	out := *c
	out.WithPipeline.Contexts = append([]string(nil), c.WithPipeline.Contexts...)
	out.WithoutPipeline.Contexts = append([]string(nil), c.WithoutPipeline.Contexts...)
	return &out
}

// Recorder forwards to another Comparer and writes each successful response
// to dir, one file per call.
type Recorder struct {
	next   compare.Comparer
	dir    string
	logger *slog.Logger

	mu sync.Mutex
	n  int
}

var _ compare.Comparer = (*Recorder)(nil)

func NewRecorder(next compare.Comparer, dir string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{next: next, dir: dir, logger: logger.With("component", "compare_recorder", "dir", dir)}
}

func (r *Recorder) Compare(ctx context.Context, q compare.Query) (*compare.Comparison, error) {
	res, err := r.next.Compare(ctx, q)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.n++
	path := filepath.Join(r.dir, fmt.Sprintf("comparison_%04d.json", r.n))
	r.mu.Unlock()

	if err := r.write(path, res); err != nil {
		r.logger.WarnContext(ctx, "Failed to record comparison", "path", path, "error", err)
	}
	return res, nil
}

func (r *Recorder) write(path string, c *compare.Comparison) error {
	data, err := compare.Encode(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
