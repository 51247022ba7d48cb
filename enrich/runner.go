// Package enrich adds a product identifier column to a CSV file. Rows are
// grouped by (product, category) so that every distinct pair costs exactly
// one remote lookup, and the result is copied to every row of the group.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/ragbench/table"
	"github.com/sevigo/ragbench/telemetry"
)

const (
	DefaultProductColumn  = "product"
	DefaultCategoryColumn = "product category"
	DefaultOutputColumn   = "product_id"
	OutputSuffix          = "_with_product_ids"
)

var ErrMissingColumn = errors.New("enrich: input is missing a required column")

// Summary describes a finished run.
type Summary struct {
	Rows           int
	UniqueKeys     int
	Resolved       int
	Calls          int
	FromCheckpoint int
	Unresolved     []Key
	OutputPath     string
	Duration       time.Duration
}

// Runner reads the input table, resolves its keys with a Strategy and writes
// the enriched copy.
type Runner struct {
	resolver    KeyResolver
	strategy    Strategy
	productCol  string
	categoryCol string
	outputCol   string
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

type RunnerOption func(*Runner)

func WithColumns(product, category, output string) RunnerOption {
	return func(r *Runner) {
		if product != "" {
			r.productCol = product
		}
		if category != "" {
			r.categoryCol = category
		}
		if output != "" {
			r.outputCol = output
		}
	}
}

func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

func NewRunner(resolver KeyResolver, strategy Strategy, opts ...RunnerOption) *Runner {
	r := &Runner{
		resolver:    resolver,
		strategy:    strategy,
		productCol:  DefaultProductColumn,
		categoryCol: DefaultCategoryColumn,
		outputCol:   DefaultOutputColumn,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "enrich_runner")
	return r
}

// Run enriches inputPath. An empty outputPath derives the output name from
// the input name. Only an unreadable or invalid input, a failed output write
// or cancellation make Run return an error; failed lookups are reported in
// the Summary.
func (r *Runner) Run(ctx context.Context, inputPath, outputPath string) (*Summary, error) {
	start := time.Now()
	if outputPath == "" {
		outputPath = table.DerivedPath(inputPath, OutputSuffix)
	}

	tbl, err := table.Read(inputPath)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{r.productCol, r.categoryCol} {
		if !tbl.HasColumn(col) {
			return nil, fmt.Errorf("%w: %q in %s", ErrMissingColumn, col, inputPath)
		}
	}
	if tbl.HasColumn(r.outputCol) {
		return nil, fmt.Errorf("%w: %q in %s", table.ErrColumnExists, r.outputCol, inputPath)
	}

	groups := Group(tbl.Rows, r.productCol, r.categoryCol)
	r.logger.InfoContext(ctx, "Input loaded", "path", inputPath, "rows", len(tbl.Rows), "unique_keys", len(groups.Keys))

	results, err := r.strategy.Resolve(ctx, r.resolver, groups)
	if err != nil {
		if isContextErr(err) {
			r.logger.WarnContext(ctx, "Run interrupted, output not written", "processed", len(results), "unique_keys", len(groups.Keys))
		}
		return nil, err
	}

	out, err := tbl.WithColumn(r.outputCol, groups.Broadcast(results))
	if err != nil {
		return nil, err
	}
	if err := out.Write(outputPath); err != nil {
		return nil, err
	}

	if err := r.strategy.Complete(ctx, results); err != nil {
		r.logger.WarnContext(ctx, "Post-run cleanup failed", "error", err)
	}

	summary := &Summary{
		Rows:       len(tbl.Rows),
		UniqueKeys: len(groups.Keys),
		OutputPath: outputPath,
		Duration:   time.Since(start),
	}
	for _, k := range groups.Keys {
		res := results[k]
		switch {
		case res.Resolved:
			summary.Resolved++
		default:
			summary.Unresolved = append(summary.Unresolved, k)
		}
		if res.FromCheckpoint {
			summary.FromCheckpoint++
		} else if res.Attempts > 0 {
			summary.Calls++
		}
	}

	r.logger.InfoContext(ctx, "Enrichment finished",
		"output", outputPath,
		"rows", summary.Rows,
		"unique_keys", summary.UniqueKeys,
		"resolved", summary.Resolved,
		"unresolved", len(summary.Unresolved),
		"from_checkpoint", summary.FromCheckpoint,
		"duration", summary.Duration)
	for _, k := range summary.Unresolved {
		r.logger.WarnContext(ctx, "Unresolved key", "key", k, "error", results[k].Error)
	}
	return summary, nil
}
