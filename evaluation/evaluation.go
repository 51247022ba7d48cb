// Package evaluation runs test cases from a CSV file through a comparison
// backend and scores both retrieval variants with RAG quality metrics.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/ragbench/compare"
	"github.com/sevigo/ragbench/internal/textutil"
	"github.com/sevigo/ragbench/metrics"
	"github.com/sevigo/ragbench/table"
	"github.com/sevigo/ragbench/telemetry"
)

const (
	DefaultLimit  = 100
	DefaultOutput = "rag_evaluation_results.csv"

	maxLoggedError = 200
)

var (
	ErrMetricPanic  = errors.New("evaluation: metric panicked")
	ErrInvalidScore = errors.New("evaluation: metric returned a non-finite score")
)

// Evaluator drives test cases one at a time. The results file is rewritten
// after every case so an interrupted run keeps everything finished so far.
type Evaluator struct {
	comparer  compare.Comparer
	metrics   []metrics.Metric
	limit     int
	logger    *slog.Logger
	telemetry *telemetry.Metrics
}

type Option func(*Evaluator)

// WithLimit bounds how many rows are read. Zero or less reads every row.
func WithLimit(n int) Option {
	return func(e *Evaluator) {
		e.limit = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithTelemetry(m *telemetry.Metrics) Option {
	return func(e *Evaluator) {
		e.telemetry = m
	}
}

func New(comparer compare.Comparer, ms []metrics.Metric, opts ...Option) *Evaluator {
	e := &Evaluator{
		comparer: comparer,
		metrics:  ms,
		limit:    DefaultLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "evaluator")
	return e
}

// Run evaluates inputPath and writes results to outputPath. It returns an
// error only when the input cannot be read, the results cannot be written,
// or ctx is cancelled; per-case failures are recorded in the results.
func (e *Evaluator) Run(ctx context.Context, inputPath, outputPath string) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)

	tbl, err := table.ReadLimit(inputPath, e.limit)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Starting RAG evaluation", "input", inputPath, "cases", len(tbl.Rows), "output", outputPath)

	results := make([]Result, 0, len(tbl.Rows))
	for i, row := range tbl.Rows {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "Evaluation interrupted", "completed", len(results), "cases", len(tbl.Rows))
			return nil, err
		}

		logger.InfoContext(ctx, "Processing test case", "index", i+1, "total", len(tbl.Rows))
		res, err := e.evaluateCase(ctx, i+1, row)
		if err != nil {
			logger.WarnContext(ctx, "Evaluation interrupted", "completed", len(results), "cases", len(tbl.Rows))
			return nil, err
		}
		results = append(results, res)
		e.telemetry.IncCase(string(res.Status))

		if err := writeResults(outputPath, results); err != nil {
			return nil, err
		}
	}

	if len(results) == 0 {
		logger.WarnContext(ctx, "No test cases to evaluate")
	}
	summary := Summarize(results)
	summary.RunID = runID
	summary.OutputPath = outputPath
	summary.Duration = time.Since(start)
	summary.Log(ctx, logger)
	return summary, nil
}

// evaluateCase returns an error only for cancellation.
func (e *Evaluator) evaluateCase(ctx context.Context, index int, row table.Row) (Result, error) {
	res := Result{
		Index:       index,
		ProductID:   row.Get("product_id", "product"),
		Question:    row.Get("question"),
		GroundTruth: row.Get("ground_truth"),
		Scores:      make(map[string]*float64),
		Status:      StatusPending,
	}
	logger := e.logger.With("index", index, "product_id", res.ProductID)

	if res.ProductID == "" || res.Question == "" || res.GroundTruth == "" {
		logger.WarnContext(ctx, "Skipping test case: missing required fields")
		res.Status, res.Error = StatusSkipped, MsgMissingFields
		return res, nil
	}

	cmp, err := e.comparer.Compare(ctx, compare.Query{
		ProductID:   res.ProductID,
		ProductName: row.Get("product"),
		Question:    res.Question,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		logger.ErrorContext(ctx, "Comparison call failed", "error", err)
		res.Status, res.Error = StatusFailed, err.Error()
		return res, nil
	}
	if !cmp.Complete() {
		logger.WarnContext(ctx, "Incomplete comparison response")
		res.Status, res.Error = StatusFailed, MsgIncompleteResponse
		return res, nil
	}

	answers := map[string]compare.Answer{
		VariantWithPipeline:    cmp.WithPipeline,
		VariantWithoutPipeline: cmp.WithoutPipeline,
	}
	computed := 0
	for _, m := range e.metrics {
		for _, variant := range Variants {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			a := answers[variant]
			sample := metrics.Sample{
				UserInput:         res.Question,
				Response:          a.Response,
				RetrievedContexts: a.Contexts,
				Reference:         res.GroundTruth,
			}
			col := ScoreColumn(m.Name(), variant)
			score, err := safeScore(ctx, m, sample)
			if err != nil {
				e.telemetry.IncMetricFailure(m.Name(), variant)
				logger.ErrorContext(ctx, "Metric failed", "metric", m.Name(), "variant", variant, "error", truncate(err.Error()))
				continue
			}
			res.Scores[col] = &score
			computed++
			logger.InfoContext(ctx, "Metric computed", "metric", m.Name(), "variant", variant, "score", FormatScore(&score))
		}
	}

	res.Status = StatusSuccess
	logger.InfoContext(ctx, "Test case completed",
		"computed", fmt.Sprintf("%d/%d", computed, len(e.metrics)*len(Variants)))
	return res, nil
}

// safeScore isolates a metric: a panic or a non-finite value becomes an error.
func safeScore(ctx context.Context, m metrics.Metric, s metrics.Sample) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrMetricPanic, m.Name(), r)
		}
	}()
	score, err = m.Score(ctx, s)
	if err == nil && (math.IsNaN(score) || math.IsInf(score, 0)) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return score, err
}

func writeResults(path string, results []Result) error {
	records := make([][]string, len(results))
	for i, r := range results {
		records[i] = r.Record()
	}
	if err := table.WriteRecords(path, Columns(), records); err != nil {
		return fmt.Errorf("evaluation: write results: %w", err)
	}
	return nil
}

func truncate(s string) string {
	return textutil.Truncate(s, maxLoggedError)
}
