package evaluation

import (
	"context"
	"log/slog"
	"time"
)

// Failure is a case that ended FAILED.
type Failure struct {
	Index   int
	Message string
}

// Summary aggregates a finished run.
type Summary struct {
	RunID      string
	Total      int
	Successful int
	Failed     int
	Skipped    int
	Failures   []Failure
	// Means holds the average of every score column with at least one value.
	Means      map[string]float64
	Results    []Result
	OutputPath string
	Duration   time.Duration
}

// Summarize counts statuses and averages every score column over the cases
// that produced a value for it.
func Summarize(results []Result) *Summary {
	s := &Summary{
		Total:   len(results),
		Means:   make(map[string]float64),
		Results: results,
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Successful++
		case StatusFailed:
			s.Failed++
			s.Failures = append(s.Failures, Failure{Index: r.Index, Message: r.Error})
		case StatusSkipped:
			s.Skipped++
		}
		for col, v := range r.Scores {
			if v != nil {
				sums[col] += *v
				counts[col]++
			}
		}
	}
	for col, n := range counts {
		s.Means[col] = sums[col] / float64(n)
	}
	return s
}

// Mean returns the average for column and whether any case had a value.
func (s *Summary) Mean(column string) (float64, bool) {
	v, ok := s.Means[column]
	return v, ok
}

func (s *Summary) Log(ctx context.Context, logger *slog.Logger) {
	logger.InfoContext(ctx, "Evaluation summary",
		"total", s.Total,
		"successful", s.Successful,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"output", s.OutputPath,
		"duration", s.Duration)
	for _, col := range ScoreColumns() {
		if v, ok := s.Mean(col); ok {
			logger.InfoContext(ctx, "Mean score", "column", col, "mean", FormatScore(&v))
		}
	}
	for _, f := range s.Failures {
		logger.WarnContext(ctx, "Failed test case", "index", f.Index, "error", truncate(f.Message))
	}
}
