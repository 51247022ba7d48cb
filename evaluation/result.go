package evaluation

import (
	"strconv"

	"github.com/sevigo/ragbench/metrics"
)

// Status is the terminal state of one test case. Every case starts PENDING.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
	StatusSuccess Status = "SUCCESS"
)

const (
	VariantWithPipeline    = "with_pipeline"
	VariantWithoutPipeline = "without_pipeline"
)

const (
	MsgMissingFields      = "Missing required fields"
	MsgIncompleteResponse = "Incomplete API response"
)

// Variants lists the retrieval variants in column order.
var Variants = []string{VariantWithPipeline, VariantWithoutPipeline}

// MetricNames lists the scored metrics in column order.
var MetricNames = []string{
	metrics.NameContextPrecision,
	metrics.NameContextRecall,
	metrics.NameFaithfulness,
	metrics.NameNoiseSensitivity,
}

// ScoreColumn names the output column for one metric and variant.
func ScoreColumn(metric, variant string) string {
	return metric + "_" + variant
}

// ScoreColumns lists every score column in output order.
func ScoreColumns() []string {
	cols := make([]string, 0, len(MetricNames)*len(Variants))
	for _, m := range MetricNames {
		for _, v := range Variants {
			cols = append(cols, ScoreColumn(m, v))
		}
	}
	return cols
}

// Columns is the fixed header of the results file.
func Columns() []string {
	cols := []string{"test_case_index", "product_id", "question", "ground_truth"}
	cols = append(cols, ScoreColumns()...)
	return append(cols, "status", "error_message")
}

// Result is one evaluated test case. A nil score means the metric was not
// computed or failed.
type Result struct {
	Index       int
	ProductID   string
	Question    string
	GroundTruth string
	Scores      map[string]*float64
	Status      Status
	Error       string
}

// Record renders r in Columns order. Scores use four decimals and missing
// scores are empty.
func (r Result) Record() []string {
	rec := []string{strconv.Itoa(r.Index), r.ProductID, r.Question, r.GroundTruth}
	for _, col := range ScoreColumns() {
		rec = append(rec, FormatScore(r.Scores[col]))
	}
	return append(rec, string(r.Status), r.Error)
}

func FormatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
