// Package metrics scores retrieval-augmented answers with an LLM judge.
// Every metric returns a value in [0, 1].
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/prompts"
)

var (
	ErrEmptyField   = errors.New("metrics: required sample field is empty")
	ErrNoContexts   = errors.New("metrics: sample has no retrieved contexts")
	ErrNoStatements = errors.New("metrics: no statements to judge")
	ErrVerdictCount = errors.New("metrics: judge returned a different number of verdicts")
)

// Sample is one question answered by one retrieval variant.
type Sample struct {
	UserInput         string
	Response          string
	RetrievedContexts []string
	Reference         string
}

type Metric interface {
	Name() string
	Score(ctx context.Context, s Sample) (float64, error)
}

const (
	NameContextPrecision = "context_precision"
	NameContextRecall    = "context_recall"
	NameFaithfulness     = "faithfulness"
	NameNoiseSensitivity = "noise_sensitivity"
)

// All returns the four metrics in report order.
func All(llm llms.Model, opts ...llms.CallOption) []Metric {
	j := newJudge(llm, opts...)
	return []Metric{
		&ContextPrecision{judge: j},
		&ContextRecall{judge: j},
		&Faithfulness{judge: j},
		&NoiseSensitivity{judge: j},
	}
}

type judge struct {
	llm  llms.Model
	opts []llms.CallOption
}

func newJudge(llm llms.Model, opts ...llms.CallOption) judge {
	base := []llms.CallOption{llms.WithJSONMode()}
	return judge{llm: llm, opts: append(base, opts...)}
}

// ask sends prompt with the judge system instruction and decodes the JSON
// answer into out.
func (j judge) ask(ctx context.Context, prompt string, out any) error {
	raw, err := llms.GenerateWithSystem(ctx, j.llm, prompts.JudgeSystemPrompt, prompt, j.opts...)
	if err != nil {
		return fmt.Errorf("metrics: judge call: %w", err)
	}
	return ParseJSON(raw, out)
}

type statementsResponse struct {
	Statements []string `json:"statements"`
}

// extractStatements splits answer into standalone claims.
func (j judge) extractStatements(ctx context.Context, question, answer string) ([]string, error) {
	var resp statementsResponse
	err := j.ask(ctx, prompts.StatementExtractionPrompt.Format(map[string]string{
		"question": question,
		"answer":   answer,
	}), &resp)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range resp.Statements {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoStatements
	}
	return out, nil
}

func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(item))
	}
	return b.String()
}

func requireFields(fields map[string]string) error {
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s", ErrEmptyField, name)
		}
	}
	return nil
}

func requireContexts(s Sample) error {
	for _, c := range s.RetrievedContexts {
		if strings.TrimSpace(c) != "" {
			return nil
		}
	}
	return ErrNoContexts
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
