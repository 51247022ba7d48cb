package metrics

import (
	"context"
	"fmt"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/prompts"
)

// ContextPrecision is the average precision of the retrieved contexts, each
// judged useful or not for reaching the reference answer. Useful contexts
// ranked early score higher.
type ContextPrecision struct {
	judge judge
}

var _ Metric = (*ContextPrecision)(nil)

func NewContextPrecision(llm llms.Model, opts ...llms.CallOption) *ContextPrecision {
	return &ContextPrecision{judge: newJudge(llm, opts...)}
}

func (m *ContextPrecision) Name() string { return NameContextPrecision }

type precisionResponse struct {
	Verdicts []struct {
		Index   int    `json:"index"`
		Reason  string `json:"reason"`
		Verdict Flag   `json:"verdict"`
	} `json:"verdicts"`
}

func (m *ContextPrecision) Score(ctx context.Context, s Sample) (float64, error) {
	if err := requireFields(map[string]string{"user_input": s.UserInput, "reference": s.Reference}); err != nil {
		return 0, err
	}
	if err := requireContexts(s); err != nil {
		return 0, err
	}

	var resp precisionResponse
	err := m.judge.ask(ctx, prompts.ContextPrecisionPrompt.Format(map[string]string{
		"question":  s.UserInput,
		"reference": s.Reference,
		"contexts":  numbered(s.RetrievedContexts),
	}), &resp)
	if err != nil {
		return 0, err
	}
	if len(resp.Verdicts) != len(s.RetrievedContexts) {
		return 0, fmt.Errorf("%w: %d contexts, %d verdicts", ErrVerdictCount, len(s.RetrievedContexts), len(resp.Verdicts))
	}

	verdicts := make([]bool, len(resp.Verdicts))
	for i, v := range resp.Verdicts {
		verdicts[i] = bool(v.Verdict)
	}
	return AveragePrecision(verdicts), nil
}

// AveragePrecision is the mean of precision@k over the ranks k holding a
// relevant item. No relevant item scores 0.
func AveragePrecision(relevant []bool) float64 {
	var hits int
	var sum float64
	for i, r := range relevant {
		if !r {
			continue
		}
		hits++
		sum += float64(hits) / float64(i+1)
	}
	if hits == 0 {
		return 0
	}
	return sum / float64(hits)
}

// ContextRecall is the fraction of reference statements that the retrieved
// contexts support.
type ContextRecall struct {
	judge judge
}

var _ Metric = (*ContextRecall)(nil)

func NewContextRecall(llm llms.Model, opts ...llms.CallOption) *ContextRecall {
	return &ContextRecall{judge: newJudge(llm, opts...)}
}

func (m *ContextRecall) Name() string { return NameContextRecall }

type recallResponse struct {
	Classifications []struct {
		Statement  string `json:"statement"`
		Reason     string `json:"reason"`
		Attributed Flag   `json:"attributed"`
	} `json:"classifications"`
}

func (m *ContextRecall) Score(ctx context.Context, s Sample) (float64, error) {
	if err := requireFields(map[string]string{"user_input": s.UserInput, "reference": s.Reference}); err != nil {
		return 0, err
	}
	if err := requireContexts(s); err != nil {
		return 0, err
	}

	var resp recallResponse
	err := m.judge.ask(ctx, prompts.ContextRecallPrompt.Format(map[string]string{
		"question":  s.UserInput,
		"reference": s.Reference,
		"contexts":  numbered(s.RetrievedContexts),
	}), &resp)
	if err != nil {
		return 0, err
	}
	if len(resp.Classifications) == 0 {
		return 0, ErrNoStatements
	}

	var attributed int
	for _, c := range resp.Classifications {
		if c.Attributed {
			attributed++
		}
	}
	return ratio(attributed, len(resp.Classifications)), nil
}
