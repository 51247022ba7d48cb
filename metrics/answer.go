package metrics

import (
	"context"
	"fmt"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/prompts"
)

// Faithfulness is the fraction of the response's claims that the retrieved
// contexts support.
type Faithfulness struct {
	judge judge
}

var _ Metric = (*Faithfulness)(nil)

func NewFaithfulness(llm llms.Model, opts ...llms.CallOption) *Faithfulness {
	return &Faithfulness{judge: newJudge(llm, opts...)}
}

func (m *Faithfulness) Name() string { return NameFaithfulness }

type faithfulnessResponse struct {
	Verdicts []struct {
		Statement string `json:"statement"`
		Reason    string `json:"reason"`
		Verdict   Flag   `json:"verdict"`
	} `json:"verdicts"`
}

func (m *Faithfulness) Score(ctx context.Context, s Sample) (float64, error) {
	if err := requireFields(map[string]string{"user_input": s.UserInput, "response": s.Response}); err != nil {
		return 0, err
	}
	if err := requireContexts(s); err != nil {
		return 0, err
	}

	statements, err := m.judge.extractStatements(ctx, s.UserInput, s.Response)
	if err != nil {
		return 0, err
	}

	var resp faithfulnessResponse
	err = m.judge.ask(ctx, prompts.FaithfulnessPrompt.Format(map[string]string{
		"contexts":   numbered(s.RetrievedContexts),
		"statements": numbered(statements),
	}), &resp)
	if err != nil {
		return 0, err
	}
	if len(resp.Verdicts) != len(statements) {
		return 0, fmt.Errorf("%w: %d statements, %d verdicts", ErrVerdictCount, len(statements), len(resp.Verdicts))
	}

	var supported int
	for _, v := range resp.Verdicts {
		if v.Verdict {
			supported++
		}
	}
	return ratio(supported, len(statements)), nil
}

// NoiseSensitivity is the fraction of the response's claims that are wrong
// according to the reference yet supported by some retrieved context, i.e.
// errors the retrieval introduced. Lower is better.
type NoiseSensitivity struct {
	judge judge
}

var _ Metric = (*NoiseSensitivity)(nil)

func NewNoiseSensitivity(llm llms.Model, opts ...llms.CallOption) *NoiseSensitivity {
	return &NoiseSensitivity{judge: newJudge(llm, opts...)}
}

func (m *NoiseSensitivity) Name() string { return NameNoiseSensitivity }

type noiseResponse struct {
	Verdicts []struct {
		Statement string `json:"statement"`
		Correct   Flag   `json:"correct"`
		Supported Flag   `json:"supported"`
	} `json:"verdicts"`
}

func (m *NoiseSensitivity) Score(ctx context.Context, s Sample) (float64, error) {
	if err := requireFields(map[string]string{"user_input": s.UserInput, "response": s.Response, "reference": s.Reference}); err != nil {
		return 0, err
	}
	if err := requireContexts(s); err != nil {
		return 0, err
	}

	statements, err := m.judge.extractStatements(ctx, s.UserInput, s.Response)
	if err != nil {
		return 0, err
	}

	var resp noiseResponse
	err = m.judge.ask(ctx, prompts.NoiseSensitivityPrompt.Format(map[string]string{
		"question":   s.UserInput,
		"reference":  s.Reference,
		"contexts":   numbered(s.RetrievedContexts),
		"statements": numbered(statements),
	}), &resp)
	if err != nil {
		return 0, err
	}
	if len(resp.Verdicts) != len(statements) {
		return 0, fmt.Errorf("%w: %d statements, %d verdicts", ErrVerdictCount, len(statements), len(resp.Verdicts))
	}

	var noisy int
	for _, v := range resp.Verdicts {
		if !v.Correct && v.Supported {
			noisy++
		}
	}
	return ratio(noisy, len(statements)), nil
}
