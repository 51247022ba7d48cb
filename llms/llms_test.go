package llms_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/llms/fake"
)

func TestNewCallOptions(t *testing.T) {
	o := llms.NewCallOptions(
		llms.WithModel("judge"),
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(4096),
		llms.WithJSONMode(),
	)
	assert.Equal(t, "judge", o.Model)
	assert.InDelta(t, 0.1, o.Temperature, 1e-9)
	assert.Equal(t, 4096, o.MaxTokens)
	assert.True(t, o.JSONMode)
	assert.Nil(t, o.StreamingFunc)
}

func TestGenerateWithSystem(t *testing.T) {
	model := fake.NewFakeLLM([]string{"answer"})

	out, err := llms.GenerateWithSystem(context.Background(), model, "be terse", "question?")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	prompt, ok := model.LastPrompt()
	require.True(t, ok)
	assert.Equal(t, "question?", prompt)

	system, ok := model.LastSystem()
	require.True(t, ok)
	assert.Equal(t, "be terse", system)
}
