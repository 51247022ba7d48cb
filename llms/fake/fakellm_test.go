package fake_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/llms/fake"
)

func TestLLM_GenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("responses cycle", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"first", "second"})

		for _, want := range []string{"first", "second", "first"} {
			resp, err := fakeLLM.GenerateContent(ctx, nil)
			require.NoError(t, err)
			require.Len(t, resp.Choices, 1)
			assert.Equal(t, want, resp.Choices[0].Content)
		}
		assert.Equal(t, 3, fakeLLM.GetCallCount())
	})

	t.Run("empty responses", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM(nil)

		resp, err := fakeLLM.GenerateContent(ctx, nil)
		require.ErrorIs(t, err, fake.ErrNoResponses)
		assert.Nil(t, resp)
	})

	t.Run("streaming receives the whole answer", func(t *testing.T) {
		fakeLLM := fake.NewFakeLLM([]string{"streamed"})
		var got strings.Builder

		_, err := fakeLLM.GenerateContent(ctx, nil, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			got.Write(chunk)
			return nil
		}))
		require.NoError(t, err)
		assert.Equal(t, "streamed", got.String())
	})
}

func TestLLM_Call(t *testing.T) {
	ctx := context.Background()
	fakeLLM := fake.NewFakeLLM([]string{"hello world", "second response"})

	result, err := fakeLLM.Call(ctx, "test prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)

	result, err = fakeLLM.Call(ctx, "another prompt")
	require.NoError(t, err)
	assert.Equal(t, "second response", result)

	assert.Equal(t, []string{"test prompt", "another prompt"}, fakeLLM.Prompts())
}

func TestLLM_Responder(t *testing.T) {
	fakeLLM := fake.NewResponder(func(prompt string) (string, error) {
		if strings.Contains(prompt, "boom") {
			return "", errors.New("exploded")
		}
		return strings.ToUpper(prompt), nil
	})

	out, err := fakeLLM.Call(context.Background(), "quiet")
	require.NoError(t, err)
	assert.Equal(t, "QUIET", out)

	_, err = fakeLLM.Call(context.Background(), "boom")
	require.EqualError(t, err, "exploded")
}

func TestLLM_FailWith(t *testing.T) {
	fakeLLM := fake.NewFakeLLM([]string{"ok"})
	injected := errors.New("throttled")

	fakeLLM.FailWith(injected)
	_, err := fakeLLM.Call(context.Background(), "p")
	require.ErrorIs(t, err, injected)

	fakeLLM.FailWith(nil)
	out, err := fakeLLM.Call(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestLLM_ResetAndAddResponse(t *testing.T) {
	fakeLLM := fake.NewFakeLLM([]string{"first", "second"})

	_, err := fakeLLM.Call(context.Background(), "a")
	require.NoError(t, err)

	fakeLLM.Reset()
	_, ok := fakeLLM.LastPrompt()
	assert.False(t, ok)
	assert.Zero(t, fakeLLM.GetCallCount())

	fakeLLM.AddResponse("third")
	var got []string
	for range 3 {
		out, err := fakeLLM.Call(context.Background(), "b")
		require.NoError(t, err)
		got = append(got, out)
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
}
