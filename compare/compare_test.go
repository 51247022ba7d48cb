package compare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/compare"
)

func TestDecode_StringContexts(t *testing.T) {
	payload := `{
		"with_pipeline": {
			"ai_response": "Pipeline answer",
			"context_with_pipeline": "Chunk 1:\nTitle: A\nSelftext: a\nTop comments:\n1. ok\nSource: u1\n\nChunk 2:\nTitle: B\nSelftext: b\nTop comments:\nSource: unknown\n\n"
		},
		"without_pipeline": {
			"ai_response": "Direct answer",
			"context_without_pipeline": "Chunk 1:\nTitle: C\nSelftext: c\nTop comments:\nSource: u3\n\n"
		},
		"meta": {"standaloneQuery": "kettle noise", "subqueries": ["a", "b", "c"], "hypotheticalAnswers": ["x"]}
	}`

	c, err := compare.Decode([]byte(payload))
	require.NoError(t, err)
	assert.True(t, c.Complete())
	assert.Equal(t, "Pipeline answer", c.WithPipeline.Response)
	require.Len(t, c.WithPipeline.Contexts, 2)
	assert.Equal(t, "Chunk 1:\nTitle: A\nSelftext: a\nTop comments:\n1. ok\nSource: u1", c.WithPipeline.Contexts[0])
	assert.Equal(t, "Chunk 2:\nTitle: B\nSelftext: b\nTop comments:\nSource: unknown", c.WithPipeline.Contexts[1])
	assert.Len(t, c.WithoutPipeline.Contexts, 1)
	require.NotNil(t, c.Meta)
	assert.Equal(t, "kettle noise", c.Meta.StandaloneQuery)
	assert.Len(t, c.Meta.Subqueries, 3)
}

func TestDecode_ListContextsAndMissingFields(t *testing.T) {
	c, err := compare.Decode([]byte(`{"with_pipeline":{"ai_response":"x","context_with_pipeline":["one"," ",""]}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, c.WithPipeline.Contexts)
	assert.Empty(t, c.WithoutPipeline.Response)
	assert.Nil(t, c.WithoutPipeline.Contexts)
	assert.False(t, c.Complete())
	assert.Nil(t, c.Meta)
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":       `<html>`,
		"numeric ctx":    `{"with_pipeline":{"ai_response":"x","context_with_pipeline":42}}`,
		"object ctx":     `{"without_pipeline":{"ai_response":"x","context_without_pipeline":{"a":1}}}`,
		"mixed list ctx": `{"with_pipeline":{"context_with_pipeline":["a",1]}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := compare.Decode([]byte(payload))
			require.ErrorIs(t, err, compare.ErrMalformed)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	in := &compare.Comparison{
		WithPipeline:    compare.Answer{Response: "a", Contexts: []string{"c1", "c2"}},
		WithoutPipeline: compare.Answer{Response: "b"},
		Meta:            &compare.Meta{StandaloneQuery: "q"},
	}
	data, err := compare.Encode(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"context_without_pipeline": []`)

	out, err := compare.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.WithPipeline, out.WithPipeline)
	assert.Empty(t, out.WithoutPipeline.Contexts)
	assert.Equal(t, "q", out.Meta.StandaloneQuery)
}

func TestSplitChunks(t *testing.T) {
	assert.Nil(t, compare.SplitChunks("  "))
	assert.Equal(t, []string{"plain text"}, compare.SplitChunks("plain text\n"))
	assert.Equal(t, []string{"intro", "Chunk 1:\nx", "Chunk 12:\ny"},
		compare.SplitChunks("intro\nChunk 1:\nx\nChunk 12:\ny"))
	assert.Equal(t, []string{"Chunk 1:\nsee Chunk 2: inline"},
		compare.SplitChunks("Chunk 1:\nsee Chunk 2: inline"))
}

func TestQuery_Product(t *testing.T) {
	assert.Equal(t, "Kettle", compare.Query{ProductID: "64f", ProductName: "Kettle"}.Product())
	assert.Equal(t, "64f", compare.Query{ProductID: "64f"}.Product())
}
