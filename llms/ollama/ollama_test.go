package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/llms/ollama"
	"github.com/sevigo/ragbench/schema"
)

func newServer(t *testing.T) (*httptest.Server, *api.ChatRequest) {
	t.Helper()
	var captured api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_ = json.NewEncoder(w).Encode(api.ChatResponse{
				Model:   captured.Model,
				Message: api.Message{Role: "assistant", Content: `{"verdict":1}`},
				Done:    true,
			})
		case "/api/embed":
			var req api.EmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_ = json.NewEncoder(w).Encode(api.EmbedResponse{
				Model:      req.Model,
				Embeddings: [][]float32{{1, 0}, {0, 1}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestLLM_GenerateContent(t *testing.T) {
	srv, captured := newServer(t)
	llm, err := ollama.New(ollama.WithModel("llama3"), ollama.WithServerURL(srv.URL))
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(), []schema.MessageContent{
		schema.NewSystemMessage("judge"),
		schema.NewHumanMessage("q"),
	}, llms.WithJSONMode(), llms.WithTemperature(0.1))
	require.NoError(t, err)
	assert.Equal(t, `{"verdict":1}`, resp.Choices[0].Content)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.JSONEq(t, `"json"`, string(captured.Format))
	assert.InDelta(t, 0.1, captured.Options["temperature"], 1e-9)
}

func TestLLM_EmbedDocuments(t *testing.T) {
	srv, _ := newServer(t)
	llm, err := ollama.New(ollama.WithModel("nomic-embed-text"), ollama.WithServerURL(srv.URL))
	require.NoError(t, err)

	vectors, err := llm.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	_, err = llm.EmbedDocuments(context.Background(), []string{"only one"})
	require.ErrorIs(t, err, ollama.ErrIncompleteEmbedding)
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := ollama.New()
	require.ErrorIs(t, err, ollama.ErrInvalidModel)
}
