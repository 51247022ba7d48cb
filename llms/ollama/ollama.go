package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sevigo/ragbench/embeddings"
	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/schema"
)

// Common errors returned by the Ollama LLM implementation.
var (
	ErrEmptyResponse       = errors.New("ollama: empty response received")
	ErrIncompleteEmbedding = errors.New("ollama: not all input texts were embedded")
	ErrInvalidModel        = errors.New("ollama: invalid model specified")
)

// LLM talks to a local Ollama server for both generation and embeddings.
type LLM struct {
	client  *api.Client
	options options
	logger  *slog.Logger

	dimension int
	dimOnce   sync.Once
	dimErr    error
}

var (
	_ llms.Model          = (*LLM)(nil)
	_ embeddings.Embedder = (*LLM)(nil)
)

func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)
	if o.model == "" {
		return nil, ErrInvalidModel
	}

	var client *api.Client
	if o.serverURL != nil {
		client = api.NewClient(o.serverURL, o.httpClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return &LLM{
		client:  client,
		options: o,
		logger:  o.logger.With("component", "ollama_llm", "model", o.model),
	}, nil
}

func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
}

func (o *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	opts := llms.NewCallOptions(options...)

	model := o.options.model
	if opts.Model != "" {
		model = opts.Model
	}

	stream := opts.StreamingFunc != nil
	req := &api.ChatRequest{
		Model:    model,
		Messages: convertMessages(messages),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if opts.Temperature > 0 {
		req.Options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}
	if opts.JSONMode {
		req.Format = json.RawMessage(`"json"`)
	}

	var full strings.Builder
	var final api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		full.WriteString(resp.Message.Content)
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(resp.Message.Content)); err != nil {
				return fmt.Errorf("streaming function returned an error: %w", err)
			}
		}
		if resp.Done {
			final = resp
		}
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		o.logger.ErrorContext(ctx, "Ollama chat failed", "error", err, "duration", duration)
		return nil, err
	}
	if full.Len() == 0 {
		return nil, ErrEmptyResponse
	}

	o.logger.DebugContext(ctx, "Content generation completed", "duration", duration)
	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{{
			Content:    full.String(),
			StopReason: final.DoneReason,
			GenerationInfo: map[string]any{
				"CompletionTokens": final.EvalCount,
				"PromptTokens":     final.PromptEvalCount,
				"TotalTokens":      final.EvalCount + final.PromptEvalCount,
				"Duration":         duration,
				"Model":            model,
			},
		}},
	}, nil
}

func convertMessages(messages []schema.MessageContent) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, mc := range messages {
		out = append(out, api.Message{Role: typeToRole(mc.Role), Content: mc.GetTextContent()})
	}
	return out
}

func typeToRole(typ schema.ChatMessageType) string {
	switch typ {
	case schema.ChatMessageTypeSystem:
		return "system"
	case schema.ChatMessageTypeAI:
		return "assistant"
	default:
		return "user"
	}
}

// EmbedDocuments embeds all texts with a single /api/embed request.
func (o *LLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.options.embeddingModel, Input: texts})
	if err != nil {
		o.logger.ErrorContext(ctx, "Embedding API call failed", "error", err, "count", len(texts))
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, ErrIncompleteEmbedding
	}
	return resp.Embeddings, nil
}

func (o *LLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

func (o *LLM) GetDimension(ctx context.Context) (int, error) {
	o.dimOnce.Do(func() {
		v, err := o.EmbedQuery(ctx, "dimension")
		if err != nil {
			o.dimErr = fmt.Errorf("failed to get embedding dimension: %w", err)
			return
		}
		o.dimension = len(v)
	})
	return o.dimension, o.dimErr
}
