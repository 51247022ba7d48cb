// Package bedrock embeds text with the Amazon Titan models served by Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/sevigo/ragbench/embeddings"
)

const DefaultModel = "amazon.titan-embed-text-v1"

var ErrEmptyEmbedding = errors.New("bedrock: empty embedding returned")

// ModelInvoker is the subset of *bedrockruntime.Client used by Embedder.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embedder calls a Titan text embedding model once per text.
type Embedder struct {
	client ModelInvoker
	model  string
	logger *slog.Logger

	dimension int
	dimOnce   sync.Once
	dimErr    error
}

var _ embeddings.Embedder = (*Embedder)(nil)

type Option func(*Embedder)

func WithModel(model string) Option {
	return func(e *Embedder) {
		e.model = model
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(client ModelInvoker, opts ...Option) *Embedder {
	e := &Embedder{
		client: client,
		model:  DefaultModel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "titan_embedder", "model", e.model)
	return e
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{InputText: text})
	if err != nil {
		return nil, err
	}
	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "Titan invoke failed", "error", err, "text_length", len(text))
		return nil, fmt.Errorf("bedrock invoke model: %w", err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: decode embedding: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		v, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetDimension embeds a probe text once and caches the vector length.
func (e *Embedder) GetDimension(ctx context.Context) (int, error) {
	e.dimOnce.Do(func() {
		v, err := e.EmbedQuery(ctx, "dimension")
		if err != nil {
			e.dimErr = err
			return
		}
		e.dimension = len(v)
	})
	return e.dimension, e.dimErr
}
