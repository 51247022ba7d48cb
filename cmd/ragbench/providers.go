package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/sevigo/ragbench/config"
	"github.com/sevigo/ragbench/embeddings"
	titan "github.com/sevigo/ragbench/embeddings/bedrock"
	"github.com/sevigo/ragbench/llms"
	bedrockllm "github.com/sevigo/ragbench/llms/bedrock"
	"github.com/sevigo/ragbench/llms/gemini"
	"github.com/sevigo/ragbench/llms/ollama"
)

func (a *app) newModel(ctx context.Context, m config.Model) (llms.Model, error) {
	switch m.Provider {
	case config.ProviderBedrock:
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		return bedrockllm.New(bedrockruntime.NewFromConfig(awsCfg),
			bedrockllm.WithModel(m.Model),
			bedrockllm.WithTemperature(m.Temperature),
			bedrockllm.WithMaxTokens(m.MaxTokens),
			bedrockllm.WithLogger(a.logger))
	case config.ProviderGemini:
		return gemini.New(ctx,
			gemini.WithModel(m.Model),
			gemini.WithAPIKey(m.APIKey),
			gemini.WithLogger(a.logger))
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(m.Model), ollama.WithLogger(a.logger)}
		if m.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(m.ServerURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("%w: model provider %q", config.ErrInvalid, m.Provider)
	}
}

// newEmbedder wraps the configured backend in a batching embedder.
func (a *app) newEmbedder(ctx context.Context, e config.Embedder) (embeddings.Embedder, error) {
	var client embeddings.Embedder
	switch e.Provider {
	case config.ProviderBedrock:
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		client = titan.New(bedrockruntime.NewFromConfig(awsCfg), titan.WithModel(e.Model), titan.WithLogger(a.logger))
	case config.ProviderGemini:
		llm, err := gemini.New(ctx,
			gemini.WithEmbeddingModel(e.Model),
			gemini.WithAPIKey(e.APIKey),
			gemini.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		client = llm
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(e.Model), ollama.WithEmbeddingModel(e.Model), ollama.WithLogger(a.logger)}
		if e.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(e.ServerURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, err
		}
		client = llm
	default:
		return nil, fmt.Errorf("%w: embedder provider %q", config.ErrInvalid, e.Provider)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if e.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(e.BatchSize))
	}
	return embeddings.NewEmbedder(client, opts...)
}
