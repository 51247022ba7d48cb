package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"github.com/sevigo/ragbench/embeddings"
	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/schema"
)

var (
	ErrNoAPIKey     = errors.New("gemini: API key is required")
	ErrInvalidModel = errors.New("gemini: invalid model specified")
	ErrNoContent    = errors.New("gemini: no content generated")
	ErrNoMessages   = errors.New("gemini: no messages to send")
	ErrEmbeddings   = errors.New("gemini: failed to generate embeddings")
)

// LLM implements both the Model and Embedder interfaces for Gemini.
type LLM struct {
	client  *genai.Client
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

// New creates a new Gemini LLM client.
func New(ctx context.Context, opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)

	if o.apiKey == "" {
		o.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if o.model == "" {
		return nil, ErrInvalidModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: o.apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	llm := &LLM{
		client:  client,
		options: o,
		logger:  o.logger.With("component", "gemini_llm", "model", o.model),
	}
	llm.logger.Info("Gemini LLM initialized")
	return llm, nil
}

// Call is a convenience method for a single-turn conversation.
func (g *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}

// GenerateContent sends the conversation and collects the answer, streaming
// chunks to the call's StreamingFunc when one is set.
func (g *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	callOpts := llms.NewCallOptions(options...)

	model := g.options.model
	if callOpts.Model != "" {
		model = callOpts.Model
	}

	history, system := convertMessages(messages)
	if len(history) == 0 {
		return nil, ErrNoMessages
	}

	genConfig := &genai.GenerateContentConfig{SystemInstruction: system}
	if callOpts.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(callOpts.Temperature))
	}
	if callOpts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(callOpts.MaxTokens)
	}
	if callOpts.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	if callOpts.StreamingFunc == nil {
		resp, err := g.client.Models.GenerateContent(ctx, model, history, genConfig)
		duration := time.Since(start)
		if err != nil {
			g.logger.ErrorContext(ctx, "Gemini client failed", "error", err, "duration", duration)
			return nil, err
		}
		if len(resp.Candidates) == 0 {
			return nil, ErrNoContent
		}
		content := resp.Text()
		if content == "" {
			return nil, ErrNoContent
		}
		return &schema.ContentResponse{
			Choices: []*schema.ContentChoice{{
				Content:        content,
				StopReason:     string(resp.Candidates[0].FinishReason),
				GenerationInfo: generationInfo(resp, model, duration),
			}},
		}, nil
	}

	var full strings.Builder
	var last *genai.GenerateContentResponse
	for resp, errStream := range g.client.Models.GenerateContentStream(ctx, model, history, genConfig) {
		if errors.Is(errStream, iterator.Done) {
			break
		}
		if errStream != nil {
			g.logger.ErrorContext(ctx, "Gemini stream error", "error", errStream)
			return nil, errStream
		}
		last = resp
		chunk := resp.Text()
		full.WriteString(chunk)
		if err := callOpts.StreamingFunc(ctx, []byte(chunk)); err != nil {
			return nil, fmt.Errorf("streaming function returned an error: %w", err)
		}
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{{
			Content:        full.String(),
			GenerationInfo: generationInfo(last, model, time.Since(start)),
		}},
	}, nil
}

// EmbedDocuments generates embeddings for a slice of texts in one request.
func (g *LLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	res, err := g.client.Models.EmbedContent(ctx, g.options.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddings, err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddings, len(texts), len(res.Embeddings))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// EmbedQuery generates an embedding for a single text query.
func (g *LLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: embedding is empty", ErrEmbeddings)
	}
	return vectors[0], nil
}

// GetDimension returns the embedding dimension of the model.
func (g *LLM) GetDimension(ctx context.Context) (int, error) {
	g.dimOnce.Do(func() {
		v, err := g.EmbedQuery(ctx, "dimension")
		if err != nil {
			g.dimErr = fmt.Errorf("failed to get dimension by embedding sample text: %w", err)
			return
		}
		g.dimension = len(v)
	})
	return g.dimension, g.dimErr
}

// convertMessages splits system instructions from the turn history.
func convertMessages(messages []schema.MessageContent) ([]*genai.Content, *genai.Content) {
	history := make([]*genai.Content, 0, len(messages))
	var system []*genai.Part

	for _, msg := range messages {
		text := msg.GetTextContent()
		switch msg.Role {
		case schema.ChatMessageTypeSystem:
			system = append(system, genai.NewPartFromText(text))
		case schema.ChatMessageTypeAI:
			history = append(history, genai.NewContentFromText(text, genai.RoleModel))
		default:
			history = append(history, genai.NewContentFromText(text, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return history, nil
	}
	return history, genai.NewContentFromParts(system, genai.RoleUser)
}

func generationInfo(resp *genai.GenerateContentResponse, model string, duration time.Duration) map[string]any {
	info := map[string]any{
		"Duration": duration,
		"Model":    model,
	}
	if resp != nil && resp.UsageMetadata != nil {
		info["TotalTokens"] = resp.UsageMetadata.TotalTokenCount
	}
	return info
}
