package llms

import (
	"context"
	"errors"

	"github.com/sevigo/ragbench/schema"
)

// ErrEmptyResponse is returned when a model answers without any choice.
var ErrEmptyResponse = errors.New("llms: empty response from model")

// Model is a chat-style text generator. Judges, query rewriters and answer
// generators all talk to a backend through this interface.
type Model interface {
	GenerateContent(ctx context.Context, messages []schema.MessageContent, options ...CallOption) (*schema.ContentResponse, error)
	Call(ctx context.Context, prompt string, options ...CallOption) (string, error)
}

func GenerateFromSinglePrompt(ctx context.Context, llm Model, prompt string, options ...CallOption) (string, error) {
	resp, err := llm.GenerateContent(ctx, []schema.MessageContent{schema.NewHumanMessage(prompt)}, options...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) < 1 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// GenerateWithSystem sends a system instruction followed by a single user
// prompt and returns the first choice.
func GenerateWithSystem(ctx context.Context, llm Model, system, prompt string, options ...CallOption) (string, error) {
	messages := []schema.MessageContent{
		schema.NewSystemMessage(system),
		schema.NewHumanMessage(prompt),
	}
	resp, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) < 1 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}
