package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/schema"
)

var ErrNoResponses = errors.New("no responses configured")

// Responder computes an answer from the last human prompt. It takes
// precedence over the scripted responses when set.
type Responder func(prompt string) (string, error)

// LLM is a scripted llms.Model. Responses are returned in a cycle unless a
// Responder is installed.
type LLM struct {
	mu         sync.Mutex
	responses  []string
	index      int
	respond    Responder
	err        error
	prompts    []string
	lastSystem string
	callCount  int
}

var _ llms.Model = (*LLM)(nil)

func NewFakeLLM(responses []string) *LLM {
	return &LLM{
		responses: responses,
	}
}

// NewResponder returns a fake that answers every prompt with fn.
func NewResponder(fn Responder) *LLM {
	return &LLM{respond: fn}
}

// GenerateContent records the conversation and returns the next answer.
func (f *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	f.mu.Lock()

	var prompt string
	for _, m := range messages {
		switch m.Role {
		case schema.ChatMessageTypeSystem:
			f.lastSystem = m.GetTextContent()
		default:
			prompt = m.GetTextContent()
		}
	}
	f.prompts = append(f.prompts, prompt)
	f.callCount++

	if f.err != nil {
		err := f.err
		f.mu.Unlock()
		return nil, err
	}

	var (
		response string
		err      error
	)
	switch {
	case f.respond != nil:
		respond := f.respond
		f.mu.Unlock()
		response, err = respond(prompt)
		if err != nil {
			return nil, err
		}
	case len(f.responses) == 0:
		f.mu.Unlock()
		return nil, ErrNoResponses
	default:
		response = f.responses[f.index]
		f.index = (f.index + 1) % len(f.responses)
		f.mu.Unlock()
	}

	opts := llms.NewCallOptions(options...)
	if opts.StreamingFunc != nil {
		if err := opts.StreamingFunc(ctx, []byte(response)); err != nil {
			return nil, err
		}
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{Content: response},
		},
	}, nil
}

// Call is a simplified interface for generating responses from a string prompt.
func (f *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// FailWith makes every following call return err. A nil err restores normal
// behaviour.
func (f *LLM) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Reset resets the response index, the recorded prompts and the call count.
func (f *LLM) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.callCount = 0
	f.prompts = nil
	f.lastSystem = ""
}

// AddResponse appends a new response to the list.
func (f *LLM) AddResponse(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
}

// LastPrompt returns the last non-system message sent to the LLM.
func (f *LLM) LastPrompt() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return "", false
	}
	last := f.prompts[len(f.prompts)-1]
	return last, last != ""
}

// LastSystem returns the last system instruction sent to the LLM.
func (f *LLM) LastSystem() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSystem, f.lastSystem != ""
}

// Prompts returns a copy of every prompt received since the last Reset.
func (f *LLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// GetCallCount returns the number of times the LLM was called.
func (f *LLM) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}
