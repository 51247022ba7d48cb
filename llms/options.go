package llms

import "context"

type CallOption func(*CallOptions)

type CallOptions struct {
	Model       string         `json:"model"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	JSONMode    bool           `json:"json_mode"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	// StreamingFunc receives every chunk when set; backends that cannot stream
	// deliver the whole answer as one chunk.
	StreamingFunc func(ctx context.Context, chunk []byte) error `json:"-"`
}

// NewCallOptions applies opts on top of the zero value.
func NewCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithModel overrides the backend's configured model for one call.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = t
	}
}

func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = n
	}
}

// WithJSONMode asks the backend to constrain its output to a JSON document.
func WithJSONMode() CallOption {
	return func(o *CallOptions) {
		o.JSONMode = true
	}
}

// WithStreamingFunc specifies the streaming function to use.
func WithStreamingFunc(streamingFunc func(ctx context.Context, chunk []byte) error) CallOption {
	return func(o *CallOptions) {
		o.StreamingFunc = streamingFunc
	}
}
