package bedrock

import "log/slog"

const (
	DefaultModel       = "us.amazon.nova-lite-v1:0"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 4096
)

type options struct {
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// Option is a function type for configuring the client.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithModel sets the Bedrock model or inference profile id.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithTemperature sets the temperature used when a call does not set one.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = t
	}
}

// WithMaxTokens sets the completion budget used when a call does not set one.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		o.maxTokens = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
