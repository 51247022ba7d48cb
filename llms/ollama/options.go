package ollama

import (
	"log/slog"
	"net/http"
	"net/url"
)

// options holds configuration settings for the Ollama client.
type options struct {
	model          string
	embeddingModel string
	serverURL      *url.URL
	httpClient     *http.Client
	logger         *slog.Logger
}

// Option is a function type for configuring Ollama client options.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		logger:     slog.Default(),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.embeddingModel == "" {
		o.embeddingModel = o.model
	}
	return o
}

func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithEmbeddingModel selects a dedicated embedding model. The generation
// model is used when unset.
func WithEmbeddingModel(model string) Option {
	return func(opts *options) {
		opts.embeddingModel = model
	}
}

// WithServerURL points the client at a specific server. OLLAMA_HOST is used
// when unset.
func WithServerURL(rawURL string) Option {
	return func(opts *options) {
		if parsedURL, err := url.Parse(rawURL); err == nil {
			opts.serverURL = parsedURL
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		if client != nil {
			opts.httpClient = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}
