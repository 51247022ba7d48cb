package qdrant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const (
	defaultHost = "localhost"
	defaultPort = 6334
)

var ErrInvalidOptions = errors.New("qdrant: invalid options provided")

type options struct {
	collectionName string
	qdrantURL      url.URL
	apiKey         string
	logger         *slog.Logger
	useTLS         bool
}

type Option func(*options)

func WithCollectionName(name string) Option {
	return func(opts *options) {
		opts.collectionName = strings.TrimSpace(name)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithURL parses the server address. A URL without a port uses the gRPC
// port 6334; an https scheme enables TLS.
func WithURL(raw string) Option {
	return func(opts *options) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			u = &url.URL{Scheme: "http", Host: raw}
		}
		opts.qdrantURL = *u
		if u.Scheme == "https" {
			opts.useTLS = true
		}
	}
}

func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKey = strings.TrimSpace(apiKey)
	}
}

func applyDefaults(opts *options) {
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.qdrantURL.Host == "" {
		opts.qdrantURL = url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", defaultHost, defaultPort),
		}
	}
}

func (opts *options) validate() error {
	if opts.collectionName == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidOptions)
	}
	if s := opts.qdrantURL.Scheme; s != "http" && s != "https" {
		return fmt.Errorf("%w: URL scheme must be http or https", ErrInvalidOptions)
	}
	return nil
}

func parseOptions(opts ...Option) (options, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	applyDefaults(&o)
	if err := o.validate(); err != nil {
		return o, err
	}
	return o, nil
}

// String describes the options without the API key.
func (opts *options) String() string {
	parts := []string{
		"collection=" + opts.collectionName,
		"host=" + opts.qdrantURL.Host,
	}
	if opts.apiKey != "" {
		parts = append(parts, "has_api_key=true")
	}
	if opts.useTLS {
		parts = append(parts, "tls=true")
	}
	return "QdrantOptions{" + strings.Join(parts, ", ") + "}"
}
