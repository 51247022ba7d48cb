// Package vectorstores defines nearest-neighbour search over stored posts.
package vectorstores

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

var (
	ErrCollectionNotFound = errors.New("vectorstores: collection not found")
	ErrInvalidLimit       = errors.New("vectorstores: limit must be positive")
	ErrEmptyVector        = errors.New("vectorstores: query vector is empty")
)

// Hit is one search result. Vector is only set when the search asked for
// stored vectors.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
	Vector  []float32
}

// String returns the payload value for key, or "" when it is absent or not a
// scalar.
func (h Hit) String(key string) string {
	v, ok := h.Payload[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case []any, map[string]any:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// Searcher finds the stored points closest to a query vector.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int, options ...Option) ([]Hit, error)
}

type Option func(*Options)

type Options struct {
	ScoreThreshold float32
	Filters        map[string]any
	WithVectors    bool
}

func WithScoreThreshold(threshold float32) Option {
	return func(opts *Options) {
		opts.ScoreThreshold = threshold
	}
}

func WithFilters(filters map[string]any) Option {
	return func(opts *Options) {
		if opts.Filters == nil {
			opts.Filters = make(map[string]any)
		}
		maps.Copy(opts.Filters, filters)
	}
}

// WithFilter restricts results to points whose payload field key equals value.
func WithFilter(key string, value any) Option {
	return func(opts *Options) {
		if opts.Filters == nil {
			opts.Filters = make(map[string]any)
		}
		opts.Filters[key] = value
	}
}

// WithVectors asks the store to return the stored vector of every hit.
func WithVectors() Option {
	return func(opts *Options) {
		opts.WithVectors = true
	}
}

func ParseOptions(options ...Option) Options {
	opts := Options{
		Filters: make(map[string]any),
	}
	for _, option := range options {
		option(&opts)
	}
	return opts
}
