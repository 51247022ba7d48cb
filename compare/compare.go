// Package compare fetches answers to one question from two retrieval
// variants, the multi-stage pipeline and plain vector search, together with
// the contexts each variant retrieved.
package compare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrMalformed = errors.New("compare: malformed comparison response")

// Query identifies the product and question to answer. ProductName is used
// where the backend filters by name; it falls back to ProductID.
type Query struct {
	ProductID   string
	ProductName string
	Question    string
}

// Product returns the name to filter on.
func (q Query) Product() string {
	if q.ProductName != "" {
		return q.ProductName
	}
	return q.ProductID
}

// Answer is one variant's generated response and the contexts it used.
type Answer struct {
	Response string
	Contexts []string
}

// Meta records the intermediate queries of the pipeline variant.
type Meta struct {
	StandaloneQuery     string   `json:"standaloneQuery"`
	Subqueries          []string `json:"subqueries"`
	HypotheticalAnswers []string `json:"hypotheticalAnswers"`
}

type Comparison struct {
	WithPipeline    Answer
	WithoutPipeline Answer
	Meta            *Meta
}

// Complete reports whether both variants returned a response and at least
// one context.
func (c *Comparison) Complete() bool {
	return c != nil &&
		strings.TrimSpace(c.WithPipeline.Response) != "" &&
		strings.TrimSpace(c.WithoutPipeline.Response) != "" &&
		len(c.WithPipeline.Contexts) > 0 &&
		len(c.WithoutPipeline.Contexts) > 0
}

// Comparer answers a query with both retrieval variants.
type Comparer interface {
	Compare(ctx context.Context, q Query) (*Comparison, error)
}

// ComparerFunc adapts a function to Comparer.
type ComparerFunc func(ctx context.Context, q Query) (*Comparison, error)

func (f ComparerFunc) Compare(ctx context.Context, q Query) (*Comparison, error) {
	return f(ctx, q)
}

type wireVariantWith struct {
	AIResponse string          `json:"ai_response"`
	Context    json.RawMessage `json:"context_with_pipeline"`
}

type wireVariantWithout struct {
	AIResponse string          `json:"ai_response"`
	Context    json.RawMessage `json:"context_without_pipeline"`
}

type wireResponse struct {
	WithPipeline    wireVariantWith    `json:"with_pipeline"`
	WithoutPipeline wireVariantWithout `json:"without_pipeline"`
	Meta            *Meta              `json:"meta,omitempty"`
}

// Decode parses the endpoint's JSON response. Missing variants decode to
// empty answers; use Complete to check them. Context fields may be a single
// string of "Chunk N:" blocks or a list of strings.
func Decode(data []byte) (*Comparison, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	with, err := decodeContexts(w.WithPipeline.Context)
	if err != nil {
		return nil, fmt.Errorf("%w: context_with_pipeline: %w", ErrMalformed, err)
	}
	without, err := decodeContexts(w.WithoutPipeline.Context)
	if err != nil {
		return nil, fmt.Errorf("%w: context_without_pipeline: %w", ErrMalformed, err)
	}
	return &Comparison{
		WithPipeline:    Answer{Response: w.WithPipeline.AIResponse, Contexts: with},
		WithoutPipeline: Answer{Response: w.WithoutPipeline.AIResponse, Contexts: without},
		Meta:            w.Meta,
	}, nil
}

// Encode writes c in the endpoint's format, with contexts as a list.
func Encode(c *Comparison) ([]byte, error) {
	with, err := json.Marshal(nonNil(c.WithPipeline.Contexts))
	if err != nil {
		return nil, err
	}
	without, err := json.Marshal(nonNil(c.WithoutPipeline.Contexts))
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(wireResponse{
		WithPipeline:    wireVariantWith{AIResponse: c.WithPipeline.Response, Context: with},
		WithoutPipeline: wireVariantWithout{AIResponse: c.WithoutPipeline.Response, Context: without},
		Meta:            c.Meta,
	}, "", "  ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func decodeContexts(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return SplitChunks(s), nil
	case '[':
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %.20s", raw)
	}
}

var chunkMarker = regexp.MustCompile(`(?m)^Chunk \d+:`)

// SplitChunks splits a concatenated context into its "Chunk N:" blocks. Text
// without markers is returned as a single context.
func SplitChunks(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	locs := chunkMarker.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return []string{s}
	}

	var out []string
	if lead := strings.TrimSpace(s[:locs[0][0]]); lead != "" {
		out = append(out, lead)
	}
	for i, loc := range locs {
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if chunk := strings.TrimSpace(s[loc[0]:end]); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
