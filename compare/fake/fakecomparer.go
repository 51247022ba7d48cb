// Package fake provides a scripted compare.Comparer.
package fake

import (
	"context"
	"sync"

	"github.com/sevigo/ragbench/compare"
)

// Comparer answers through Respond and records every query.
type Comparer struct {
	mu      sync.Mutex
	respond func(q compare.Query) (*compare.Comparison, error)
	queries []compare.Query
}

var _ compare.Comparer = (*Comparer)(nil)

func New(respond func(q compare.Query) (*compare.Comparison, error)) *Comparer {
	return &Comparer{respond: respond}
}

// Static returns the same comparison for every query.
func Static(c *compare.Comparison) *Comparer {
	return New(func(compare.Query) (*compare.Comparison, error) { return c, nil })
}

func (f *Comparer) Compare(ctx context.Context, q compare.Query) (*compare.Comparison, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.respond(q)
}

func (f *Comparer) Queries() []compare.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]compare.Query(nil), f.queries...)
}

// Sample is a complete comparison with one context per variant.
func Sample() *compare.Comparison {
	return &compare.Comparison{
		WithPipeline: compare.Answer{
			Response: "The kettle is quiet and boils fast.",
			Contexts: []string{"Chunk 1:\nTitle: Quiet kettle\nSelftext: It boils in two minutes."},
		},
		WithoutPipeline: compare.Answer{
			Response: "The kettle boils fast.",
			Contexts: []string{"Chunk 1:\nTitle: Fast kettle\nSelftext: Boils quickly."},
		},
	}
}
