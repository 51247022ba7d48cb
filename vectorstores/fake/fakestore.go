// Package fake provides an in-memory vectorstores.Searcher.
package fake

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/sevigo/ragbench/vectorstores"
)

// Store ranks its points by cosine similarity and applies filters as exact
// payload matches.
type Store struct {
	mu       sync.Mutex
	points   []vectorstores.Hit
	searches []vectorstores.Options
	Err      error
}

var _ vectorstores.Searcher = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Add stores a point. An empty id gets a sequential one.
func (s *Store) Add(id string, vector []float32, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = fmt.Sprintf("fake-id-%d", len(s.points))
	}
	s.points = append(s.points, vectorstores.Hit{ID: id, Vector: vector, Payload: maps.Clone(payload)})
}

func (s *Store) Search(_ context.Context, vector []float32, limit int, options ...vectorstores.Option) ([]vectorstores.Hit, error) {
	if limit <= 0 {
		return nil, vectorstores.ErrInvalidLimit
	}
	opts := vectorstores.ParseOptions(options...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, opts)
	if s.Err != nil {
		return nil, s.Err
	}

	var hits []vectorstores.Hit
	for _, p := range s.points {
		if !matches(p.Payload, opts.Filters) {
			continue
		}
		score := float32(vectorstores.CosineSimilarity(vector, p.Vector))
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		h := vectorstores.Hit{ID: p.ID, Score: score, Payload: maps.Clone(p.Payload)}
		if opts.WithVectors {
			h.Vector = slices.Clone(p.Vector)
		}
		hits = append(hits, h)
	}
	slices.SortStableFunc(hits, func(a, b vectorstores.Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Searches returns the options of every Search call.
func (s *Store) Searches() []vectorstores.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.searches)
}

func matches(payload, filters map[string]any) bool {
	for k, want := range filters {
		if fmt.Sprint(payload[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
