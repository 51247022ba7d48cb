package local

import (
	"encoding/json"
	"math"
	"slices"
	"strings"

	"github.com/sevigo/ragbench/vectorstores"
)

// Candidate is a search hit with the embedding used for diversity ranking.
type Candidate struct {
	Hit       vectorstores.Hit
	Embedding []float32
}

// Key identifies a candidate across result lists: the point id, then the
// payload's id, url, permalink or title, then a prefix of its text.
func (c Candidate) Key() string {
	if c.Hit.ID != "" {
		return c.Hit.ID
	}
	for _, field := range []string{"id", "url", "permalink", "title"} {
		if v := c.Hit.String(field); v != "" {
			return v
		}
	}
	text, _ := json.Marshal(strings.TrimSpace(c.Hit.String("title") + "\n" + c.Hit.String("selftext")))
	if len(text) > 64 {
		text = text[:64]
	}
	return string(text)
}

// MMR selects up to k candidates by maximal marginal relevance. The most
// query-similar candidate is taken first; every later pick maximises
// lambda*sim(query) - (1-lambda)*max sim(selected).
func MMR(candidates []Candidate, query []float32, k int, lambda float64) []Candidate {
	k = min(k, len(candidates))
	if k <= 0 {
		return nil
	}

	simToQuery := make([]float64, len(candidates))
	for i, c := range candidates {
		simToQuery[i] = vectorstores.CosineSimilarity(c.Embedding, query)
	}
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case simToQuery[a] > simToQuery[b]:
			return -1
		case simToQuery[a] < simToQuery[b]:
			return 1
		default:
			return 0
		}
	})

	selected := []Candidate{candidates[order[0]]}
	taken := map[int]bool{order[0]: true}
	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for _, i := range order {
			if taken[i] {
				continue
			}
			maxSim := math.Inf(-1)
			for _, s := range selected {
				maxSim = max(maxSim, vectorstores.CosineSimilarity(candidates[i].Embedding, s.Embedding))
			}
			score := lambda*simToQuery[i] - (1-lambda)*maxSim
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		taken[best] = true
		selected = append(selected, candidates[best])
	}
	return selected
}

// RRF fuses ranked lists with reciprocal rank fusion: each appearance at
// rank r adds 1/(k+r). Ties keep first-seen order.
func RRF(lists [][]Candidate, k int) []Candidate {
	type entry struct {
		c     Candidate
		score float64
	}
	var fused []*entry
	byKey := make(map[string]*entry)
	for _, list := range lists {
		for i, c := range list {
			key := c.Key()
			e, ok := byKey[key]
			if !ok {
				e = &entry{c: c}
				byKey[key] = e
				fused = append(fused, e)
			}
			e.score += 1.0 / float64(k+i+1)
		}
	}
	slices.SortStableFunc(fused, func(a, b *entry) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	out := make([]Candidate, len(fused))
	for i, e := range fused {
		out[i] = e.c
	}
	return out
}
