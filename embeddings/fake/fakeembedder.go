package fake

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// Embedder produces deterministic bag-of-words vectors: texts that share
// words end up close under cosine similarity.
type Embedder struct {
	Dimension int
	Err       error

	mu    sync.Mutex
	calls int
	texts []string
}

func NewEmbedder(dimension int) *Embedder {
	return &Embedder{Dimension: dimension}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts = append(e.texts, text)
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return Vector(text, e.Dimension), nil
}

func (e *Embedder) GetDimension(context.Context) (int, error) {
	return e.Dimension, nil
}

// Calls returns how many texts were embedded.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Texts returns every embedded text in call order.
func (e *Embedder) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

// Vector hashes every lower-cased word of text into one of dim buckets and
// normalises the result.
func Vector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 16
	}
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
