// Package local answers comparison queries in process: a direct vector
// search variant and a multi-query pipeline variant that rewrites the
// question, expands it into sub-queries and hypothetical answers, and fuses
// the diversified results.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/ragbench/compare"
	"github.com/sevigo/ragbench/embeddings"
	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/prompts"
	"github.com/sevigo/ragbench/telemetry"
	"github.com/sevigo/ragbench/vectorstores"
)

const (
	DefaultTopK       = 30
	DefaultMMRSelect  = 20
	DefaultMMRLambda  = 0.7
	DefaultFusedTop   = 20
	DefaultRRFK       = 60
	DefaultDirectTopK = 20
	DefaultSubQueries = 3
	DefaultFilterKey  = "name"
)

var (
	ErrMissingDependency = errors.New("local: model, embedder and searcher are required")
	ErrInvalidQuery      = errors.New("local: question and product are required")
)

// Pipeline implements compare.Comparer against a vector store.
type Pipeline struct {
	llm      llms.Model
	embedder embeddings.Embedder
	store    vectorstores.Searcher

	filterKey  string
	topK       int
	mmrSelect  int
	lambda     float64
	fusedTop   int
	rrfK       int
	directTopK int
	subQueries int

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

var _ compare.Comparer = (*Pipeline)(nil)

type Option func(*Pipeline)

// WithFilterKey sets the payload field matched against the product name.
func WithFilterKey(key string) Option {
	return func(p *Pipeline) {
		if key != "" {
			p.filterKey = key
		}
	}
}

// WithTopK sets how many hits each pipeline search and the direct search
// fetch.
func WithTopK(pipeline, direct int) Option {
	return func(p *Pipeline) {
		if pipeline > 0 {
			p.topK = pipeline
		}
		if direct > 0 {
			p.directTopK = direct
		}
	}
}

func WithMMR(selectK int, lambda float64) Option {
	return func(p *Pipeline) {
		if selectK > 0 {
			p.mmrSelect = selectK
		}
		if lambda >= 0 && lambda <= 1 {
			p.lambda = lambda
		}
	}
}

func WithFusion(rrfK, top int) Option {
	return func(p *Pipeline) {
		if rrfK > 0 {
			p.rrfK = rrfK
		}
		if top > 0 {
			p.fusedTop = top
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func New(llm llms.Model, embedder embeddings.Embedder, store vectorstores.Searcher, opts ...Option) (*Pipeline, error) {
	if llm == nil || embedder == nil || store == nil {
		return nil, ErrMissingDependency
	}
	p := &Pipeline{
		llm:        llm,
		embedder:   embedder,
		store:      store,
		filterKey:  DefaultFilterKey,
		topK:       DefaultTopK,
		mmrSelect:  DefaultMMRSelect,
		lambda:     DefaultMMRLambda,
		fusedTop:   DefaultFusedTop,
		rrfK:       DefaultRRFK,
		directTopK: DefaultDirectTopK,
		subQueries: DefaultSubQueries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "compare_local")
	return p, nil
}

func (p *Pipeline) Compare(ctx context.Context, q compare.Query) (*compare.Comparison, error) {
	product := q.Product()
	if strings.TrimSpace(q.Question) == "" || product == "" {
		return nil, ErrInvalidQuery
	}

	with, meta, err := p.withPipeline(ctx, q.Question, product)
	if err != nil {
		return nil, fmt.Errorf("local: pipeline variant: %w", err)
	}
	without, err := p.direct(ctx, q.Question, product)
	if err != nil {
		return nil, fmt.Errorf("local: direct variant: %w", err)
	}
	return &compare.Comparison{WithPipeline: with, WithoutPipeline: without, Meta: meta}, nil
}

func (p *Pipeline) withPipeline(ctx context.Context, question, product string) (compare.Answer, *compare.Meta, error) {
	standalone, err := p.generate(ctx, prompts.StandaloneQueryPrompt.Format(map[string]string{
		"query":   question,
		"product": product,
	}))
	if err != nil {
		return compare.Answer{}, nil, fmt.Errorf("standalone query: %w", err)
	}

	raw, err := p.generate(ctx, prompts.SubQueriesPrompt.Format(map[string]string{
		"query": standalone,
		"count": strconv.Itoa(p.subQueries),
	}))
	if err != nil {
		return compare.Answer{}, nil, fmt.Errorf("sub-queries: %w", err)
	}
	subs := ParseSubQueries(raw, p.subQueries, standalone)

	hyps := make([]string, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range subs {
		g.Go(func() error {
			h, err := p.generate(gctx, prompts.HypotheticalAnswerPrompt.Format(map[string]string{"query": sq}))
			if err != nil {
				return fmt.Errorf("hypothetical answer %d: %w", i+1, err)
			}
			hyps[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return compare.Answer{}, nil, err
	}
	meta := &compare.Meta{StandaloneQuery: standalone, Subqueries: subs, HypotheticalAnswers: hyps}
	p.logger.DebugContext(ctx, "Expanded query", "standalone", standalone, "subqueries", subs)

	hypVecs, err := p.embedder.EmbedDocuments(ctx, hyps)
	if err != nil {
		return compare.Answer{}, nil, fmt.Errorf("embed hypothetical answers: %w", err)
	}

	lists := make([][]Candidate, 0, len(hyps))
	for i, vec := range hypVecs {
		hits, err := p.store.Search(ctx, vec, p.topK,
			vectorstores.WithFilter(p.filterKey, product), vectorstores.WithVectors())
		if err != nil {
			return compare.Answer{}, nil, fmt.Errorf("search for sub-query %d: %w", i+1, err)
		}
		candidates, err := p.candidates(ctx, hits)
		if err != nil {
			return compare.Answer{}, nil, err
		}
		lists = append(lists, MMR(candidates, vec, p.mmrSelect, p.lambda))
	}

	fused := RRF(lists, p.rrfK)
	if len(fused) > p.fusedTop {
		fused = fused[:p.fusedTop]
	}
	hits := make([]vectorstores.Hit, len(fused))
	for i, c := range fused {
		hits[i] = c.Hit
	}
	p.logger.DebugContext(ctx, "Fused pipeline results", "lists", len(lists), "chunks", len(hits))

	answer, err := p.answer(ctx, question, product, hits)
	return answer, meta, err
}

func (p *Pipeline) direct(ctx context.Context, question, product string) (compare.Answer, error) {
	vec, err := p.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return compare.Answer{}, fmt.Errorf("embed question: %w", err)
	}
	hits, err := p.store.Search(ctx, vec, p.directTopK, vectorstores.WithFilter(p.filterKey, product))
	if err != nil {
		return compare.Answer{}, fmt.Errorf("search: %w", err)
	}
	return p.answer(ctx, question, product, hits)
}

// candidates attaches an embedding to every hit, embedding the post text
// when the store returned no vector.
func (p *Pipeline) candidates(ctx context.Context, hits []vectorstores.Hit) ([]Candidate, error) {
	out := make([]Candidate, len(hits))
	var missing []int
	var texts []string
	for i, h := range hits {
		out[i] = Candidate{Hit: h, Embedding: h.Vector}
		if len(h.Vector) == 0 {
			if text := chunkText(h); text != "" {
				missing = append(missing, i)
				texts = append(texts, text)
			}
		}
	}
	if len(texts) == 0 {
		return out, nil
	}
	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	for j, i := range missing {
		out[i].Embedding = vecs[j]
	}
	return out, nil
}

func (p *Pipeline) answer(ctx context.Context, question, product string, hits []vectorstores.Hit) (compare.Answer, error) {
	block, contexts := formatContext(hits)
	resp, err := p.generate(ctx, prompts.ProductAnswerPrompt.Format(map[string]string{
		"product":     product,
		"description": "",
		"context":     block,
		"query":       question,
	}))
	if err != nil {
		return compare.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	return compare.Answer{Response: resp, Contexts: contexts}, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt)
	p.metrics.ObserveCall("generate", err, time.Since(start).Seconds())
	return strings.TrimSpace(out), err
}

var listPrefix = regexp.MustCompile(`^\d+[).\-\s]*`)

// ParseSubQueries reads a numbered list, one query per line, keeping at
// most n. Missing entries are filled with follow-ups of fallback.
func ParseSubQueries(raw string, n int, fallback string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(listPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			out = append(out, line)
		}
		if len(out) == n {
			break
		}
	}
	for len(out) < n {
		out = append(out, fmt.Sprintf("%s (follow-up %d)", fallback, len(out)+1))
	}
	return out
}
