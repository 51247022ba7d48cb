package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/ragbench/telemetry"
)

// Invoker calls a named remote function with a JSON payload and returns the
// raw response payload.
type Invoker interface {
	Invoke(ctx context.Context, functionName string, payload []byte) ([]byte, error)
}

// KeyResolver turns one key into a product identifier with a single remote
// call.
type KeyResolver interface {
	Resolve(ctx context.Context, key Key) (string, error)
}

// ResolverFunc adapts a function to KeyResolver.
type ResolverFunc func(ctx context.Context, key Key) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, key Key) (string, error) {
	return f(ctx, key)
}

// Request is the payload sent to the product creation function.
type Request struct {
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	ProductCategory    string `json:"product_category"`
}

// DefaultDescription is sent when rows carry no description.
const DefaultDescription = "N/A"

// Resolver calls the product creation function through an Invoker.
type Resolver struct {
	invoker     Invoker
	function    string
	description string
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

var _ KeyResolver = (*Resolver)(nil)

type ResolverOption func(*Resolver)

func WithDescription(d string) ResolverOption {
	return func(r *Resolver) {
		r.description = d
	}
}

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithResolverMetrics(m *telemetry.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func NewResolver(invoker Invoker, functionName string, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		invoker:     invoker,
		function:    functionName,
		description: DefaultDescription,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "enrich_resolver", "function", functionName)
	return r
}

func (r *Resolver) Resolve(ctx context.Context, key Key) (string, error) {
	payload, err := json.Marshal(Request{
		ProductName:        key.Product,
		ProductDescription: r.description,
		ProductCategory:    key.Category,
	})
	if err != nil {
		return "", fmt.Errorf("enrich: encode request: %w", err)
	}

	start := time.Now()
	resp, err := r.invoker.Invoke(ctx, r.function, payload)
	if err == nil {
		var id string
		id, err = ParseResponse(resp)
		if err == nil {
			r.metrics.ObserveCall("enrich", nil, time.Since(start).Seconds())
			r.logger.DebugContext(ctx, "Key resolved", "key", key, "product_id", id)
			return id, nil
		}
	}

	r.metrics.ObserveCall("enrich", err, time.Since(start).Seconds())
	return "", fmt.Errorf("resolve %s: %w", key, err)
}
