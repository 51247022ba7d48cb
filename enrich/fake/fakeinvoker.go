// Package fake provides a scripted enrich.Invoker for tests.
package fake

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sevigo/ragbench/enrich"
)

// Respond computes the response payload for one decoded request.
type Respond func(req enrich.Request, call int) ([]byte, error)

// Invoker records every request and answers through Respond.
type Invoker struct {
	mu       sync.Mutex
	respond  Respond
	requests []enrich.Request
	perKey   map[enrich.Key]int
}

var _ enrich.Invoker = (*Invoker)(nil)

func NewInvoker(respond Respond) *Invoker {
	return &Invoker{respond: respond, perKey: make(map[enrich.Key]int)}
}

func (f *Invoker) Invoke(ctx context.Context, _ string, payload []byte) ([]byte, error) {
	var req enrich.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	key := enrich.Key{Product: req.ProductName, Category: req.ProductCategory}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.perKey[key]++
	call := f.perKey[key]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.respond(req, call)
}

// Calls is the total number of invocations.
func (f *Invoker) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// CallsFor is the number of invocations for one key.
func (f *Invoker) CallsFor(key enrich.Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perKey[key]
}

// Requests returns a copy of every decoded request.
func (f *Invoker) Requests() []enrich.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enrich.Request(nil), f.requests...)
}

// Envelope builds a successful response whose body is a JSON string, the
// shape an API Gateway style function returns.
func Envelope(productID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"message": "Product created",
		"product": map[string]any{"_id": productID, "status": "pending"},
	})
	out, _ := json.Marshal(map[string]any{"statusCode": 200, "body": string(body)})
	return out
}

// ErrorEnvelope builds an application error response.
func ErrorEnvelope(status int, message string) []byte {
	body, _ := json.Marshal(map[string]any{"message": message})
	out, _ := json.Marshal(map[string]any{"statusCode": status, "body": string(body)})
	return out
}
