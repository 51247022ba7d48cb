package enrich

import (
	"context"

	"github.com/sevigo/ragbench/checkpoint"
)

// Resolution is the outcome for one key. Resolved=false marks a key whose
// lookup failed; Error then holds the last failure.
type Resolution struct {
	ProductID string
	Resolved  bool
	Error     string
	Attempts  int
	// FromCheckpoint is set when the result was loaded instead of fetched.
	FromCheckpoint bool
}

func resolutionFrom(id string, attempts int, err error) Resolution {
	if err != nil {
		return Resolution{Error: err.Error(), Attempts: attempts}
	}
	return Resolution{ProductID: id, Resolved: true, Attempts: attempts}
}

func (r Resolution) entry() checkpoint.Entry {
	return checkpoint.Entry{
		ProductID: r.ProductID,
		Resolved:  r.Resolved,
		Error:     r.Error,
		Attempts:  r.Attempts,
	}
}

func resolutionFromEntry(e checkpoint.Entry) Resolution {
	return Resolution{
		ProductID:      e.ProductID,
		Resolved:       e.Resolved,
		Error:          e.Error,
		Attempts:       e.Attempts,
		FromCheckpoint: true,
	}
}

// Strategy decides how the unique keys of a run are resolved.
type Strategy interface {
	// Resolve returns a result for every key it processed. On context
	// cancellation it returns the results gathered so far with the context
	// error.
	Resolve(ctx context.Context, resolver KeyResolver, groups *Groups) (map[Key]Resolution, error)
	// Complete runs after the output file has been written.
	Complete(ctx context.Context, results map[Key]Resolution) error
}
