// Package checkpoint persists the progress of a serial enrichment run so an
// interrupted run can resume without repeating remote calls.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrCorrupt = errors.New("checkpoint: stored state cannot be decoded")

// Entry is the stored outcome for one encoded key.
type Entry struct {
	ProductID string `json:"product_id,omitempty"`
	Resolved  bool   `json:"resolved"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
}

// State is the document written after every processed key.
type State struct {
	RunID string `json:"run_id"`
	// ProcessedCount is the number of input rows covered by recorded keys.
	ProcessedCount int              `json:"processed_count"`
	Resolved       map[string]Entry `json:"resolved"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewState starts an empty state with a fresh run id.
func NewState() *State {
	return &State{
		RunID:    uuid.NewString(),
		Resolved: make(map[string]Entry),
	}
}

// Record stores the outcome for key. rows is the number of input rows the
// key covers; it is added to ProcessedCount the first time the key is seen.
func (s *State) Record(key string, e Entry, rows int, now time.Time) {
	if s.Resolved == nil {
		s.Resolved = make(map[string]Entry)
	}
	if _, seen := s.Resolved[key]; !seen {
		s.ProcessedCount += rows
	}
	s.Resolved[key] = e
	s.UpdatedAt = now.UTC()
}

// Store loads and saves a single State.
type Store interface {
	// Load returns nil and no error when nothing has been saved yet.
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
	// Delete removes the saved state. Deleting a missing state is not an error.
	Delete(ctx context.Context) error
}
