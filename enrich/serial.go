package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/sevigo/ragbench/checkpoint"
	"github.com/sevigo/ragbench/retry"
	"github.com/sevigo/ragbench/telemetry"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
	DefaultCooldown   = 30 * time.Second
)

// Serial resolves keys one at a time with retries, a cooldown after every
// exhausted key, and a checkpoint written after every key.
type Serial struct {
	policy          retry.Policy
	cooldown        time.Duration
	limiter         *rate.Limiter
	store           checkpoint.Store
	retryUnresolved bool
	sleep           func(ctx context.Context, d time.Duration) error
	now             func() time.Time
	logger          *slog.Logger
	metrics         *telemetry.Metrics
}

var _ Strategy = (*Serial)(nil)

type SerialOption func(*Serial)

// WithPolicy replaces the default 3 attempts with a fixed 5s delay.
func WithPolicy(p retry.Policy) SerialOption {
	return func(s *Serial) {
		s.policy = p
	}
}

// WithCooldown sets the pause after a key exhausts its attempts.
func WithCooldown(d time.Duration) SerialOption {
	return func(s *Serial) {
		s.cooldown = d
	}
}

// WithRateLimit paces calls to at most one per interval. Zero disables pacing.
func WithRateLimit(interval time.Duration) SerialOption {
	return func(s *Serial) {
		if interval > 0 {
			s.limiter = rate.NewLimiter(rate.Every(interval), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithCheckpoint enables resumable runs.
func WithCheckpoint(store checkpoint.Store) SerialOption {
	return func(s *Serial) {
		s.store = store
	}
}

// WithRetryUnresolved re-attempts keys the checkpoint marks as failed.
func WithRetryUnresolved(v bool) SerialOption {
	return func(s *Serial) {
		s.retryUnresolved = v
	}
}

// WithSleep replaces the wait used for retries and cooldowns.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) SerialOption {
	return func(s *Serial) {
		s.sleep = fn
	}
}

func WithClock(now func() time.Time) SerialOption {
	return func(s *Serial) {
		s.now = now
	}
}

func WithSerialLogger(l *slog.Logger) SerialOption {
	return func(s *Serial) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithSerialMetrics(m *telemetry.Metrics) SerialOption {
	return func(s *Serial) {
		s.metrics = m
	}
}

func NewSerial(opts ...SerialOption) *Serial {
	s := &Serial{
		policy:   retry.Constant(DefaultMaxRetries, DefaultRetryDelay),
		cooldown: DefaultCooldown,
		sleep:    retry.Sleep,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy = s.policy.WithSleep(s.sleep)
	s.logger = s.logger.With("component", "enrich_serial")
	return s
}

func (s *Serial) Resolve(ctx context.Context, resolver KeyResolver, groups *Groups) (map[Key]Resolution, error) {
	keys := groups.Keys
	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[Key]Resolution, len(keys))
	for i, key := range keys {
		enc := key.Encode()
		if e, ok := state.Resolved[enc]; ok && (e.Resolved || !s.retryUnresolved) {
			results[key] = resolutionFromEntry(e)
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return results, err
			}
		}

		policy := s.policy.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.metrics.IncRetry("enrich")
			s.logger.WarnContext(ctx, "Lookup attempt failed, retrying",
				"key", key, "attempt", attempt, "max_attempts", s.policy.MaxAttempts,
				"delay", delay, "error", err)
		})
		id, attempts, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (string, error) {
			return resolver.Resolve(ctx, key)
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The key stays out of the checkpoint so a resumed run retries it.
			return results, ctxErr
		}

		res := resolutionFrom(id, attempts, err)
		results[key] = res
		s.metrics.IncKey(res.Resolved)

		state.Record(enc, res.entry(), len(groups.Rows[key]), s.now())
		s.saveState(ctx, state)

		if res.Resolved {
			s.logger.InfoContext(ctx, "Key resolved", "key", key, "product_id", id,
				"attempts", attempts, "progress", fmt.Sprintf("%d/%d", i+1, len(keys)))
			continue
		}

		s.logger.ErrorContext(ctx, "Key unresolved after retries", "key", key,
			"attempts", attempts, "error", err)
		if s.cooldown > 0 && i < len(keys)-1 {
			s.logger.InfoContext(ctx, "Cooling down", "duration", s.cooldown)
			if err := s.sleep(ctx, s.cooldown); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

// Complete deletes the checkpoint once every key has an identifier. A run
// with unresolved keys keeps it so a later run can skip the finished work.
func (s *Serial) Complete(ctx context.Context, results map[Key]Resolution) error {
	if s.store == nil {
		return nil
	}
	for k, r := range results {
		if !r.Resolved {
			s.logger.InfoContext(ctx, "Keeping checkpoint, unresolved keys remain", "example", k)
			return nil
		}
	}
	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("enrich: delete checkpoint: %w", err)
	}
	s.logger.InfoContext(ctx, "Checkpoint deleted after clean completion")
	return nil
}

func (s *Serial) loadState(ctx context.Context) (*checkpoint.State, error) {
	if s.store == nil {
		return checkpoint.NewState(), nil
	}
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("enrich: load checkpoint: %w", err)
	}
	if state == nil {
		state = checkpoint.NewState()
		s.logger.InfoContext(ctx, "Starting fresh run", "run_id", state.RunID)
		return state, nil
	}
	for enc := range state.Resolved {
		if _, err := DecodeKey(enc); err != nil {
			return nil, fmt.Errorf("enrich: load checkpoint: %w: %w", checkpoint.ErrCorrupt, err)
		}
	}
	s.logger.InfoContext(ctx, "Resuming from checkpoint",
		"run_id", state.RunID, "keys", len(state.Resolved), "rows", state.ProcessedCount, "updated_at", state.UpdatedAt)
	return state, nil
}

func (s *Serial) saveState(ctx context.Context, state *checkpoint.State) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, state); err != nil {
		s.logger.ErrorContext(ctx, "Checkpoint save failed", "error", err)
		return
	}
	s.metrics.IncCheckpointSave()
}

// isContextErr reports whether err came from cancellation or a deadline.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
