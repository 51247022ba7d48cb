package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/checkpoint"
	"github.com/sevigo/ragbench/enrich"
	"github.com/sevigo/ragbench/enrich/fake"
	rtestutil "github.com/sevigo/ragbench/internal/testutil"
	"github.com/sevigo/ragbench/retry"
	"github.com/sevigo/ragbench/table"
	"github.com/sevigo/ragbench/telemetry"
)

func writeInput(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	content := "product,product category,question\n"
	for _, r := range rows {
		content += r + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func idFor(req enrich.Request) string {
	return "id-" + req.ProductName + "-" + req.ProductCategory
}

func succeed(req enrich.Request, _ int) ([]byte, error) {
	return fake.Envelope(idFor(req)), nil
}

type sleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleeps) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func TestRunner_ParallelDeduplicates(t *testing.T) {
	input := writeInput(t, "A,X,q1", "A,X,q2", "B,Y,q3")
	invoker := fake.NewInvoker(succeed)
	logger, _ := rtestutil.NewTestLogger(t)

	runner := enrich.NewRunner(
		enrich.NewResolver(invoker, "create-product"),
		enrich.NewParallel(enrich.WithParallelLogger(logger)),
		enrich.WithLogger(logger),
	)
	summary, err := runner.Run(context.Background(), input, "")
	require.NoError(t, err)

	assert.Equal(t, 2, invoker.Calls(), "one call per unique key")
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 2, summary.UniqueKeys)
	assert.Equal(t, 2, summary.Resolved)
	assert.Equal(t, 2, summary.Calls)
	assert.Empty(t, summary.Unresolved)
	assert.Equal(t, table.DerivedPath(input, enrich.OutputSuffix), summary.OutputPath)

	out, err := table.Read(summary.OutputPath)
	require.NoError(t, err)
	require.Len(t, out.Rows, 3)
	assert.Equal(t, []string{"product", "product category", "question", "product_id"}, out.Header)
	assert.Equal(t, "id-A-X", out.Rows[0]["product_id"])
	assert.Equal(t, out.Rows[0]["product_id"], out.Rows[1]["product_id"])
	assert.Equal(t, "id-B-Y", out.Rows[2]["product_id"])

	for _, req := range invoker.Requests() {
		assert.Equal(t, enrich.DefaultDescription, req.ProductDescription)
	}
}

func TestRunner_ParallelManyKeys(t *testing.T) {
	var rows []string
	for i := range 250 {
		rows = append(rows, fmt.Sprintf("P%d,C%d,q", i%120, i%2))
	}
	input := writeInput(t, rows...)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	invoker := fake.NewInvoker(func(req enrich.Request, call int) ([]byte, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return succeed(req, call)
	})

	summary, err := enrich.NewRunner(
		enrich.NewResolver(invoker, "fn"),
		enrich.NewParallel(enrich.WithWorkers(8)),
	).Run(context.Background(), input, "")
	require.NoError(t, err)

	assert.Equal(t, summary.UniqueKeys, invoker.Calls())
	assert.Equal(t, 250, summary.Rows)
	assert.LessOrEqual(t, peak, 8)
}

func TestRunner_ParallelFailuresAreNotRetried(t *testing.T) {
	input := writeInput(t, "A,X,q", "B,Y,q", "B,Y,q")
	invoker := fake.NewInvoker(func(req enrich.Request, call int) ([]byte, error) {
		if req.ProductName == "B" {
			return fake.ErrorEnvelope(500, "boom"), nil
		}
		return succeed(req, call)
	})
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	summary, err := enrich.NewRunner(
		enrich.NewResolver(invoker, "fn", enrich.WithResolverMetrics(metrics)),
		enrich.NewParallel(enrich.WithParallelMetrics(metrics)),
	).Run(context.Background(), input, "")
	require.NoError(t, err)

	assert.Equal(t, 1, invoker.CallsFor(enrich.Key{Product: "B", Category: "Y"}))
	assert.Equal(t, []enrich.Key{{Product: "B", Category: "Y"}}, summary.Unresolved)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.KeysResolved.WithLabelValues("unresolved")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RemoteCalls.WithLabelValues("enrich", "error")), 0)

	out, err := table.Read(summary.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "", out.Rows[1]["product_id"])
	assert.Equal(t, "", out.Rows[2]["product_id"])
}

func TestSerial_RetryCeilingAndCooldown(t *testing.T) {
	input := writeInput(t, "A,X,q1", "A,X,q2", "A,X,q3", "B,Y,q")
	invoker := fake.NewInvoker(func(req enrich.Request, call int) ([]byte, error) {
		if req.ProductName == "A" {
			return nil, errors.New("connection reset")
		}
		return succeed(req, call)
	})
	sl := &sleeps{}
	store := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "ckpt.json"))

	serial := enrich.NewSerial(
		enrich.WithPolicy(retry.Constant(4, 5*time.Second)),
		enrich.WithCooldown(30*time.Second),
		enrich.WithCheckpoint(store),
		enrich.WithSleep(sl.Sleep),
	)
	summary, err := enrich.NewRunner(enrich.NewResolver(invoker, "fn"), serial).Run(context.Background(), input, "")
	require.NoError(t, err)

	assert.Equal(t, 4, invoker.CallsFor(enrich.Key{Product: "A", Category: "X"}), "exactly max attempts")
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second, 30 * time.Second}, sl.delays)
	assert.Equal(t, 1, summary.Resolved)
	require.Len(t, summary.Unresolved, 1)

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state, "checkpoint kept while keys are unresolved")
	assert.Equal(t, 4, state.ProcessedCount, "rows covered, not keys")
	assert.Len(t, state.Resolved, 2)
	entry := state.Resolved[enrich.Key{Product: "A", Category: "X"}.Encode()]
	assert.False(t, entry.Resolved)
	assert.Equal(t, 4, entry.Attempts)
	assert.Contains(t, entry.Error, "connection reset")
}

func TestSerial_ResumesAfterInterruption(t *testing.T) {
	input := writeInput(t, "A,X,q", "B,Y,q", "A,X,q", "C,Z,q", "D,W,q")
	store := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "ckpt.json"))
	sl := &sleeps{}

	// First run: cancel while the third unique key is in flight.
	ctx, cancel := context.WithCancel(context.Background())
	first := fake.NewInvoker(succeed)
	interrupting := enrich.ResolverFunc(func(ctx context.Context, key enrich.Key) (string, error) {
		if key.Product == "C" {
			cancel()
			return "", ctx.Err()
		}
		return enrich.NewResolver(first, "fn").Resolve(ctx, key)
	})
	newSerial := func() *enrich.Serial {
		return enrich.NewSerial(enrich.WithCheckpoint(store), enrich.WithSleep(sl.Sleep), enrich.WithCooldown(0))
	}

	_, err := enrich.NewRunner(interrupting, newSerial()).Run(ctx, input, "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, first.Calls())

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 3, state.ProcessedCount, "A covers two rows, B one")
	assert.Len(t, state.Resolved, 2)

	// Second run: only the remaining keys are called.
	second := fake.NewInvoker(func(req enrich.Request, call int) ([]byte, error) {
		return fake.Envelope("second-" + req.ProductName), nil
	})
	summary, err := enrich.NewRunner(enrich.NewResolver(second, "fn"), newSerial()).Run(context.Background(), input, "")
	require.NoError(t, err)

	assert.Equal(t, 2, second.Calls())
	assert.Zero(t, second.CallsFor(enrich.Key{Product: "A", Category: "X"}))
	assert.Equal(t, 2, summary.FromCheckpoint)
	assert.Equal(t, 2, summary.Calls)

	out, err := table.Read(summary.OutputPath)
	require.NoError(t, err)
	ids, err := out.Column("product_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id-A-X", "id-B-Y", "id-A-X", "second-C", "second-D"}, ids)

	state, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state, "checkpoint removed after clean completion")
}

func TestSerial_RetryUnresolvedFromCheckpoint(t *testing.T) {
	input := writeInput(t, "A,X,q")
	store := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "ckpt.json"))
	state := checkpoint.NewState()
	state.Record(enrich.Key{Product: "A", Category: "X"}.Encode(), checkpoint.Entry{Error: "old", Attempts: 3}, 1, time.Now())
	require.NoError(t, store.Save(context.Background(), state))

	t.Run("skipped by default", func(t *testing.T) {
		invoker := fake.NewInvoker(succeed)
		summary, err := enrich.NewRunner(enrich.NewResolver(invoker, "fn"),
			enrich.NewSerial(enrich.WithCheckpoint(store))).Run(context.Background(), input, "")
		require.NoError(t, err)
		assert.Zero(t, invoker.Calls())
		assert.Len(t, summary.Unresolved, 1)
	})

	t.Run("retried when asked", func(t *testing.T) {
		invoker := fake.NewInvoker(succeed)
		summary, err := enrich.NewRunner(enrich.NewResolver(invoker, "fn"),
			enrich.NewSerial(enrich.WithCheckpoint(store), enrich.WithRetryUnresolved(true))).Run(context.Background(), input, "")
		require.NoError(t, err)
		assert.Equal(t, 1, invoker.Calls())
		assert.Empty(t, summary.Unresolved)
	})
}

func TestSerial_RateLimit(t *testing.T) {
	input := writeInput(t, "A,X,q", "B,Y,q", "C,Z,q")
	invoker := fake.NewInvoker(succeed)

	start := time.Now()
	_, err := enrich.NewRunner(enrich.NewResolver(invoker, "fn"),
		enrich.NewSerial(enrich.WithRateLimit(20*time.Millisecond))).Run(context.Background(), input, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
	assert.Equal(t, 3, invoker.Calls())
}

func TestRunner_InputErrors(t *testing.T) {
	runner := enrich.NewRunner(enrich.NewResolver(fake.NewInvoker(succeed), "fn"), enrich.NewParallel())

	_, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "")
	require.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,category\nA,X\n"), 0o644))
	_, err = runner.Run(context.Background(), path, "")
	require.ErrorIs(t, err, enrich.ErrMissingColumn)
}

func TestRunner_OutputColumnAlreadyPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte("product,product category,product_id\nA,X,\nB,Y,\n"), 0o644))
	invoker := fake.NewInvoker(succeed)

	_, err := enrich.NewRunner(enrich.NewResolver(invoker, "fn"), enrich.NewParallel()).Run(context.Background(), path, "")
	require.ErrorIs(t, err, table.ErrColumnExists)
	assert.Zero(t, invoker.Calls(), "no lookups before the input is rejected")
	assert.NoFileExists(t, table.DerivedPath(path, enrich.OutputSuffix))
}

func TestSerial_CorruptCheckpointKey(t *testing.T) {
	input := writeInput(t, "A,X,q")
	store := checkpoint.NewFileStore(filepath.Join(t.TempDir(), "ckpt.json"))
	state := checkpoint.NewState()
	state.Record("A|X", checkpoint.Entry{ProductID: "id", Resolved: true, Attempts: 1}, 1, time.Now())
	require.NoError(t, store.Save(context.Background(), state))

	invoker := fake.NewInvoker(succeed)
	_, err := enrich.NewRunner(enrich.NewResolver(invoker, "fn"),
		enrich.NewSerial(enrich.WithCheckpoint(store))).Run(context.Background(), input, "")
	require.ErrorIs(t, err, checkpoint.ErrCorrupt)
	require.ErrorIs(t, err, enrich.ErrInvalidKey)
	assert.Zero(t, invoker.Calls())
}

func TestRunner_CustomColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,cat\nA,X\n"), 0o644))
	dst := filepath.Join(t.TempDir(), "out.csv")

	summary, err := enrich.NewRunner(
		enrich.NewResolver(fake.NewInvoker(succeed), "fn"),
		enrich.NewParallel(),
		enrich.WithColumns("name", "cat", "pid"),
	).Run(context.Background(), path, dst)
	require.NoError(t, err)
	assert.Equal(t, dst, summary.OutputPath)

	out, err := table.Read(dst)
	require.NoError(t, err)
	assert.Equal(t, "id-A-X", out.Rows[0]["pid"])
}
