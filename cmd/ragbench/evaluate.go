package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sevigo/ragbench/compare"
	"github.com/sevigo/ragbench/compare/httpapi"
	"github.com/sevigo/ragbench/compare/local"
	"github.com/sevigo/ragbench/compare/replay"
	"github.com/sevigo/ragbench/config"
	"github.com/sevigo/ragbench/evaluation"
	"github.com/sevigo/ragbench/llms"
	"github.com/sevigo/ragbench/metrics"
	"github.com/sevigo/ragbench/retry"
	"github.com/sevigo/ragbench/vectorstores/qdrant"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		output  string
		limit   int
		report  string
		backend string
		replayF string
	)
	cmd := &cobra.Command{
		Use:   "evaluate <cases.csv>",
		Short: "Score the RAG pipeline against direct retrieval for every test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			ev := &a.cfg.Evaluate
			if flags.Changed("output") {
				ev.Output = output
			}
			if flags.Changed("limit") {
				ev.Limit = limit
			}
			if flags.Changed("report") {
				ev.Report = report
			}
			if flags.Changed("backend") {
				a.cfg.Compare.Backend = backend
			}
			if flags.Changed("replay") {
				a.cfg.Compare.Backend = config.CompareReplay
				a.cfg.Compare.ReplayFile = replayF
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runEvaluate(cmd.Context(), args[0])
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Results CSV")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of test cases, 0 for all")
	cmd.Flags().StringVar(&report, "report", "", "Write a Markdown and HTML report to this base path")
	cmd.Flags().StringVar(&backend, "backend", "", "Comparison backend: http, replay or local")
	cmd.Flags().StringVar(&replayF, "replay", "", "Serve every comparison from this recorded response file")
	return cmd
}

func (a *app) runEvaluate(ctx context.Context, input string) error {
	stopMetrics := a.serveMetrics(ctx)
	defer stopMetrics()

	comparer, closer, err := a.newComparer(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	judge, err := a.newModel(ctx, a.cfg.Judge)
	if err != nil {
		return fmt.Errorf("judge: %w", err)
	}
	ms := metrics.All(judge,
		llms.WithTemperature(a.cfg.Judge.Temperature),
		llms.WithMaxTokens(a.cfg.Judge.MaxTokens))

	ev := a.cfg.Evaluate
	evaluator := evaluation.New(comparer, ms,
		evaluation.WithLimit(ev.Limit),
		evaluation.WithLogger(a.logger),
		evaluation.WithTelemetry(a.metrics))

	summary, err := evaluator.Run(ctx, input, ev.Output)
	if err != nil {
		return err
	}
	if ev.Report != "" {
		if err := summary.WriteReport(ev.Report); err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "Report written", "markdown", ev.Report+".md", "html", ev.Report+".html")
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (a *app) newComparer(ctx context.Context) (compare.Comparer, io.Closer, error) {
	c := a.cfg.Compare
	var (
		comparer compare.Comparer
		closer   io.Closer = nopCloser{}
	)
	switch c.Backend {
	case config.CompareHTTP:
		client, err := httpapi.New(c.URL,
			httpapi.WithHeaders(c.Headers),
			httpapi.WithCookies(c.Cookies),
			httpapi.WithTimeout(c.Timeout),
			httpapi.WithPolicy(retry.Exponential(c.MaxAttempts, time.Second, 10*time.Second)),
			httpapi.WithLogger(a.logger),
			httpapi.WithMetrics(a.metrics))
		if err != nil {
			return nil, nil, err
		}
		comparer = client
	case config.CompareReplay:
		comparer = replay.New(c.ReplayFile, a.logger)
	case config.CompareLocal:
		store, err := qdrant.New(
			qdrant.WithURL(c.Local.QdrantURL),
			qdrant.WithCollectionName(c.Local.Collection),
			qdrant.WithAPIKey(c.Local.APIKey),
			qdrant.WithLogger(a.logger))
		if err != nil {
			return nil, nil, err
		}
		generator, err := a.newModel(ctx, a.cfg.Generator)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("generator: %w", err)
		}
		embedder, err := a.newEmbedder(ctx, a.cfg.Embedder)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("embedder: %w", err)
		}
		pipeline, err := local.New(generator, embedder, store,
			local.WithFilterKey(c.Local.FilterKey),
			local.WithLogger(a.logger),
			local.WithMetrics(a.metrics))
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		comparer, closer = pipeline, store
	default:
		return nil, nil, fmt.Errorf("%w: compare backend %q", config.ErrInvalid, c.Backend)
	}

	if c.RecordDir != "" && c.Backend != config.CompareReplay {
		comparer = replay.NewRecorder(comparer, c.RecordDir, a.logger)
	}
	return comparer, closer, nil
}
