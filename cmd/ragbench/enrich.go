package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/sevigo/ragbench/checkpoint"
	"github.com/sevigo/ragbench/config"
	"github.com/sevigo/ragbench/enrich"
	enrichlambda "github.com/sevigo/ragbench/enrich/lambda"
	"github.com/sevigo/ragbench/retry"
)

func newEnrichCmd(a *app) *cobra.Command {
	var (
		output   string
		mode     string
		workers  int
		retries  int
		function string
	)
	cmd := &cobra.Command{
		Use:   "enrich <input.csv>",
		Short: "Add a product_id column resolved once per unique (product, category) pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			e := &a.cfg.Enrich
			if flags.Changed("mode") {
				e.Mode = mode
			}
			if flags.Changed("workers") {
				e.Workers = workers
			}
			if flags.Changed("max-retries") {
				e.MaxRetries = retries
			}
			if flags.Changed("function") {
				e.FunctionName = function
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runEnrich(cmd.Context(), args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV (default <input>_with_product_ids.csv)")
	cmd.Flags().StringVar(&mode, "mode", "", "parallel or serial")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel pool size")
	cmd.Flags().IntVar(&retries, "max-retries", 0, "Attempts per key in serial mode")
	cmd.Flags().StringVar(&function, "function", "", "Lambda function name")
	return cmd
}

func (a *app) runEnrich(ctx context.Context, input, output string) error {
	stopMetrics := a.serveMetrics(ctx)
	defer stopMetrics()

	awsCfg, err := a.aws(ctx)
	if err != nil {
		return err
	}
	e := a.cfg.Enrich
	resolver := enrich.NewResolver(enrichlambda.NewFromConfig(awsCfg), e.FunctionName,
		enrich.WithDescription(e.Description),
		enrich.WithResolverLogger(a.logger),
		enrich.WithResolverMetrics(a.metrics))

	strategy, closeStore, err := a.enrichStrategy()
	if err != nil {
		return err
	}
	defer closeStore()

	runner := enrich.NewRunner(resolver, strategy,
		enrich.WithColumns(e.ProductColumn, e.CategoryColumn, e.OutputColumn),
		enrich.WithLogger(a.logger),
		enrich.WithMetrics(a.metrics))

	summary, err := runner.Run(ctx, input, output)
	if err != nil {
		return err
	}
	if len(summary.Unresolved) > 0 {
		a.logger.WarnContext(ctx, "Some products were not resolved", "count", len(summary.Unresolved))
	}
	return nil
}

func (a *app) enrichStrategy() (enrich.Strategy, func(), error) {
	e := a.cfg.Enrich
	if e.Mode == config.ModeParallel {
		return enrich.NewParallel(
			enrich.WithWorkers(e.Workers),
			enrich.WithParallelLogger(a.logger),
			enrich.WithParallelMetrics(a.metrics)), func() {}, nil
	}

	policy := retry.Constant(e.MaxRetries, e.RetryDelay)
	if e.ExponentialBackoff {
		policy = retry.Exponential(e.MaxRetries, e.RetryDelay, e.MaxRetryDelay)
	}
	opts := []enrich.SerialOption{
		enrich.WithPolicy(policy),
		enrich.WithCooldown(e.Cooldown),
		enrich.WithRateLimit(e.RateInterval),
		enrich.WithRetryUnresolved(e.RetryUnresolved),
		enrich.WithSerialLogger(a.logger),
		enrich.WithSerialMetrics(a.metrics),
	}

	closeStore := func() {}
	cp := a.cfg.Checkpoint
	switch cp.Backend {
	case config.CheckpointFile:
		opts = append(opts, enrich.WithCheckpoint(checkpoint.NewFileStore(cp.Path)))
	case config.CheckpointRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cp.Redis.Addr,
			Password: cp.Redis.Password,
			DB:       cp.Redis.DB,
		})
		closeStore = func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("Failed to close redis client", "error", err)
			}
		}
		opts = append(opts, enrich.WithCheckpoint(checkpoint.NewRedisStore(client, cp.Redis.Key, cp.Redis.TTL)))
	case config.CheckpointNone:
	default:
		return nil, nil, fmt.Errorf("%w: checkpoint backend %q", config.ErrInvalid, cp.Backend)
	}
	return enrich.NewSerial(opts...), closeStore, nil
}
