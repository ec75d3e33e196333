package backtester

import (
	"fmt"

	"github.com/ridopark/JonBuhReplay/pkg/feed"
	"github.com/ridopark/JonBuhReplay/pkg/logging"
	"github.com/ridopark/JonBuhReplay/pkg/strategy"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RunSpec is one backtest to execute: a resolved configuration plus the
// strategy instance. Strategies are stateful, so a spec's strategy must not
// be shared across specs.
type RunSpec struct {
	Name     string
	Config   Config
	Strategy strategy.Strategy
}

// Runner builds and executes backtests over a shared read-only bar
// provider. Each run constructs its own feed, portfolio and engine, so
// parameter sweeps parallelize without shared mutable state.
type Runner struct {
	provider    feed.BarProvider
	parallelism int
	logger      zerolog.Logger
}

// NewRunner creates a runner. parallelism <= 0 means sequential.
func NewRunner(provider feed.BarProvider, parallelism int) *Runner {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Runner{
		provider:    provider,
		parallelism: parallelism,
		logger:      logging.GetLogger("runner"),
	}
}

// Run executes a single spec synchronously.
func (r *Runner) Run(spec RunSpec) (*Result, error) {
	if err := spec.Config.Validate(); err != nil {
		return nil, fmt.Errorf("run %s: %w", spec.Name, err)
	}

	warmup := spec.Config.WarmupBars
	if warmup < 0 {
		warmup = spec.Strategy.WarmupBars()
	}

	dataFeed := feed.NewHistoricalFeed(
		r.provider,
		spec.Config.Symbols,
		spec.Config.Timeframe,
		spec.Config.StartDate,
		spec.Config.EndDate,
		warmup,
		spec.Config.Completeness,
	)

	engine := NewEngine(spec.Config, spec.Strategy, dataFeed)
	result, err := engine.Run()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", spec.Name, err)
	}
	return result, nil
}

// RunAll executes the specs concurrently up to the configured parallelism
// and returns results in spec order. The first failure cancels nothing:
// runs are independent, but the error is reported after all finish.
func (r *Runner) RunAll(specs []RunSpec) ([]*Result, error) {
	results := make([]*Result, len(specs))

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			r.logger.Info().Str("run", spec.Name).Msg("Starting run")
			result, err := r.Run(spec)
			if err != nil {
				r.logger.Error().Err(err).Str("run", spec.Name).Msg("Run failed")
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
