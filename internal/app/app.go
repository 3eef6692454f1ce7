// Package app assembles the dataset, cache and dashboard service from configuration.
// The HTTP server and the command-line tool share it.
package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/dissent/internal/cache"
	"github.com/stwalsh4118/dissent/internal/config"
	"github.com/stwalsh4118/dissent/internal/dataset"
	"github.com/stwalsh4118/dissent/internal/logger"
	"github.com/stwalsh4118/dissent/internal/observability"
	"github.com/stwalsh4118/dissent/internal/pipeline"
	"github.com/stwalsh4118/dissent/internal/population"
	"github.com/stwalsh4118/dissent/internal/services"
)

// Dashboard bundles the dataset holder with the service that reads it.
type Dashboard struct {
	Holder  *dataset.Holder
	Service services.DashboardService
}

// LoadOptions builds dataset load options from cfg.
func LoadOptions(cfg *config.Config, clock clockwork.Clock, log *logger.Logger) dataset.LoadOptions {
	return dataset.LoadOptions{
		Path:         cfg.Dataset.Path,
		Encoding:     cfg.Dataset.Encoding,
		SnapshotPath: cfg.Dataset.SnapshotPath,
		Clock:        clock,
		Logger:       log,
	}
}

// Populations returns the configured population table: the override file when set,
// otherwise the embedded table.
func Populations(cfg *config.Config) (*population.Table, error) {
	if cfg.Dashboard.StatePopulationsFile == "" {
		return population.Default(), nil
	}
	table, err := population.Load(cfg.Dashboard.StatePopulationsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load state populations: %w", err)
	}
	return table, nil
}

// NewDashboard wires a dashboard service over a dataset holder that loads from cfg.
// The dataset is not loaded; call Service.Reload.
func NewDashboard(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, log *logger.Logger) (*Dashboard, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	table, err := Populations(cfg)
	if err != nil {
		return nil, err
	}

	opts := LoadOptions(cfg, clock, log)
	holder := dataset.NewHolder(func(ctx context.Context) (*dataset.Dataset, error) {
		return dataset.Load(ctx, opts)
	})

	var memoOpts []cache.Option
	if metrics != nil {
		memoOpts = append(memoOpts, cache.WithLookupHook(metrics.RecordCacheLookup))
	}
	memo := cache.NewMemo[pipeline.Result](cfg.Cache.TTL, cfg.Cache.CleanupInterval, memoOpts...)

	service := services.NewDashboardService(holder, memo, table, metrics, services.DashboardOptions{
		Clock:              clock,
		JitterRadius:       cfg.Dashboard.JitterRadius,
		NationalPopulation: cfg.Dashboard.USPopulation,
	}, log)

	return &Dashboard{Holder: holder, Service: service}, nil
}
