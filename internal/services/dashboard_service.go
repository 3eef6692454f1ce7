package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/dissent/internal/cache"
	"github.com/stwalsh4118/dissent/internal/dataset"
	"github.com/stwalsh4118/dissent/internal/logger"
	"github.com/stwalsh4118/dissent/internal/models"
	"github.com/stwalsh4118/dissent/internal/observability"
	"github.com/stwalsh4118/dissent/internal/pipeline"
	"github.com/stwalsh4118/dissent/internal/population"
)

// Paging limits for the event table.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// Service-level errors
var (
	ErrDatasetUnavailable = errors.New("dataset unavailable")
	ErrLocationNotFound   = errors.New("no details available for this location")
	ErrInvalidDateRange   = errors.New("start date must not be after end date")
	ErrInvalidFilter      = errors.New("invalid filter")
)

// ExportScope selects which rows an export contains.
type ExportScope string

const (
	ExportFiltered ExportScope = "filtered"
	ExportFull     ExportScope = "full"
)

// DatasetSource is the read side of dataset.Holder.
type DatasetSource interface {
	Current() (*dataset.Dataset, uint64, error)
	Reload(ctx context.Context) (*dataset.Dataset, uint64, error)
}

// Page is an offset/limit window over the filtered rows.
type Page struct {
	Limit  int
	Offset int
}

// EventPage is one page of filtered events.
type EventPage struct {
	Events []models.Event `json:"events"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// FilterOptions lists the values the filter controls can offer.
type FilterOptions struct {
	States    []string `json:"states"`
	Cities    []string `json:"cities"`
	Outcomes  []string `json:"outcomes"`
	SizeModes []string `json:"sizeModes"`
	StartDate string   `json:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty"`
}

// DatasetInfo describes the dataset currently being served.
type DatasetInfo struct {
	LoadedAt time.Time `json:"loadedAt"`
	Origin   string    `json:"origin"`
	Rows     int       `json:"rows"`
	Version  uint64    `json:"version"`
}

// DashboardOptions carries the tunables for DashboardService.
type DashboardOptions struct {
	Clock              clockwork.Clock
	JitterRadius       float64
	NationalPopulation float64
}

// DashboardService defines the dashboard read operations and the dataset refresh.
type DashboardService interface {
	// Dashboard returns the map, series and KPI bundle for params.
	// Returns ErrInvalidDateRange or ErrInvalidFilter for bad parameters and
	// ErrDatasetUnavailable before the dataset has loaded.
	Dashboard(ctx context.Context, params pipeline.Params) (*pipeline.Result, error)

	// Events returns one page of the filtered rows in dataset order.
	Events(ctx context.Context, params pipeline.Params, page Page) (*EventPage, error)

	// LocationEvents returns the filtered rows behind the marker with the given label.
	// Returns ErrLocationNotFound when no filtered row carries that label.
	LocationEvents(ctx context.Context, params pipeline.Params, label string) ([]models.Event, error)

	// FilterOptions returns the selectable states, the cities within states (none when
	// states is empty), the dataset's date bounds, and the outcome flags.
	FilterOptions(ctx context.Context, states []string) (*FilterOptions, error)

	// Export writes the selected rows to w as CSV with a header row and returns the number
	// of data rows written.
	Export(ctx context.Context, w io.Writer, params pipeline.Params, scope ExportScope) (int, error)

	// Info describes the current dataset.
	Info(ctx context.Context) (*DatasetInfo, error)

	// Reload re-reads the dataset. On failure the previous dataset keeps serving.
	Reload(ctx context.Context) (*DatasetInfo, error)
}

// dashboardService is the concrete implementation of DashboardService.
type dashboardService struct {
	source      DatasetSource
	memo        *cache.Memo[pipeline.Result]
	populations *population.Table
	metrics     *observability.Metrics
	log         *logger.Logger
	clock       clockwork.Clock
	opts        DashboardOptions
}

// NewDashboardService creates a new instance of DashboardService.
func NewDashboardService(
	source DatasetSource,
	memo *cache.Memo[pipeline.Result],
	populations *population.Table,
	metrics *observability.Metrics,
	opts DashboardOptions,
	log *logger.Logger,
) DashboardService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.JitterRadius <= 0 {
		opts.JitterRadius = pipeline.DefaultJitterRadius
	}
	if populations == nil {
		populations = population.Default()
	}
	return &dashboardService{
		source:      source,
		memo:        memo,
		populations: populations,
		metrics:     metrics,
		log:         log.With(map[string]interface{}{"component": "dashboard_service"}),
		clock:       opts.Clock,
		opts:        opts,
	}
}

// Dashboard computes or reuses the result bundle for params.
func (s *dashboardService) Dashboard(ctx context.Context, params pipeline.Params) (*pipeline.Result, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	ds, version, err := s.current()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("v%d:%s", version, params.Key())
	result, err := s.memo.GetOrCompute(key, func() (pipeline.Result, error) {
		return s.compute(ds, params), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute dashboard: %w", err)
	}
	return &result, nil
}

func (s *dashboardService) compute(ds *dataset.Dataset, params pipeline.Params) pipeline.Result {
	start := s.clock.Now()
	result := pipeline.Compute(ds.Events(), params, pipeline.ComputeOptions{
		Map:                   pipeline.MapOptions{JitterRadius: s.opts.JitterRadius},
		PopulationDenominator: s.populations.Denominator(params.States, s.opts.NationalPopulation),
	})
	elapsed := s.clock.Since(start)

	if s.metrics != nil {
		s.metrics.Computations.Inc()
		s.metrics.ComputationDuration.Observe(elapsed.Seconds())
	}
	s.log.Debug("Dashboard computed", map[string]interface{}{
		"key":         params.Key(),
		"matched":     result.Matched,
		"rows":        ds.Len(),
		"duration_ms": elapsed.Milliseconds(),
	})
	return result
}

// Events pages through the filtered rows.
func (s *dashboardService) Events(ctx context.Context, params pipeline.Params, page Page) (*EventPage, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	ds, _, err := s.current()
	if err != nil {
		return nil, err
	}

	if page.Limit <= 0 {
		page.Limit = DefaultPageLimit
	}
	if page.Limit > MaxPageLimit {
		page.Limit = MaxPageLimit
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	filtered := pipeline.Filter(ds.Events(), params)
	from := min(page.Offset, len(filtered))
	to := min(from+page.Limit, len(filtered))

	return &EventPage{
		Events: filtered[from:to],
		Total:  len(filtered),
		Limit:  page.Limit,
		Offset: page.Offset,
	}, nil
}

// LocationEvents resolves a clicked marker back to its rows.
func (s *dashboardService) LocationEvents(ctx context.Context, params pipeline.Params, label string) ([]models.Event, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	ds, _, err := s.current()
	if err != nil {
		return nil, err
	}

	events, ok := pipeline.EventsAtLocation(pipeline.Filter(ds.Events(), params), label)
	if !ok {
		s.log.Debug("Location lookup missed", map[string]interface{}{"label": label})
		return nil, fmt.Errorf("%w: %q", ErrLocationNotFound, label)
	}
	return events, nil
}

// FilterOptions derives the filter control values from the current dataset.
func (s *dashboardService) FilterOptions(ctx context.Context, states []string) (*FilterOptions, error) {
	ds, _, err := s.current()
	if err != nil {
		return nil, err
	}

	opts := &FilterOptions{
		States:    ds.States(),
		Outcomes:  make([]string, 0, len(pipeline.OutcomeFlags)),
		SizeModes: []string{string(pipeline.SizeAll), string(pipeline.SizeHas), string(pipeline.SizeMissing)},
	}
	opts.Cities = ds.Cities(states)
	for _, flag := range pipeline.OutcomeFlags {
		opts.Outcomes = append(opts.Outcomes, string(flag))
	}
	if first, last := ds.DateBounds(); first != nil && last != nil {
		opts.StartDate = first.Format(models.DateLayout)
		opts.EndDate = last.Format(models.DateLayout)
	}
	return opts, nil
}

// Export streams the full or filtered dataset as CSV.
func (s *dashboardService) Export(ctx context.Context, w io.Writer, params pipeline.Params, scope ExportScope) (int, error) {
	if scope == "" {
		scope = ExportFiltered
	}
	if scope != ExportFiltered && scope != ExportFull {
		return 0, fmt.Errorf("%w: unknown export scope %q", ErrInvalidFilter, scope)
	}
	if scope == ExportFiltered {
		if err := validateParams(params); err != nil {
			return 0, err
		}
	}
	ds, _, err := s.current()
	if err != nil {
		return 0, err
	}

	rows := ds.Events()
	if scope == ExportFiltered {
		rows = pipeline.Filter(rows, params)
	}

	sourceCols := ds.SourceColumns()
	cw := csv.NewWriter(w)
	if err := cw.Write(models.ExportHeader(sourceCols)); err != nil {
		return 0, fmt.Errorf("failed to write export header: %w", err)
	}
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := cw.Write(rows[i].CSVRecord(sourceCols)); err != nil {
			return i, fmt.Errorf("failed to write export row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(rows), fmt.Errorf("failed to flush export: %w", err)
	}

	s.log.Info("Dataset exported", map[string]interface{}{
		"scope": string(scope),
		"rows":  len(rows),
	})
	return len(rows), nil
}

// Info describes the dataset currently held.
func (s *dashboardService) Info(ctx context.Context) (*DatasetInfo, error) {
	ds, version, err := s.current()
	if err != nil {
		return nil, err
	}
	return datasetInfo(ds, version), nil
}

// Reload refreshes the dataset and drops memoized results.
func (s *dashboardService) Reload(ctx context.Context) (*DatasetInfo, error) {
	start := s.clock.Now()
	ds, version, err := s.source.Reload(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.DatasetReloads.WithLabelValues("error").Inc()
		}
		s.log.Error("Dataset reload failed", err, nil)
		return nil, fmt.Errorf("failed to reload dataset: %w", err)
	}

	s.memo.Flush()
	if s.metrics != nil {
		s.metrics.DatasetReloads.WithLabelValues("success").Inc()
		s.metrics.DatasetRows.Set(float64(ds.Len()))
	}
	s.log.Info("Dataset reloaded", map[string]interface{}{
		"rows":        ds.Len(),
		"origin":      ds.Origin(),
		"version":     version,
		"duration_ms": s.clock.Since(start).Milliseconds(),
	})
	return datasetInfo(ds, version), nil
}

func (s *dashboardService) current() (*dataset.Dataset, uint64, error) {
	ds, version, err := s.source.Current()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDatasetUnavailable, err)
	}
	return ds, version, nil
}

func datasetInfo(ds *dataset.Dataset, version uint64) *DatasetInfo {
	return &DatasetInfo{
		LoadedAt: ds.LoadedAt(),
		Origin:   ds.Origin(),
		Rows:     ds.Len(),
		Version:  version,
	}
}

// validateParams rejects parameter sets the filter cannot honor.
func validateParams(params pipeline.Params) error {
	if params.Start != nil && params.End != nil && params.Start.After(*params.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange,
			params.Start.Format(models.DateLayout), params.End.Format(models.DateLayout))
	}
	switch params.Size {
	case "", pipeline.SizeAll, pipeline.SizeHas, pipeline.SizeMissing:
	default:
		return fmt.Errorf("%w: unknown size mode %q", ErrInvalidFilter, params.Size)
	}
	for _, flag := range params.Outcomes {
		if !flag.Valid() {
			return fmt.Errorf("%w: unknown outcome %q", ErrInvalidFilter, flag)
		}
	}
	return nil
}
