package pipeline

import "github.com/stwalsh4118/dissent/internal/models"

// ComputeOptions configures a full pipeline run.
type ComputeOptions struct {
	Map                   MapOptions
	PopulationDenominator float64
}

// Result is everything the dashboard renders for one parameter set.
type Result struct {
	Map     MapResult  `json:"map"`
	Series  Series     `json:"series"`
	KPIs    Summary    `json:"kpis"`
	Display KPIDisplay `json:"display"`
	Matched int        `json:"matched"`
}

// Compute filters events and derives the map, series and KPI outputs from the same
// filtered set.
func Compute(events []models.Event, params Params, opts ComputeOptions) Result {
	filtered := Filter(events, params)
	kpis := Summarize(filtered, opts.PopulationDenominator)
	return Result{
		Map:     AggregateForMap(filtered, opts.Map),
		Series:  BuildSeries(filtered),
		KPIs:    kpis,
		Display: FormatKPIs(kpis),
		Matched: len(filtered),
	}
}
